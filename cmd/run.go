package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/housemgr/internal/handler"
	"github.com/teemow/housemgr/internal/logging"
	"github.com/teemow/housemgr/internal/manager"
	"github.com/teemow/housemgr/internal/server"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run read passes on the configured schedule",
		Long: `Run read passes on the cron schedule of [Manager] schedule until interrupted,
or a single pass when no schedule is set. After a pass that handled messages
a report is mailed to [Manager] report_to. With [Mail] mark_read = false,
messages stay unread and a report lists each of them only once while it
remains unread.

When instrumentation is enabled with the prometheus exporter
(INSTRUMENTATION_ENABLED=true), /metrics, /healthz and /readyz are served on
--metrics-addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runManager(cmd, o, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Empty disables the metrics server.")
	return cmd
}

func runManager(cmd *cobra.Command, o *rootOptions, metricsAddr string) error {
	ctx := cmd.Context()
	health := server.NewHealthChecker()

	hopts := append([]handler.Option{handler.WithOutput(cmd.OutOrStdout())}, o.handlerOpts...)
	mgr := manager.New(o.configFile,
		manager.WithLogger(o.logger),
		manager.WithMetrics(o.metrics()),
		manager.WithHandlerOptions(hopts...),
		manager.WithObserver(health))
	if err := mgr.Configure(ctx); err != nil {
		return err
	}

	if metricsAddr != "" && o.provider != nil && o.provider.ServesPrometheus() {
		metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsAddr,
			InstrumentationProvider: o.provider,
			Health:                  health,
			Logger:                  o.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil {
				o.logger.Error("metrics server failed", logging.Err(err))
				health.SetReady(false)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				o.logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	return mgr.Run(ctx)
}

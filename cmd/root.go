package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teemow/housemgr/internal/handler"
	"github.com/teemow/housemgr/internal/instrumentation"
	"github.com/teemow/housemgr/internal/logging"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "housemgr.ini"

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the version command and --version.
func SetVersion(v string) {
	version = v
}

// rootOptions carries the persistent flags and the process-wide logger and
// instrumentation provider to the subcommands.
type rootOptions struct {
	configFile string
	verbose    bool
	logFormat  string

	logger   *slog.Logger
	provider *instrumentation.Provider

	// handlerOpts are appended to every handler the commands build.
	handlerOpts []handler.Option
}

func newRootCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "housemgr",
		Short: "Reads unread Gmail messages and sends house manager reports",
		Long: `housemgr authenticates against the Gmail API with OAuth2, prints the
unread messages of the configured mailbox and removes their UNREAD label.
It can also send HTML messages with an optional attachment and run read
passes on a schedule, mailing a report after each pass.

Without a subcommand it runs "read".`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRead(cmd, o)
		},
	}
	cmd.SetVersionTemplate(`{{printf "housemgr version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", DefaultConfigFile, "Path to the INI configuration file")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&o.logFormat, "log-format", logging.FormatText, "Log format: text or json")

	cmd.AddCommand(
		newReadCmd(o),
		newSendCmd(o),
		newAuthCmd(o),
		newRunCmd(o),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// setup loads .env, configures logging and starts the instrumentation
// provider.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	o.logger = logging.NewLogger(cmd.ErrOrStderr(), level, o.logFormat)
	slog.SetDefault(o.logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(cmd.Context(), instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	o.provider = provider
	return nil
}

func (o *rootOptions) shutdown() {
	if o.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.provider.Shutdown(ctx); err != nil {
		o.logger.Warn("error during instrumentation shutdown", logging.Err(err))
	}
}

func (o *rootOptions) metrics() *instrumentation.Metrics {
	if o.provider == nil {
		return nil
	}
	return o.provider.Metrics()
}

func (o *rootOptions) newHandler(cmd *cobra.Command) *handler.EmailHandler {
	opts := []handler.Option{
		handler.WithOutput(cmd.OutOrStdout()),
		handler.WithLogger(o.logger),
		handler.WithMetrics(o.metrics()),
	}
	return handler.New(o.configFile, append(opts, o.handlerOpts...)...)
}

// execute runs the command line args and releases the instrumentation
// provider afterwards.
func execute(ctx context.Context, o *rootOptions, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(o)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defer o.shutdown()
	return cmd.ExecuteContext(ctx)
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, &rootOptions{}, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

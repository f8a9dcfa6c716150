package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/housemgr/internal/config"
	"github.com/teemow/housemgr/internal/google"
)

func newAuthCmd(o *rootOptions) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize housemgr and store the token file",
		Long: `Run the OAuth2 installed-app flow even if a token exists. The authorization
URL is printed and opened in the browser; after consent the token is written
to [Server] token_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configFile)
			if err != nil {
				return err
			}

			opts := []google.Option{
				google.WithLogger(o.logger),
				google.WithMetrics(o.metrics()),
				google.WithPrompt(cmd.ErrOrStderr()),
			}
			if noBrowser {
				opts = append(opts, google.WithBrowser(func(string) error { return nil }))
			}
			creds, err := google.NewCredentials(cfg.Server.CredentialsFile, cfg.Server.TokenFile, cfg.Server.Scopes, opts...)
			if err != nil {
				return err
			}

			if _, err := creds.Authorize(cmd.Context()); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Server.TokenFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Only print the authorization URL")
	return cmd
}

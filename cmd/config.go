package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/housemgr/internal/config"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the configuration file",
		Long: `Load and validate the configuration file, then print its sections and keys
as they were read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configFile)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i, section := range cfg.Sections() {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "[%s]\n", section)
				for _, key := range cfg.Keys(section) {
					value, _ := cfg.Get(section, key)
					fmt.Fprintf(w, "%s = %s\n", key, value)
				}
			}
			return nil
		},
	}
}

package cmd

import (
	"github.com/spf13/cobra"
)

func newReadCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Print unread messages and mark them as read",
		Long: `Print every unread message of the configured mailbox and remove its UNREAD
label. Set mark_read = false in the [Mail] section to leave messages unread,
and attachments_dir to save their attachments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRead(cmd, o)
		},
	}
}

func runRead(cmd *cobra.Command, o *rootOptions) error {
	h := o.newHandler(cmd)
	if err := h.Configure(cmd.Context()); err != nil {
		return err
	}
	_, err := h.ReadEmail(cmd.Context())
	return err
}

package cmd

import (
	"errors"
	"fmt"
	"html/template"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/housemgr/internal/gmail"
)

type sendOptions struct {
	from, to, subject string
	html, htmlFile    string
	text, textFile    string
	attach            string
}

func newSendCmd(o *rootOptions) *cobra.Command {
	var so sendOptions

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message with an optional attachment",
		Long: `Send an HTML message with a plain text alternative. Without --text the
plain part is generated from the HTML body, and without --html the HTML
part wraps the plain text. The sender defaults to
[Mail] sender; when neither is set Gmail uses the authenticated account.`,
		Example: `  housemgr send --to owner@example.com --subject "Meter reading" \
    --html "<p>Reading attached.</p>" --attach reading.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd, o, so)
		},
	}

	cmd.Flags().StringVar(&so.from, "from", "", "Sender address (default: [Mail] sender)")
	cmd.Flags().StringVar(&so.to, "to", "", "Recipient address list")
	cmd.Flags().StringVar(&so.subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&so.html, "html", "", "HTML body")
	cmd.Flags().StringVar(&so.htmlFile, "html-file", "", "Read the HTML body from a file")
	cmd.Flags().StringVar(&so.text, "text", "", "Plain text body")
	cmd.Flags().StringVar(&so.textFile, "text-file", "", "Read the plain text body from a file")
	cmd.Flags().StringVar(&so.attach, "attach", "", "File to attach")
	_ = cmd.MarkFlagRequired("to")
	cmd.MarkFlagsMutuallyExclusive("html", "html-file")
	cmd.MarkFlagsMutuallyExclusive("text", "text-file")
	return cmd
}

func runSend(cmd *cobra.Command, o *rootOptions, so sendOptions) error {
	html, err := bodyFromFlags(so.html, so.htmlFile)
	if err != nil {
		return err
	}
	plain, err := bodyFromFlags(so.text, so.textFile)
	if err != nil {
		return err
	}
	if html == "" && plain == "" {
		return errors.New("message body is empty: set --html, --html-file, --text or --text-file")
	}
	switch {
	case plain == "":
		if plain, err = gmail.HTMLToMarkdown(html); err != nil {
			return err
		}
	case html == "":
		html = "<pre>" + template.HTMLEscapeString(plain) + "</pre>"
	}

	h := o.newHandler(cmd)
	if err := h.Configure(cmd.Context()); err != nil {
		return err
	}
	_, err = h.SendMessage(cmd.Context(), so.from, so.to, so.subject, html, plain, so.attach)
	return err
}

func bodyFromFlags(value, file string) (string, error) {
	if file == "" {
		return value, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return string(data), nil
}

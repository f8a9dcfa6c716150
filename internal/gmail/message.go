package gmail

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/jhillyerd/enmime"
)

// Body formats accepted by Message.Render.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Message is a fetched Gmail message with its MIME content decoded.
type Message struct {
	ID       string
	ThreadID string
	LabelIDs []string
	Snippet  string

	Subject string
	From    string
	To      string
	Date    time.Time

	Text        string
	HTML        string
	Attachments []Attachment

	// Errors lists non-fatal problems found while decoding.
	Errors []string
}

// Attachment is a non-body MIME part.
type Attachment struct {
	Filename    string
	ContentType string
	Inline      bool
	Content     []byte
}

// ParseMessage decodes a raw RFC 5322 message.
func ParseMessage(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		To:      env.GetHeader("To"),
		Text:    env.Text,
		HTML:    env.HTML,
	}
	if d := env.GetHeader("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			msg.Date = t
		}
	}

	msg.Attachments = append(msg.Attachments, collectParts(env.Attachments, false)...)
	msg.Attachments = append(msg.Attachments, collectParts(env.Inlines, true)...)

	for _, e := range env.Errors {
		msg.Errors = append(msg.Errors, e.Error())
	}
	return msg, nil
}

func collectParts(parts []*enmime.Part, inline bool) []Attachment {
	var out []Attachment
	for _, p := range parts {
		if isBodyPart(p) {
			continue
		}
		out = append(out, Attachment{
			Filename:    p.FileName,
			ContentType: p.ContentType,
			Inline:      inline,
			Content:     p.Content,
		})
	}
	return out
}

// isBodyPart reports whether a text part without a filename or an explicit
// attachment disposition ended up in enmime's attachment lists.
func isBodyPart(p *enmime.Part) bool {
	ct := strings.ToLower(p.ContentType)
	if ct != "text/plain" && ct != "text/html" {
		return false
	}
	return p.FileName == "" && !strings.EqualFold(p.Disposition, "attachment")
}

// Render returns the message body in the given format. Markdown is produced
// from the HTML part when there is one; messages without HTML fall back to
// their text part.
func (m *Message) Render(format string) (string, error) {
	switch format {
	case "", FormatText:
		return m.Text, nil
	case FormatHTML:
		if m.HTML == "" {
			return m.Text, nil
		}
		return m.HTML, nil
	case FormatMarkdown:
		if m.HTML == "" {
			return m.Text, nil
		}
		return HTMLToMarkdown(m.HTML)
	default:
		return "", fmt.Errorf("unsupported body format %q", format)
	}
}

// HTMLToMarkdown converts an HTML body to markdown, which doubles as the
// plain text alternative of outgoing messages.
func HTMLToMarkdown(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML body to markdown: %w", err)
	}
	return md, nil
}

// ValidFormat reports whether format is accepted by Render.
func ValidFormat(format string) bool {
	switch format {
	case "", FormatText, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

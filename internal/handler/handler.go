package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/housemgr/internal/config"
	"github.com/teemow/housemgr/internal/gmail"
	"github.com/teemow/housemgr/internal/google"
	"github.com/teemow/housemgr/internal/instrumentation"
	"github.com/teemow/housemgr/internal/logging"
)

// ErrNotConfigured is returned by operations called before Configure.
var ErrNotConfigured = errors.New("email handler is not configured")

// MailClient is the subset of the Gmail client the handler uses.
type MailClient interface {
	ListUnread(ctx context.Context, query string, limit int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	MarkAsRead(ctx context.Context, id string) error
	Send(ctx context.Context, raw []byte) (string, error)
}

// EmailHandler reads unread mail and sends messages for one configured
// mailbox.
type EmailHandler struct {
	configFile string

	cfg     *config.Config
	client  MailClient
	tokens  google.TokenProvider
	gmail   []gmail.ClientOption
	out     io.Writer
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures an EmailHandler.
type Option func(*EmailHandler)

// WithOutput sets where messages and send results are printed (default: stdout).
func WithOutput(w io.Writer) Option {
	return func(h *EmailHandler) { h.out = w }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *EmailHandler) { h.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(h *EmailHandler) { h.metrics = m }
}

// WithClient uses client instead of building one from credentials.
func WithClient(client MailClient) Option {
	return func(h *EmailHandler) { h.client = client }
}

// WithTokenProvider replaces the file-backed credentials.
func WithTokenProvider(tp google.TokenProvider) Option {
	return func(h *EmailHandler) { h.tokens = tp }
}

// WithGmailOptions passes extra options to the Gmail client.
func WithGmailOptions(opts ...gmail.ClientOption) Option {
	return func(h *EmailHandler) { h.gmail = append(h.gmail, opts...) }
}

// New returns a handler for the configuration file at configFile. Call
// Configure before using it.
func New(configFile string, opts ...Option) *EmailHandler {
	h := &EmailHandler{
		configFile: configFile,
		out:        os.Stdout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Configure loads the configuration file, obtains credentials and builds the
// Gmail client.
func (h *EmailHandler) Configure(ctx context.Context) error {
	h.logger.Debug("processing configuration file", logging.Path(h.configFile))

	cfg, err := config.Load(h.configFile)
	if err != nil {
		return err
	}
	if !gmail.ValidFormat(cfg.Mail.BodyFormat) {
		return fmt.Errorf("%w: [%s] %s must be one of text, markdown, html", config.ErrInvalid, config.SectionMail, config.KeyBodyFormat)
	}

	if h.client == nil {
		client, err := h.newClient(ctx, cfg)
		if err != nil {
			return err
		}
		h.client = client
	}

	h.cfg = cfg
	return nil
}

func (h *EmailHandler) newClient(ctx context.Context, cfg *config.Config) (MailClient, error) {
	tokens := h.tokens
	if tokens == nil {
		creds, err := google.NewCredentials(cfg.Server.CredentialsFile, cfg.Server.TokenFile, cfg.Server.Scopes,
			google.WithLogger(h.logger),
			google.WithMetrics(h.metrics))
		if err != nil {
			return nil, err
		}
		tokens = creds
	}

	ts, err := tokens.TokenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain credentials: %w", err)
	}

	opts := []gmail.ClientOption{
		gmail.WithUserID(cfg.Server.UserID),
		gmail.WithLogger(h.logger),
		gmail.WithMetrics(h.metrics),
	}
	return gmail.NewClient(ctx, oauth2.NewClient(ctx, ts), append(opts, h.gmail...)...)
}

// Config returns the loaded configuration, or nil before Configure.
func (h *EmailHandler) Config() *config.Config {
	return h.cfg
}

// MessageSummary describes one handled unread message.
type MessageSummary struct {
	ID          string
	From        string
	Subject     string
	Date        time.Time
	MarkedRead  bool
	Attachments []string
}

// ReadSummary is the result of a ReadEmail pass.
type ReadSummary struct {
	Messages []MessageSummary
}

// Processed returns the number of messages handled.
func (s *ReadSummary) Processed() int {
	return len(s.Messages)
}

// ReadEmail prints every unread message and removes its UNREAD label unless
// [Mail] mark_read is false. Attachments are saved when [Mail]
// attachments_dir is set. Processing stops at the first error; the summary
// covers the messages handled until then.
func (h *EmailHandler) ReadEmail(ctx context.Context) (*ReadSummary, error) {
	if h.cfg == nil {
		return nil, ErrNotConfigured
	}
	logger := logging.WithOperation(h.logger, "read_email")
	logger.Info("getting list of unread emails")

	summary := &ReadSummary{}
	ids, err := h.client.ListUnread(ctx, h.cfg.Mail.Query, h.cfg.Mail.MaxResults)
	if err != nil {
		logger.Error("failed to list unread emails", logging.Err(err))
		return summary, err
	}
	logger.Debug("found unread emails", logging.Count(len(ids)))

	for _, id := range ids {
		ms, err := h.readOne(ctx, id)
		if err != nil {
			logger.Error("failed to process email", logging.MessageID(id), logging.Err(err))
			return summary, err
		}
		summary.Messages = append(summary.Messages, *ms)
	}

	logger.Info("processed unread emails", logging.Count(summary.Processed()))
	return summary, nil
}

func (h *EmailHandler) readOne(ctx context.Context, id string) (*MessageSummary, error) {
	msg, err := h.client.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, e := range msg.Errors {
		h.logger.Debug("message decoded with problems", logging.MessageID(id), "problem", e)
	}

	body, err := msg.Render(h.cfg.Mail.BodyFormat)
	if err != nil {
		return nil, err
	}
	if err := printMessage(h.out, id, msg, body); err != nil {
		return nil, fmt.Errorf("failed to print message: %w", err)
	}
	h.metrics.RecordMessageProcessed(ctx, instrumentation.ActionRead)

	ms := &MessageSummary{
		ID:      id,
		From:    msg.From,
		Subject: msg.Subject,
		Date:    msg.Date,
	}

	if dir := h.cfg.Mail.AttachmentsDir; dir != "" {
		for _, a := range msg.Attachments {
			path, err := gmail.SaveAttachment(dir, id, a)
			if err != nil {
				return nil, err
			}
			h.logger.Debug("attachment saved", logging.MessageID(id), logging.Path(path))
			h.metrics.RecordMessageProcessed(ctx, instrumentation.ActionSaved)
			ms.Attachments = append(ms.Attachments, path)
		}
	}

	if h.cfg.Mail.MarkRead {
		if err := h.client.MarkAsRead(ctx, id); err != nil {
			return nil, err
		}
		h.metrics.RecordMessageProcessed(ctx, instrumentation.ActionMarkRead)
		ms.MarkedRead = true
	}
	return ms, nil
}

func printMessage(w io.Writer, id string, msg *gmail.Message, body string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Message Id: %s\n", id)
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if !msg.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", msg.Date.Format(time.RFC1123Z))
	}
	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, "Attachment: %s (%s, %d bytes)\n", a.Filename, a.ContentType, len(a.Content))
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimRight(body, "\r\n"))
	b.WriteString("\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// SendMessage builds a message with optional attachment and sends it,
// printing the ID Gmail assigned. An empty sender falls back to [Mail]
// sender.
func (h *EmailHandler) SendMessage(ctx context.Context, sender, to, subject, html, plain, attachmentFile string) (string, error) {
	if h.cfg == nil {
		return "", ErrNotConfigured
	}
	if sender == "" {
		sender = h.cfg.Mail.Sender
	}
	logger := logging.WithOperation(h.logger, "send_message")

	raw, err := gmail.BuildMessage(gmail.OutgoingMessage{
		From:           sender,
		To:             to,
		Subject:        subject,
		HTML:           html,
		Plain:          plain,
		AttachmentPath: attachmentFile,
	})
	if err != nil {
		return "", err
	}

	id, err := h.client.Send(ctx, raw)
	if err != nil {
		logger.Error("failed to send message", logging.Err(err))
		return "", err
	}

	kind := "plain"
	if attachmentFile != "" {
		kind = "attachment"
	}
	h.metrics.RecordMessageSent(ctx, kind)
	logger.Info("message sent", logging.MessageID(id), logging.UserHash(to), logging.Domain(to))

	_, err = fmt.Fprintf(h.out, "Message Id: %s\n", id)
	return id, err
}

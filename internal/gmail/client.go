package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/housemgr/internal/instrumentation"
	"github.com/teemow/housemgr/internal/logging"
)

// LabelUnread is the system label Gmail puts on unread messages.
const LabelUnread = "UNREAD"

const (
	// DefaultUserID addresses the authenticated user.
	DefaultUserID = "me"

	// DefaultRequestsPerSecond keeps well below Gmail's per-user quota.
	DefaultRequestsPerSecond = 5.0

	// maxPageSize is the largest page Gmail returns from messages.list.
	maxPageSize = 500
)

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	userID  string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	limiter *rate.Limiter
}

type clientOptions struct {
	userID   string
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	endpoint string
	qps      float64
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithUserID sets the mailbox the client operates on (default "me").
func WithUserID(id string) ClientOption {
	return func(o *clientOptions) {
		if id != "" {
			o.userID = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// WithEndpoint overrides the Gmail API base URL.
func WithEndpoint(url string) ClientOption {
	return func(o *clientOptions) { o.endpoint = url }
}

// WithRateLimit caps the request rate. Zero or less disables limiting.
func WithRateLimit(qps float64) ClientOption {
	return func(o *clientOptions) { o.qps = qps }
}

// NewClient creates a Gmail client sending requests through httpClient,
// which is expected to authorize them.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		userID: DefaultUserID,
		logger: slog.Default(),
		qps:    DefaultRequestsPerSecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if o.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(o.endpoint))
	}

	svc, err := gmail.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if o.qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.qps), 1)
	}

	return &Client{
		svc:     svc.Users,
		userID:  o.userID,
		logger:  logging.WithService(o.logger, instrumentation.ServiceGmail),
		metrics: o.metrics,
		limiter: limiter,
	}, nil
}

// UserID returns the mailbox the client operates on.
func (c *Client) UserID() string {
	return c.userID
}

// call wraps a single API request with rate limiting, a span and metrics.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	attrs = append(attrs, attribute.String(instrumentation.SpanAttrUserID, c.userID))
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation, attrs...)

	err := c.limiter.Wait(ctx)
	start := time.Now()
	if err == nil {
		err = fn(ctx)
	}
	elapsed := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, elapsed)
	instrumentation.EndSpan(span, err)
	return err
}

// ListUnread returns the IDs of unread messages, newest first, following
// pagination. query is an optional Gmail search expression narrowing the
// result; limit caps the number of IDs returned (0 means all).
func (c *Client) ListUnread(ctx context.Context, query string, limit int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		pageSize := int64(maxPageSize)
		if limit > 0 && limit-int64(len(ids)) < pageSize {
			pageSize = limit - int64(len(ids))
		}

		req := c.svc.Messages.List(c.userID).LabelIds(LabelUnread).MaxResults(pageSize)
		if query != "" {
			req = req.Q(query)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var res *gmail.ListMessagesResponse
		err := c.call(ctx, instrumentation.OperationList, func(ctx context.Context) error {
			var err error
			if res, err = req.Context(ctx).Do(); err != nil {
				return err
			}
			instrumentation.AddSpanEvent(trace.SpanFromContext(ctx), "page",
				attribute.Int(instrumentation.SpanAttrCount, len(res.Messages)))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list unread messages: %w", err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if limit > 0 && int64(len(ids)) >= limit {
			ids = ids[:limit]
			break
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	c.logger.Debug("listed unread messages", logging.Operation(instrumentation.OperationList), logging.Count(len(ids)))
	return ids, nil
}

// GetMessage fetches a message in raw format and decodes its MIME content.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	var res *gmail.Message
	err := c.call(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Messages.Get(c.userID, id).Format("raw").Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	raw, err := decodeBase64URL(res.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}

	msg, err := ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}
	msg.ID = res.Id
	msg.ThreadID = res.ThreadId
	msg.LabelIDs = res.LabelIds
	msg.Snippet = res.Snippet
	return msg, nil
}

// MarkAsRead removes the UNREAD label from a message.
func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	err := c.call(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(c.userID, id, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{LabelUnread},
		}).Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, id))
	if err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", id, err)
	}
	return nil
}

// Send submits an RFC 5322 message and returns the ID Gmail assigned to it.
func (c *Client) Send(ctx context.Context, raw []byte) (string, error) {
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	var sent *gmail.Message
	err := c.call(ctx, instrumentation.OperationSend, func(ctx context.Context) error {
		var err error
		sent, err = c.svc.Messages.Send(c.userID, msg).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Debug("message sent", logging.Operation(instrumentation.OperationSend), logging.MessageID(sent.Id))
	return sent.Id, nil
}

// decodeBase64URL decodes Gmail's base64url payloads, padded or not.
func decodeBase64URL(s string) ([]byte, error) {
	if len(s)%4 == 0 {
		if b, err := base64.URLEncoding.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return base64.RawURLEncoding.DecodeString(s)
}

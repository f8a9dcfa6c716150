package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrAction    = "action"
	attrKind      = "kind"
)

// Metrics provides methods for recording observability metrics.
// A nil or zero Metrics is valid and records nothing.
type Metrics struct {
	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Mail metrics
	messagesProcessedTotal metric.Int64Counter
	messagesSentTotal      metric.Int64Counter

	// Manager metrics
	passesTotal  metric.Int64Counter
	passDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments registered
// on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of interactive OAuth authorizations"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.messagesProcessedTotal, err = meter.Int64Counter(
		"messages_processed_total",
		metric.WithDescription("Total number of unread messages handled, by action"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_processed_total counter: %w", err)
	}

	m.messagesSentTotal, err = meter.Int64Counter(
		"messages_sent_total",
		metric.WithDescription("Total number of messages sent"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_sent_total counter: %w", err)
	}

	m.passesTotal, err = meter.Int64Counter(
		"manager_passes_total",
		metric.WithDescription("Total number of scheduled read passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager_passes_total counter: %w", err)
	}

	m.passDuration, err = meter.Float64Histogram(
		"manager_pass_duration_seconds",
		metric.WithDescription("Duration of a read pass in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager_pass_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail)
//   - operation: Operation type (list, get, modify, send)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records an interactive authorization with its result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a token refresh attempt.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, success bool) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}

	result := OAuthResultSuccess
	if !success {
		result = OAuthResultFailure
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordMessageProcessed counts one unread message handled with action
// (read, mark_read, attachment_saved).
func (m *Metrics) RecordMessageProcessed(ctx context.Context, action string) {
	if m == nil || m.messagesProcessedTotal == nil {
		return
	}
	m.messagesProcessedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAction, action)))
}

// RecordMessageSent counts a sent message. kind is "plain" or "attachment".
func (m *Metrics) RecordMessageSent(ctx context.Context, kind string) {
	if m == nil || m.messagesSentTotal == nil {
		return
	}
	m.messagesSentTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordPass records a scheduled read pass.
func (m *Metrics) RecordPass(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.passesTotal == nil || m.passDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.passesTotal.Add(ctx, 1, attrs)
	m.passDuration.Record(ctx, duration.Seconds(), attrs)
}

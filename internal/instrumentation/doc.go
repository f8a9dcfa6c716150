// Package instrumentation provides OpenTelemetry instrumentation for housemgr.
//
// It wires up:
//   - OpenTelemetry metrics for Gmail API calls, OAuth operations and mail handling
//   - Tracing spans around every Gmail API call
//   - Prometheus export, served by the run command's dedicated metrics port
//   - OTLP and stdout export for other setups
//
// # Metrics
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// OAuth Metrics:
//   - oauth_auth_total: Counter of interactive authorizations by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Mail Metrics:
//   - messages_processed_total: Counter of unread messages handled, by action
//   - messages_sent_total: Counter of sent messages, by kind
//   - manager_passes_total / manager_pass_duration_seconds: scheduled read passes
//
// # Tracing
//
// Spans are named google.<service>.<operation>, e.g. google.gmail.list.
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: use plain HTTP for OTLP
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: housemgr)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail,
//		instrumentation.OperationList, instrumentation.StatusSuccess, elapsed)
package instrumentation

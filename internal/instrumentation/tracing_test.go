package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs a global tracer provider backed by a span recorder for
// the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan(t *testing.T) {
	recorder := recordSpans(t)

	spanCtx, span := StartSpan(context.Background(), "test-span", attribute.String("k", "v"))
	if GetTraceID(spanCtx) == "" {
		t.Error("expected a trace ID in the span context")
	}
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "test-span" {
		t.Errorf("expected span name 'test-span', got %q", ended[0].Name())
	}
}

func TestStartGoogleAPISpan(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceGmail, OperationList,
		attribute.String(SpanAttrUserID, "me"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	got := ended[0]

	if got.Name() != "google.gmail.list" {
		t.Errorf("expected span name 'google.gmail.list', got %q", got.Name())
	}
	if got.SpanKind() != trace.SpanKindClient {
		t.Errorf("expected client span kind, got %v", got.SpanKind())
	}

	attrs := make(map[string]string)
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[SpanAttrService] != ServiceGmail {
		t.Errorf("expected service %q, got %q", ServiceGmail, attrs[SpanAttrService])
	}
	if attrs[SpanAttrOperation] != OperationList {
		t.Errorf("expected operation %q, got %q", OperationList, attrs[SpanAttrOperation])
	}
	if attrs[SpanAttrUserID] != "me" {
		t.Errorf("expected user id 'me', got %q", attrs[SpanAttrUserID])
	}
}

func TestEndSpan(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "success", err: nil, want: codes.Ok},
		{name: "error", err: errors.New("boom"), want: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, span := StartSpan(context.Background(), "op")
			EndSpan(span, tt.err)

			ended := recorder.Ended()
			if len(ended) != 1 {
				t.Fatalf("expected 1 ended span, got %d", len(ended))
			}
			if ended[0].Status().Code != tt.want {
				t.Errorf("expected status %v, got %v", tt.want, ended[0].Status().Code)
			}
			if tt.err != nil && len(ended[0].Events()) == 0 {
				t.Error("expected the error to be recorded as an event")
			}
		})
	}
}

func TestSetSpanError_NilIsNoop(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartSpan(context.Background(), "op")
	SetSpanError(span, nil)
	span.End()

	if code := recorder.Ended()[0].Status().Code; code != codes.Unset {
		t.Errorf("expected unset status, got %v", code)
	}
}

func TestAddSpanEvent(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartSpan(context.Background(), "op")
	AddSpanEvent(span, "token.refreshed", attribute.Bool("persisted", true))
	span.End()

	events := recorder.Ended()[0].Events()
	if len(events) != 1 || events[0].Name != "token.refreshed" {
		t.Errorf("expected a single token.refreshed event, got %+v", events)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if traceID := GetTraceID(context.Background()); traceID != "" {
		t.Errorf("expected empty trace ID for context without span, got %q", traceID)
	}
}

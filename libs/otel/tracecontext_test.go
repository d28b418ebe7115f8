package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tc := CaptureTraceContext(ctx)
	if tc.Parent == "" {
		t.Fatal("expected traceparent")
	}

	restored := trace.SpanContextFromContext(tc.Into(context.Background()))
	if restored.TraceID() != traceID {
		t.Fatalf("trace id mismatch: got %s", restored.TraceID())
	}
}

func TestEmptyTraceContextKeepsContext(t *testing.T) {
	ctx := context.Background()
	if got := (TraceContext{}).Into(ctx); got != ctx {
		t.Fatal("expected same context for empty carrier")
	}
}

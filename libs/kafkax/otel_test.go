package kafkax

import (
	"context"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func sampledContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	if err != nil {
		t.Fatalf("trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("b7ad6b7169203331")
	if err != nil {
		t.Fatalf("span id: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestInjectTraceHeadersAddsTraceparent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	headers := InjectTraceHeaders(sampledContext(t), nil)

	tp := HeaderValue(headers, "traceparent")
	if tp == "" {
		t.Fatalf("traceparent header missing after inject: headers=%v", headers)
	}
	if !strings.Contains(tp, "0af7651916cd43dd8448eb211c80319c") {
		t.Fatalf("traceparent %q does not carry the trace id", tp)
	}
}

func TestInjectTraceHeadersOverwritesExisting(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	headers := []kafka.Header{{Key: "traceparent", Value: []byte("stale")}}
	headers = InjectTraceHeaders(sampledContext(t), headers)

	count := 0
	for _, h := range headers {
		if h.Key == "traceparent" {
			count++
			if string(h.Value) == "stale" {
				t.Fatal("stale traceparent not overwritten")
			}
		}
	}
	if count != 1 {
		t.Fatalf("traceparent appears %d times, want 1", count)
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	ctx := sampledContext(t)
	headers := InjectTraceHeaders(ctx, nil)

	out := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	got := trace.SpanContextFromContext(out)
	want := trace.SpanContextFromContext(ctx)
	if got.TraceID() != want.TraceID() {
		t.Fatalf("trace id %s did not survive the round trip (want %s)", got.TraceID(), want.TraceID())
	}
}

package kafkax

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestEventMessage(t *testing.T) {
	msg := EventMessage("evt-1", "availability.slot.created.v1", "slot-1", []byte(`{}`))
	if msg.Topic != "availability.slot.created.v1" || string(msg.Key) != "slot-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if HeaderValue(msg.Headers, HeaderEventID) != "evt-1" || HeaderValue(msg.Headers, HeaderEventType) != msg.Topic {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	msg := EventMessage("evt-1", "availability.day.copied.v1", "t-1", nil)
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	if HeaderValue(msg.Headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %+v", msg.Headers)
	}

	// Injecting twice must overwrite rather than duplicate.
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	count := 0
	for _, h := range msg.Headers {
		if h.Key == "traceparent" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected a single traceparent header, got %d", count)
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	if got.TraceID() != traceID {
		t.Fatalf("trace id not propagated: %v", got.TraceID())
	}
}

func TestReadyCheckNotConfigured(t *testing.T) {
	if err := ReadyCheck(" ")(context.Background()); err == nil {
		t.Fatal("expected error when no brokers are configured")
	}
}

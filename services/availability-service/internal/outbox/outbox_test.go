package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mindcare/platform/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent(AggregateSlot, "slot-1", EventSlotCreated, map[string]string{"therapist_id": "t-1"})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	if evt.EventID == "" || evt.EventType != EventSlotCreated || evt.AggregateID != "slot-1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	var body map[string]string
	if err := json.Unmarshal(evt.Payload, &body); err != nil || body["therapist_id"] != "t-1" {
		t.Fatalf("unexpected payload %s (%v)", evt.Payload, err)
	}

	other, _ := NewEvent(AggregateSlot, "slot-1", EventSlotCreated, nil)
	if other.EventID == evt.EventID {
		t.Fatal("expected distinct event ids")
	}

	if _, err := NewEvent(AggregateSlot, "slot-1", EventSlotCreated, make(chan int)); err == nil {
		t.Fatal("expected error for unencodable payload")
	}
}

func TestMessagesRestoreTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const traceparent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
	records := []Record{
		{ID: 1, EventID: "e-1", EventType: EventDayCopied, AggregateID: "t-1", Payload: []byte(`{}`), Traceparent: traceparent},
		{ID: 2, EventID: "e-2", EventType: EventSlotDeleted, AggregateID: "s-9", Payload: []byte(`{}`)},
	}
	msgs := Messages(context.Background(), records)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != EventDayCopied || string(msgs[0].Key) != "t-1" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if got := kafkax.HeaderValue(msgs[0].Headers, "traceparent"); got != traceparent {
		t.Fatalf("expected stored traceparent, got %q", got)
	}
	if got := kafkax.HeaderValue(msgs[1].Headers, "traceparent"); got != "" {
		t.Fatalf("expected no traceparent for untraced record, got %q", got)
	}
	if kafkax.HeaderValue(msgs[1].Headers, kafkax.HeaderEventID) != "e-2" {
		t.Fatalf("missing event id header: %+v", msgs[1].Headers)
	}
}

func TestPublisherDisabledWithoutBrokers(t *testing.T) {
	p := NewPublisher(nil, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})
	if p.Enabled() {
		t.Fatal("expected publisher to be disabled")
	}
	if p.pollEvery != 2*time.Second || p.batchSize != 50 {
		t.Fatalf("unexpected defaults %s/%d", p.pollEvery, p.batchSize)
	}

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled publisher should return immediately")
	}
}

func TestInsertRejectsForeignEvents(t *testing.T) {
	repo := NewRepository()
	cases := []struct {
		name string
		evt  Event
		want error
	}{
		{"unknown type", Event{EventID: "e-1", AggregateType: AggregateSlot, AggregateID: "slot-1", EventType: "appointment.booked.v1"}, ErrUnknownEventType},
		{"copy keyed by slot", Event{EventID: "e-2", AggregateType: AggregateSlot, AggregateID: "slot-1", EventType: EventDayCopied}, ErrAggregateMismatch},
		{"slot keyed by therapist", Event{EventID: "e-3", AggregateType: AggregateTherapist, AggregateID: "t-1", EventType: EventSlotDeleted}, ErrAggregateMismatch},
	}
	for _, tc := range cases {
		// A nil tx proves validation runs before any SQL.
		if err := repo.Insert(context.Background(), nil, tc.evt); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if err := Validate(Event{AggregateType: AggregateTherapist, EventType: EventDayCopied}); err == nil {
		t.Fatal("expected error for empty aggregate id")
	}
	evt, _ := NewEvent(AggregateTherapist, "t-1", EventDayCopied, nil)
	if err := Validate(evt); err != nil {
		t.Fatalf("day copy event rejected: %v", err)
	}
}

func TestFetchUnpublishedScopedToAvailabilityEvents(t *testing.T) {
	want := []string{EventDayCopied, EventSlotCreated, EventSlotDeleted, EventSlotUpdated}
	if got := EventTypes(); !slices.Equal(got, want) {
		t.Fatalf("unexpected event types %v", got)
	}
	if !slices.Equal(NewRepository().eventTypes, want) {
		t.Fatal("repository should relay every availability event type")
	}
	if !strings.Contains(fetchUnpublishedSQL, "event_type = ANY($1)") || !strings.Contains(fetchUnpublishedSQL, "SKIP LOCKED") {
		t.Fatalf("unexpected fetch query %s", fetchUnpublishedSQL)
	}
	if recs, err := NewRepository().FetchUnpublished(context.Background(), nil, 0); err != nil || recs != nil {
		t.Fatalf("expected no-op for zero limit, got %v %v", recs, err)
	}
}

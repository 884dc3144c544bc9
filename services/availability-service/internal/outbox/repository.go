package outbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/mindcare/platform/libs/otel"
)

var (
	ErrUnknownEventType  = errors.New("unknown availability event type")
	ErrAggregateMismatch = errors.New("event type does not belong to aggregate")
)

// eventAggregates maps every event this service emits to the aggregate it is keyed by.
var eventAggregates = map[string]string{
	EventSlotCreated: AggregateSlot,
	EventSlotUpdated: AggregateSlot,
	EventSlotDeleted: AggregateSlot,
	EventDayCopied:   AggregateTherapist,
}

// EventTypes lists the availability event types in a stable order.
func EventTypes() []string {
	types := make([]string, 0, len(eventAggregates))
	for t := range eventAggregates {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Validate reports whether evt is an availability event keyed by the right aggregate.
func Validate(evt Event) error {
	agg, ok := eventAggregates[evt.EventType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, evt.EventType)
	}
	if evt.AggregateType != agg {
		return fmt.Errorf("%w: %s is keyed by %s, got %q", ErrAggregateMismatch, evt.EventType, agg, evt.AggregateType)
	}
	if evt.AggregateID == "" {
		return fmt.Errorf("%s: empty aggregate id", evt.EventType)
	}
	return nil
}

const insertEventSQL = `
	INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Only availability events are relayed; rows with other types stay untouched in the table.
const fetchUnpublishedSQL = `
	SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
	FROM outbox_events
	WHERE published_at IS NULL
	  AND event_type = ANY($1)
	ORDER BY id
	LIMIT $2
	FOR UPDATE SKIP LOCKED
`

type Repository struct {
	eventTypes []string
}

func NewRepository() *Repository {
	return &Repository{eventTypes: EventTypes()}
}

// Insert validates evt and stores it in the caller's transaction together with the current trace context.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	if err := Validate(evt); err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, insertEventSQL, evt.EventID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// FetchUnpublished locks up to limit pending availability events in id order.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := tx.Query(ctx, fetchUnpublishedSQL, r.eventTypes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.Traceparent, &rec.Tracestate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}

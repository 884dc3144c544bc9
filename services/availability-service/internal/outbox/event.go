package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	AggregateSlot      = "availability_slot"
	AggregateTherapist = "therapist_availability"

	EventSlotCreated = "availability.slot.created.v1"
	EventSlotUpdated = "availability.slot.updated.v1"
	EventSlotDeleted = "availability.slot.deleted.v1"
	EventDayCopied   = "availability.day.copied.v1"
)

// Event is the envelope written to the outbox table. The Kafka topic equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent assigns a fresh event id and encodes payload as JSON.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mindcare/platform/libs/db"
	"github.com/mindcare/platform/services/availability-service/internal/outbox"
	"github.com/mindcare/platform/services/availability-service/internal/schedule"
)

var ErrNotFound = errors.New("availability slot not found")

const slotColumns = `id::text, day_of_week, start_time, end_time, timezone, is_available, notes, created_at, updated_at`

// seq is assigned on insert, so slots created in one transaction keep the order they were written in.
const listSlotsSQL = `
	SELECT ` + slotColumns + `
	FROM availability_slots
	WHERE therapist_id = $1
	ORDER BY seq
`

// Repository persists slots per therapist. Every mutation records its domain event in the same
// transaction.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, ob *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: ob}
}

// SlotEvent is the payload of the slot lifecycle events.
type SlotEvent struct {
	TherapistID string        `json:"therapist_id"`
	Slot        schedule.Slot `json:"slot"`
}

// CopyEvent is the payload of availability.day.copied.v1.
type CopyEvent struct {
	TherapistID string         `json:"therapist_id"`
	SourceDay   schedule.Day   `json:"source_day"`
	TargetDays  []schedule.Day `json:"target_days"`
	SlotIDs     []string       `json:"slot_ids"`
	Atomic      bool           `json:"atomic"`
}

// ListSlots returns a therapist's slots in insertion order. That order is the input order used for
// grouping and conflict pairing.
func (r *Repository) ListSlots(ctx context.Context, therapistID string) ([]schedule.Slot, error) {
	rows, err := r.pool.Query(ctx, listSlotsSQL, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []schedule.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *Repository) GetSlot(ctx context.Context, therapistID, id string) (schedule.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Slot{}, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE therapist_id = $1 AND id = $2
	`, therapistID, id)
	return translate(scanSlot(row))
}

func (r *Repository) CreateSlot(ctx context.Context, therapistID string, in schedule.SlotInput) (schedule.Slot, error) {
	var created schedule.Slot
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		s, err := r.insertSlot(ctx, tx, therapistID, in)
		if err != nil {
			return err
		}
		created = s
		return nil
	})
	return created, err
}

// CreateSlots inserts every input in one transaction; either all slots exist afterwards or none do.
func (r *Repository) CreateSlots(ctx context.Context, therapistID string, inputs []schedule.SlotInput) ([]schedule.Slot, error) {
	created := make([]schedule.Slot, 0, len(inputs))
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, in := range inputs {
			s, err := r.insertSlot(ctx, tx, therapistID, in)
			if err != nil {
				return err
			}
			created = append(created, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) insertSlot(ctx context.Context, tx pgx.Tx, therapistID string, in schedule.SlotInput) (schedule.Slot, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO availability_slots (id, therapist_id, day_of_week, start_time, end_time, timezone, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+slotColumns,
		uuid.NewString(), therapistID, string(in.Day), in.StartTime, in.EndTime, in.Timezone, in.Notes)
	s, err := scanSlot(row)
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("insert slot: %w", err)
	}
	if err := r.record(ctx, tx, outbox.AggregateSlot, s.ID, outbox.EventSlotCreated, SlotEvent{TherapistID: therapistID, Slot: s}); err != nil {
		return schedule.Slot{}, err
	}
	return s, nil
}

// UpdateSlot locks the row, merges patch into it and re-validates the merged slot before writing.
func (r *Repository) UpdateSlot(ctx context.Context, therapistID, id string, patch schedule.SlotPatch) (schedule.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Slot{}, ErrNotFound
	}
	var updated schedule.Slot
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		current, err := translate(scanSlot(tx.QueryRow(ctx, `
			SELECT `+slotColumns+`
			FROM availability_slots
			WHERE therapist_id = $1 AND id = $2
			FOR UPDATE
		`, therapistID, id)))
		if err != nil {
			return err
		}

		merged := patch.Apply(current)
		if err := merged.Input().Validate(); err != nil {
			return err
		}

		s, err := scanSlot(tx.QueryRow(ctx, `
			UPDATE availability_slots
			SET day_of_week = $3, start_time = $4, end_time = $5, timezone = $6,
			    is_available = $7, notes = $8, updated_at = now()
			WHERE therapist_id = $1 AND id = $2
			RETURNING `+slotColumns,
			therapistID, id, string(merged.Day), merged.StartTime, merged.EndTime, merged.Timezone, merged.IsAvailable, merged.Notes))
		if err != nil {
			return fmt.Errorf("update slot: %w", err)
		}
		updated = s
		return r.record(ctx, tx, outbox.AggregateSlot, s.ID, outbox.EventSlotUpdated, SlotEvent{TherapistID: therapistID, Slot: s})
	})
	return updated, err
}

func (r *Repository) DeleteSlot(ctx context.Context, therapistID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		s, err := translate(scanSlot(tx.QueryRow(ctx, `
			DELETE FROM availability_slots
			WHERE therapist_id = $1 AND id = $2
			RETURNING `+slotColumns,
			therapistID, id)))
		if err != nil {
			return err
		}
		return r.record(ctx, tx, outbox.AggregateSlot, s.ID, outbox.EventSlotDeleted, SlotEvent{TherapistID: therapistID, Slot: s})
	})
}

// RecordCopy emits the summary event of a finished day copy.
func (r *Repository) RecordCopy(ctx context.Context, therapistID string, res schedule.CopyResult, atomic bool) error {
	payload := CopyEvent{
		TherapistID: therapistID,
		SourceDay:   res.Source,
		TargetDays:  res.Targets,
		SlotIDs:     make([]string, 0, len(res.Created)),
		Atomic:      atomic,
	}
	for _, s := range res.Created {
		payload.SlotIDs = append(payload.SlotIDs, s.ID)
	}
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return r.record(ctx, tx, outbox.AggregateTherapist, therapistID, outbox.EventDayCopied, payload)
	})
}

func (r *Repository) record(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload any) error {
	if r.outbox == nil {
		return nil
	}
	evt, err := outbox.NewEvent(aggregateType, aggregateID, eventType, payload)
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func scanSlot(row pgx.Row) (schedule.Slot, error) {
	var (
		s   schedule.Slot
		day string
	)
	if err := row.Scan(&s.ID, &day, &s.StartTime, &s.EndTime, &s.Timezone, &s.IsAvailable, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return schedule.Slot{}, err
	}
	s.Day = schedule.Day(day)
	return s, nil
}

func translate(s schedule.Slot, err error) (schedule.Slot, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Slot{}, ErrNotFound
	}
	return s, err
}

package availability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindcare/platform/services/availability-service/internal/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SlotStore is the persistent slot collection of one therapist.
type SlotStore interface {
	ListSlots(ctx context.Context, therapistID string) ([]schedule.Slot, error)
	CreateSlot(ctx context.Context, therapistID string, in schedule.SlotInput) (schedule.Slot, error)
	CreateSlots(ctx context.Context, therapistID string, inputs []schedule.SlotInput) ([]schedule.Slot, error)
	UpdateSlot(ctx context.Context, therapistID, id string, patch schedule.SlotPatch) (schedule.Slot, error)
	DeleteSlot(ctx context.Context, therapistID, id string) error
	RecordCopy(ctx context.Context, therapistID string, res schedule.CopyResult, atomic bool) error
}

// SlotCache is a versioned read-through cache. Get reports the version it looked under; Set only
// publishes a list for that version, and Invalidate moves readers to a new one. A list loaded
// before a concurrent write is therefore never served after that write's Invalidate.
type SlotCache interface {
	Get(ctx context.Context, therapistID string) (slots []schedule.Slot, version int64, ok bool, err error)
	Set(ctx context.Context, therapistID string, version int64, slots []schedule.Slot) error
	Invalidate(ctx context.Context, therapistID string) error
}

type Service struct {
	store  SlotStore
	cache  SlotCache
	logger *slog.Logger
	tracer trace.Tracer
}

// New builds a Service. cache may be nil.
func New(store SlotStore, cache SlotCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		tracer: otel.Tracer("availability-service/availability"),
	}
}

type CreateResult struct {
	Slot          schedule.Slot `json:"slot"`
	HasConflict   bool          `json:"has_conflict"`
	ConflictsWith []string      `json:"conflicts_with,omitempty"`
}

type ConflictReport struct {
	Conflicts         []schedule.Conflict `json:"conflicts"`
	Count             int                 `json:"count"`
	ConflictingIDs    []string            `json:"conflicting_ids"`
	MixedTimezoneDays []schedule.Day      `json:"mixed_timezone_days,omitempty"`
}

type CopyRequest struct {
	Source  schedule.Day   `json:"source_day"`
	Targets []schedule.Day `json:"target_days"`
	Atomic  bool           `json:"atomic"`
}

func (s *Service) List(ctx context.Context, therapistID string) ([]schedule.Slot, error) {
	ctx, span := s.start(ctx, "availability.list", therapistID)
	defer span.End()

	if err := requireTherapist(therapistID); err != nil {
		return nil, fail(span, err)
	}
	// The version must be read before the store so that a write landing in between bumps it.
	fill := false
	var version int64
	if s.cache != nil {
		slots, v, ok, err := s.cache.Get(ctx, therapistID)
		switch {
		case err != nil:
			s.logger.Warn("slot cache read failed", "therapist_id", therapistID, "err", err)
		case ok:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return slots, nil
		default:
			fill, version = true, v
		}
	}

	slots, err := s.store.ListSlots(ctx, therapistID)
	if err != nil {
		return nil, fail(span, err)
	}
	if fill {
		if err := s.cache.Set(ctx, therapistID, version, slots); err != nil {
			s.logger.Warn("slot cache write failed", "therapist_id", therapistID, "err", err)
		}
	}
	return slots, nil
}

// Create validates and stores a slot. Overlapping an existing slot is allowed; the result says so.
func (s *Service) Create(ctx context.Context, therapistID string, in schedule.SlotInput) (CreateResult, error) {
	ctx, span := s.start(ctx, "availability.create", therapistID)
	defer span.End()

	if err := requireTherapist(therapistID); err != nil {
		return CreateResult{}, fail(span, err)
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return CreateResult{}, fail(span, err)
	}

	slot, err := s.store.CreateSlot(ctx, therapistID, in)
	if err != nil {
		return CreateResult{}, fail(span, err)
	}
	s.invalidate(ctx, therapistID)

	res := CreateResult{Slot: slot}
	slots, err := s.List(ctx, therapistID)
	if err != nil {
		s.logger.Warn("conflict check after create failed", "therapist_id", therapistID, "err", err)
		return res, nil
	}
	for _, c := range schedule.NewConflictIndex(slots).Conflicts() {
		switch slot.ID {
		case c.Slots[0].ID:
			res.ConflictsWith = append(res.ConflictsWith, c.Slots[1].ID)
		case c.Slots[1].ID:
			res.ConflictsWith = append(res.ConflictsWith, c.Slots[0].ID)
		}
	}
	res.HasConflict = len(res.ConflictsWith) > 0
	return res, nil
}

func (s *Service) Update(ctx context.Context, therapistID, id string, patch schedule.SlotPatch) (schedule.Slot, error) {
	ctx, span := s.start(ctx, "availability.update", therapistID)
	defer span.End()

	if err := requireTherapist(therapistID); err != nil {
		return schedule.Slot{}, fail(span, err)
	}
	if strings.TrimSpace(id) == "" {
		return schedule.Slot{}, fail(span, fmt.Errorf("%w: id is required", schedule.ErrValidation))
	}
	if patch.Empty() {
		return schedule.Slot{}, fail(span, fmt.Errorf("%w: no fields to update", schedule.ErrValidation))
	}
	patch, err := normalizePatch(patch)
	if err != nil {
		return schedule.Slot{}, fail(span, err)
	}

	slot, err := s.store.UpdateSlot(ctx, therapistID, id, patch)
	if err != nil {
		return schedule.Slot{}, fail(span, err)
	}
	s.invalidate(ctx, therapistID)
	return slot, nil
}

func (s *Service) Delete(ctx context.Context, therapistID, id string) error {
	ctx, span := s.start(ctx, "availability.delete", therapistID)
	defer span.End()

	if err := requireTherapist(therapistID); err != nil {
		return fail(span, err)
	}
	if err := s.store.DeleteSlot(ctx, therapistID, id); err != nil {
		return fail(span, err)
	}
	s.invalidate(ctx, therapistID)
	return nil
}

func (s *Service) Conflicts(ctx context.Context, therapistID string) (ConflictReport, error) {
	slots, err := s.List(ctx, therapistID)
	if err != nil {
		return ConflictReport{}, err
	}
	idx := schedule.NewConflictIndex(slots)
	report := ConflictReport{
		Conflicts:         idx.Conflicts(),
		Count:             idx.Count(),
		ConflictingIDs:    idx.ConflictingIDs(),
		MixedTimezoneDays: schedule.MixedTimezoneDays(schedule.GroupByDay(slots)),
	}
	if report.Conflicts == nil {
		report.Conflicts = []schedule.Conflict{}
	}
	return report, nil
}

func (s *Service) Week(ctx context.Context, therapistID string, opts schedule.ViewOptions) (schedule.WeekView, error) {
	slots, err := s.List(ctx, therapistID)
	if err != nil {
		return schedule.WeekView{}, err
	}
	return schedule.BuildWeekView(slots, opts), nil
}

// CopyDay duplicates the source day's slots onto the targets. The default path creates slots one
// by one and leaves earlier creates in place when a later one fails. With Atomic set, all slots
// are written in a single transaction.
func (s *Service) CopyDay(ctx context.Context, therapistID string, req CopyRequest) (schedule.CopyResult, error) {
	ctx, span := s.start(ctx, "availability.copy_day", therapistID)
	defer span.End()
	span.SetAttributes(
		attribute.String("copy.source_day", string(req.Source)),
		attribute.Int("copy.target_count", len(req.Targets)),
		attribute.Bool("copy.atomic", req.Atomic),
	)

	if err := requireTherapist(therapistID); err != nil {
		return schedule.CopyResult{}, fail(span, err)
	}
	req, err := normalizeCopy(req)
	if err != nil {
		return schedule.CopyResult{}, fail(span, err)
	}

	slots, err := s.store.ListSlots(ctx, therapistID)
	if err != nil {
		return schedule.CopyResult{}, fail(span, err)
	}
	groups := schedule.GroupByDay(slots)

	var res schedule.CopyResult
	if req.Atomic {
		res, err = s.copyAtomic(ctx, therapistID, groups, req)
	} else {
		res, err = schedule.CopyDay(ctx, s.creator(therapistID), groups, req.Source, req.Targets...)
	}
	if res.Count() > 0 {
		s.invalidate(ctx, therapistID)
	}
	if err != nil {
		s.logger.Warn("copy day failed", "therapist_id", therapistID, "source_day", req.Source, "copied", res.Count(), "err", err)
		return res, fail(span, err)
	}

	if err := s.store.RecordCopy(ctx, therapistID, res, req.Atomic); err != nil {
		s.logger.Error("record copy event failed", "therapist_id", therapistID, "err", err)
	}
	span.SetAttributes(attribute.Int("copy.created", res.Count()))
	s.logger.Info("day copied", "therapist_id", therapistID, "source_day", req.Source, "targets", len(req.Targets), "created", res.Count())
	return res, nil
}

func (s *Service) copyAtomic(ctx context.Context, therapistID string, groups map[schedule.Day][]schedule.Slot, req CopyRequest) (schedule.CopyResult, error) {
	inputs, err := schedule.CopyInputs(groups, req.Source, req.Targets...)
	if err != nil {
		return schedule.CopyResult{}, err
	}
	created, err := s.store.CreateSlots(ctx, therapistID, inputs)
	if err != nil {
		return schedule.CopyResult{}, err
	}
	return schedule.CopyResult{Source: req.Source, Targets: req.Targets, Created: created}, nil
}

// creator binds the store to one therapist and traces every create of a copy.
func (s *Service) creator(therapistID string) schedule.Creator {
	return schedule.CreatorFunc(func(ctx context.Context, in schedule.SlotInput) (schedule.Slot, error) {
		ctx, span := s.tracer.Start(ctx, "availability.copy_day.create", trace.WithAttributes(
			attribute.String("slot.day_of_week", string(in.Day)),
			attribute.String("slot.start_time", in.StartTime),
		))
		defer span.End()
		slot, err := s.store.CreateSlot(ctx, therapistID, in)
		if err != nil {
			return schedule.Slot{}, fail(span, err)
		}
		return slot, nil
	})
}

func (s *Service) invalidate(ctx context.Context, therapistID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, therapistID); err != nil {
		s.logger.Warn("slot cache invalidate failed", "therapist_id", therapistID, "err", err)
	}
}

func (s *Service) start(ctx context.Context, name, therapistID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("therapist.id", therapistID)))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func requireTherapist(therapistID string) error {
	if strings.TrimSpace(therapistID) == "" {
		return fmt.Errorf("%w: therapist id is required", schedule.ErrValidation)
	}
	return nil
}

func normalizePatch(p schedule.SlotPatch) (schedule.SlotPatch, error) {
	if p.Day != nil {
		d, err := schedule.ParseDay(string(*p.Day))
		if err != nil {
			return p, err
		}
		p.Day = &d
	}
	p.StartTime = trimmed(p.StartTime)
	p.EndTime = trimmed(p.EndTime)
	p.Timezone = trimmed(p.Timezone)
	p.Notes = trimmed(p.Notes)
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// normalizeCopy canonicalises day names. Targets are kept as given, repeats included.
func normalizeCopy(req CopyRequest) (CopyRequest, error) {
	src, err := schedule.ParseDay(string(req.Source))
	if err != nil {
		return req, fmt.Errorf("%w: source_day %q", schedule.ErrValidation, req.Source)
	}
	req.Source = src

	if len(req.Targets) == 0 {
		return req, fmt.Errorf("%w: at least one target day is required", schedule.ErrValidation)
	}
	targets := make([]schedule.Day, 0, len(req.Targets))
	for _, t := range req.Targets {
		d, err := schedule.ParseDay(string(t))
		if err != nil {
			return req, fmt.Errorf("%w: target_days %q", schedule.ErrValidation, t)
		}
		targets = append(targets, d)
	}
	req.Targets = targets
	return req, nil
}

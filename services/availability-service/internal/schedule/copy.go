package schedule

import (
	"context"
	"fmt"
)

// Creator is the write side of the slot store used by CopyDay.
type Creator interface {
	CreateAvailability(ctx context.Context, in SlotInput) (Slot, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, in SlotInput) (Slot, error)

func (f CreatorFunc) CreateAvailability(ctx context.Context, in SlotInput) (Slot, error) {
	return f(ctx, in)
}

type CopyResult struct {
	Source  Day    `json:"source_day"`
	Targets []Day  `json:"target_days"`
	Created []Slot `json:"created"`
}

func (r CopyResult) Count() int {
	return len(r.Created)
}

// CopyError reports a copy that stopped part way. Slots in Created were not rolled back.
type CopyError struct {
	Target    Day
	Attempted SlotInput
	Created   int
	Err       error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy to %s stopped after %d created slot(s): %v", e.Target, e.Created, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// CopyInputs builds the create requests for copying source onto each target, in target order
// then bucket order. Only times, timezone and notes are carried over.
func CopyInputs(groups map[Day][]Slot, source Day, targets ...Day) ([]SlotInput, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source day %q", ErrValidation, source)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target day is required", ErrValidation)
	}
	for _, t := range targets {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown target day %q", ErrValidation, t)
		}
	}
	bucket := groups[source]
	if len(bucket) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySourceDay, source)
	}

	inputs := make([]SlotInput, 0, len(bucket)*len(targets))
	for _, target := range targets {
		for _, s := range bucket {
			in := s.Input()
			in.Day = target
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}

// CopyDay duplicates every slot of source onto each target through c. Creates are issued one at a
// time, each finishing before the next starts. The first failure stops the copy and is returned
// as a *CopyError; slots created before it stay in place.
func CopyDay(ctx context.Context, c Creator, groups map[Day][]Slot, source Day, targets ...Day) (CopyResult, error) {
	inputs, err := CopyInputs(groups, source, targets...)
	if err != nil {
		return CopyResult{}, err
	}

	res := CopyResult{Source: source, Targets: targets, Created: make([]Slot, 0, len(inputs))}
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return res, &CopyError{Target: in.Day, Attempted: in, Created: len(res.Created), Err: err}
		}
		slot, err := c.CreateAvailability(ctx, in)
		if err != nil {
			return res, &CopyError{Target: in.Day, Attempted: in, Created: len(res.Created), Err: err}
		}
		res.Created = append(res.Created, slot)
	}
	return res, nil
}

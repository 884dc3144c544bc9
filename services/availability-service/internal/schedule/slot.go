package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on the host zoneinfo
)

var (
	ErrValidation     = errors.New("invalid availability")
	ErrEmptySourceDay = errors.New("no availability on source day")
)

const MaxNotesLength = 500

// Slot is one bookable (or explicitly blocked) time window on a day of the week.
// StartTime and EndTime are local "HH:MM" strings in Timezone.
type Slot struct {
	ID          string    `json:"id"`
	Day         Day       `json:"day_of_week"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Timezone    string    `json:"timezone"`
	IsAvailable bool      `json:"is_available"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overlaps applies the half-open interval test to two slots. The day is not compared; callers
// pair slots from the same day bucket.
func (s Slot) Overlaps(other Slot) bool {
	return Overlaps(s.StartTime, s.EndTime, other.StartTime, other.EndTime)
}

// SlotInput carries the fields a client supplies on create. Identity, availability flag and
// timestamps are assigned by the store.
type SlotInput struct {
	Day       Day     `json:"day_of_week"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Timezone  string  `json:"timezone"`
	Notes     *string `json:"notes,omitempty"`
}

// SlotPatch is a partial update; nil fields are left unchanged.
type SlotPatch struct {
	Day         *Day    `json:"day_of_week,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
	IsAvailable *bool   `json:"is_available,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (p SlotPatch) Empty() bool {
	return p.Day == nil && p.StartTime == nil && p.EndTime == nil && p.Timezone == nil && p.IsAvailable == nil && p.Notes == nil
}

// Apply returns s with the patch merged in. An empty Notes pointer value clears the notes.
func (p SlotPatch) Apply(s Slot) Slot {
	if p.Day != nil {
		s.Day = *p.Day
	}
	if p.StartTime != nil {
		s.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = *p.EndTime
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.IsAvailable != nil {
		s.IsAvailable = *p.IsAvailable
	}
	if p.Notes != nil {
		if strings.TrimSpace(*p.Notes) == "" {
			s.Notes = nil
		} else {
			n := *p.Notes
			s.Notes = &n
		}
	}
	return s
}

// Input extracts the copyable fields of s.
func (s Slot) Input() SlotInput {
	return SlotInput{
		Day:       s.Day,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Timezone:  s.Timezone,
		Notes:     cloneString(s.Notes),
	}
}

// Normalize trims whitespace and upper-cases the day.
func (in SlotInput) Normalize() SlotInput {
	in.Day = Day(strings.ToUpper(strings.TrimSpace(string(in.Day))))
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.Timezone = strings.TrimSpace(in.Timezone)
	if in.Notes != nil {
		n := strings.TrimSpace(*in.Notes)
		if n == "" {
			in.Notes = nil
		} else {
			in.Notes = &n
		}
	}
	return in
}

// Validate checks required fields, formats and end > start. Overlap with other slots is not a
// validation failure.
func (in SlotInput) Validate() error {
	var problems []string
	if in.Day == "" {
		problems = append(problems, "day_of_week is required")
	} else if !in.Day.Valid() {
		problems = append(problems, fmt.Sprintf("unknown day_of_week %q", in.Day))
	}

	start, errStart := parseRequiredClock("start_time", in.StartTime, &problems)
	end, errEnd := parseRequiredClock("end_time", in.EndTime, &problems)
	if errStart == nil && errEnd == nil && end <= start {
		problems = append(problems, "end_time must be after start_time")
	}

	if in.Timezone == "" {
		problems = append(problems, "timezone is required")
	} else if _, err := time.LoadLocation(in.Timezone); err != nil || strings.EqualFold(in.Timezone, "local") {
		problems = append(problems, fmt.Sprintf("unknown timezone %q", in.Timezone))
	}

	if in.Notes != nil && len(*in.Notes) > MaxNotesLength {
		problems = append(problems, fmt.Sprintf("notes must be at most %d characters", MaxNotesLength))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func parseRequiredClock(field, value string, problems *[]string) (int, error) {
	if value == "" {
		*problems = append(*problems, field+" is required")
		return 0, ErrValidation
	}
	m, err := ClockMinutes(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s %q must be HH:MM", field, value))
		return 0, err
	}
	return m, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

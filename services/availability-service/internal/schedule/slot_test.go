package schedule

import (
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestParseDay(t *testing.T) {
	d, err := ParseDay(" wednesday ")
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	if d != Wednesday {
		t.Fatalf("expected WEDNESDAY, got %s", d)
	}
	if _, err := ParseDay("FUNDAY"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSlotInputValidate(t *testing.T) {
	ok := SlotInput{Day: Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "America/New_York"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	bad := []SlotInput{
		{StartTime: "09:00", EndTime: "10:00", Timezone: "UTC"},
		{Day: "FUNDAY", StartTime: "09:00", EndTime: "10:00", Timezone: "UTC"},
		{Day: Monday, StartTime: "9", EndTime: "10:00", Timezone: "UTC"},
		{Day: Monday, StartTime: "10:00", EndTime: "10:00", Timezone: "UTC"},
		{Day: Monday, StartTime: "11:00", EndTime: "10:00", Timezone: "UTC"},
		{Day: Monday, StartTime: "09:00", EndTime: "10:00"},
		{Day: Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "Mars/Olympus"},
		{Day: Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "UTC", Notes: strPtr(strings.Repeat("x", MaxNotesLength+1))},
	}
	for i, in := range bad {
		if err := in.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestSlotInputNormalize(t *testing.T) {
	in := SlotInput{Day: " monday", StartTime: " 09:00 ", EndTime: "10:00", Timezone: " UTC ", Notes: strPtr("   ")}.Normalize()
	if in.Day != Monday || in.StartTime != "09:00" || in.Timezone != "UTC" {
		t.Fatalf("unexpected normalized input: %+v", in)
	}
	if in.Notes != nil {
		t.Fatalf("expected blank notes to be dropped")
	}
}

func TestSlotPatchApply(t *testing.T) {
	s := Slot{ID: "a", Day: Monday, StartTime: "09:00", EndTime: "10:00", Timezone: "UTC", IsAvailable: true, Notes: strPtr("intake")}
	off := false
	end := "11:00"
	got := SlotPatch{EndTime: &end, IsAvailable: &off, Notes: strPtr("")}.Apply(s)
	if got.EndTime != "11:00" || got.IsAvailable || got.Notes != nil {
		t.Fatalf("unexpected patched slot: %+v", got)
	}
	if got.StartTime != "09:00" || got.Day != Monday {
		t.Fatalf("patch changed untouched fields: %+v", got)
	}
	if (SlotPatch{}).Empty() != true {
		t.Fatal("zero patch should be empty")
	}
}

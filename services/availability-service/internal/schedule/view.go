package schedule

import (
	"fmt"
	"sort"
	"strings"
)

type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewGrid:
		return ViewGrid, nil
	case ViewList:
		return ViewList, nil
	default:
		return "", fmt.Errorf("%w: unknown view %q", ErrValidation, s)
	}
}

// ViewOptions is the per-request presentation state. It is passed explicitly, never shared.
type ViewOptions struct {
	Mode          ViewMode `json:"view"`
	ShowConflicts bool     `json:"show_conflicts"`
}

type ListedSlot struct {
	Slot
	Conflict bool `json:"conflict,omitempty"`
}

type DayColumn struct {
	Day   Day          `json:"day_of_week"`
	Slots []ListedSlot `json:"slots"`
}

// GridRow is one half-hour of the week. Cells are indexed like Days and hold the ids of slots
// covering the half-hour.
type GridRow struct {
	Time  string      `json:"time"`
	Cells [7][]string `json:"cells"`
}

type WeekView struct {
	Options       ViewOptions `json:"options"`
	Days          []DayColumn `json:"days,omitempty"`
	Rows          []GridRow   `json:"rows,omitempty"`
	ConflictCount int         `json:"conflict_count"`
	ConflictIDs   []string    `json:"conflicting_ids,omitempty"`
}

// BuildWeekView lays out slots as either day columns or a half-hour grid. Slots on unknown days
// are left out of both layouts.
func BuildWeekView(slots []Slot, opts ViewOptions) WeekView {
	if opts.Mode == "" {
		opts.Mode = ViewGrid
	}
	groups := GroupByDay(slots)
	idx := NewConflictIndex(slots)

	view := WeekView{Options: opts}
	if opts.ShowConflicts {
		view.ConflictCount = idx.Count()
		view.ConflictIDs = idx.ConflictingIDs()
	}

	switch opts.Mode {
	case ViewList:
		view.Days = listColumns(groups, idx, opts.ShowConflicts)
	default:
		view.Rows = gridRows(groups)
	}
	return view
}

func listColumns(groups map[Day][]Slot, idx *ConflictIndex, flag bool) []DayColumn {
	cols := make([]DayColumn, 0, len(Days))
	for _, d := range Days {
		bucket := groups[d]
		listed := make([]ListedSlot, 0, len(bucket))
		for _, s := range bucket {
			listed = append(listed, ListedSlot{Slot: s, Conflict: flag && idx.HasConflict(s.ID)})
		}
		sort.SliceStable(listed, func(i, j int) bool {
			return listed[i].StartTime < listed[j].StartTime
		})
		cols = append(cols, DayColumn{Day: d, Slots: listed})
	}
	return cols
}

func gridRows(groups map[Day][]Slot) []GridRow {
	times := HalfHourTimes()
	rows := make([]GridRow, len(times))
	for i, t := range times {
		rows[i].Time = t
	}
	for di, d := range Days {
		for _, s := range groups[d] {
			start, err1 := ClockMinutes(s.StartTime)
			end, err2 := ClockMinutes(s.EndTime)
			if err1 != nil || err2 != nil || end <= start {
				continue
			}
			// A slot occupies every half-hour row it touches, so 09:15-09:45 shows in 09:00 and 09:30.
			first := start / stepMinutes
			last := (end - 1) / stepMinutes
			for r := first; r <= last; r++ {
				rows[r].Cells[di] = append(rows[r].Cells[di], s.ID)
			}
		}
	}
	return rows
}

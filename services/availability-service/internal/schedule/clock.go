package schedule

import (
	"fmt"
	"strconv"
)

const (
	minutesPerDay = 24 * 60
	stepMinutes   = 30
)

// ClockMinutes converts a 24-hour "HH:MM" string to minutes since midnight.
func ClockMinutes(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrValidation, s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || s[0] == '+' || s[0] == '-' || s[3] == '+' || s[3] == '-' {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrValidation, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time %q is out of range", ErrValidation, s)
	}
	return h*60 + m, nil
}

// FormatClock is the inverse of ClockMinutes for values in [0, 1440).
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// HalfHourTimes returns the 48 selectable start/end options, "00:00" through "23:30".
func HalfHourTimes() []string {
	out := make([]string, 0, minutesPerDay/stepMinutes)
	for m := 0; m < minutesPerDay; m += stepMinutes {
		out = append(out, FormatClock(m))
	}
	return out
}

// Overlaps reports whether [start1,end1) and [start2,end2) intersect. Back-to-back ranges do not
// overlap. Any unparseable input yields false; writes are validated so stored slots always parse.
func Overlaps(start1, end1, start2, end2 string) bool {
	s1, err1 := ClockMinutes(start1)
	e1, err2 := ClockMinutes(end1)
	s2, err3 := ClockMinutes(start2)
	e2, err4 := ClockMinutes(end2)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}
	return s1 < e2 && s2 < e1
}

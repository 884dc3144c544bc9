package schedule

import (
	"fmt"
	"strings"
)

// Day is a day of the week as stored and exchanged by the API ("MONDAY".."SUNDAY").
type Day string

const (
	Monday    Day = "MONDAY"
	Tuesday   Day = "TUESDAY"
	Wednesday Day = "WEDNESDAY"
	Thursday  Day = "THURSDAY"
	Friday    Day = "FRIDAY"
	Saturday  Day = "SATURDAY"
	Sunday    Day = "SUNDAY"
)

// Days lists every valid day, Monday first. It is the canonical iteration order.
var Days = [7]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Day) Valid() bool {
	return d.Index() >= 0
}

// Index is the Monday-based position of d, or -1 for unknown values.
func (d Day) Index() int {
	for i, v := range Days {
		if v == d {
			return i
		}
	}
	return -1
}

func (d Day) String() string {
	return string(d)
}

// ParseDay accepts any letter case and surrounding whitespace.
func ParseDay(s string) (Day, error) {
	d := Day(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown day of week %q", ErrValidation, s)
	}
	return d, nil
}

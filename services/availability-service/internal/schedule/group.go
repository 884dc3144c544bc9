package schedule

import "sort"

// GroupByDay partitions slots by day, preserving input order within each day. Days without
// slots have no key. Unknown day values are grouped under their literal value.
func GroupByDay(slots []Slot) map[Day][]Slot {
	groups := make(map[Day][]Slot)
	for _, s := range slots {
		groups[s.Day] = append(groups[s.Day], s)
	}
	return groups
}

// orderedDays returns the keys of groups: known days in week order, then unknown literals sorted.
func orderedDays(groups map[Day][]Slot) []Day {
	out := make([]Day, 0, len(groups))
	for _, d := range Days {
		if _, ok := groups[d]; ok {
			out = append(out, d)
		}
	}
	var unknown []Day
	for d := range groups {
		if !d.Valid() {
			unknown = append(unknown, d)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(out, unknown...)
}

// MixedTimezoneDays lists days whose slots do not all share one timezone. Conflict detection
// compares raw local times, so results for these days assume the timezones agree.
func MixedTimezoneDays(groups map[Day][]Slot) []Day {
	var out []Day
	for _, d := range orderedDays(groups) {
		bucket := groups[d]
		for _, s := range bucket[1:] {
			if s.Timezone != bucket[0].Timezone {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

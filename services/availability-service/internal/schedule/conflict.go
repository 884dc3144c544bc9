package schedule

// Conflict is a pair of slots on the same day whose time ranges overlap.
type Conflict struct {
	Day   Day     `json:"day_of_week"`
	Slots [2]Slot `json:"slots"`
}

// DetectConflicts compares every pair within each day bucket. Pairs keep bucket order and days
// are visited in week order, so the result is deterministic for a given grouping.
func DetectConflicts(groups map[Day][]Slot) []Conflict {
	var out []Conflict
	for _, d := range orderedDays(groups) {
		bucket := groups[d]
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if bucket[i].Overlaps(bucket[j]) {
					out = append(out, Conflict{Day: d, Slots: [2]Slot{bucket[i], bucket[j]}})
				}
			}
		}
	}
	return out
}

// ConflictIndex is a derived, read-only view over one slot list. Build a new one whenever the
// list changes.
type ConflictIndex struct {
	conflicts []Conflict
	members   map[string]struct{}
}

func NewConflictIndex(slots []Slot) *ConflictIndex {
	return IndexConflicts(DetectConflicts(GroupByDay(slots)))
}

func IndexConflicts(conflicts []Conflict) *ConflictIndex {
	idx := &ConflictIndex{
		conflicts: conflicts,
		members:   make(map[string]struct{}, 2*len(conflicts)),
	}
	for _, c := range conflicts {
		idx.members[c.Slots[0].ID] = struct{}{}
		idx.members[c.Slots[1].ID] = struct{}{}
	}
	return idx
}

// HasConflict reports whether the slot appears in any conflicting pair.
func (idx *ConflictIndex) HasConflict(slotID string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.members[slotID]
	return ok
}

// Count is the number of conflicting pairs, not the number of slots involved.
func (idx *ConflictIndex) Count() int {
	if idx == nil {
		return 0
	}
	return len(idx.conflicts)
}

func (idx *ConflictIndex) Conflicts() []Conflict {
	if idx == nil {
		return nil
	}
	return idx.conflicts
}

// ConflictingIDs returns the ids of all slots involved in a conflict, in first-seen order.
func (idx *ConflictIndex) ConflictingIDs() []string {
	if idx == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(idx.members))
	out := make([]string, 0, len(idx.members))
	for _, c := range idx.conflicts {
		for _, s := range c.Slots {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s.ID)
		}
	}
	return out
}

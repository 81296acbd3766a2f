package layout

import (
	"time"

	"calgrid/internal/model"
)

// boundaryTolerance nudges both endpoints inward before the inclusive
// "between" test, so back-to-back events never collide.
const boundaryTolerance = time.Minute

// TimedSlot is the lane of one timed occurrence within a single day.
type TimedSlot struct {
	Occurrence model.Occurrence `json:"occurrence"`
	Lane       int              `json:"lane"`
	// Columns is 1 + the highest lane among the occurrence and its
	// crossing set; the occurrence is drawn 1/Columns wide.
	Columns int `json:"columns"`
	// Crossing lists the keys of occurrences intersecting this one.
	Crossing []string `json:"crossing,omitempty"`
}

// Crosses reports whether two occurrences intersect, with the one-minute
// boundary tolerance.
func Crosses(a, b model.Occurrence) bool {
	aStart, aEnd := a.Start, effectiveEnd(a)
	bStart, bEnd := b.Start, effectiveEnd(b)

	return between(aStart.Add(boundaryTolerance), bStart, bEnd) ||
		between(aEnd.Add(-boundaryTolerance), bStart, bEnd) ||
		between(bStart.Add(boundaryTolerance), aStart, aEnd) ||
		between(bEnd.Add(-boundaryTolerance), aStart, aEnd)
}

// Crossing returns the occurrences of all that intersect ev, excluding ev
// itself.
func Crossing(all []model.Occurrence, ev model.Occurrence) []model.Occurrence {
	key := ev.Key()
	out := make([]model.Occurrence, 0)
	for _, o := range all {
		if o.Key() == key {
			continue
		}
		if Crosses(ev, o) {
			out = append(out, o)
		}
	}
	return out
}

// AssignLanes colours the interval graph greedily in input order: each
// occurrence takes the smallest lane not used by an earlier crossing one.
func AssignLanes(occs []model.Occurrence) []TimedSlot {
	slots := make([]TimedSlot, len(occs))
	keys := make([]string, len(occs))
	for i, occ := range occs {
		keys[i] = occ.Key()
	}

	for i, occ := range occs {
		used := make(map[int]bool)
		for j := 0; j < i; j++ {
			if keys[j] != keys[i] && Crosses(occ, occs[j]) {
				used[slots[j].Lane] = true
			}
		}
		slots[i] = TimedSlot{Occurrence: occ, Lane: lowestFree(used)}
	}

	lanes := make(map[string]int, len(slots))
	for i, s := range slots {
		lanes[keys[i]] = s.Lane
	}
	for i := range slots {
		top := slots[i].Lane
		for _, o := range Crossing(occs, occs[i]) {
			key := o.Key()
			slots[i].Crossing = append(slots[i].Crossing, key)
			top = max(top, lanes[key])
		}
		slots[i].Columns = top + 1
	}
	return slots
}

// lowestFree returns the smallest non-negative lane absent from used.
func lowestFree(used map[int]bool) int {
	lane := 0
	for used[lane] {
		lane++
	}
	return lane
}

func between(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// effectiveEnd widens an empty or inverted range to the minimum visible
// duration used by the geometry step.
func effectiveEnd(o model.Occurrence) time.Time {
	if !o.End.After(o.Start) {
		return o.Start.Add(MinEventMinutes * time.Minute)
	}
	return o.End
}

package layout

import (
	"slices"

	"calgrid/internal/model"
)

// isSpanning reports an all-day event or one crossing a day boundary.
func isSpanning(o model.Occurrence) bool {
	return o.AllDay || spansDays(o.Start, o.End)
}

// EarliestFirst orders spanning events before timed ones and timed events
// by ascending start. Spanning events compare equal to each other.
func EarliestFirst(a, b model.Occurrence) int {
	as, bs := isSpanning(a), isSpanning(b)
	switch {
	case as && bs:
		return 0
	case as:
		return -1
	case bs:
		return 1
	}
	return a.Start.Compare(b.Start)
}

// LongestFirst orders by descending duration.
func LongestFirst(a, b model.Occurrence) int {
	return compareDuration(b, a)
}

// LatestEndFirst orders by descending end instant. Spanning bars anchored on
// the same day are stacked in this order.
func LatestEndFirst(a, b model.Occurrence) int {
	return b.End.Compare(a.End)
}

// MonthCellOrder orders all-day events first, then longer first, then
// earlier start.
func MonthCellOrder(a, b model.Occurrence) int {
	if a.AllDay != b.AllDay {
		if a.AllDay {
			return -1
		}
		return 1
	}
	if c := compareDuration(b, a); c != 0 {
		return c
	}
	return a.Start.Compare(b.Start)
}

func compareDuration(a, b model.Occurrence) int {
	da, db := a.Duration(), b.Duration()
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	}
	return 0
}

// SortEarliestFirst returns a stably sorted copy.
func SortEarliestFirst(occs []model.Occurrence) []model.Occurrence {
	return sortedCopy(occs, EarliestFirst)
}

// SortLongestFirst returns a stably sorted copy.
func SortLongestFirst(occs []model.Occurrence) []model.Occurrence {
	return sortedCopy(occs, LongestFirst)
}

func sortedCopy(occs []model.Occurrence, cmp func(a, b model.Occurrence) int) []model.Occurrence {
	out := slices.Clone(occs)
	slices.SortStableFunc(out, cmp)
	return out
}

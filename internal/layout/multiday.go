package layout

import (
	"slices"

	"calgrid/internal/model"
)

// SpanWindow describes the visible days for bar layout.
type SpanWindow struct {
	// Days are the visible columns in ascending order. Gaps (hidden
	// weekdays) are allowed.
	Days []Day
	// RowLength splits Days into grid rows (7 for a month grid). Zero keeps
	// all days in one row.
	RowLength int
	// IncludeTimed lays out every occurrence as a bar, as the month grid
	// does. Otherwise only all-day and multi-day occurrences are bars.
	IncludeTimed bool
	// Limit caps the visible lanes per cell; bars at or above it collapse
	// into an overflow marker. Zero or less means unlimited.
	Limit int
}

// BarSegment is the part of a bar drawn within one grid row.
type BarSegment struct {
	Key        string           `json:"key"`
	Occurrence model.Occurrence `json:"occurrence"`
	Lane       int              `json:"lane"`
	// Day is the column the segment starts in.
	Day      Day  `json:"day"`
	SpanDays int  `json:"span_days"`
	HasPrev  bool `json:"has_prev"`
	HasNext  bool `json:"has_next"`
	MultiDay bool `json:"multi_day"`
}

// Overflow is the "+N more" marker of one cell.
type Overflow struct {
	Day   Day `json:"day"`
	Count int `json:"count"`
}

// SpanLayout is the bar layout of one scope over a window.
type SpanLayout struct {
	// Lanes maps dayKey -> occurrence key -> lane for every bar covering
	// the day.
	Lanes    map[string]map[string]int `json:"lanes"`
	Segments []BarSegment              `json:"segments"`
	Overflow []Overflow                `json:"overflow,omitempty"`
	// MaxLanes is the tallest stack of bars on any visible day.
	MaxLanes int `json:"max_lanes"`
}

type spanItem struct {
	occ         model.Occurrence
	key         string
	first, last Day
}

// AssignSpans assigns every bar one lane for the whole window. Days are
// walked in order; bars first visible on a day are stacked LatestEndFirst
// and take the lowest lane not used by a bar already in flight on that day.
// Once assigned, a lane is only looked up on later days.
func AssignSpans(occs []model.Occurrence, w SpanWindow) SpanLayout {
	out := SpanLayout{Lanes: make(map[string]map[string]int)}
	if len(w.Days) == 0 {
		return out
	}

	items := make([]spanItem, 0, len(occs))
	for _, occ := range SortEarliestFirst(occs) {
		if !w.IncludeTimed && !isSpanning(occ) {
			continue
		}
		if !touchesAny(w.Days, occ) {
			continue
		}
		items = append(items, spanItem{
			occ:   occ,
			key:   occ.Key(),
			first: firstDay(occ.Start),
			last:  lastDay(occ.Start, occ.End),
		})
	}

	lanes := make(map[string]int, len(items))
	for _, d := range w.Days {
		used := make(map[int]bool)
		anchored := make([]spanItem, 0)
		for _, it := range items {
			if !d.Within(it.first, it.last) {
				continue
			}
			if lane, ok := lanes[it.key]; ok {
				used[lane] = true
				continue
			}
			anchored = append(anchored, it)
		}

		slices.SortStableFunc(anchored, func(a, b spanItem) int {
			return LatestEndFirst(a.occ, b.occ)
		})
		for _, it := range anchored {
			lane := lowestFree(used)
			used[lane] = true
			lanes[it.key] = lane
		}

		dayLanes := make(map[string]int)
		hidden := 0
		for _, it := range items {
			if !d.Within(it.first, it.last) {
				continue
			}
			lane := lanes[it.key]
			dayLanes[it.key] = lane
			out.MaxLanes = max(out.MaxLanes, lane+1)
			if w.Limit > 0 && lane >= w.Limit {
				hidden++
			}
		}
		if len(dayLanes) > 0 {
			out.Lanes[d.Key()] = dayLanes
		}
		if hidden > 0 {
			out.Overflow = append(out.Overflow, Overflow{Day: d, Count: hidden})
		}
	}

	for _, row := range rows(w.Days, w.RowLength) {
		for _, it := range items {
			seg, ok := segmentIn(row, it)
			if !ok {
				continue
			}
			seg.Lane = lanes[it.key]
			if w.Limit > 0 && seg.Lane >= w.Limit {
				continue
			}
			out.Segments = append(out.Segments, seg)
		}
	}
	slices.SortStableFunc(out.Segments, func(a, b BarSegment) int {
		if c := DaysBetween(b.Day, a.Day); c != 0 {
			return c
		}
		return a.Lane - b.Lane
	})
	return out
}

// segmentIn clips an item to the visible columns of one row.
func segmentIn(row []Day, it spanItem) (BarSegment, bool) {
	startIdx, endIdx := -1, -1
	for i, d := range row {
		if !d.Within(it.first, it.last) {
			continue
		}
		if startIdx < 0 {
			startIdx = i
		}
		endIdx = i
	}
	if startIdx < 0 {
		return BarSegment{}, false
	}
	return BarSegment{
		Key:        it.key,
		Occurrence: it.occ,
		Day:        row[startIdx],
		SpanDays:   endIdx - startIdx + 1,
		HasPrev:    it.first.Before(row[startIdx]),
		HasNext:    it.last.After(row[endIdx]),
		MultiDay:   it.first != it.last,
	}, true
}

func rows(days []Day, n int) [][]Day {
	if n <= 0 || n >= len(days) {
		return [][]Day{days}
	}
	out := make([][]Day, 0, (len(days)+n-1)/n)
	for i := 0; i < len(days); i += n {
		out = append(out, days[i:min(i+n, len(days))])
	}
	return out
}

// LaneOn looks up the lane of an occurrence on a day.
func (l SpanLayout) LaneOn(day Day, key string) (int, bool) {
	lane, ok := l.Lanes[day.Key()][key]
	return lane, ok
}

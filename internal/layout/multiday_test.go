package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/model"
)

func allDayOcc(id string, firstDay, lastDay int) model.Occurrence {
	return model.OccurrenceOf(allDayEvent(id, firstDay, lastDay))
}

func segmentFor(t *testing.T, l SpanLayout, key string) BarSegment {
	t.Helper()
	for _, s := range l.Segments {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("no segment for %s", key)
	return BarSegment{}
}

func TestAssignSpans_MondayToWednesdayInSundayWeek(t *testing.T) {
	week := WeekWindow(janDay(7), time.Sunday)
	require.Equal(t, janDay(4), week[0])

	l := AssignSpans([]model.Occurrence{allDayOcc("conf", 5, 7)}, SpanWindow{Days: week})

	seg := segmentFor(t, l, "conf")
	assert.Equal(t, janDay(5), seg.Day)
	assert.Equal(t, 3, seg.SpanDays)
	assert.False(t, seg.HasPrev)
	assert.False(t, seg.HasNext)
	assert.True(t, seg.MultiDay)

	lanes := make([]int, 0, 3)
	for _, d := range []int{5, 6, 7} {
		lane, ok := l.LaneOn(janDay(d), "conf")
		require.True(t, ok, "day %d", d)
		lanes = append(lanes, lane)
	}
	assert.Equal(t, []int{0, 0, 0}, lanes)
	_, ok := l.LaneOn(janDay(8), "conf")
	assert.False(t, ok)
}

func TestAssignSpans_ContinuationFlags(t *testing.T) {
	week := WeekWindow(janDay(7), time.Sunday) // Jan 4..10

	l := AssignSpans([]model.Occurrence{
		allDayOcc("before", 1, 5),
		allDayOcc("after", 9, 14),
		allDayOcc("both", 2, 20),
	}, SpanWindow{Days: week})

	before := segmentFor(t, l, "before")
	assert.True(t, before.HasPrev)
	assert.False(t, before.HasNext)
	assert.Equal(t, janDay(4), before.Day)
	assert.Equal(t, 2, before.SpanDays)

	after := segmentFor(t, l, "after")
	assert.False(t, after.HasPrev)
	assert.True(t, after.HasNext)
	assert.Equal(t, 2, after.SpanDays)

	both := segmentFor(t, l, "both")
	assert.True(t, both.HasPrev)
	assert.True(t, both.HasNext)
	assert.Equal(t, 7, both.SpanDays)
}

func TestAssignSpans_LatestEndGetsLowestLane(t *testing.T) {
	week := WeekWindow(janDay(7), time.Sunday)

	l := AssignSpans([]model.Occurrence{
		allDayOcc("short", 5, 6),
		allDayOcc("long", 5, 9),
	}, SpanWindow{Days: week})

	long, _ := l.LaneOn(janDay(5), "long")
	short, _ := l.LaneOn(janDay(5), "short")
	assert.Equal(t, 0, long)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, l.MaxLanes)
}

func TestAssignSpans_StableAcrossDaysAndReusesFreedLanes(t *testing.T) {
	week := WeekWindow(janDay(7), time.Sunday)

	l := AssignSpans([]model.Occurrence{
		allDayOcc("a", 4, 6),
		allDayOcc("b", 5, 9),
		allDayOcc("c", 7, 8),
	}, SpanWindow{Days: week})

	for _, key := range []string{"a", "b", "c"} {
		var seen []int
		for _, lanes := range l.Lanes {
			if lane, ok := lanes[key]; ok {
				seen = append(seen, lane)
			}
		}
		require.NotEmpty(t, seen, key)
		for _, lane := range seen {
			assert.Equal(t, seen[0], lane, key)
		}
	}

	a, _ := l.LaneOn(janDay(4), "a")
	b, _ := l.LaneOn(janDay(5), "b")
	c, _ := l.LaneOn(janDay(7), "c")
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 0, c, "lane of a is free again on the 7th")
}

func TestAssignSpans_NoCollisionPerDay(t *testing.T) {
	occs := []model.Occurrence{
		allDayOcc("a", 1, 5),
		allDayOcc("b", 4, 4),
		allDayOcc("c", 5, 12),
		allDayOcc("d", 6, 8),
		allDayOcc("e", 8, 10),
		allDayOcc("f", 9, 9),
		occ("overnight", jan(6, 20, 0), jan(7, 9, 0)),
	}
	l := AssignSpans(occs, SpanWindow{Days: WeekWindow(janDay(7), time.Sunday)})

	for day, lanes := range l.Lanes {
		seen := make(map[int]string)
		for key, lane := range lanes {
			other, dup := seen[lane]
			assert.False(t, dup, "%s: %s and %s share lane %d", day, key, other, lane)
			seen[lane] = key
		}
	}
}

func TestAssignSpans_SkipsTimedUnlessMonth(t *testing.T) {
	timed := occ("meeting", jan(5, 9, 0), jan(5, 10, 0))
	week := WeekWindow(janDay(7), time.Sunday)

	assert.Empty(t, AssignSpans([]model.Occurrence{timed}, SpanWindow{Days: week}).Segments)
	assert.Len(t, AssignSpans([]model.Occurrence{timed}, SpanWindow{Days: week, IncludeTimed: true}).Segments, 1)
}

func TestAssignSpans_MonthRowsAndOverflow(t *testing.T) {
	month := MonthWindow(janDay(15), time.Sunday) // Dec 28 .. Jan 31
	require.Len(t, month, 35)

	occs := []model.Occurrence{
		allDayOcc("wrap", 9, 12), // Fri..Mon crosses a row boundary
		occ("m1", jan(20, 9, 0), jan(20, 10, 0)),
		occ("m2", jan(20, 11, 0), jan(20, 12, 0)),
		occ("m3", jan(20, 13, 0), jan(20, 14, 0)),
	}
	l := AssignSpans(occs, SpanWindow{Days: month, RowLength: 7, IncludeTimed: true, Limit: 2})

	var wrap []BarSegment
	for _, s := range l.Segments {
		if s.Key == "wrap" {
			wrap = append(wrap, s)
		}
	}
	require.Len(t, wrap, 2)
	assert.Equal(t, janDay(9), wrap[0].Day)
	assert.Equal(t, 2, wrap[0].SpanDays)
	assert.True(t, wrap[0].HasNext)
	assert.False(t, wrap[0].HasPrev)
	assert.Equal(t, janDay(11), wrap[1].Day)
	assert.Equal(t, 2, wrap[1].SpanDays)
	assert.True(t, wrap[1].HasPrev)
	assert.Equal(t, wrap[0].Lane, wrap[1].Lane)

	visible := 0
	for _, s := range l.Segments {
		if s.Day == janDay(20) {
			visible++
			assert.Less(t, s.Lane, 2)
		}
	}
	assert.Equal(t, 2, visible)
	require.Len(t, l.Overflow, 1)
	assert.Equal(t, Overflow{Day: janDay(20), Count: 1}, l.Overflow[0])
}

package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/model"
)

type stubRule struct {
	starts []time.Time
}

func (r stubRule) Between(after, before time.Time, inc bool) []time.Time {
	out := make([]time.Time, 0)
	for _, s := range r.starts {
		if !s.Before(after) && !s.After(before) {
			out = append(out, s)
		}
	}
	return out
}

type panickingRule struct{}

func (panickingRule) Between(time.Time, time.Time, bool) []time.Time {
	panic("boom")
}

func TestExpandForDay_DailyRuleSingleDay(t *testing.T) {
	ev := timedEvent("daily", jan(5, 9, 0), jan(5, 10, 0))
	ev.RRule = "FREQ=DAILY"

	got := ExpandForDay(ev, janDay(7), time.UTC)

	require.Len(t, got, 1)
	require.NotNil(t, got[0].RecurrenceIndex)
	assert.Equal(t, 0, *got[0].RecurrenceIndex)
	assert.True(t, got[0].Start.Equal(jan(7, 9, 0)))
	assert.Equal(t, time.Hour, got[0].Duration())
	assert.Equal(t, model.EventID("daily"), got[0].ParentID)
}

func TestExpandForDay_NonRecurring(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	ev := timedEvent("single", jan(5, 9, 0), jan(5, 10, 0))
	got := ExpandForDay(ev, janDay(5), seoul)

	require.Len(t, got, 1)
	assert.Nil(t, got[0].RecurrenceIndex)
	assert.Equal(t, "Asia/Seoul", got[0].ConvertedTZ)
	assert.Equal(t, 18, got[0].Start.Hour())
	assert.True(t, got[0].Start.Equal(ev.Start))
	assert.Equal(t, "single", got[0].Key())
}

func TestConvertTZ_Idempotent(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	once := ConvertTZ(occ("a", jan(5, 9, 0), jan(5, 10, 0)), seoul)
	twice := ConvertTZ(once, seoul)
	other := ConvertTZ(once, ny)

	assert.Equal(t, once, twice)
	assert.Equal(t, once, other)
	assert.Equal(t, once.Start.Location(), seoul)
}

func TestConvertTZ_NilLocation(t *testing.T) {
	o := occ("a", jan(5, 9, 0), jan(5, 10, 0))
	assert.Equal(t, o, ConvertTZ(o, nil))
}

func TestConvertTZ_AllDayKeepsItsDate(t *testing.T) {
	for _, zone := range []string{"Asia/Seoul", "America/New_York"} {
		t.Run(zone, func(t *testing.T) {
			loc, err := time.LoadLocation(zone)
			require.NoError(t, err)

			got := ConvertTZ(model.OccurrenceOf(allDayEvent("holiday", 5, 5)), loc)

			assert.Equal(t, time.Date(2026, time.January, 5, 0, 0, 0, 0, loc), got.Start)
			assert.Equal(t, time.Date(2026, time.January, 6, 0, 0, 0, 0, loc), got.End)
			assert.Equal(t, janDay(5), firstDay(got.Start))
			assert.Equal(t, janDay(5), lastDay(got.Start, got.End))
			assert.Equal(t, got, ConvertTZ(got, loc))
		})
	}
}

func TestExpandForDay_AllDayRuleInWestZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ev := allDayEvent("standup-day", 5, 5)
	ev.RRule = "FREQ=DAILY;COUNT=5"

	got := ExpandForDay(ev, janDay(6), ny)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2026, time.January, 6, 0, 0, 0, 0, ny), got[0].Start)
	assert.Equal(t, 24*time.Hour, got[0].Duration())

	window := ExpandWindow([]model.CalendarEvent{ev}, WeekWindow(janDay(7), time.Sunday), ny)
	days := make([]Day, 0, len(window))
	for _, o := range window {
		days = append(days, firstDay(o.Start))
	}
	assert.Equal(t, []Day{janDay(5), janDay(6), janDay(7), janDay(8), janDay(9)}, days)
}

func TestExpandForDay_MalformedRule(t *testing.T) {
	ev := timedEvent("bad", jan(5, 9, 0), jan(5, 10, 0))
	ev.RRule = "FREQ=SOMETIMES;COUNT=x"

	assert.NotPanics(t, func() {
		assert.Empty(t, ExpandForDay(ev, janDay(5), time.UTC))
	})
}

func TestExpandForDay_PanickingRule(t *testing.T) {
	ev := timedEvent("panics", jan(5, 9, 0), jan(5, 10, 0))
	ev.Recurrence = panickingRule{}

	assert.NotPanics(t, func() {
		assert.Empty(t, ExpandForDay(ev, janDay(5), time.UTC))
	})
}

func TestExpandForDay_NoInstantsIsEmpty(t *testing.T) {
	ev := timedEvent("once", jan(5, 9, 0), jan(5, 10, 0))
	ev.RRule = "FREQ=DAILY;COUNT=1"

	got := ExpandForDay(ev, janDay(6), time.UTC)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExpandForDay_ExDateRemovesInstant(t *testing.T) {
	ev := timedEvent("daily", jan(5, 9, 0), jan(5, 10, 0))
	ev.RRule = "RRULE:FREQ=DAILY;COUNT=5"
	ev.ExDates = []time.Time{jan(6, 9, 0)}

	assert.Empty(t, ExpandForDay(ev, janDay(6), time.UTC))
	assert.Len(t, ExpandForDay(ev, janDay(7), time.UTC), 1)
}

func TestExpandForDay_RuleObjectIndexesInEvaluationOrder(t *testing.T) {
	ev := timedEvent("twice", jan(5, 9, 0), jan(5, 9, 30))
	ev.Recurrence = stubRule{starts: []time.Time{jan(6, 8, 0), jan(6, 14, 0), jan(7, 0, 0)}}

	got := ExpandForDay(ev, janDay(6), time.UTC)

	require.Len(t, got, 2)
	for i, o := range got {
		require.NotNil(t, o.RecurrenceIndex)
		assert.Equal(t, i, *o.RecurrenceIndex)
		assert.Equal(t, 30*time.Minute, o.Duration())
	}
	assert.NotEqual(t, got[0].Key(), got[1].Key())
}

func TestExpandWindow_PreservesDuration(t *testing.T) {
	ev := timedEvent("weekly", jan(5, 9, 0), jan(5, 11, 15))
	ev.RRule = "FREQ=DAILY;INTERVAL=2"

	got := ExpandWindow([]model.CalendarEvent{ev}, WeekWindow(janDay(5), time.Monday), time.UTC)

	require.Len(t, got, 4) // 5, 7, 9, 11
	for _, o := range got {
		assert.Equal(t, ev.Duration(), o.Duration())
	}
}

func TestExpandWindow_MultiDayEventOnce(t *testing.T) {
	ev := allDayEvent("trip", 5, 7)
	got := ExpandWindow([]model.CalendarEvent{ev}, WeekWindow(janDay(5), time.Sunday), time.UTC)
	assert.Len(t, got, 1)
}

func TestExpandWindow_SkipsEventsOutsideWindow(t *testing.T) {
	ev := timedEvent("later", jan(20, 9, 0), jan(20, 10, 0))
	got := ExpandWindow([]model.CalendarEvent{ev}, WeekWindow(janDay(5), time.Sunday), time.UTC)
	assert.Empty(t, got)
}

func TestExpandWindow_RecurringSpanFromBeforeWindow(t *testing.T) {
	ev := timedEvent("night", jan(4, 22, 0), jan(5, 2, 0))
	ev.RRule = "FREQ=WEEKLY"

	got := ExpandWindow([]model.CalendarEvent{ev}, []Day{janDay(12)}, time.UTC)

	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(jan(11, 22, 0)))
}

func TestTimedOn(t *testing.T) {
	events := []model.CalendarEvent{
		timedEvent("short", jan(5, 9, 0), jan(5, 9, 30)),
		timedEvent("long", jan(5, 10, 0), jan(5, 13, 0)),
		allDayEvent("holiday", 5, 5),
		timedEvent("overnight", jan(5, 22, 0), jan(6, 1, 0)),
		timedEvent("tomorrow", jan(6, 9, 0), jan(6, 10, 0)),
	}

	day := janDay(5)
	got := SortLongestFirst(timedOn(ExpandWindow(events, []Day{day}, time.UTC), day))

	require.Len(t, got, 2)
	assert.Equal(t, model.EventID("long"), got[0].ParentID)
	assert.Equal(t, model.EventID("short"), got[1].ParentID)
}

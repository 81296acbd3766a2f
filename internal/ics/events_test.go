package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/layout"
	"calgrid/internal/model"
)

const sampleYAML = `
events:
  - id: 1
    title: Standup
    start: 2026-01-05T09:00:00Z
    end: 2026-01-05T09:15:00Z
    rrule: FREQ=WEEKLY;BYDAY=MO,WE,FR
    exdates: [2026-01-07T09:00:00Z]
    roomId: [A, B]
  - id: offsite
    title: Offsite
    start: 2026-01-12
    all_day: true
    color: "#00aa00"
  - title: missing id
    start: 2026-01-05T09:00:00Z
`

func TestParseEventsYAML(t *testing.T) {
	events, err := ParseEventsYAML(Source{ID: "local"}, []byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, events, 2)

	standup := events[0]
	assert.Equal(t, model.EventID("1"), standup.ID)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE,FR", standup.RRule)
	assert.Equal(t, 15*time.Minute, standup.Duration())
	require.Len(t, standup.ExDates, 1)
	assert.Equal(t, []any{"A", "B"}, standup.Attributes["roomId"])
	assert.Equal(t, "local", standup.Attributes[AttrSource])

	offsite := events[1]
	assert.True(t, offsite.AllDay)
	assert.Equal(t, 24*time.Hour, offsite.Duration(), "missing end covers the start date")
	assert.Equal(t, "#00aa00", offsite.Color)
}

func TestParseEventsYAML_Errors(t *testing.T) {
	_, err := ParseEventsYAML(Source{ID: "x"}, nil)
	assert.Error(t, err)

	_, err = ParseEventsYAML(Source{ID: "x"}, []byte("events: {not: a list"))
	assert.Error(t, err)
}

func TestParseEventsYAML_AllDayStaysOnItsDate(t *testing.T) {
	events, err := ParseEventsYAML(Source{ID: "local"}, []byte(sampleYAML))
	require.NoError(t, err)

	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	for day, want := range map[int]int{11: 0, 12: 1, 13: 0} {
		got := layout.AgendaForDay(events[1:], layout.Day{Year: 2026, Month: time.January, Day: day}, la)
		assert.Len(t, got, want, "Jan %d", day)
	}
}

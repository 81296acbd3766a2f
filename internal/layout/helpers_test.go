package layout

import (
	"time"

	"calgrid/internal/model"
)

// jan returns an instant in January 2026, UTC. 2026-01-04 is a Sunday.
func jan(day, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.UTC)
}

func janDay(day int) Day {
	return Day{Year: 2026, Month: time.January, Day: day}
}

func timedEvent(id string, start, end time.Time) model.CalendarEvent {
	return model.CalendarEvent{ID: model.EventID(id), Title: id, Start: start, End: end}
}

func allDayEvent(id string, firstDay, lastDay int) model.CalendarEvent {
	return model.CalendarEvent{
		ID:     model.EventID(id),
		Title:  id,
		Start:  jan(firstDay, 0, 0),
		End:    jan(lastDay+1, 0, 0),
		AllDay: true,
	}
}

func occ(id string, start, end time.Time) model.Occurrence {
	return model.OccurrenceOf(timedEvent(id, start, end))
}

func lanesByKey(slots []TimedSlot) map[string]int {
	out := make(map[string]int, len(slots))
	for _, s := range slots {
		out[s.Occurrence.Key()] = s.Lane
	}
	return out
}

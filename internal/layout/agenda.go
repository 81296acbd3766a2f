package layout

import (
	"time"

	"calgrid/internal/model"
)

// AgendaForDay lists every occurrence touching day, spanning events first,
// then by start.
func AgendaForDay(events []model.CalendarEvent, day Day, loc *time.Location) []model.Occurrence {
	return agendaOn(ExpandWindow(events, []Day{day}, loc), day)
}

func agendaOn(occs []model.Occurrence, day Day) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	for _, occ := range occs {
		if day.Within(firstDay(occ.Start), lastDay(occ.Start, occ.End)) {
			out = append(out, occ)
		}
	}
	return SortEarliestFirst(out)
}

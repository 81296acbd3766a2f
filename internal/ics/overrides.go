package ics

import (
	"time"

	"calgrid/internal/model"
)

// foldOverrides resolves RECURRENCE-ID overrides against their master
// events. The overridden instant is added to the master's EXDATEs and the
// override is kept as a standalone event; cancelled overrides only remove
// the instance. When a UID (or UID + RECURRENCE-ID) appears more than once
// the highest SEQUENCE wins. Input order is preserved.
func foldOverrides(events []parsedEvent) []model.CalendarEvent {
	type instanceKey struct {
		uid string
		rid string
	}
	keyOf := func(ev parsedEvent) instanceKey {
		k := instanceKey{uid: ev.uid}
		if ev.recurrenceID != nil {
			k.rid = ev.recurrenceID.UTC().Format(time.RFC3339)
		}
		return k
	}

	// Group by instance, keeping the newest revision.
	latest := make(map[instanceKey]int, len(events))
	for i, ev := range events {
		k := keyOf(ev)
		if j, ok := latest[k]; !ok || ev.seq >= events[j].seq {
			latest[k] = i
		}
	}

	masters := make(map[string]int)
	for i, ev := range events {
		if ev.recurrenceID == nil && latest[keyOf(ev)] == i {
			masters[ev.uid] = i
		}
	}

	exdates := make(map[string][]time.Time)
	for i, ev := range events {
		if ev.recurrenceID == nil || latest[keyOf(ev)] != i {
			continue
		}
		if _, ok := masters[ev.uid]; ok {
			exdates[ev.uid] = append(exdates[ev.uid], *ev.recurrenceID)
		}
	}

	out := make([]model.CalendarEvent, 0, len(latest))
	for i, ev := range events {
		if latest[keyOf(ev)] != i || ev.cancelled {
			continue
		}
		e := ev.event
		if ev.recurrenceID == nil {
			e.ExDates = append(e.ExDates, exdates[ev.uid]...)
		}
		out = append(out, e)
	}
	return out
}

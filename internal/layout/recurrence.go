package layout

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// ExpandForDay turns one event into its occurrences on day.
//
// A non-recurring event yields itself (zone-converted once). A recurring
// event is evaluated over [day, day+1) in loc; every instant becomes one
// occurrence whose duration equals the template's. A malformed or panicking
// rule is logged and yields no occurrences.
func ExpandForDay(ev model.CalendarEvent, day Day, loc *time.Location) []model.Occurrence {
	if !ev.IsRecurring() {
		return []model.Occurrence{ConvertTZ(model.OccurrenceOf(ev), loc)}
	}

	starts, err := ruleStarts(ev, day, loc)
	if err != nil {
		appLog.Error("layout: recurrence evaluation failed", err,
			"event_id", ev.ID,
			"rrule", ev.RRule,
			"day", day.Key(),
		)
		return nil
	}

	dur := ev.Duration()
	out := make([]model.Occurrence, 0, len(starts))
	for i, start := range starts {
		idx := i
		occ := model.OccurrenceOf(ev)
		occ.RecurrenceIndex = &idx
		occ.Start = start
		occ.End = start.Add(dur)
		out = append(out, ConvertTZ(occ, loc))
	}
	return out
}

// ruleStarts evaluates the event's rule over one day. Panics raised by a
// caller supplied rule object are turned into errors.
func ruleStarts(ev model.CalendarEvent, day Day, loc *time.Location) (starts []time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			starts = nil
			err = fmt.Errorf("recurrence rule panicked: %v", r)
		}
	}()

	rule := ev.Recurrence
	if rule == nil {
		rule, err = buildRule(ev)
		if err != nil {
			return nil, err
		}
	}

	// All-day rules are floating and evaluate in the template's own zone.
	zone := loc
	if zone == nil || ev.AllDay {
		zone = ev.Start.Location()
	}
	from := day.Start(zone)
	to := day.AddDays(1).Start(zone)

	for _, t := range rule.Between(from, to, true) {
		if t.Before(to) {
			starts = append(starts, t)
		}
	}
	return starts, nil
}

// buildRule parses ev.RRule with DTSTART pinned to the template start and
// EXDATEs applied.
func buildRule(ev model.CalendarEvent) (model.RecurrenceRule, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ev.RRule), "RRULE:"))
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	opt.Dtstart = ev.Start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		// Align EXDATE location with the event's start.
		set.ExDate(ex.In(ev.Start.Location()))
	}
	return set, nil
}

// ExpandWindow expands every event over the visible days and returns each
// occurrence once, in event order then day order. Occurrences of recurring
// events that started before the window but still reach into it are
// included.
func ExpandWindow(events []model.CalendarEvent, days []Day, loc *time.Location) []model.Occurrence {
	if len(days) == 0 {
		return nil
	}
	first, last := days[0], days[len(days)-1]

	seen := make(map[string]bool)
	out := make([]model.Occurrence, 0, len(events))
	add := func(occ model.Occurrence) {
		if !touchesAny(days, occ) {
			return
		}
		key := occ.Key()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, occ)
	}

	for _, ev := range events {
		if !ev.IsRecurring() {
			add(ConvertTZ(model.OccurrenceOf(ev), loc))
			continue
		}

		lookback := 0
		if ev.End.After(ev.Start) {
			lookback = DaysBetween(firstDay(ev.Start), lastDay(ev.Start, ev.End))
		}
		for d := first.AddDays(-lookback); !d.After(last); d = d.AddDays(1) {
			for _, occ := range ExpandForDay(ev, d, loc) {
				add(occ)
			}
		}
	}
	return out
}

// timedOn keeps the timed, single-day occurrences that start on day.
func timedOn(occs []model.Occurrence, day Day) []model.Occurrence {
	out := make([]model.Occurrence, 0, len(occs))
	for _, occ := range occs {
		if occ.AllDay || spansDays(occ.Start, occ.End) {
			continue
		}
		if firstDay(occ.Start) != day {
			continue
		}
		out = append(out, occ)
	}
	return out
}

func touchesAny(days []Day, occ model.Occurrence) bool {
	f, l := firstDay(occ.Start), lastDay(occ.Start, occ.End)
	for _, d := range days {
		if d.Within(f, l) {
			return true
		}
	}
	return false
}

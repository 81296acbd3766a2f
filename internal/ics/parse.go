package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Attribute keys set on every parsed event next to the resource field.
const (
	AttrSource      = "source_id"
	AttrLocation    = "location"
	AttrDescription = "description"
)

// ParseOptions controls how VEVENT properties map onto CalendarEvent.
type ParseOptions struct {
	// ResourceField receives the RESOURCES property. A single resource is
	// stored as a string, several as a list.
	ResourceField string
	// Location reads DATE and floating DATE-TIME values. Nil means
	// time.Local. Pass the display zone so all-day events keep their date.
	Location *time.Location
}

// parsedEvent is a VEVENT before overrides are folded into their master.
type parsedEvent struct {
	event model.CalendarEvent
	uid   string
	seq   int
	// recurrenceID is set on overrides of a single recurring instance.
	recurrenceID *time.Time
	cancelled    bool
}

// ParseICS parses a single ICS payload into calendar events.
//
//   - TZID values are read in their zone, UTC values as UTC, and DATE or
//     floating values in opts.Location.
//   - It detects all-day events by inspecting the DTSTART value format.
//   - It keeps RRULE/EXDATE for the layout engine; RECURRENCE-ID overrides
//     become standalone events and are excluded from their master.
//   - Cancelled events are dropped.
func ParseICS(src Source, body []byte, opts ParseOptions) ([]model.CalendarEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("parse ics %s: %w", src.ID, err)
	}

	parsed := make([]parsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, opts)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		if strings.EqualFold(propertyValue(comp.GetProperty(ical.ComponentPropertyStatus)), "CANCELLED") {
			appLog.Debug("ics vevent cancelled; skipping", "id", src.ID, "uid", ev.uid)
			if ev.recurrenceID != nil {
				// A cancelled instance still removes it from the series.
				ev.cancelled = true
				parsed = append(parsed, ev)
			}
			continue
		}
		parsed = append(parsed, ev)
	}

	events := foldOverrides(parsed)
	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, opts ParseOptions) (parsedEvent, error) {
	var out parsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.uid = strings.TrimSpace(uidProp.Value)

	// SEQUENCE (optional, used to pick the newest duplicate)
	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.seq = n
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	allDay := isAllDay(dtStart)

	start, err := parseICSTime(dtStart.Value, dtStart.ICalParameters, opts.Location)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	var end time.Time
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, err = parseICSTime(dtEnd.Value, dtEnd.ICalParameters, opts.Location)
	} else {
		err = errors.New("missing DTEND")
	}
	if err != nil || end.Before(start) {
		// No DTEND: an all-day event covers its start date, a timed one is
		// an instant.
		end = start
		if allDay {
			end = start.AddDate(0, 0, 1)
		}
	}

	ev := model.CalendarEvent{
		ID:     model.EventID(out.uid),
		Title:  strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertySummary))),
		Start:  start,
		End:    end,
		AllDay: allDay,
		Color:  strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentProperty("COLOR")))),
		RRule:  strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyRrule))),
		Attributes: map[string]any{
			AttrSource: src.ID,
		},
	}
	if loc := strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyLocation))); loc != "" {
		ev.Attributes[AttrLocation] = loc
	}
	if desc := strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyDescription))); desc != "" {
		ev.Attributes[AttrDescription] = desc
	}
	if opts.ResourceField != "" {
		if res := resources(ve.GetProperties(ical.ComponentProperty("RESOURCES"))); res != nil {
			ev.Attributes[opts.ResourceField] = res
		}
	}

	// EXDATE (can appear multiple times, each possibly comma separated)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, p.ICalParameters, opts.Location); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID (overridden instance)
	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		t, err := parseICSTime(ridProp.Value, ridProp.ICalParameters, opts.Location)
		if err != nil {
			return out, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		out.recurrenceID = &t
		// Overrides never recur themselves.
		ev.RRule = ""
		ev.ID = model.EventID(out.uid + "@" + t.UTC().Format(time.RFC3339))
	}

	out.event = ev
	return out, nil
}

// resources flattens RESOURCES properties. Nil when none are set.
func resources(props []*ical.IANAProperty) any {
	var out []any
	for _, p := range props {
		for _, v := range strings.Split(p.Value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

func isAllDay(property *ical.IANAProperty) bool {
	if property == nil {
		return false
	}
	// VALUE=DATE or no 'T' in the value -> all-day
	if values, ok := property.ICalParameters["VALUE"]; ok {
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(v), "DATE") {
				return true
			}
		}
	}
	return !strings.Contains(property.Value, "T")
}

func propertyValue(property *ical.IANAProperty) string {
	if property == nil {
		return ""
	}
	return property.Value
}

// parseICSTime parses an ICS date/date-time value, honouring a TZID
// parameter. Floating and date-only values are read in floating, or
// time.Local when it is nil.
func parseICSTime(v string, params map[string][]string, floating *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	loc := floating
	if loc == nil {
		loc = time.Local
	}
	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(strings.TrimSpace(tzs[0])); err == nil {
			loc = l
		}
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}

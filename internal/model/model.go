package model

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// EventID identifies an event within one event collection. Source data may
// carry string or integer ids; both are normalized to their string form.
type EventID string

// IDFrom normalizes a raw id value (string, integer, float) into an EventID.
func IDFrom(v any) EventID {
	switch x := v.(type) {
	case nil:
		return ""
	case EventID:
		return x
	case string:
		return EventID(x)
	case int:
		return EventID(strconv.Itoa(x))
	case int64:
		return EventID(strconv.FormatInt(x, 10))
	case uint64:
		return EventID(strconv.FormatUint(x, 10))
	case float64:
		return EventID(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		return EventID(fmt.Sprint(x))
	}
}

// RecurrenceRule produces occurrence start instants within a bounded window.
// *rrule.RRule and *rrule.Set satisfy it.
type RecurrenceRule interface {
	Between(after, before time.Time, inc bool) []time.Time
}

// CalendarEvent is a caller supplied event definition before recurrence
// expansion. Layout functions treat it as immutable.
type CalendarEvent struct {
	ID    EventID `json:"event_id" yaml:"event_id"`
	Title string  `json:"title" yaml:"title"`

	// Start / End are zoned instants. End is exclusive for timed events.
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`

	AllDay   bool `json:"all_day,omitempty" yaml:"all_day,omitempty"`
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	Color string `json:"color,omitempty" yaml:"color,omitempty"`

	// RRule is an RFC 5545 RRULE value (e.g. "FREQ=DAILY;COUNT=5").
	// It is ignored when Recurrence is set.
	RRule   string      `json:"rrule,omitempty" yaml:"rrule,omitempty"`
	ExDates []time.Time `json:"exdates,omitempty" yaml:"exdates,omitempty"`

	// Recurrence is a prebuilt rule object.
	Recurrence RecurrenceRule `json:"-" yaml:"-"`

	// Attributes holds arbitrary extra fields, including the resource
	// assignment field named by ResourceSchema.IDField.
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e CalendarEvent) IsRecurring() bool {
	return e.Recurrence != nil || e.RRule != ""
}

// Duration is End - Start of the template event.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Clone returns a copy that shares no mutable state with e.
func (e CalendarEvent) Clone() CalendarEvent {
	out := e
	out.Attributes = maps.Clone(e.Attributes)
	out.ExDates = slices.Clone(e.ExDates)
	return out
}

// Occurrence is one concrete instance of an event, derived fresh for every
// layout pass.
type Occurrence struct {
	ParentID EventID `json:"event_id"`

	// RecurrenceIndex is the 0-based position within the day's expansion.
	// Nil for non-recurring events.
	RecurrenceIndex *int `json:"recurrence_index,omitempty"`

	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day,omitempty"`
	Disabled bool      `json:"disabled,omitempty"`
	Color    string    `json:"color,omitempty"`

	// ConvertedTZ is the zone name the instants were converted into.
	// Empty means not converted yet.
	ConvertedTZ string `json:"converted_tz,omitempty"`
}

// Key identifies the occurrence across all days of a layout pass.
func (o Occurrence) Key() string {
	if o.RecurrenceIndex == nil {
		return string(o.ParentID)
	}
	return string(o.ParentID) + "@" + o.Start.UTC().Format(time.RFC3339)
}

// Duration is End - Start.
func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// OccurrenceOf builds the single occurrence of a non-recurring event.
func OccurrenceOf(e CalendarEvent) Occurrence {
	return Occurrence{
		ParentID: e.ID,
		Title:    e.Title,
		Start:    e.Start,
		End:      e.End,
		AllDay:   e.AllDay,
		Disabled: e.Disabled,
		Color:    e.Color,
	}
}

// Resource is a free-form record; its identity is read through the
// configured id field.
type Resource map[string]any

// ID returns the value of the id field, if present.
func (r Resource) ID(idField string) (any, bool) {
	v, ok := r[idField]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Color returns the string value of colorField, or "".
func (r Resource) Color(colorField string) string {
	if colorField == "" {
		return ""
	}
	s, _ := r[colorField].(string)
	return s
}

// Title returns the value of titleField as text, or "".
func (r Resource) Title(titleField string) string {
	if titleField == "" {
		return ""
	}
	switch v := r[titleField].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ResourceSchema describes how events are mapped to resources.
type ResourceSchema struct {
	IDField    string `json:"id_field" yaml:"id_field"`
	ColorField string `json:"color_field,omitempty" yaml:"color_field,omitempty"`
	TitleField string `json:"title_field,omitempty" yaml:"title_field,omitempty"`
	// Multiple declares the assignment field as multi-valued.
	Multiple bool `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

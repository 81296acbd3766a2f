package ics

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"gopkg.in/yaml.v3"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// eventFile is the YAML event file layout:
//
//	events:
//	  - id: 1
//	    title: Standup
//	    start: 2026-01-05T09:00:00+09:00
//	    end: 2026-01-05T09:15:00+09:00
//	    rrule: FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR
//	    roomId: [A, B]
//
// Keys other than the known ones are kept as event attributes.
type eventFile struct {
	Events []yamlEvent `yaml:"events"`
}

type yamlEvent struct {
	ID       any         `yaml:"id"`
	Title    string      `yaml:"title"`
	Start    time.Time   `yaml:"start"`
	End      time.Time   `yaml:"end"`
	AllDay   bool        `yaml:"all_day"`
	Disabled bool        `yaml:"disabled"`
	Color    string      `yaml:"color"`
	RRule    string      `yaml:"rrule"`
	ExDates  []time.Time `yaml:"exdates"`

	Extra map[string]any `yaml:",inline"`
}

// ParseEventsYAML parses a YAML event file. Entries without an id or start
// are logged and skipped.
func ParseEventsYAML(src Source, body []byte) ([]model.CalendarEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty YAML body")
	}

	var file eventFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("parse events %s: %w", src.ID, err)
	}

	events := make([]model.CalendarEvent, 0, len(file.Events))
	for i, ye := range file.Events {
		id := model.IDFrom(ye.ID)
		if id == "" || ye.Start.IsZero() {
			appLog.Error("yaml event skipped", errors.New("missing id or start"), "id", src.ID, "index", i)
			continue
		}

		end := ye.End
		if end.IsZero() || end.Before(ye.Start) {
			end = ye.Start
			if ye.AllDay {
				end = ye.Start.AddDate(0, 0, 1)
			}
		}

		attrs := maps.Clone(ye.Extra)
		if attrs == nil {
			attrs = make(map[string]any, 1)
		}
		attrs[AttrSource] = src.ID

		events = append(events, model.CalendarEvent{
			ID:         id,
			Title:      ye.Title,
			Start:      ye.Start,
			End:        end,
			AllDay:     ye.AllDay,
			Disabled:   ye.Disabled,
			Color:      ye.Color,
			RRule:      ye.RRule,
			ExDates:    ye.ExDates,
			Attributes: attrs,
		})
	}

	appLog.Info("yaml events parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

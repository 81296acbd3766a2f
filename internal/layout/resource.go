package layout

import (
	"fmt"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Partition returns the events that belong to resource. With a nil resource
// the full set is returned unfiltered. Matches are copies carrying the
// resource colour as a fallback; the source events are never mutated.
func Partition(events []model.CalendarEvent, resource model.Resource, schema model.ResourceSchema) []model.CalendarEvent {
	if resource == nil {
		return events
	}

	id, ok := resource.ID(schema.IDField)
	if !ok {
		return []model.CalendarEvent{}
	}
	color := resource.Color(schema.ColorField)

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		a := model.ResolveAssignment(ev.Attributes, schema.IDField, schema.Multiple)
		if !a.Includes(id) {
			continue
		}
		match := ev.Clone()
		if match.Color == "" {
			match.Color = color
		}
		out = append(out, match)
	}
	return out
}

// ScopedEvents is one partition of the event set.
type ScopedEvents struct {
	Scope model.Scope
	// Label is the resource title, or its id when the title is empty.
	Label  string
	Events []model.CalendarEvent
}

// Scopes partitions events per resource, in resource order. Without
// resources the whole set forms the single All scope. Resources lacking an
// id are skipped, as are resources whose id repeats an earlier one's Key
// (1 after "1", or 1.0 after 1): scope keys stay unique in every result.
func Scopes(events []model.CalendarEvent, resources []model.Resource, schema model.ResourceSchema) []ScopedEvents {
	if len(resources) == 0 {
		return []ScopedEvents{{Scope: model.AllScope(), Events: events}}
	}

	out := make([]ScopedEvents, 0, len(resources))
	seen := make(map[string]bool, len(resources))
	for _, r := range resources {
		id, ok := r.ID(schema.IDField)
		if !ok {
			continue
		}
		scope := model.ResourceScope(id)
		if seen[scope.Key()] {
			appLog.Info("layout: duplicate resource id skipped", "id", scope.Key(), "type", fmt.Sprintf("%T", id))
			continue
		}
		seen[scope.Key()] = true

		label := r.Title(schema.TitleField)
		if label == "" {
			label = scope.Key()
		}
		out = append(out, ScopedEvents{
			Scope:  scope,
			Label:  label,
			Events: Partition(events, r, schema),
		})
	}
	return out
}

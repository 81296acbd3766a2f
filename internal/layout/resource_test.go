package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/model"
)

func withAttr(ev model.CalendarEvent, key string, v any) model.CalendarEvent {
	ev.Attributes = map[string]any{key: v}
	return ev
}

func ids(events []model.CalendarEvent) []model.EventID {
	out := make([]model.EventID, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestPartition(t *testing.T) {
	schema := model.ResourceSchema{IDField: "room", ColorField: "color"}
	multi := model.ResourceSchema{IDField: "room", ColorField: "color", Multiple: true}

	a := timedEvent("a", jan(5, 9, 0), jan(5, 10, 0))
	b := timedEvent("b", jan(5, 9, 0), jan(5, 10, 0))
	c := timedEvent("c", jan(5, 9, 0), jan(5, 10, 0))

	testCases := []struct {
		name     string
		events   []model.CalendarEvent
		resource model.Resource
		schema   model.ResourceSchema
		want     []model.EventID
	}{
		{
			name:     "Scalar assignment to A is absent from B",
			events:   []model.CalendarEvent{withAttr(a, "room", "A")},
			resource: model.Resource{"room": "B"},
			schema:   schema,
			want:     []model.EventID{},
		},
		{
			name:     "Scalar assignment matches its resource",
			events:   []model.CalendarEvent{withAttr(a, "room", "A"), withAttr(b, "room", "B")},
			resource: model.Resource{"room": "A"},
			schema:   schema,
			want:     []model.EventID{"a"},
		},
		{
			name: "Multi-valued assignment",
			events: []model.CalendarEvent{
				withAttr(a, "room", []any{"A", "B"}),
				withAttr(b, "room", []string{"C"}),
			},
			resource: model.Resource{"room": "B"},
			schema:   multi,
			want:     []model.EventID{"a"},
		},
		{
			name:     "Bare scalar in multi-valued field",
			events:   []model.CalendarEvent{withAttr(a, "room", "B")},
			resource: model.Resource{"room": "B"},
			schema:   multi,
			want:     []model.EventID{"a"},
		},
		{
			name:     "Slice value in scalar field is still a set",
			events:   []model.CalendarEvent{withAttr(a, "room", []int{1, 2})},
			resource: model.Resource{"room": 2},
			schema:   schema,
			want:     []model.EventID{"a"},
		},
		{
			name:     "Unassigned events never match",
			events:   []model.CalendarEvent{c, withAttr(a, "other", "A")},
			resource: model.Resource{"room": "A"},
			schema:   schema,
			want:     []model.EventID{},
		},
		{
			name:     "Numbers compare by value, never equal strings",
			events:   []model.CalendarEvent{withAttr(a, "room", 1), withAttr(b, "room", "1"), withAttr(c, "room", 1.0)},
			resource: model.Resource{"room": int64(1)},
			schema:   schema,
			want:     []model.EventID{"a", "c"},
		},
		{
			name:     "No resource returns everything",
			events:   []model.CalendarEvent{withAttr(a, "room", "A"), c},
			resource: nil,
			schema:   schema,
			want:     []model.EventID{"a", "c"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Partition(tc.events, tc.resource, tc.schema)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestPartition_ColorFallbackDoesNotMutate(t *testing.T) {
	schema := model.ResourceSchema{IDField: "room", ColorField: "color"}
	plain := withAttr(timedEvent("plain", jan(5, 9, 0), jan(5, 10, 0)), "room", "A")
	colored := withAttr(timedEvent("colored", jan(5, 9, 0), jan(5, 10, 0)), "room", "A")
	colored.Color = "#ff0000"
	events := []model.CalendarEvent{plain, colored}

	got := Partition(events, model.Resource{"room": "A", "color": "#00ff00"}, schema)

	require.Len(t, got, 2)
	assert.Equal(t, "#00ff00", got[0].Color)
	assert.Equal(t, "#ff0000", got[1].Color)
	assert.Empty(t, events[0].Color)

	got[0].Attributes["room"] = "changed"
	assert.Equal(t, "A", events[0].Attributes["room"])
}

func TestScopes(t *testing.T) {
	schema := model.ResourceSchema{IDField: "id"}
	events := []model.CalendarEvent{
		withAttr(timedEvent("a", jan(5, 9, 0), jan(5, 10, 0)), "id", "A"),
		timedEvent("unassigned", jan(5, 9, 0), jan(5, 10, 0)),
	}

	all := Scopes(events, nil, schema)
	require.Len(t, all, 1)
	assert.True(t, all[0].Scope.IsAll())
	assert.Equal(t, []model.EventID{"a", "unassigned"}, ids(all[0].Events))

	scoped := Scopes(events, []model.Resource{{"id": "A"}, {"name": "no id"}, {"id": "B"}}, schema)
	require.Len(t, scoped, 2)
	assert.Equal(t, model.ResourceScope("A"), scoped[0].Scope)
	assert.Equal(t, []model.EventID{"a"}, ids(scoped[0].Events))
	assert.Equal(t, "B", scoped[1].Scope.Key())
	assert.Empty(t, scoped[1].Events)
}

func TestScopes_LabelsFromTitleField(t *testing.T) {
	schema := model.ResourceSchema{IDField: "id", TitleField: "name"}
	resources := []model.Resource{
		{"id": "A", "name": "Room A"},
		{"id": 7},
		{"id": "B", "name": 12},
	}

	scoped := Scopes(nil, resources, schema)
	require.Len(t, scoped, 3)
	assert.Equal(t, "Room A", scoped[0].Label)
	assert.Equal(t, "7", scoped[1].Label, "falls back to the id")
	assert.Equal(t, "12", scoped[2].Label)

	assert.Empty(t, Scopes(nil, nil, schema)[0].Label)
}

func TestScopes_IDKindsStayApart(t *testing.T) {
	assert.NotEqual(t, model.ResourceScope(1), model.ResourceScope("1"))
	assert.Equal(t, model.ResourceScope(1), model.ResourceScope(int64(1)))

	schema := model.ResourceSchema{IDField: "id"}
	events := []model.CalendarEvent{
		withAttr(timedEvent("num", jan(5, 9, 0), jan(5, 10, 0)), "id", 1),
		withAttr(timedEvent("str", jan(5, 9, 0), jan(5, 10, 0)), "id", "1"),
	}

	scoped := Scopes(events, []model.Resource{{"id": 1}, {"id": "1"}, {"id": 1.0}, {"id": "2"}}, schema)
	require.Len(t, scoped, 2, "later resources sharing a key are skipped")
	assert.Equal(t, model.ResourceScope(1), scoped[0].Scope)
	assert.Equal(t, []model.EventID{"num"}, ids(scoped[0].Events))
	assert.Equal(t, "2", scoped[1].Scope.Key())
}

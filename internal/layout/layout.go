package layout

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"calgrid/internal/model"
)

var (
	ErrEmptyWindow = errors.New("layout: window has no days")
	ErrInvalidGrid = errors.New("layout: invalid grid")
)

// MonthConfig sizes month cells.
type MonthConfig struct {
	CellHeight   float64 `json:"cell_height" yaml:"cell_height"`
	NumberHeight float64 `json:"number_height" yaml:"number_height"`
	EventHeight  float64 `json:"event_height" yaml:"event_height"`
}

// Input is everything one layout pass depends on.
type Input struct {
	Events    []model.CalendarEvent
	Resources []model.Resource
	Schema    model.ResourceSchema

	View View
	Days []Day
	// TimeZone is an IANA name; empty means instants are already local.
	TimeZone string

	Grid  GridConfig
	Bars  BarConfig
	Month MonthConfig
}

// LaneAssignment maps scope -> dayKey -> occurrence key -> lane.
type LaneAssignment map[model.Scope]map[string]map[string]int

// Lane looks up one lane.
func (la LaneAssignment) Lane(scope model.Scope, day Day, key string) (int, bool) {
	lane, ok := la[scope][day.Key()][key]
	return lane, ok
}

// TimedLayout is a timed occurrence with its lane and box.
type TimedLayout struct {
	Key string `json:"key"`
	TimedSlot
	Box TimedBox `json:"box"`
}

// BarLayout is a bar segment with its box.
type BarLayout struct {
	BarSegment
	Box BarBox `json:"box"`
}

// OverflowLayout is a "+N more" marker with its offset.
type OverflowLayout struct {
	Overflow
	Top float64 `json:"top"`
}

// DayLayout is one visible column of one scope.
type DayLayout struct {
	Day      Day             `json:"day"`
	Timed    []TimedLayout   `json:"timed"`
	Bars     []BarLayout     `json:"bars"`
	Overflow *OverflowLayout `json:"overflow,omitempty"`
	// Agenda lists the keys of every occurrence touching the day.
	Agenda []string `json:"agenda"`
}

// ScopeLayout is the layout of one resource (or of everything).
type ScopeLayout struct {
	Scope model.Scope `json:"scope"`
	Label string      `json:"label,omitempty"`
	Days  []DayLayout `json:"days"`
	// MaxLanes is the tallest bar stack; HeaderHeight sizes the week header
	// to fit it.
	MaxLanes     int     `json:"max_lanes"`
	HeaderHeight float64 `json:"header_height"`
}

// Result is the output of Compute.
type Result struct {
	View        View               `json:"view"`
	Days        []Day              `json:"days"`
	TimeZone    string             `json:"timezone,omitempty"`
	Limit       int                `json:"limit,omitempty"`
	Occurrences []model.Occurrence `json:"occurrences"`
	TimedLanes  LaneAssignment     `json:"timed_lanes"`
	BarLanes    LaneAssignment     `json:"bar_lanes"`
	Scopes      []ScopeLayout      `json:"scopes"`

	// MinuteScale is the time-axis scale of the timed boxes and HourSlots
	// the grid row start times per day key. Day and week views only.
	MinuteScale float64                `json:"minute_scale,omitempty"`
	HourSlots   map[string][]time.Time `json:"hour_slots,omitempty"`
}

// Compute lays out a whole window for every scope. It is a pure function of
// in: callers recompute wholesale whenever any input changes.
func Compute(in Input) (*Result, error) {
	if len(in.Days) == 0 {
		return nil, ErrEmptyWindow
	}
	view := in.View
	if view == "" {
		view = ViewWeek
	}
	grid, err := normalizeGrid(in.Grid, view)
	if err != nil {
		return nil, err
	}
	bars := normalizeBars(in.Bars, in.Month, view)

	days := slices.Clone(in.Days)
	slices.SortFunc(days, func(a, b Day) int { return DaysBetween(b, a) })
	days = slices.Compact(days)

	limit := 0
	if view == ViewMonth {
		m := normalizeMonth(in.Month)
		limit = MonthLimit(m.CellHeight, m.NumberHeight, m.EventHeight)
	}

	loc := ResolveLocation(in.TimeZone)
	occs := ExpandWindow(in.Events, days, loc)

	res := &Result{
		View:        view,
		Days:        days,
		Limit:       limit,
		Occurrences: occs,
		TimedLanes:  make(LaneAssignment),
		BarLanes:    make(LaneAssignment),
	}
	if loc != nil {
		res.TimeZone = loc.String()
	}
	if view != ViewMonth {
		res.MinuteScale = grid.MinuteScale
		res.HourSlots = make(map[string][]time.Time, len(days))
		for _, d := range days {
			res.HourSlots[d.Key()] = HourSlots(d, grid, loc)
		}
	}

	for _, sc := range Scopes(in.Events, in.Resources, in.Schema) {
		scoped := scopeOccurrences(occs, sc)
		sl := layoutScope(res, sc.Scope, scoped, limit, grid, bars)
		sl.Label = sc.Label
		res.Scopes = append(res.Scopes, sl)
	}
	return res, nil
}

// scopeOccurrences keeps the occurrences whose parent belongs to the scope,
// with the scope's colour fallback applied.
func scopeOccurrences(occs []model.Occurrence, sc ScopedEvents) []model.Occurrence {
	colors := make(map[model.EventID]string, len(sc.Events))
	for _, ev := range sc.Events {
		colors[ev.ID] = ev.Color
	}
	out := make([]model.Occurrence, 0, len(occs))
	for _, occ := range occs {
		color, ok := colors[occ.ParentID]
		if !ok {
			continue
		}
		if occ.Color == "" {
			occ.Color = color
		}
		out = append(out, occ)
	}
	return out
}

func layoutScope(res *Result, scope model.Scope, occs []model.Occurrence, limit int, grid GridConfig, bars BarConfig) ScopeLayout {
	win := SpanWindow{Days: res.Days, Limit: limit}
	if res.View == ViewMonth {
		win.RowLength = 7
		win.IncludeTimed = true
	}
	spans := AssignSpans(occs, win)
	res.BarLanes[scope] = spans.Lanes

	segs := make(map[Day][]BarSegment)
	for _, seg := range spans.Segments {
		segs[seg.Day] = append(segs[seg.Day], seg)
	}
	overflow := make(map[Day]Overflow)
	for _, ov := range spans.Overflow {
		overflow[ov.Day] = ov
	}

	sl := ScopeLayout{
		Scope:        scope,
		MaxLanes:     spans.MaxLanes,
		HeaderHeight: float64(spans.MaxLanes)*bars.BarHeight + bars.HeaderHeight,
	}
	timedLanes := make(map[string]map[string]int)

	for _, d := range res.Days {
		dl := DayLayout{Day: d, Timed: []TimedLayout{}, Bars: []BarLayout{}}

		if res.View != ViewMonth {
			slots := AssignLanes(SortLongestFirst(timedOn(occs, d)))
			if len(slots) > 0 {
				timedLanes[d.Key()] = make(map[string]int, len(slots))
			}
			for _, slot := range slots {
				key := slot.Occurrence.Key()
				timedLanes[d.Key()][key] = slot.Lane
				dl.Timed = append(dl.Timed, TimedLayout{
					Key:       key,
					TimedSlot: slot,
					Box:       TimedGeometry(slot.Occurrence, slot, grid),
				})
			}
		}

		for _, seg := range segs[d] {
			dl.Bars = append(dl.Bars, BarLayout{BarSegment: seg, Box: BarGeometry(seg, limit, bars)})
		}
		if ov, ok := overflow[d]; ok {
			dl.Overflow = &OverflowLayout{Overflow: ov, Top: OverflowTop(limit, bars)}
		}

		agenda := agendaOn(occs, d)
		if res.View == ViewMonth {
			agenda = sortedCopy(agenda, MonthCellOrder)
		}
		dl.Agenda = make([]string, 0, len(agenda))
		for _, occ := range agenda {
			dl.Agenda = append(dl.Agenda, occ.Key())
		}
		sl.Days = append(sl.Days, dl)
	}

	res.TimedLanes[scope] = timedLanes
	return sl
}

func normalizeGrid(g GridConfig, view View) (GridConfig, error) {
	if view == ViewMonth {
		return g, nil
	}
	if g.StartHour < 0 || g.EndHour > 24 || g.EndHour <= g.StartHour {
		return g, fmt.Errorf("%w: hours %d..%d", ErrInvalidGrid, g.StartHour, g.EndHour)
	}
	if g.StepMinutes <= 0 {
		return g, fmt.Errorf("%w: step %d", ErrInvalidGrid, g.StepMinutes)
	}
	if g.MinuteScale <= 0 {
		g.MinuteScale = 1
		if g.TableHeight > 0 {
			g.MinuteScale = MinuteScale(CellHeight(g.TableHeight, g.Rows()), g.StepMinutes)
		}
	}
	return g, nil
}

func normalizeBars(b BarConfig, m MonthConfig, view View) BarConfig {
	if b.BarHeight <= 0 {
		b.BarHeight = DefaultMultiDayEventHeight
	}
	if b.HeaderHeight <= 0 {
		if view == ViewMonth {
			b.HeaderHeight = normalizeMonth(m).NumberHeight
		} else {
			b.HeaderHeight = DefaultWeekHeaderHeight
		}
	}
	if b.ColumnPercent <= 0 {
		b.ColumnPercent = DefaultColumnPercent
	}
	return b
}

func normalizeMonth(m MonthConfig) MonthConfig {
	if m.NumberHeight <= 0 {
		m.NumberHeight = DefaultMonthNumberHeight
	}
	if m.EventHeight <= 0 {
		m.EventHeight = DefaultMultiDayEventHeight
	}
	if m.CellHeight <= 0 {
		m.CellHeight = 120
	}
	return m
}

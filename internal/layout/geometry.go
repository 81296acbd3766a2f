package layout

import (
	"math"

	"calgrid/internal/model"
)

// MinEventMinutes is the extent given to events with End <= Start.
const MinEventMinutes = 15

// Defaults of the reference grid, in pixels.
const (
	DefaultMultiDayEventHeight = 28
	DefaultMonthNumberHeight   = 27
	DefaultWeekHeaderHeight    = 45
	DefaultColumnPercent       = 100
	minCellHeight              = 60
)

// GridConfig is the time axis of day and week views.
type GridConfig struct {
	StartHour   int     `json:"start_hour" yaml:"start_hour"`
	EndHour     int     `json:"end_hour" yaml:"end_hour"`
	StepMinutes int     `json:"step" yaml:"step"`
	MinuteScale float64 `json:"minute_scale" yaml:"minute_scale"`
	// TableHeight, when MinuteScale is unset, sizes the grid rows and so
	// the scale.
	TableHeight float64 `json:"table_height,omitempty" yaml:"table_height,omitempty"`
}

// WindowMinutes is the length of the visible time axis.
func (g GridConfig) WindowMinutes() int {
	return (g.EndHour - g.StartHour) * 60
}

// Rows is the number of grid rows of StepMinutes each.
func (g GridConfig) Rows() int {
	if g.StepMinutes <= 0 {
		return 0
	}
	return g.WindowMinutes() / g.StepMinutes
}

// BarConfig sizes multi-day bars.
type BarConfig struct {
	BarHeight     float64 `json:"bar_height" yaml:"bar_height"`
	HeaderHeight  float64 `json:"header_height" yaml:"header_height"`
	ColumnPercent float64 `json:"column_percent" yaml:"column_percent"`
}

// TimedBox is the geometry of a timed occurrence. Top and Height are in
// time-axis units; Left and Width are fractions of the day column.
type TimedBox struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

// BarBox is the geometry of a bar segment.
type BarBox struct {
	Top          float64 `json:"top"`
	WidthPercent float64 `json:"width_percent"`
}

// TimedGeometry places a timed occurrence on the grid. Events starting
// before StartHour are clamped to the top; the extent never exceeds the
// window nor drops below MinEventMinutes.
func TimedGeometry(occ model.Occurrence, slot TimedSlot, grid GridConfig) TimedBox {
	startMinutes := occ.Start.Hour()*60 + occ.Start.Minute()
	fromTop := max(startMinutes-grid.StartHour*60, 0)

	duration := int(occ.End.Sub(occ.Start).Minutes())
	if duration <= 0 {
		duration = MinEventMinutes
	}
	extent := min(duration, max(grid.WindowMinutes(), 0))

	columns := max(slot.Columns, 1)
	return TimedBox{
		Top:    float64(fromTop) * grid.MinuteScale,
		Height: float64(extent) * grid.MinuteScale,
		Left:   float64(slot.Lane) / float64(columns),
		Width:  1 / float64(columns),
	}
}

// BarGeometry places a bar segment. With limit > 0 the stacking offset is
// capped at limit lanes.
func BarGeometry(seg BarSegment, limit int, bars BarConfig) BarBox {
	lane := seg.Lane
	if limit > 0 {
		lane = min(lane, limit)
	}
	return BarBox{
		Top:          float64(lane)*bars.BarHeight + bars.HeaderHeight,
		WidthPercent: bars.ColumnPercent * float64(seg.SpanDays),
	}
}

// OverflowTop is the vertical offset of a cell's "+N more" marker.
func OverflowTop(limit int, bars BarConfig) float64 {
	return float64(max(limit, 0))*bars.BarHeight + bars.HeaderHeight
}

// CellHeight divides the table height among the hour rows, never below 60.
func CellHeight(tableHeight float64, hours int) float64 {
	if hours <= 0 {
		return minCellHeight
	}
	return math.Max(tableHeight/float64(hours), minCellHeight)
}

// MinuteScale converts a cell height and step into units per minute.
func MinuteScale(cellHeight float64, stepMinutes int) float64 {
	if stepMinutes <= 0 {
		return 0
	}
	return math.Ceil(cellHeight) / float64(stepMinutes)
}

// MonthLimit is the number of bar lanes that fit into a month cell, at
// least one.
func MonthLimit(cellHeight, numberHeight, eventHeight float64) int {
	if eventHeight <= 0 {
		return 1
	}
	return max(int(math.Round((cellHeight-numberHeight)/eventHeight-1)), 1)
}

package layout

import (
	"fmt"
	"strings"
	"time"
)

// View selects the window shape.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// ParseView accepts "day", "week" or "month" (case-insensitive).
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewDay, ViewWeek, ViewMonth:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// ParseWeekStart maps "monday"/"sunday"/... to a weekday. Unknown values
// fall back to Monday.
func ParseWeekStart(s string) time.Weekday {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(s, wd.String()) {
			return wd
		}
	}
	return time.Monday
}

// StartOfWeek returns the weekStart day on or before d.
func StartOfWeek(d Day, weekStart time.Weekday) Day {
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-offset)
}

// WeekWindow is the 7 days of the week containing selected.
func WeekWindow(selected Day, weekStart time.Weekday) []Day {
	start := StartOfWeek(selected, weekStart)
	days := make([]Day, 7)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// MonthWindow is the full weeks covering the month of selected, so its
// length is always a multiple of 7.
func MonthWindow(selected Day, weekStart time.Weekday) []Day {
	first := Day{Year: selected.Year, Month: selected.Month, Day: 1}
	last := Day{Year: selected.Year, Month: selected.Month + 1, Day: 1}.normalize().AddDays(-1)

	start := StartOfWeek(first, weekStart)
	days := make([]Day, 0, 42)
	for d := start; !d.After(last) || len(days)%7 != 0; d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Window returns the visible days of a view.
func Window(view View, selected Day, weekStart time.Weekday) []Day {
	switch view {
	case ViewDay:
		return []Day{selected}
	case ViewMonth:
		return MonthWindow(selected, weekStart)
	default:
		return WeekWindow(selected, weekStart)
	}
}

// HourSlots lists the grid row start times of a day from startHour to
// endHour inclusive, every stepMinutes.
func HourSlots(day Day, grid GridConfig, loc *time.Location) []time.Time {
	if grid.StepMinutes <= 0 {
		return nil
	}
	base := day.Start(loc)
	from := base.Add(time.Duration(grid.StartHour) * time.Hour)
	to := base.Add(time.Duration(grid.EndHour) * time.Hour)

	out := make([]time.Time, 0)
	for t := from; !t.After(to); t = t.Add(time.Duration(grid.StepMinutes) * time.Minute) {
		out = append(out, t)
	}
	return out
}

func (d Day) normalize() Day {
	return DayOf(d.utc())
}

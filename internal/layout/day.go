package layout

import (
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

// Day is a zone-naive calendar date. Window days are always Days; instants
// are mapped onto Days only after zone conversion.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses a YYYY-MM-DD key.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayKeyLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Key is the YYYY-MM-DD grouping key.
func (d Day) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Day) String() string {
	return d.Key()
}

// MarshalText renders the day as its key.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.Key()), nil
}

// Start is local midnight of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n calendar days.
func (d Day) AddDays(n int) Day {
	return DayOf(d.utc().AddDate(0, 0, n))
}

// Weekday of d.
func (d Day) Weekday() time.Weekday {
	return d.utc().Weekday()
}

func (d Day) Before(o Day) bool {
	return d.utc().Before(o.utc())
}

func (d Day) After(o Day) bool {
	return d.utc().After(o.utc())
}

// Within reports first <= d <= last.
func (d Day) Within(first, last Day) bool {
	return !d.Before(first) && !d.After(last)
}

// DaysBetween is the number of calendar days from a to b (negative when b
// is before a).
func DaysBetween(a, b Day) int {
	return int(b.utc().Sub(a.utc()).Hours() / 24)
}

func (d Day) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// firstDay / lastDay give the calendar days an occurrence touches. End is
// exclusive, so an event ending exactly at midnight does not touch the
// following day.
func firstDay(start time.Time) Day {
	return DayOf(start)
}

func lastDay(start, end time.Time) Day {
	if !end.After(start) {
		return DayOf(start)
	}
	return DayOf(end.Add(-time.Nanosecond))
}

// spansDays reports whether the range crosses at least one day boundary.
func spansDays(start, end time.Time) bool {
	return lastDay(start, end) != firstDay(start)
}

package layout

import (
	"time"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// ResolveLocation loads an IANA zone. An empty name means "instants are
// already local" and yields nil. An invalid name degrades silently to nil
// as well, so the layout stays renderable.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Debug("layout: unknown timezone; treating instants as local", "name", name, "err", err)
		return nil
	}
	return loc
}

// ConvertTZ moves the occurrence instants into loc. A nil loc or an
// occurrence that was already converted is returned unchanged. All-day
// occurrences are floating: they keep their wall clock, so a date stays the
// same date in every zone.
func ConvertTZ(occ model.Occurrence, loc *time.Location) model.Occurrence {
	if loc == nil || occ.ConvertedTZ != "" {
		return occ
	}
	if occ.AllDay {
		occ.Start = wallClockIn(occ.Start, loc)
		occ.End = wallClockIn(occ.End, loc)
	} else {
		occ.Start = occ.Start.In(loc)
		occ.End = occ.End.In(loc)
	}
	occ.ConvertedTZ = loc.String()
	return occ
}

func wallClockIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

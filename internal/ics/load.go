package ics

import (
	"context"
	"errors"
	"fmt"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Loader fetches and parses every configured source into one event list.
type Loader struct {
	Fetcher *Fetcher
	Options ParseOptions
}

// SourceStatus is the outcome of loading one source.
type SourceStatus struct {
	ID     string
	Origin Origin
	Events int
	Err    error
}

// Load fetches all sources and parses them by format. Per-source failures
// are logged and joined into the returned error; events of the remaining
// sources are still returned. Event ids colliding across sources are
// prefixed with the source id.
func (l *Loader) Load(ctx context.Context, sources []Source) ([]model.CalendarEvent, error) {
	events, statuses := l.loadSources(ctx, sources)

	errs := make([]error, 0)
	byOrigin := make(map[Origin]int)
	for _, st := range statuses {
		if st.Err != nil {
			errs = append(errs, st.Err)
			continue
		}
		byOrigin[st.Origin]++
	}
	appLog.Info("sources loaded",
		"event_count", len(events),
		"network", byOrigin[OriginNetwork],
		"cache", byOrigin[OriginCache],
		"file", byOrigin[OriginFile],
		"failed", len(errs),
	)
	return events, errors.Join(errs...)
}

// loadSources is Load with one status per source, in source order.
func (l *Loader) loadSources(ctx context.Context, sources []Source) ([]model.CalendarEvent, []SourceStatus) {
	seen := make(map[model.EventID]bool)
	out := make([]model.CalendarEvent, 0)
	statuses := make([]SourceStatus, 0, len(sources))

	for _, src := range sources {
		st := SourceStatus{ID: src.ID}
		events, origin, err := l.loadOne(ctx, src)
		st.Origin = origin
		if err != nil {
			appLog.Error("source load failed", err, "id", src.ID, "url", redactURL(src.URL), "path", src.Path)
			st.Err = err
			statuses = append(statuses, st)
			continue
		}
		st.Events = len(events)
		statuses = append(statuses, st)

		for _, ev := range events {
			if seen[ev.ID] {
				ev.ID = model.EventID(src.ID + "/" + string(ev.ID))
			}
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}
	return out, statuses
}

func (l *Loader) loadOne(ctx context.Context, src Source) ([]model.CalendarEvent, Origin, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	payload, err := l.Fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, "", err
	}

	var events []model.CalendarEvent
	switch src.format() {
	case FormatICS:
		events, err = ParseICS(src, payload.Body, l.Options)
	case FormatYAML:
		events, err = ParseEventsYAML(src, payload.Body)
	default:
		err = fmt.Errorf("source %s: unknown format %q", src.ID, src.Format)
	}
	if err != nil {
		return nil, payload.Origin, err
	}
	return events, payload.Origin, nil
}

package recompute

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// LoadFunc loads the raw events from every source. A non-nil error with a
// non-empty event list means a partial load; the events are still used.
type LoadFunc func(ctx context.Context) ([]model.CalendarEvent, error)

// InputFunc builds the engine input for the current events.
type InputFunc func(events []model.CalendarEvent, now time.Time) layout.Input

// Options configures a Coordinator.
type Options struct {
	Load  LoadFunc
	Input InputFunc
	// Schedule is a cron expression for source refresh. Empty disables
	// scheduled refresh.
	Schedule string
	// Location of the schedule; nil means local time.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// OnPublish is called after a snapshot is published.
	OnPublish func(*Snapshot)
}

// Snapshot is one published layout.
type Snapshot struct {
	ID         string         `json:"id"`
	Generation uint64         `json:"generation"`
	ComputedAt time.Time      `json:"computed_at"`
	Layout     *layout.Result `json:"layout"`
}

// Coordinator serializes layout recomputation. Triggers are coalesced into
// a single pending run, and a run that was superseded by a newer trigger
// while computing is discarded instead of published.
type Coordinator struct {
	opts Options

	trigger    chan struct{}
	generation atomic.Uint64

	// refreshMu serializes source loads.
	refreshMu sync.Mutex

	mu       sync.RWMutex
	events   []model.CalendarEvent
	version  uint64 // bumped on every event swap
	snapshot *Snapshot
}

// New creates a coordinator. Run must be called to start the worker.
func New(opts Options) (*Coordinator, error) {
	if opts.Load == nil || opts.Input == nil {
		return nil, errors.New("recompute: Load and Input are required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Schedule != "" {
		if _, err := cron.ParseStandard(opts.Schedule); err != nil {
			return nil, fmt.Errorf("recompute: invalid schedule %q: %w", opts.Schedule, err)
		}
	}
	return &Coordinator{
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Trigger requests a recompute. It never blocks; bursts collapse into one
// pending run.
func (c *Coordinator) Trigger() {
	c.generation.Add(1)
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Refresh reloads the sources and triggers a recompute. Load errors are
// returned; a partial load still replaces the event set.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	events, err := c.opts.Load(ctx)
	if err != nil {
		appLog.Error("recompute: source load reported errors", err, "event_count", len(events))
		if len(events) == 0 {
			return err
		}
	}

	c.mu.Lock()
	c.events = events
	c.version++
	c.mu.Unlock()

	c.Trigger()
	return err
}

// Run starts the scheduled refresh and processes triggers until ctx is
// done. An initial refresh is performed before the first wait.
func (c *Coordinator) Run(ctx context.Context) error {
	var sched *cron.Cron
	if c.opts.Schedule != "" {
		loc := c.opts.Location
		if loc == nil {
			loc = time.Local
		}
		sched = cron.New(cron.WithLocation(loc))
		if _, err := sched.AddFunc(c.opts.Schedule, func() {
			appLog.Info("recompute: scheduled refresh")
			_ = c.Refresh(ctx)
		}); err != nil {
			return fmt.Errorf("recompute: schedule: %w", err)
		}
		sched.Start()
		defer func() {
			<-sched.Stop().Done()
		}()
	}

	go func() {
		_ = c.Refresh(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.trigger:
			c.recompute()
		}
	}
}

// RunOnce loads the sources and computes one snapshot synchronously.
func (c *Coordinator) RunOnce(ctx context.Context) (*Snapshot, error) {
	if err := c.Refresh(ctx); err != nil && len(c.Events()) == 0 {
		return nil, err
	}
	// Drain the trigger left by Refresh; this run replaces it.
	select {
	case <-c.trigger:
	default:
	}
	snap := c.recompute()
	if snap == nil {
		return nil, errors.New("recompute: layout failed")
	}
	return snap, nil
}

// Snapshot returns the last published snapshot, or nil.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Events returns a copy of the currently loaded events.
func (c *Coordinator) Events() []model.CalendarEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.events)
}

// EventSet returns a copy of the current events with the version of the set.
// The version changes whenever Refresh swaps the events, before any layout
// of them is published.
func (c *Coordinator) EventSet() ([]model.CalendarEvent, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.events), c.version
}

// recompute computes a layout for the current events and publishes it
// unless a newer trigger arrived meanwhile. It returns the published
// snapshot, or nil.
func (c *Coordinator) recompute() *Snapshot {
	gen := c.generation.Load()
	id := uuid.NewString()
	now := c.opts.Now()

	res, err := layout.Compute(c.opts.Input(c.Events(), now))
	if err != nil {
		appLog.Error("recompute: layout failed", err, "run_id", id, "generation", gen)
		return nil
	}
	if latest := c.generation.Load(); latest != gen {
		appLog.Debug("recompute: discarding superseded result", "run_id", id, "generation", gen, "latest", latest)
		return nil
	}

	snap := &Snapshot{ID: id, Generation: gen, ComputedAt: now, Layout: res}
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	appLog.Info("recompute: published", "run_id", id, "generation", gen, "occurrences", len(res.Occurrences))
	if c.opts.OnPublish != nil {
		c.opts.OnPublish(snap)
	}
	return snap
}

package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"calgrid/internal/config"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/recompute"
)

// Provider is the source of layouts and events served over HTTP.
// *recompute.Coordinator implements it.
type Provider interface {
	Snapshot() *recompute.Snapshot
	Events() []model.CalendarEvent
	EventSet() ([]model.CalendarEvent, uint64)
	Refresh(ctx context.Context) error
}

// Server provides the HTTP API for layouts and events.
type Server struct {
	cfg      *config.Config
	provider Provider
	mux      *http.ServeMux
	now      func() time.Time

	// In-memory cache for /api/layout responses computed for an explicit
	// view/date, keyed by request and event set version.
	layoutMu    sync.RWMutex
	layoutCache map[string]layoutCacheEntry
}

type layoutCacheEntry struct {
	result    *layout.Result
	updatedAt time.Time
}

const layoutCacheTTL = 30 * time.Second

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, provider Provider) *Server {
	s := &Server{
		cfg:         cfg,
		provider:    provider,
		mux:         http.NewServeMux(),
		now:         time.Now,
		layoutCache: make(map[string]layoutCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, provider Provider) error {
	s := NewServer(cfg, provider)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	SnapshotID string         `json:"snapshot_id,omitempty"`
	ComputedAt time.Time      `json:"computed_at"`
	Layout     *layout.Result `json:"layout"`
}

// handleLayout returns a computed layout.
//
// GET /api/layout                       -> last published snapshot
// GET /api/layout?view=month&date=2026-01-15
//   - view: day | week | month (default: config view)
//   - date: YYYY-MM-DD selected day (default: today in config timezone)
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	snap := s.provider.Snapshot()

	if q.Get("view") == "" && q.Get("date") == "" {
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "layout not computed yet")
			return
		}
		writeJSON(w, http.StatusOK, layoutResponse{SnapshotID: snap.ID, ComputedAt: snap.ComputedAt, Layout: snap.Layout})
		return
	}

	view := layout.View(s.cfg.View)
	if v := q.Get("view"); v != "" {
		parsed, err := layout.ParseView(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		view = parsed
	}
	selected, ok := s.selectedDay(w, q.Get("date"))
	if !ok {
		return
	}

	snapID := ""
	if snap != nil {
		snapID = snap.ID
	}
	events, version := s.provider.EventSet()
	key := string(view) + "|" + selected.Key() + "|" + strconv.FormatUint(version, 10)
	now := s.now()

	s.layoutMu.RLock()
	entry, hit := s.layoutCache[key]
	s.layoutMu.RUnlock()
	if hit && now.Sub(entry.updatedAt) < layoutCacheTTL {
		writeJSON(w, http.StatusOK, layoutResponse{SnapshotID: snapID, ComputedAt: entry.updatedAt, Layout: entry.result})
		return
	}

	res, err := layout.Compute(s.cfg.LayoutInput(events, view, selected))
	if err != nil {
		appLog.Error("api layout: compute failed", err, "view", view, "date", selected.Key())
		writeError(w, http.StatusInternalServerError, "failed to compute layout")
		return
	}

	s.layoutMu.Lock()
	// Entries of older event sets are never hit again.
	for k, e := range s.layoutCache {
		if now.Sub(e.updatedAt) >= layoutCacheTTL {
			delete(s.layoutCache, k)
		}
	}
	s.layoutCache[key] = layoutCacheEntry{result: res, updatedAt: now}
	s.layoutMu.Unlock()

	writeJSON(w, http.StatusOK, layoutResponse{SnapshotID: snapID, ComputedAt: now, Layout: res})
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []model.CalendarEvent `json:"events"`
	DisplayTimeZone string                `json:"display_timezone"`
	WeekStart       string                `json:"week_start"`
}

// handleEvents returns the raw events loaded from the configured sources.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.provider.Events()
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          events,
		DisplayTimeZone: s.cfg.Timezone,
		WeekStart:       s.cfg.WeekStart,
	})
}

// agendaResponse is the JSON response shape for /api/agenda.
type agendaResponse struct {
	Day         layout.Day         `json:"day"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// handleAgenda lists every occurrence touching one day.
//
// GET /api/agenda?date=YYYY-MM-DD (default: today)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	day, ok := s.selectedDay(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	occs := layout.AgendaForDay(s.provider.Events(), day, layout.ResolveLocation(s.cfg.Timezone))
	writeJSON(w, http.StatusOK, agendaResponse{Day: day, Occurrences: occs})
}

// handleRefresh reloads the sources and schedules a recompute.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.provider.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// selectedDay parses the date parameter, defaulting to today. It writes a
// 400 response and returns false on malformed input.
func (s *Server) selectedDay(w http.ResponseWriter, raw string) (layout.Day, bool) {
	if raw == "" {
		return s.cfg.Today(s.now()), true
	}
	d, err := layout.ParseDay(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return layout.Day{}, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"calgrid/internal/ics"
	"calgrid/internal/layout"
	"calgrid/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (CALGRID_*) override file values.

// Source formats.
const (
	FormatICS  = ics.FormatICS
	FormatYAML = ics.FormatYAML
)

// SourceConfig describes a single event source. Exactly one of URL or Path
// is expected; a URL is fetched over HTTP with caching, a Path is read from
// disk.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Format is "ics" (default) or "yaml".
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// ResourceFields names the event/resource fields used for partitioning.
type ResourceFields struct {
	ID       string `yaml:"id" json:"id"`
	Color    string `yaml:"color" json:"color"`
	Title    string `yaml:"title" json:"title"`
	Multiple bool   `yaml:"multiple" json:"multiple"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as display zone (e.g. "Asia/Seoul").
	// An unknown zone is tolerated; instants are then laid out as given.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first weekday of week and month windows
	// ("monday" by default, or any weekday name).
	WeekStart string `yaml:"week_start" json:"week_start"`

	// View is the default window shape: "day", "week" or "month".
	View string `yaml:"view" json:"view"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic source refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the HTTP cache of URL sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Grid  layout.GridConfig  `yaml:"grid" json:"grid"`
	Bars  layout.BarConfig   `yaml:"bars" json:"bars"`
	Month layout.MonthConfig `yaml:"month" json:"month"`

	ResourceFields ResourceFields   `yaml:"resource_fields" json:"resource_fields"`
	Resources      []model.Resource `yaml:"resources" json:"resources"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// overrides are the environment variables honoured on top of the file.
// Empty values leave the file value untouched.
type overrides struct {
	Listen       string `env:"CALGRID_LISTEN"`
	Timezone     string `env:"CALGRID_TIMEZONE"`
	WeekStart    string `env:"CALGRID_WEEK_START"`
	View         string `env:"CALGRID_VIEW"`
	RefreshCron  string `env:"CALGRID_REFRESH"`
	LogLevel     string `env:"CALGRID_LOG_LEVEL"`
	CacheDir     string `env:"CALGRID_CACHE_DIR"`
	AuthUser     string `env:"CALGRID_BASIC_AUTH_USERNAME"`
	AuthPassword string `env:"CALGRID_BASIC_AUTH_PASSWORD"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Asia/Seoul",
		WeekStart:   "monday",
		View:        string(layout.ViewWeek),
		RefreshCron: "*/15 * * * *",
		LogLevel:    "info",
		CacheDir:    "./var/ics-cache",
		Grid: layout.GridConfig{
			StartHour:   0,
			EndHour:     24,
			StepMinutes: 60,
			MinuteScale: 1,
		},
		Sources:   []SourceConfig{},
		Resources: []model.Resource{},
	}
	cfg.Normalize()
	return cfg
}

// Schema is the resource schema used by the layout engine.
func (c *Config) Schema() model.ResourceSchema {
	return model.ResourceSchema{
		IDField:    c.ResourceFields.ID,
		ColorField: c.ResourceFields.Color,
		TitleField: c.ResourceFields.Title,
		Multiple:   c.ResourceFields.Multiple,
	}
}

// Today is the calendar date of now in the configured zone (local time
// when the zone is unknown).
func (c *Config) Today(now time.Time) layout.Day {
	if loc := layout.ResolveLocation(c.Timezone); loc != nil {
		now = now.In(loc)
	}
	return layout.DayOf(now)
}

// LayoutInput assembles the engine input for a window of the given view
// around selected. An empty view uses the configured default.
func (c *Config) LayoutInput(events []model.CalendarEvent, view layout.View, selected layout.Day) layout.Input {
	if view == "" {
		view = layout.View(c.View)
	}
	return layout.Input{
		Events:    events,
		Resources: c.Resources,
		Schema:    c.Schema(),
		View:      view,
		Days:      layout.Window(view, selected, layout.ParseWeekStart(c.WeekStart)),
		TimeZone:  c.Timezone,
		Grid:      c.Grid,
		Bars:      c.Bars,
		Month:     c.Month,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	c.WeekStart = strings.ToLower(layout.ParseWeekStart(c.WeekStart).String())
	if _, err := layout.ParseView(c.View); err != nil {
		c.View = string(layout.ViewWeek)
	}
	c.View = strings.ToLower(strings.TrimSpace(c.View))
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}

	// A zero grid means "the whole day, hourly".
	if c.Grid.StartHour == 0 && c.Grid.EndHour == 0 {
		c.Grid.EndHour = 24
	}
	if c.Grid.StepMinutes <= 0 {
		c.Grid.StepMinutes = 60
	}
	if c.Grid.MinuteScale <= 0 && c.Grid.TableHeight <= 0 {
		c.Grid.MinuteScale = 1
	}
	if c.Bars.BarHeight <= 0 {
		c.Bars.BarHeight = layout.DefaultMultiDayEventHeight
	}
	if c.Bars.ColumnPercent <= 0 {
		c.Bars.ColumnPercent = layout.DefaultColumnPercent
	}
	if c.Month.CellHeight <= 0 {
		c.Month.CellHeight = 120
	}
	if c.Month.NumberHeight <= 0 {
		c.Month.NumberHeight = layout.DefaultMonthNumberHeight
	}
	if c.Month.EventHeight <= 0 {
		c.Month.EventHeight = layout.DefaultMultiDayEventHeight
	}

	if c.ResourceFields.ID == "" {
		c.ResourceFields.ID = "id"
	}
	if c.ResourceFields.Color == "" {
		c.ResourceFields.Color = "color"
	}
	if c.ResourceFields.Title == "" {
		c.ResourceFields.Title = "title"
	}
	if c.Resources == nil {
		c.Resources = []model.Resource{}
	}

	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Format = strings.ToLower(strings.TrimSpace(s.Format))
		if s.Format != FormatYAML {
			s.Format = FormatICS
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("source-%d", i+1)
		}
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.StartHour < 0 || c.Grid.EndHour > 24 || c.Grid.EndHour <= c.Grid.StartHour {
		errs = append(errs, fmt.Errorf("grid: invalid hours %d..%d", c.Grid.StartHour, c.Grid.EndHour))
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if (s.URL == "") == (s.Path == "") {
			errs = append(errs, fmt.Errorf("source %q: exactly one of url or path is required", s.ID))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("source %q: duplicate id", s.ID))
		}
		seen[s.ID] = true
	}
	return errors.Join(errs...)
}

// ApplyEnv overlays CALGRID_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, o.Listen)
	set(&c.Timezone, o.Timezone)
	set(&c.WeekStart, o.WeekStart)
	set(&c.View, o.View)
	set(&c.RefreshCron, o.RefreshCron)
	set(&c.LogLevel, o.LogLevel)
	set(&c.CacheDir, o.CacheDir)

	if o.AuthUser != "" || o.AuthPassword != "" {
		if c.BasicAuth == nil {
			c.BasicAuth = &BasicAuthConfig{}
		}
		set(&c.BasicAuth.Username, o.AuthUser)
		set(&c.BasicAuth.Password, o.AuthPassword)
	}

	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//   - In both cases CALGRID_* environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, cfg.ApplyEnv()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/yaml.v3"

	"calgrid/internal/config"
	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/recompute"
	"calgrid/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	view       string
	date       string
	format     string
}

func main() {
	flags := parseFlags()

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		appLog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		appLog.Error("failed to set GOMAXPROCS", err)
	}

	if err := run(flags); err != nil {
		appLog.Error("calgrid failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var view layout.View
	if flags.view != "" {
		if view, err = layout.ParseView(flags.view); err != nil {
			return err
		}
	}
	var fixedDay *layout.Day
	if flags.date != "" {
		d, err := layout.ParseDay(flags.date)
		if err != nil {
			return err
		}
		fixedDay = &d
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"view", conf.View,
		"refresh", conf.RefreshCron,
		"source_count", len(conf.Sources),
		"resource_count", len(conf.Resources),
		"once", flags.once,
	)

	displayZone := layout.ResolveLocation(conf.Timezone)
	loader, sources := newLoader(conf, displayZone)

	opts := recompute.Options{
		Load: func(ctx context.Context) ([]model.CalendarEvent, error) {
			return loader.Load(ctx, sources)
		},
		Input: func(events []model.CalendarEvent, now time.Time) layout.Input {
			day := conf.Today(now)
			if fixedDay != nil {
				day = *fixedDay
			}
			return conf.LayoutInput(events, view, day)
		},
		Location: displayZone,
	}
	if !flags.once {
		opts.Schedule = conf.RefreshCron
	}
	coord, err := recompute.New(opts)
	if err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		snap, err := coord.RunOnce(ctx)
		if err != nil {
			return err
		}
		return writeResult(os.Stdout, flags.format, snap.Layout)
	}

	go func() {
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("recompute loop stopped", err)
		}
	}()

	if err := web.StartServer(ctx, conf, coord); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	appLog.Info("calgrid exiting")
	return nil
}

// newLoader builds the source loader. DATE and floating ICS times are read
// in the display zone.
func newLoader(conf *config.Config, displayZone *time.Location) (*ics.Loader, []ics.Source) {
	loader := &ics.Loader{
		Fetcher: ics.NewFetcher(conf.CacheDir),
		Options: ics.ParseOptions{ResourceField: conf.ResourceFields.ID, Location: displayZone},
	}
	sources := make([]ics.Source, 0, len(conf.Sources))
	for _, s := range conf.Sources {
		sources = append(sources, ics.Source{ID: s.ID, URL: s.URL, Path: s.Path, Format: s.Format})
	}
	return loader, sources
}

// writeResult encodes the layout as indented JSON or as YAML with the same
// field names.
func writeResult(w io.Writer, format string, res *layout.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}

	switch format {
	case "", "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err = buf.WriteTo(w)
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load sources, print one layout and exit")
	flag.StringVar(&cfg.view, "view", "", "Layout view: day, week or month (default from config)")
	flag.StringVar(&cfg.date, "date", "", "Selected day as YYYY-MM-DD (default: today)")
	flag.StringVar(&cfg.format, "format", "json", "Output format of -once: json or yaml")

	flag.Parse()

	return cfg
}

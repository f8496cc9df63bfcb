package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mvasconcelos/plantpulse/internal/api"
	"github.com/mvasconcelos/plantpulse/internal/config"
	"github.com/mvasconcelos/plantpulse/internal/ingest"
	"github.com/mvasconcelos/plantpulse/internal/oracle"
	"github.com/mvasconcelos/plantpulse/internal/profile"
	"github.com/mvasconcelos/plantpulse/internal/recommend"
	"github.com/mvasconcelos/plantpulse/internal/state"
	"github.com/mvasconcelos/plantpulse/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

func main() {
	configPath := flag.String("config", "", "path to plantpulse.yml config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("plantpulse %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
			fmt.Fprintf(os.Stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(os.Stderr, "  cp plantpulse.example.yml %s\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", *configPath, err)
		}
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting plantpulse",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"listen", cfg.Listen,
	)

	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	catalog := profile.Default()
	if cfg.ProfilePath != "" {
		catalog, err = profile.Load(cfg.ProfilePath)
		if err != nil {
			slog.Error("loading parameter profiles", "path", cfg.ProfilePath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("parameter profiles loaded", "profiles", catalog.Len())

	registry := prometheus.NewRegistry()
	tracker := state.New()
	pipeline := ingest.NewPipeline(
		ingest.NewBuffer(cfg.Ingest.BufferCapacity, cfg.Ingest.SubmitTimeout.Duration),
		catalog,
		st,
		tracker,
		ingest.NewMetrics(registry),
		cfg.Ingest.DrainInterval.Duration,
	)

	var anomalyOracle oracle.AnomalyOracle
	var failureOracle oracle.FailureOracle
	var optimizationOracle oracle.OptimizationOracle
	if cfg.Oracles.AnomalyURL != "" {
		anomalyOracle = oracle.NewHTTPClient("anomaly", cfg.Oracles.AnomalyURL)
	}
	if cfg.Oracles.FailureURL != "" {
		failureOracle = oracle.NewHTTPClient("failure", cfg.Oracles.FailureURL)
	}
	if cfg.Oracles.OptimizationURL != "" {
		optimizationOracle = oracle.NewHTTPClient("optimization", cfg.Oracles.OptimizationURL)
	}
	engine := recommend.NewEngine(anomalyOracle, failureOracle, optimizationOracle)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return pipeline.Run(ctx) })

	pruner := store.NewPruner(st, store.RetentionConfig{
		Readings:  cfg.Retention.Readings.Duration,
		Anomalies: cfg.Retention.Anomalies.Duration,
	})
	g.Go(func() error { return pruner.Run(ctx) })

	server := api.NewServer(cfg.Listen, st, pipeline, tracker, engine, registry, cfg.Schedule.Window.Duration)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started",
		"buffer_capacity", cfg.Ingest.BufferCapacity,
		"drain_interval", cfg.Ingest.DrainInterval.Duration,
		"oracles", countOracles(cfg.Oracles),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("plantpulse stopped gracefully")
}

func countOracles(o config.OraclesConfig) int {
	n := 0
	for _, u := range []string{o.AnomalyURL, o.FailureURL, o.OptimizationURL} {
		if u != "" {
			n++
		}
	}
	return n
}

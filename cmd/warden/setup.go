package main

import (
	"fmt"
	"log/slog"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/engine"
	"mercator-hq/warden/pkg/history"
	"mercator-hq/warden/pkg/store"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// runtimeDeps bundles everything a command needs: the configured engine and
// the resources to release on exit.
type runtimeDeps struct {
	cfg     *config.Config
	engine  *engine.Engine
	metrics *metrics.Collector
	logger  *slog.Logger
	cleanup func()
}

// buildEngine loads configuration and wires the engine with its file store,
// history backend, and metrics collector.
func buildEngine() (*runtimeDeps, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	logger := logging.New(cfg.Telemetry.Logging, nil)
	slog.SetDefault(logger)

	retry := store.RetryPolicy{Backoff: cfg.Persistence.RetryBackoff}
	fileStore, err := store.NewFileStore(cfg.Engine.StateDir, cfg.Persistence.FixDir, retry, logger)
	if err != nil {
		return nil, err
	}

	var hist history.Storage
	switch cfg.History.Backend {
	case "sqlite":
		hist, err = history.NewSQLiteStorage(cfg.History.SQLitePath, cfg.History.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open history backend: %w", err)
		}
	case "memory":
		hist = history.NewMemoryStorage()
	}

	eng := engine.New(cfg, fileStore, logger).WithHistory(hist)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
		eng.WithMetrics(collector)
	}

	return &runtimeDeps{
		cfg:     cfg,
		engine:  eng,
		metrics: collector,
		logger:  logger,
		cleanup: func() {
			if hist != nil {
				hist.Close()
			}
		},
	}, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/engine"
)

var (
	runSchedule     string
	runWatchSignals bool
	runMetricsAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run enforce ticks on a schedule",
	Long: `Run is the embedded tick scheduler. It executes enforce ticks on a cron
schedule, optionally re-ticks when a signal artifact changes, and can serve
Prometheus metrics. The engine itself stays strictly tick-batch: run is just
the periodic caller shipped in the same binary.

Ticks never overlap: a tick triggered while another is in flight is
coalesced into the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Serialize ticks through a single slot channel.
		tickRequests := make(chan struct{}, 1)
		requestTick := func() {
			select {
			case tickRequests <- struct{}{}:
			default:
			}
		}

		scheduler := cron.New()
		if _, err := scheduler.AddFunc(runSchedule, requestTick); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", runSchedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()

		if runWatchSignals {
			watcher, err := watchSignals(deps.cfg.Engine.SignalsDir, requestTick)
			if err != nil {
				return err
			}
			defer watcher.Close()
		}

		metricsAddr := runMetricsAddr
		if metricsAddr == "" {
			metricsAddr = deps.cfg.Telemetry.Metrics.ListenAddress
		}
		if metricsAddr != "" && deps.metrics != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", deps.metrics.Handler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					deps.logger.Error("metrics endpoint failed", "error", err)
				}
			}()
			defer srv.Shutdown(context.Background())
			deps.logger.Info("serving metrics", "addr", metricsAddr)
		}

		deps.logger.Info("runner started", "schedule", runSchedule, "watch_signals", runWatchSignals)
		requestTick()

		for {
			select {
			case <-ctx.Done():
				deps.logger.Info("runner stopping")
				return nil
			case <-tickRequests:
				res := deps.engine.Tick(ctx, engine.ModeEnforce)
				if res.ExitCode() == engine.ExitFatal {
					// A fatal persistence failure halts the runner; the
					// diagnostic bundle carries the unpersisted state.
					return fmt.Errorf("halting after fatal persistence failure: %s", res.FatalError)
				}
			}
		}
	},
}

// watchSignals requests a tick whenever a signal artifact is written.
// Events are debounced by the single-slot tick channel, so a burst of
// writes produces one tick.
func watchSignals(dir string, requestTick func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create signal watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					// Ignore editor temp files; signal artifacts are
					// json/jsonl documents.
					switch filepath.Ext(event.Name) {
					case ".json", ".jsonl":
						requestTick()
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return watcher, nil
}

func init() {
	runCmd.Flags().StringVar(&runSchedule, "schedule", "*/5 * * * *", "cron schedule for enforce ticks")
	runCmd.Flags().BoolVar(&runWatchSignals, "watch-signals", false, "also tick when a signal artifact changes")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(runCmd)
}

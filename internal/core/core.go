// Package core wires mediaparser's settings, store, probe, scheduler, and
// review layers into a single bundle the CLI commands share, the way the
// teacher's main() wires its own dependencies up front before dispatching
// into subcommand handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediaparser/internal/config"
	"mediaparser/internal/export"
	"mediaparser/internal/extractor"
	"mediaparser/internal/metadataprobe"
	"mediaparser/internal/queue"
	"mediaparser/internal/review"
	"mediaparser/internal/scheduler"
	"mediaparser/internal/store"
	"mediaparser/internal/telemetry"
)

// Core bundles every long-lived dependency a mediaparser command needs.
type Core struct {
	Settings  *config.Settings
	Store     *store.Store
	Queue     *queue.Queue
	Probe     metadataprobe.Probe
	Scheduler scheduler.Scheduler
	Review    *review.Review
	Telemetry telemetry.Providers
}

// Open loads settings, opens the Store and persistent queue, and wires the
// probe/extractor/exporter/scheduler/review stack on top of them. Callers
// must call Close when done.
func Open(configPath string) (*Core, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("core: load settings: %w", err)
	}

	providers, err := telemetry.Init(telemetry.Config{
		LogJSON:  settings.LogJSON,
		LogLevel: parseLevel(settings.LogLevel),

		OTLPEndpoint: settings.OTLPEndpoint,
		OTLPInsecure: settings.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("core: init telemetry: %w", err)
	}

	st, err := store.Open(settings.StoreDBPath)
	if err != nil {
		providers.Shutdown(context.Background())
		return nil, fmt.Errorf("core: open store: %w", err)
	}

	q, err := queue.Open(settings.QueueDBPath)
	if err != nil {
		st.Close()
		providers.Shutdown(context.Background())
		return nil, fmt.Errorf("core: open queue: %w", err)
	}

	tz, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		tz = time.UTC
	}

	probe := metadataprobe.NewExecProbe(settings.MaxConcurrentProbes)
	sink := &logSink{logger: providers.Logger}

	ex := extractor.New(probe, tz, sink)
	exp := export.New(probe, settings.OutputDir, sink)

	sched := scheduler.New(st, ex, exp, scheduler.Settings{
		WorkerThreads:   settings.WorkerThreads,
		BatchCommitSize: settings.BatchCommitSize,
		ErrorThreshold:  settings.ErrorThreshold,
	})

	return &Core{
		Settings:  settings,
		Store:     st,
		Queue:     q,
		Probe:     probe,
		Scheduler: sched,
		Review:    review.New(st),
		Telemetry: providers,
	}, nil
}

// Close releases the Store and queue handles and flushes telemetry.
func (c *Core) Close() error {
	var firstErr error
	if err := c.Queue.Close(); err != nil {
		firstErr = err
	}
	if err := c.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.Telemetry.Shutdown(context.Background()); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type logSink struct {
	logger *slog.Logger
}

func (s *logSink) Warn(msg string, fields map[string]any) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	s.logger.Warn(msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

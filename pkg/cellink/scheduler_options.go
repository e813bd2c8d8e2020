package cellink

import (
	"log/slog"
	"time"

	"github.com/viibridges/cellink/pkg/cellink/config"
	"github.com/viibridges/cellink/pkg/cellink/journal"
)

const (
	defaultWorkers      = 8
	defaultPollInterval = 5 * time.Millisecond
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithWorkers bounds how many forward computations run at once.
// Values below 1 are ignored. Default: 8.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPollInterval sets how long the scheduler waits between passes when no
// node completes. Non-positive values are ignored. Default: 5ms.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithSchedulerLogger sets the logger for run and node events.
// Defaults to slog.Default().
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for runs.
// Uses the global meter provider.
func WithMetrics(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.metricsEnabled = enabled
	}
}

// WithTracing enables OpenTelemetry spans for runs.
// Uses the global tracer provider.
func WithTracing(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.tracingEnabled = enabled
	}
}

// WithRunID fixes the run ID used in logs, spans and the journal. By default
// every Run gets a fresh UUID.
func WithRunID(id string) SchedulerOption {
	return func(s *Scheduler) {
		s.runID = id
	}
}

// WithJournal records every settled node to store. Journal write failures
// are logged and never fail a run.
func WithJournal(store journal.Store) SchedulerOption {
	return func(s *Scheduler) {
		s.journal = store
	}
}

// WithConfig applies the scheduler keys present in cfg: workers,
// poll_interval, metrics, tracing and run_id. Missing keys leave the
// current setting alone.
func WithConfig(cfg config.Config) SchedulerOption {
	return func(s *Scheduler) {
		WithWorkers(cfg.Int("workers", s.workers))(s)
		WithPollInterval(cfg.Duration("poll_interval", s.pollInterval))(s)
		s.metricsEnabled = cfg.Bool("metrics", s.metricsEnabled)
		s.tracingEnabled = cfg.Bool("tracing", s.tracingEnabled)
		s.runID = cfg.String("run_id", s.runID)
	}
}

// Package observability provides logging, metrics and tracing for cellink
// scheduler runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when
// disabled. Every log helper accepts a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns a logger that tags every record with run_id.
func EnrichLogger(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("run_id", runID))
}

// LogRunStart logs the start of a scheduler run.
func LogRunStart(logger *slog.Logger, runID string, nodes int) {
	if logger == nil {
		return
	}
	logger.Info("scheduler run starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodes),
	)
}

// LogRunComplete logs a run in which no node raised an error.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, ran, dead int) {
	if logger == nil {
		return
	}
	logger.Info("scheduler run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("ran", ran),
		slog.Int("dead", dead),
	)
}

// LogRunError logs a run that converged with at least one node error.
// node is the node whose error is returned to the caller.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, node string) {
	if logger == nil {
		return
	}
	logger.Error("scheduler run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("node", node),
	)
}

// LogNodeSubmit logs a node handed to the worker pool.
func LogNodeSubmit(logger *slog.Logger, nodeID, node string, layer int) {
	if logger == nil {
		return
	}
	logger.Debug("node submitted",
		slog.String("node_id", nodeID),
		slog.String("node", node),
		slog.Int("layer", layer),
	)
}

// LogNodeComplete logs a node whose forward computation returned.
func LogNodeComplete(logger *slog.Logger, nodeID, node string, layer int, durationMs float64, success bool) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.String("node", node),
		slog.Int("layer", layer),
		slog.Float64("duration_ms", durationMs),
		slog.Bool("success", success),
	)
}

// LogNodeDead logs a node that will never run.
func LogNodeDead(logger *slog.Logger, nodeID, node string, layer int) {
	if logger == nil {
		return
	}
	logger.Debug("node dead",
		slog.String("node_id", nodeID),
		slog.String("node", node),
		slog.Int("layer", layer),
	)
}

// LogNodeError logs a node whose forward computation raised an error.
func LogNodeError(logger *slog.Logger, nodeID, node string, layer int, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("node", node),
		slog.Int("layer", layer),
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal write failure. Journal failures never fail
// a run.
func LogJournalError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports the elapsed time in milliseconds.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}

// Package observability provides logging, metrics, and tracing helpers
// for tickgraph events and the queue worker.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with event and behavior fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "tick", "physics")
//	enriched.Info("doing work") // includes event, behavior
func EnrichLogger(logger *slog.Logger, event, behavior string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event", event),
		slog.String("behavior", behavior),
	)
}

// LogPost logs the completion of an event fan-out.
func LogPost(logger *slog.Logger, event string, invoked int, pending int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event posted",
		slog.String("event", event),
		slog.Int("behaviors_invoked", invoked),
		slog.Int("continuations", pending),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogBehaviorError logs a behavior failure. The fan-out continues.
func LogBehaviorError(logger *slog.Logger, event, behavior string, err error) {
	if logger == nil {
		return
	}
	logger.Error("behavior failed",
		slog.String("event", event),
		slog.String("behavior", behavior),
		slog.String("error", err.Error()),
	)
}

// LogOrderResolved logs a recomputed topological order.
func LogOrderResolved(logger *slog.Logger, event string, size int) {
	if logger == nil {
		return
	}
	logger.Debug("behavior order recomputed",
		slog.String("event", event),
		slog.Int("behaviors", size),
	)
}

// LogCycle logs a dependency cycle found during order resolution.
func LogCycle(logger *slog.Logger, event string, remaining []string) {
	if logger == nil {
		return
	}
	logger.Error("dependency cycle",
		slog.String("event", event),
		slog.Any("behaviors", remaining),
	)
}

// LogWake logs one worker wake-up.
func LogWake(logger *slog.Logger, runID string, ts float64, due int, deferred int) {
	if logger == nil {
		return
	}
	logger.Debug("worker wake-up",
		slog.String("run_id", runID),
		slog.Float64("ts", ts),
		slog.Int("due", due),
		slog.Int("deferred", deferred),
	)
}

// LogDeferred logs a firing held back by an unsettled continuation.
func LogDeferred(logger *slog.Logger, event string, ts float64) {
	if logger == nil {
		return
	}
	logger.Debug("firing deferred",
		slog.String("event", event),
		slog.Float64("ts", ts),
	)
}

// LogArm logs the host timer being re-armed.
func LogArm(logger *slog.Logger, deadline float64) {
	if logger == nil {
		return
	}
	logger.Debug("host timer armed",
		slog.Float64("deadline", deadline),
	)
}

// LogPollError logs the aggregated errors of one wake-up.
func LogPollError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("worker poll failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal write failure (non-fatal).
func LogJournalError(logger *slog.Logger, event string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
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

package queue

import (
	"log/slog"

	tgerrors "github.com/randalmurphal/tickgraph/pkg/tickgraph/errors"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/journal"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/observability"
)

// Option configures a Worker.
type Option func(*Worker)

// WithClock sets the shared time source.
// Default: NewRealClock().
func WithClock(c Clock) Option {
	return func(w *Worker) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLogger sets the logger for wake-ups, deferrals and failures.
// Default: slog.Default(). Pass nil to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(w *Worker) {
		if m == nil {
			m = observability.NoopMetrics{}
		}
		w.metrics = m
	}
}

// WithTracing enables a span per wake-up. Event post spans become its
// children when the events have tracing enabled too.
func WithTracing(enabled bool) Option {
	return func(w *Worker) {
		if enabled {
			w.spans = observability.NewSpanManager()
		} else {
			w.spans = observability.NoopSpanManager{}
		}
	}
}

// WithJournal records every firing in store. The worker closes the store
// when it is closed.
func WithJournal(store journal.Store) Option {
	return func(w *Worker) {
		w.journal = store
	}
}

// WithJournalRetry sets the retry policy for journal writes.
// Default: errors.JournalRetry.
func WithJournalRetry(cfg tgerrors.RetryConfig) Option {
	return func(w *Worker) {
		w.retry = cfg
	}
}

// WithErrorHandler receives errors Run survives: poll failures that are not
// structural, failed continuations and panicking tasks.
// Default: log at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Worker) {
		w.onError = fn
	}
}

// WithRunID sets the identifier used in logs, spans and the journal.
// Default: a random UUID.
func WithRunID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.runID = id
		}
	}
}

// Package journal records the firings a worker performs.
//
// The journal is a diagnostics history: what fired, when it was due, when it
// actually ran and how it ended. It is not schedule state and nothing is
// restored from it on restart.
package journal

import (
	"errors"
	"time"
)

// Outcome describes how a firing ended.
type Outcome string

const (
	// OutcomeDone means every behavior completed synchronously.
	OutcomeDone Outcome = "done"
	// OutcomePending means the post returned an outstanding continuation.
	OutcomePending Outcome = "pending"
	// OutcomeFailed means the post returned an error.
	OutcomeFailed Outcome = "failed"
	// OutcomeDeferred means the firing was held back because the queue
	// still had an outstanding continuation.
	OutcomeDeferred Outcome = "deferred"
)

// Record is one journal line.
type Record struct {
	RunID    string `json:"run_id"`
	Sequence int64  `json:"sequence"`
	Event    string `json:"event"`
	Timer    string `json:"timer"`

	// Scheduled is the requested firing time and FiredAt the time the
	// worker handled it, both in the worker's shared time domain.
	Scheduled float64 `json:"scheduled"`
	FiredAt   float64 `json:"fired_at"`

	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Lateness returns how long after its scheduled time the firing ran.
func (r Record) Lateness() float64 {
	return r.FiredAt - r.Scheduled
}

// Store persists journal records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores a record, assigning its Sequence (1-based per run) and
	// RecordedAt. Returns the stored sequence.
	Append(rec Record) (int64, error)

	// List returns the records of a run ordered by sequence.
	// Returns an empty slice (not error) if the run has no records.
	List(runID string) ([]Record, error)

	// Count returns the number of records of a run.
	Count(runID string) (int, error)

	// DeleteRun removes all records of a run.
	// Returns nil if the run has no records.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("journal store closed")

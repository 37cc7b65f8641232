package queue

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for worker lifecycle.
var (
	// ErrWorkerClosed is returned by operations on a closed worker.
	ErrWorkerClosed = errors.New("queue: worker closed")

	// ErrReentrantPoll is returned when PollOnce is called from inside a
	// behavior or task running on the worker.
	ErrReentrantPoll = errors.New("queue: cannot poll from within a wake-up")

	// ErrAlreadyRunning is returned when Run is called twice concurrently.
	ErrAlreadyRunning = errors.New("queue: worker already running")
)

// QueueError is a failed firing of one queue.
type QueueError struct {
	Event string
	Timer string
	// Ts is the requested firing time in the timer's local time.
	Ts  float64
	Err error
}

// Error implements the error interface.
func (e *QueueError) Error() string {
	return fmt.Sprintf("queue %s@%s (ts=%.3f): %v", e.Event, e.Timer, e.Ts, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// PollError aggregates every queue failure of a single wake-up.
// It is returned only after all due firings have been handled and the next
// wake-up has been armed.
type PollError struct {
	RunID  string
	Errors []error
}

// Error implements the error interface.
func (e *PollError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d firings failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap returns the individual failures for errors.Is/As support.
func (e *PollError) Unwrap() []error {
	return e.Errors
}

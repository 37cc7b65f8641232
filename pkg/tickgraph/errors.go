package tickgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph construction and order resolution.
var (
	// ErrBehaviorConflict indicates a second edge to the same target with a
	// different relation.
	ErrBehaviorConflict = errors.New("conflicting behavior dependency")

	// ErrGraphCycle indicates no total order exists among an event's behaviors.
	ErrGraphCycle = errors.New("behavior dependency cycle")

	// ErrBehaviorFailure indicates one or more behaviors failed during a post.
	ErrBehaviorFailure = errors.New("behavior failure")
)

// ConflictError is returned by AddDependency when the target already has an
// edge with the opposite relation.
type ConflictError struct {
	// Behavior is the behavior the edge was declared on.
	Behavior string
	// Target is the behavior the edge points at.
	Target string
	// Existing is the relation already recorded.
	Existing Relation
	// Requested is the relation that was rejected.
	Requested Relation
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("behavior %s: already %s %s, cannot also be %s",
		e.Behavior, e.Existing, e.Target, e.Requested)
}

// Unwrap returns ErrBehaviorConflict for errors.Is support.
func (e *ConflictError) Unwrap() error {
	return ErrBehaviorConflict
}

// CycleError reports a dependency cycle found while resolving an event's order.
type CycleError struct {
	// Event is the name of the event whose order could not be resolved.
	Event string
	// Remaining lists the behaviors left unordered, in registration order.
	// Every cycle lies within this set.
	Remaining []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("event %s: dependency cycle among [%s]", e.Event, strings.Join(e.Remaining, ", "))
}

// Unwrap returns ErrGraphCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrGraphCycle
}

// BehaviorError wraps an error returned by a behavior with its context.
type BehaviorError struct {
	// Event is the event being posted.
	Event string
	// Behavior is the behavior that failed.
	Behavior string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BehaviorError) Error() string {
	return fmt.Sprintf("event %s: behavior %s: %v", e.Event, e.Behavior, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BehaviorError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a behavior.
// It includes the stack trace for debugging.
type PanicError struct {
	// Event is the event being posted.
	Event string
	// Behavior is the behavior that panicked.
	Behavior string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("event %s: behavior %s panicked: %v", e.Event, e.Behavior, e.Value)
}

// BehaviorFailures aggregates every failure of a single fan-out.
// A failing behavior never hides its siblings' failures.
type BehaviorFailures struct {
	// Event is the event being posted.
	Event string
	// Errors holds one *BehaviorError or *PanicError per failed behavior,
	// in invocation order.
	Errors []error
}

// Error implements the error interface.
func (e *BehaviorFailures) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("event %s: %d behaviors failed: %s", e.Event, len(e.Errors), strings.Join(msgs, "; "))
}

// Is reports ErrBehaviorFailure as a match.
func (e *BehaviorFailures) Is(target error) bool {
	return target == ErrBehaviorFailure
}

// Unwrap returns the individual failures for errors.Is/As support.
func (e *BehaviorFailures) Unwrap() []error {
	return e.Errors
}

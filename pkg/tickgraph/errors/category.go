// Package errors classifies scheduler errors and retries transient ones.
//
// The worker's run loop uses Categorize to decide whether an error ends the
// loop (structural graph problems), is reported and survived (behavior
// failures), or is simply the loop being cancelled. Journal writes retry
// transient storage errors with WithRetryContext.
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryRuntime indicates a failure inside user code.
	// The firing is lost but scheduling continues.
	CategoryRuntime Category = iota

	// CategoryStructural indicates the behavior graph itself is broken.
	// Every later post of the event would fail the same way.
	// Examples: dependency cycles, conflicting dependencies.
	CategoryStructural

	// CategoryCancelled indicates the caller's context ended.
	CategoryCancelled

	// CategoryTransient indicates retry will likely help.
	// Examples: a busy or locked journal database.
	CategoryTransient
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRuntime:
		return "runtime"
	case CategoryStructural:
		return "structural"
	case CategoryCancelled:
		return "cancelled"
	case CategoryTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with an explicit category.
type CategorizedError struct {
	Err      error
	Category Category

	// Attempts is the number of attempts made, when the error came out of
	// WithRetryContext.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s)", e.Context, e.Err, e.Category)
	}
	return fmt.Sprintf("%s (category: %s)", e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Categorize determines how an error should be handled.
//
// Structural problems win over everything else: an aggregate holding a cycle
// error and a behavior failure is structural.
func Categorize(err error) Category {
	if err == nil {
		return CategoryRuntime
	}

	if errors.Is(err, tickgraph.ErrGraphCycle) || errors.Is(err, tickgraph.ErrBehaviorConflict) {
		return CategoryStructural
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryCancelled
	}

	return CategoryRuntime
}

// IsFatal reports whether the error should stop a worker's run loop.
func IsFatal(err error) bool {
	return err != nil && Categorize(err) == CategoryStructural
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return err != nil && Categorize(err) == CategoryTransient
}

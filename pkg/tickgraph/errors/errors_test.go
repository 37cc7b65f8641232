package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryRuntime, "runtime"},
		{CategoryStructural, "structural"},
		{CategoryCancelled, "cancelled"},
		{CategoryTransient, "transient"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.String())
		})
	}
}

func TestCategorize(t *testing.T) {
	cycle := &tickgraph.CycleError{Event: "tick", Remaining: []string{"a", "b"}}
	conflict := &tickgraph.ConflictError{Behavior: "a", Target: "b", Existing: tickgraph.Before, Requested: tickgraph.After}
	failure := &tickgraph.BehaviorFailures{
		Event:  "tick",
		Errors: []error{&tickgraph.BehaviorError{Event: "tick", Behavior: "a", Err: errors.New("boom")}},
	}

	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil", nil, CategoryRuntime},
		{"plain", errors.New("boom"), CategoryRuntime},
		{"cycle", cycle, CategoryStructural},
		{"wrapped cycle", fmt.Errorf("poll: %w", cycle), CategoryStructural},
		{"conflict", conflict, CategoryStructural},
		{"behavior failure", failure, CategoryRuntime},
		{"joined cycle and failure", errors.Join(failure, cycle), CategoryStructural},
		{"cancelled", context.Canceled, CategoryCancelled},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), CategoryCancelled},
		{"transient", Transient(errors.New("busy"), "append"), CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("boom")))
	assert.True(t, IsFatal(&tickgraph.CycleError{Event: "tick"}))
}

func TestCategorizedError(t *testing.T) {
	base := errors.New("database is locked")
	err := Transient(base, "append firing")

	assert.Equal(t, "append firing: database is locked (category: transient)", err.Error())
	assert.ErrorIs(t, err, base)

	bare := &CategorizedError{Err: base, Category: CategoryRuntime}
	assert.Equal(t, "database is locked (category: runtime)", bare.Error())
}

func TestWithRetryContext_SucceedsAfterTransient(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2}

	calls := 0
	result := WithRetryContext(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, Transient(errors.New("busy"), "append")
		}
		return 42, nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetryContext_StopsOnPermanent(t *testing.T) {
	base := errors.New("constraint failed")
	calls := 0
	result := WithRetryContext(context.Background(), JournalRetry, func(context.Context) (int, error) {
		calls++
		return 0, base
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result.Attempts)
	assert.Same(t, base, result.Err)
}

func TestWithRetryContext_Exhausted(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	result := WithRetryContext(context.Background(), cfg, func(context.Context) (struct{}, error) {
		return struct{}{}, Transient(errors.New("busy"), "append")
	})

	var catErr *CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, 2, catErr.Attempts)
	assert.Equal(t, "max retries exceeded", catErr.Context)
	assert.True(t, IsRetryable(result.Err))
}

func TestWithRetryContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := WithRetryContext(ctx, JournalRetry, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})

	assert.Zero(t, calls)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, CategoryCancelled, Categorize(result.Err))
}

func TestWithRetryContext_CustomRetryable(t *testing.T) {
	cfg := NoRetry
	cfg.MaxAttempts = 2
	cfg.RetryableFunc = func(error) bool { return true }

	calls := 0
	result := WithRetryContext(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("always")
	})

	assert.Equal(t, 2, calls)
	assert.Error(t, result.Err)
}

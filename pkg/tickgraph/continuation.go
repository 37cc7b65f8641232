package tickgraph

import (
	"context"
	"errors"
	"sync"
)

// Outcome is the tagged result of a behavior invocation: either Done or
// Pending with a continuation the scheduler tracks.
type Outcome struct {
	cont *Continuation
}

// Done returns an outcome with no outstanding work.
func Done() Outcome {
	return Outcome{}
}

// Pending returns an outcome whose side effects complete when c settles.
// A nil continuation is treated as Done.
func Pending(c *Continuation) Outcome {
	return Outcome{cont: c}
}

// Continuation returns the pending continuation, if any.
func (o Outcome) Continuation() (*Continuation, bool) {
	return o.cont, o.cont != nil
}

// IsPending reports whether the outcome carries a continuation.
func (o Outcome) IsPending() bool {
	return o.cont != nil
}

// Continuation is a settle-once completion handle for asynchronous behavior
// side effects.
//
// Continuation IS safe for concurrent use. It is the only tickgraph type that
// may be touched from goroutines other than the one posting events.
type Continuation struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	err       error
	callbacks []func(error)
}

// NewContinuation creates an unsettled continuation.
func NewContinuation() *Continuation {
	return &Continuation{done: make(chan struct{})}
}

// Settled returns a continuation that has already settled with err.
func Settled(err error) *Continuation {
	c := NewContinuation()
	c.Settle(err)
	return c
}

// Go runs fn on a new goroutine and returns a continuation that settles with
// its result. Panics in fn settle the continuation with an error.
func Go(fn func() error) *Continuation {
	c := NewContinuation()
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Behavior: "continuation", Value: r}
			}
			c.Settle(err)
		}()
		err = fn()
	}()
	return c
}

// Settle completes the continuation. Only the first call has any effect;
// it returns false for later calls.
//
// Registered callbacks run synchronously on the settling goroutine.
func (c *Continuation) Settle(err error) bool {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return false
	}
	c.settled = true
	c.err = err
	callbacks := c.callbacks
	c.callbacks = nil
	close(c.done)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
	return true
}

// Done returns a channel closed once the continuation settles.
func (c *Continuation) Done() <-chan struct{} {
	return c.done
}

// IsSettled reports whether the continuation has settled.
func (c *Continuation) IsSettled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Err returns the settlement error, or nil while unsettled.
func (c *Continuation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Then registers fn to run once the continuation settles.
// If it already has, fn runs immediately on the calling goroutine.
func (c *Continuation) Then(fn func(error)) {
	c.mu.Lock()
	if !c.settled {
		c.callbacks = append(c.callbacks, fn)
		c.mu.Unlock()
		return
	}
	err := c.err
	c.mu.Unlock()
	fn(err)
}

// Wait blocks until the continuation settles or ctx is done.
// Never call Wait from a behavior: it would stall the scheduler.
func (c *Continuation) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns a continuation that settles once every input has settled.
// Its error joins all non-nil input errors. Nil inputs are ignored.
func All(cs ...*Continuation) *Continuation {
	pending := make([]*Continuation, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			pending = append(pending, c)
		}
	}
	if len(pending) == 1 {
		return pending[0]
	}

	out := NewContinuation()
	if len(pending) == 0 {
		out.Settle(nil)
		return out
	}

	var (
		mu        sync.Mutex
		remaining = len(pending)
		errs      = make([]error, len(pending))
	)
	for i, c := range pending {
		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		c.Then(func(err error) {
			mu.Lock()
			errs[i] = err
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Settle(errors.Join(errs...))
			}
		})
	}
	return out
}

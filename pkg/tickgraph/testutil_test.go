package tickgraph

import (
	"context"
	"io"
	"log/slog"
)

// Helper behavior functions

// noop completes immediately.
func noop(context.Context, *Event, any) (Outcome, error) {
	return Done(), nil
}

// makeTrackingBehavior creates a behavior that records its name when invoked.
func makeTrackingBehavior(name string, tracker *[]string, deps ...Dependency) *Behavior {
	return NewBehavior(name, func(context.Context, *Event, any) (Outcome, error) {
		*tracker = append(*tracker, name)
		return Done(), nil
	}, deps...)
}

// makeFailingBehavior creates a behavior that returns err.
func makeFailingBehavior(name string, err error, deps ...Dependency) *Behavior {
	return NewBehavior(name, func(context.Context, *Event, any) (Outcome, error) {
		return Done(), err
	}, deps...)
}

// makePanicBehavior creates a behavior that panics with value.
func makePanicBehavior(name string, value any) *Behavior {
	return NewBehavior(name, func(context.Context, *Event, any) (Outcome, error) {
		panic(value)
	})
}

// makePendingBehavior creates a behavior that returns c as its outcome.
func makePendingBehavior(name string, c *Continuation) *Behavior {
	return NewBehavior(name, func(context.Context, *Event, any) (Outcome, error) {
		return Pending(c), nil
	})
}

// quietEvent creates an event that logs nowhere.
func quietEvent(name string, behaviors ...*Behavior) *Event {
	ev := NewEvent(name, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	for _, b := range behaviors {
		ev.AddBehavior(b)
	}
	return ev
}

// names returns the names of behaviors in order.
func names(bs []*Behavior) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name()
	}
	return out
}

package tickgraph

import (
	"log/slog"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/observability"
)

// Event is a named broadcast point. Posting it runs every enabled member
// behavior in dependency order.
//
// Event is NOT safe for concurrent use. Membership edits, order resolution
// and posts all happen on the scheduler's goroutine.
//
// Example:
//
//	input := tickgraph.NewBehavior("input", readInput)
//	physics := tickgraph.NewBehavior("physics", step, tickgraph.RunsAfter(input))
//
//	tick := tickgraph.NewEvent("tick")
//	tick.AddBehavior(input)
//	tick.AddBehavior(physics)
//
//	cont, err := tick.Post(ctx, 0.016)
type Event struct {
	name      string
	behaviors []*Behavior

	// generation changes on every membership edit. The cache is keyed on it
	// plus the member versions recorded alongside the cached order.
	generation uint64
	cache      orderCache

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// orderCache is the last resolved order and the state it was computed from.
type orderCache struct {
	valid      bool
	generation uint64
	versions   []uint64 // parallel to Event.behaviors at resolution time
	order      []*Behavior
}

// EventOption configures an Event.
type EventOption func(*Event)

// WithLogger sets the logger used for behavior failures and order changes.
// Default: slog.Default(). Pass nil to disable logging.
func WithLogger(logger *slog.Logger) EventOption {
	return func(e *Event) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) EventOption {
	return func(e *Event) {
		if m == nil {
			m = observability.NoopMetrics{}
		}
		e.metrics = m
	}
}

// WithTracing enables OpenTelemetry spans for posts and behavior invocations.
func WithTracing(enabled bool) EventOption {
	return func(e *Event) {
		if enabled {
			e.spans = observability.NewSpanManager()
		} else {
			e.spans = observability.NoopSpanManager{}
		}
	}
}

// NewEvent creates an event with no behaviors.
func NewEvent(name string, opts ...EventOption) *Event {
	e := &Event{
		name:    name,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the event name.
func (e *Event) Name() string {
	return e.name
}

// Len returns the number of member behaviors.
func (e *Event) Len() int {
	return len(e.behaviors)
}

// Behaviors returns the members in registration order.
func (e *Event) Behaviors() []*Behavior {
	out := make([]*Behavior, len(e.behaviors))
	copy(out, e.behaviors)
	return out
}

// Has reports whether b is a member.
func (e *Event) Has(b *Behavior) bool {
	return e.indexOf(b) >= 0
}

// AddBehavior adds b to the event. Adding an existing member is a no-op.
// Returns true if membership changed.
func (e *Event) AddBehavior(b *Behavior) bool {
	if b == nil {
		panic("tickgraph: behavior cannot be nil")
	}
	if e.indexOf(b) >= 0 {
		return false
	}
	e.behaviors = append(e.behaviors, b)
	e.generation++
	return true
}

// RemoveBehavior removes b from the event. Removing a non-member is a no-op.
// Returns true if membership changed.
func (e *Event) RemoveBehavior(b *Behavior) bool {
	i := e.indexOf(b)
	if i < 0 {
		return false
	}
	e.behaviors = append(e.behaviors[:i], e.behaviors[i+1:]...)
	e.generation++
	return true
}

func (e *Event) indexOf(b *Behavior) int {
	for i, m := range e.behaviors {
		if m == b {
			return i
		}
	}
	return -1
}

// String returns the event name.
func (e *Event) String() string {
	return e.name
}

package tickgraph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Relation orders a behavior relative to a dependency target.
type Relation int

const (
	// Before places the declaring behavior ahead of the target.
	Before Relation = iota + 1
	// After places the declaring behavior behind the target.
	After
)

// String returns the relation name.
func (r Relation) String() string {
	switch r {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

// Dependency is a directed ordering edge declared on a behavior.
type Dependency struct {
	To       *Behavior
	Relation Relation
}

// RunsBefore returns a dependency placing the declaring behavior before b.
func RunsBefore(b *Behavior) Dependency {
	return Dependency{To: b, Relation: Before}
}

// RunsAfter returns a dependency placing the declaring behavior after b.
func RunsAfter(b *Behavior) Dependency {
	return Dependency{To: b, Relation: After}
}

// BehaviorFunc is the signature for behavior logic.
// It receives the event being posted and the firing argument.
//
// Synchronous behaviors return Done(). Behaviors with side effects that
// complete later return Pending(c) and settle c when finished.
//
// Example:
//
//	func physics(ctx context.Context, ev *tickgraph.Event, arg any) (tickgraph.Outcome, error) {
//	    dt := arg.(float64)
//	    world.Step(dt)
//	    return tickgraph.Done(), nil
//	}
type BehaviorFunc func(ctx context.Context, ev *Event, arg any) (Outcome, error)

// Behavior is a named unit of logic attached to one or more events.
//
// Behavior is not safe for concurrent use. Mutate it from the goroutine that
// posts its events.
type Behavior struct {
	id      string
	name    string
	fn      BehaviorFunc
	enabled bool
	deps    []Dependency
	version uint64
}

// NewBehavior creates an enabled behavior with the given dependencies.
//
// Panics if:
//   - fn is nil
//   - a dependency target is nil
//   - two dependencies name the same target with different relations
func NewBehavior(name string, fn BehaviorFunc, deps ...Dependency) *Behavior {
	if fn == nil {
		panic("tickgraph: behavior function cannot be nil")
	}
	b := &Behavior{
		id:      uuid.New().String(),
		name:    name,
		fn:      fn,
		enabled: true,
	}
	if b.name == "" {
		b.name = b.id[:8]
	}
	for _, d := range deps {
		if err := b.AddDependency(d.To, d.Relation); err != nil {
			panic(fmt.Sprintf("tickgraph: %v", err))
		}
	}
	return b
}

// ID returns the behavior's unique identifier.
func (b *Behavior) ID() string {
	return b.id
}

// Name returns the behavior name.
func (b *Behavior) Name() string {
	return b.name
}

// Enabled reports whether the behavior runs when its events fire.
func (b *Behavior) Enabled() bool {
	return b.enabled
}

// Enable lets the behavior run again.
// Takes effect on the next post, never mid fan-out.
func (b *Behavior) Enable() {
	b.enabled = true
}

// Disable skips the behavior on future posts. Its edges still constrain
// the order of its siblings.
func (b *Behavior) Disable() {
	b.enabled = false
}

// Version returns the edge version counter.
// It changes whenever a dependency is added or removed.
func (b *Behavior) Version() uint64 {
	return b.version
}

// Dependencies returns a copy of the declared edges.
func (b *Behavior) Dependencies() []Dependency {
	out := make([]Dependency, len(b.deps))
	copy(out, b.deps)
	return out
}

// AddDependency declares an ordering edge to another behavior.
//
// Declaring the same edge twice is a no-op. Declaring the opposite relation
// to a target that already has an edge returns a *ConflictError.
// Cycles are not detected here; they surface at the next order resolution.
func (b *Behavior) AddDependency(to *Behavior, rel Relation) error {
	if to == nil {
		return fmt.Errorf("behavior %s: dependency target cannot be nil", b.name)
	}
	if rel != Before && rel != After {
		return fmt.Errorf("behavior %s: invalid relation %d", b.name, rel)
	}
	for _, d := range b.deps {
		if d.To != to {
			continue
		}
		if d.Relation == rel {
			return nil
		}
		return &ConflictError{
			Behavior:  b.name,
			Target:    to.name,
			Existing:  d.Relation,
			Requested: rel,
		}
	}
	b.deps = append(b.deps, Dependency{To: to, Relation: rel})
	b.version++
	return nil
}

// RemoveDependency drops the edge to the given target.
// Returns false if no such edge existed.
func (b *Behavior) RemoveDependency(to *Behavior) bool {
	for i, d := range b.deps {
		if d.To == to {
			b.deps = append(b.deps[:i], b.deps[i+1:]...)
			b.version++
			return true
		}
	}
	return false
}

// String returns the behavior name.
func (b *Behavior) String() string {
	return b.name
}

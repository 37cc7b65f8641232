package tickgraph

import (
	"slices"
	"sort"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/observability"
)

// ResolveOrder returns the member behaviors in an order consistent with every
// declared edge between members.
//
// The cached order is reused while the membership generation and every
// member's edge version match the values recorded with it. Otherwise the order
// is recomputed with Kahn's algorithm. Edges whose target is not a member are
// ignored.
//
// Among behaviors that are ready at the same time, the earliest registered runs
// first. This tie-break is a convenience, not part of the contract.
//
// Returns a *CycleError (matching ErrGraphCycle) if no total order exists.
// A partial order is never returned.
func (e *Event) ResolveOrder() ([]*Behavior, error) {
	order, err := e.resolve()
	if err != nil {
		return nil, err
	}
	out := make([]*Behavior, len(order))
	copy(out, order)
	return out, nil
}

// resolve returns the cached order slice, recomputing it first if stale.
// Callers must not modify the result.
func (e *Event) resolve() ([]*Behavior, error) {
	if e.cacheValid() {
		return e.cache.order, nil
	}

	order, err := e.computeOrder()
	if err != nil {
		e.cache = orderCache{}
		return nil, err
	}

	versions := make([]uint64, len(e.behaviors))
	for i, b := range e.behaviors {
		versions[i] = b.version
	}
	e.cache = orderCache{
		valid:      true,
		generation: e.generation,
		versions:   versions,
		order:      order,
	}
	observability.LogOrderResolved(e.logger, e.name, len(order))
	return order, nil
}

// cacheValid reports whether the cached order still describes the graph.
func (e *Event) cacheValid() bool {
	c := &e.cache
	if !c.valid || c.generation != e.generation || len(c.versions) != len(e.behaviors) {
		return false
	}
	for i, b := range e.behaviors {
		if b.version != c.versions[i] {
			return false
		}
	}
	return true
}

// computeOrder runs Kahn's algorithm over the member subgraph.
func (e *Event) computeOrder() ([]*Behavior, error) {
	n := len(e.behaviors)
	index := make(map[*Behavior]int, n)
	for i, b := range e.behaviors {
		index[b] = i
	}

	// successors[i] lists nodes that must run after node i.
	successors := make([][]int, n)
	inDegree := make([]int, n)
	addEdge := func(from, to int) {
		successors[from] = append(successors[from], to)
		inDegree[to]++
	}

	for i, b := range e.behaviors {
		for _, d := range b.deps {
			j, member := index[d.To]
			if !member {
				continue
			}
			if d.Relation == Before {
				addEdge(i, j)
			} else {
				addEdge(j, i)
			}
		}
	}

	// ready is kept sorted by registration index.
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]*Behavior, 0, n)
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, e.behaviors[cur])

		for _, next := range successors[cur] {
			inDegree[next]--
			if inDegree[next] == 0 {
				pos := sort.SearchInts(ready, next)
				ready = slices.Insert(ready, pos, next)
			}
		}
	}

	if len(order) < n {
		remaining := make([]string, 0, n-len(order))
		for i, b := range e.behaviors {
			if inDegree[i] > 0 {
				remaining = append(remaining, b.name)
			}
		}
		observability.LogCycle(e.logger, e.name, remaining)
		return nil, &CycleError{Event: e.name, Remaining: remaining}
	}
	return order, nil
}

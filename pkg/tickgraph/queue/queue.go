package queue

import (
	"math"
	"reflect"
	"slices"
	"sort"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph"
)

// QueueConfig holds the firing policy of a queue.
type QueueConfig struct {
	// MinGap is the minimum spacing, in seconds, used by dedupe and by
	// RequestIn's allowEarlier. Default 0.
	MinGap float64

	// Recurring re-arms the queue this many seconds after the last firing
	// of every flush. Zero means one-shot.
	Recurring float64

	// Dedupe is the default dedupe flag used by RequestIn.
	Dedupe bool
}

// Queue schedules firings of one event on one timer.
//
// Pending requests are kept sorted by timestamp. Requests with equal
// timestamps are kept in arrival order.
//
// Queue is NOT safe for concurrent use. Use it from the worker's goroutine.
type Queue struct {
	event *tickgraph.Event
	timer *Timer
	cfg   QueueConfig

	pending  []*entry
	prevPoll float64 // last local poll time at which this queue had work due
	closed   bool
}

// NewQueue binds ev to timer and registers the queue on the timer.
//
// Panics if ev or timer is nil.
func NewQueue(ev *tickgraph.Event, timer *Timer, cfg QueueConfig) *Queue {
	if ev == nil {
		panic("queue: event cannot be nil")
	}
	if timer == nil {
		panic("queue: timer cannot be nil")
	}
	cfg.MinGap = math.Max(cfg.MinGap, 0)
	cfg.Recurring = math.Max(cfg.Recurring, 0)

	q := &Queue{
		event:    ev,
		timer:    timer,
		cfg:      cfg,
		prevPoll: math.Inf(-1),
	}
	timer.addQueue(q)
	return q
}

// Event returns the event the queue fires.
func (q *Queue) Event() *tickgraph.Event {
	return q.event
}

// Timer returns the timer the queue is bound to.
func (q *Queue) Timer() *Timer {
	return q.timer
}

// Config returns the queue's policy.
func (q *Queue) Config() QueueConfig {
	return q.cfg
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	return q.closed
}

// RequestIn asks for a firing delay seconds from the timer's current time.
//
// With allowEarlier the request may be pulled forward to the earliest moment
// the queue's MinGap allows, measured from the last poll that found work due.
// The queue's Dedupe setting applies.
//
// Returns false if the request was rejected as a duplicate.
func (q *Queue) RequestIn(arg any, delay float64, allowEarlier bool) bool {
	now := q.timer.Now()
	ts := now + math.Max(delay, 0)
	if allowEarlier {
		earliest := math.Max(now, q.prevPoll+q.cfg.MinGap)
		ts = math.Min(ts, earliest)
	}
	return q.RequestBy(arg, ts, q.cfg.Dedupe)
}

// RequestBy asks for a firing at local timestamp ts.
//
// With dedupe the request is rejected when a pending request with an equal
// argument lies strictly within MinGap of ts, or at exactly ts. Arguments
// are compared with ==; arguments of non-comparable types never match.
//
// Returns false if the request was rejected or the queue is closed.
func (q *Queue) RequestBy(arg any, ts float64, dedupe bool) bool {
	if q.closed || math.IsNaN(ts) {
		return false
	}
	if dedupe && q.hasEquivalent(arg, ts) {
		return false
	}
	q.insert(arg, ts)
	return true
}

// insert adds a request after any pending request with the same timestamp.
func (q *Queue) insert(arg any, ts float64) {
	e := q.timer.worker.pool.get()
	e.queue = q
	e.arg = arg
	e.ts = ts

	i := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].ts > ts
	})
	q.pending = slices.Insert(q.pending, i, e)
	if i == 0 {
		q.timer.worker.schedule(q.timer.ToShared(ts))
	}
}

func (q *Queue) hasEquivalent(arg any, ts float64) bool {
	gap := q.cfg.MinGap
	lo := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].ts >= ts-gap
	})
	for _, e := range q.pending[lo:] {
		if e.ts > ts+gap {
			break
		}
		d := math.Abs(e.ts - ts)
		if (d < gap || d == 0) && sameArg(e.arg, arg) {
			return true
		}
	}
	return false
}

// sameArg compares firing arguments with ==, treating arguments that cannot
// be compared as distinct.
func sameArg(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	// Comparable structs and arrays can still hold non-comparable
	// interface values.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// onBeginPoll records the poll time when the queue has work due at ts.
func (q *Queue) onBeginPoll(ts float64) bool {
	if len(q.pending) == 0 || q.pending[0].ts > ts {
		return false
	}
	q.prevPoll = ts
	return true
}

// flushEntriesUpTo moves every pending entry with timestamp ≤ ts onto out,
// in order. A recurring queue is then re-armed once, Recurring seconds after
// the last flushed timestamp, carrying that entry's argument.
func (q *Queue) flushEntriesUpTo(ts float64, out []*entry) []*entry {
	n := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].ts > ts
	})
	if n == 0 {
		return out
	}
	out = append(out, q.pending[:n]...)
	last := q.pending[n-1]

	rest := copy(q.pending, q.pending[n:])
	clear(q.pending[rest:])
	q.pending = q.pending[:rest]

	if q.cfg.Recurring > 0 && !q.closed {
		q.insert(last.arg, last.ts+q.cfg.Recurring)
	}
	return out
}

// FlushUpTo drains every request due at or before local time ts without
// posting the event. Recurring queues re-arm as they would on a worker
// wake-up.
func (q *Queue) FlushUpTo(ts float64) []Firing {
	entries := q.flushEntriesUpTo(ts, nil)
	out := make([]Firing, len(entries))
	for i, e := range entries {
		out[i] = Firing{Arg: e.arg, Ts: e.ts}
		q.timer.worker.pool.put(e)
	}
	return out
}

// NextPending returns the earliest pending local timestamp, or +Inf when the
// queue is empty.
func (q *Queue) NextPending() float64 {
	if len(q.pending) == 0 {
		return math.Inf(1)
	}
	return q.pending[0].ts
}

// Pending returns the number of pending requests.
func (q *Queue) Pending() int {
	return len(q.pending)
}

// Withdraw removes every pending request whose argument equals arg,
// including firings the worker deferred while the queue was busy. Firings
// already handed to Post are not affected. Returns the number removed.
func (q *Queue) Withdraw(arg any) int {
	kept := q.pending[:0]
	removed := 0
	for _, e := range q.pending {
		if sameArg(e.arg, arg) {
			q.timer.worker.pool.put(e)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(q.pending[len(kept):])
	q.pending = kept
	return removed + q.timer.worker.withdrawDeferred(q, arg)
}

// Clear drops every pending request.
func (q *Queue) Clear() {
	for _, e := range q.pending {
		q.timer.worker.pool.put(e)
	}
	clear(q.pending)
	q.pending = q.pending[:0]
}

// Close drops pending requests and unbinds the queue from its timer.
// Requests on a closed queue are rejected. Firings already deferred by the
// worker are discarded at its next wake-up.
func (q *Queue) Close() {
	if q.closed {
		return
	}
	q.Clear()
	q.closed = true
	q.timer.removeQueue(q)
}

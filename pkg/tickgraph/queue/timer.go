package queue

import (
	"math"
	"slices"
)

// Timer is a named time source owned by a Worker. Every Queue is bound to
// exactly one Timer, and requests on that queue are expressed in the timer's
// local time.
//
// A timer can be paused. While paused its local time is frozen and none of
// its queues fire. Resuming shifts the timer's local time so that the pause
// is invisible to the queues: a request due 2s from now is still due 2s of
// unpaused time from now.
//
// Timer is NOT safe for concurrent use. Use it from the worker's goroutine.
type Timer struct {
	name   string
	worker *Worker
	queues []*Queue

	paused      bool
	pausedAt    float64 // shared time the current pause began
	pausedTotal float64 // shared seconds spent paused, excluding the current pause
}

func newTimer(name string, w *Worker) *Timer {
	return &Timer{name: name, worker: w}
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Worker returns the worker that owns the timer.
func (t *Timer) Worker() *Worker {
	return t.worker
}

// Queues returns the queues bound to the timer, in creation order.
func (t *Timer) Queues() []*Queue {
	return slices.Clone(t.queues)
}

// Now returns the timer's local time in seconds.
func (t *Timer) Now() float64 {
	if t.paused {
		return t.pausedAt - t.pausedTotal
	}
	return t.worker.clock.Now() - t.pausedTotal
}

// ToShared maps a local timestamp into the worker's shared time domain.
// It returns +Inf while the timer is paused.
func (t *Timer) ToShared(local float64) float64 {
	if t.paused {
		return math.Inf(1)
	}
	return local + t.pausedTotal
}

// Paused reports whether the timer is paused.
func (t *Timer) Paused() bool {
	return t.paused
}

// Pause freezes the timer. Pausing a paused timer is a no-op.
func (t *Timer) Pause() {
	if t.paused {
		return
	}
	t.pausedAt = t.worker.clock.Now()
	t.paused = true
}

// Resume unfreezes the timer and re-arms the worker for its earliest
// pending request, or immediately when firings of its queues were deferred
// while it was paused. Resuming a running timer is a no-op.
func (t *Timer) Resume() {
	if !t.paused {
		return
	}
	now := t.worker.clock.Now()
	t.pausedTotal += now - t.pausedAt
	t.pausedAt = 0
	t.paused = false
	if t.worker.hasDeferred(t) {
		t.worker.schedule(now)
		return
	}
	t.worker.schedule(t.nextShared())
}

// nextShared is the earliest pending request across the timer's queues,
// in shared time.
func (t *Timer) nextShared() float64 {
	next := math.Inf(1)
	for _, q := range t.queues {
		if ts := t.ToShared(q.NextPending()); ts < next {
			next = ts
		}
	}
	return next
}

func (t *Timer) addQueue(q *Queue) {
	t.queues = append(t.queues, q)
}

func (t *Timer) removeQueue(q *Queue) {
	if i := slices.Index(t.queues, q); i >= 0 {
		t.queues = slices.Delete(t.queues, i, i+1)
	}
}

// String returns the timer name.
func (t *Timer) String() string {
	return t.name
}

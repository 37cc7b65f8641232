// Package queue schedules event firings on pausable timers.
//
// A Worker owns a shared clock and a set of named Timers. Each Timer keeps
// its own local time, which stops while the timer is paused. A Queue binds
// one event to one timer and holds the firings requested for it, sorted by
// local timestamp.
//
// On every wake-up the worker collects the due firings of all unpaused
// timers, orders them by shared time and then by arrival, and posts them.
// A queue whose previous firing returned an unsettled continuation is busy:
// its firings are deferred until the continuation settles.
//
// Drive a worker either with Run, which owns a real host timer, or manually
// with PollOnce on a ManualClock:
//
//	clock := queue.NewManualClock(0)
//	w := queue.New(queue.WithClock(clock))
//	q := queue.NewQueue(frame, w.DefaultTimer(), queue.QueueConfig{})
//	q.RequestIn(nil, 0, false)
//
//	for deadline, ok := w.Deadline(); ok; deadline, ok = w.Deadline() {
//		clock.Set(deadline)
//		_ = w.PollOnce(ctx)
//	}
package queue

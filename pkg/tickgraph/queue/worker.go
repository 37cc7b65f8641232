package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph"
	tgerrors "github.com/randalmurphal/tickgraph/pkg/tickgraph/errors"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/journal"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/observability"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/registry"
)

// DefaultTimerName is the name of the timer every worker starts with.
const DefaultTimerName = "default"

// Worker multiplexes the queues of all its timers onto one host timer.
//
// On every wake-up the worker collects the due firings of every queue,
// orders them by shared timestamp, posts their events one at a time and arms
// the host timer for the earliest remaining request. A queue whose previous
// post is still pending has its firings deferred until the continuation
// settles.
//
// Worker is NOT safe for concurrent use, with two exceptions: Submit and
// Close may be called from any goroutine. Everything else, including every
// Timer and Queue method, belongs on the goroutine running Run (or the test
// driving PollOnce).
type Worker struct {
	runID   string
	clock   Clock
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	journal journal.Store
	retry   tgerrors.RetryConfig
	onError func(error)

	timers       []*Timer
	timersByName *registry.Registry[string, *Timer]
	defaultTimer *Timer

	pool     entryPool
	scratch  []*entry
	deferred []*entry
	inflight map[*Queue]*tickgraph.Continuation
	seq      uint64
	errs     []error

	armed   float64 // +Inf when disarmed
	polling bool
	closed  bool
	stats   Stats

	taskMu sync.Mutex
	tasks  []func()
	wake   chan struct{}

	lifeMu  sync.Mutex
	running bool
	closing atomic.Bool
}

// Stats counts worker activity since creation.
type Stats struct {
	Wakeups   uint64 `json:"wakeups"`
	Posts     uint64 `json:"posts"`
	Failures  uint64 `json:"failures"`
	Deferrals uint64 `json:"deferrals"`
	Arms      uint64 `json:"arms"`
}

// New creates a worker with a default real-time timer.
func New(opts ...Option) *Worker {
	w := &Worker{
		runID:        uuid.New().String(),
		clock:        NewRealClock(),
		logger:       slog.Default(),
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
		retry:        tgerrors.JournalRetry,
		timersByName: registry.New[string, *Timer](),
		inflight:     make(map[*Queue]*tickgraph.Continuation),
		armed:        math.Inf(1),
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.onError == nil {
		w.onError = func(err error) {
			observability.LogPollError(w.logger, w.runID, err)
		}
	}

	w.defaultTimer, _ = w.NewTimer(DefaultTimerName)
	return w
}

// RunID returns the worker's run identifier.
func (w *Worker) RunID() string {
	return w.runID
}

// Clock returns the shared time source.
func (w *Worker) Clock() Clock {
	return w.clock
}

// DefaultTimer returns the timer created with the worker. Its local time is
// the shared time.
func (w *Worker) DefaultTimer() *Timer {
	return w.defaultTimer
}

// NewTimer creates a named timer. Names are unique per worker.
func (w *Worker) NewTimer(name string) (*Timer, error) {
	t := newTimer(name, w)
	if err := w.timersByName.Add(name, t); err != nil {
		return nil, fmt.Errorf("new timer: %w", err)
	}
	w.timers = append(w.timers, t)
	return t, nil
}

// Timer looks up a timer by name.
func (w *Worker) Timer(name string) (*Timer, bool) {
	return w.timersByName.Get(name)
}

// Timers returns every timer in creation order.
func (w *Worker) Timers() []*Timer {
	return slices.Clone(w.timers)
}

// Deadline returns the armed wake-up time in shared seconds.
// ok is false when nothing is pending.
func (w *Worker) Deadline() (deadline float64, ok bool) {
	return w.armed, !math.IsInf(w.armed, 1)
}

// Stats returns activity counters.
func (w *Worker) Stats() Stats {
	return w.stats
}

// Busy reports whether q has a pending continuation holding back its
// firings.
func (w *Worker) Busy(q *Queue) bool {
	_, ok := w.inflight[q]
	return ok
}

// Deferred returns the number of firings held back by pending
// continuations.
func (w *Worker) Deferred() int {
	return len(w.deferred)
}

// Submit hands fn to the worker goroutine. It is safe to call from any
// goroutine; continuation settlements use it to get back onto the worker.
func (w *Worker) Submit(fn func()) error {
	if w.closing.Load() {
		return ErrWorkerClosed
	}
	w.taskMu.Lock()
	w.tasks = append(w.tasks, fn)
	w.taskMu.Unlock()
	w.notify()
	return nil
}

// RunPending runs submitted tasks on the calling goroutine and returns how
// many ran. Run does this on its own; call it when driving the worker
// manually with PollOnce.
func (w *Worker) RunPending() int {
	n := 0
	for {
		w.taskMu.Lock()
		tasks := w.tasks
		w.tasks = nil
		w.taskMu.Unlock()
		if len(tasks) == 0 {
			return n
		}
		for _, fn := range tasks {
			w.runTask(fn)
		}
		n += len(tasks)
	}
}

func (w *Worker) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.onError(&tickgraph.PanicError{
				Behavior: "task",
				Value:    r,
				Stack:    string(debug.Stack()),
			})
		}
	}()
	fn()
}

func (w *Worker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// schedule arms the host timer for deadline if it is strictly earlier than
// the armed one. During a wake-up the deadline is recomputed at the end, so
// requests made by behaviors do not arm anything.
func (w *Worker) schedule(deadline float64) {
	if w.polling || w.closed || math.IsNaN(deadline) || deadline >= w.armed {
		return
	}
	w.armed = deadline
	w.stats.Arms++
	observability.LogArm(w.logger, deadline)
	w.notify()
}

// PollOnce performs one wake-up:
//
//  1. disarm and drop the previous wake-up's errors
//  2. for every unpaused timer, collect the due firings of its queues
//  3. add deferred firings whose queue is no longer busy and whose timer is
//     not paused
//  4. order the firings by shared timestamp, then arrival
//  5. post each firing; a firing of a busy queue is deferred instead
//  6. arm the host timer for the earliest pending request
//  7. return the failures of this wake-up as a *PollError
//
// Settled-continuation tasks run before step 2.
func (w *Worker) PollOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if w.closed {
		return ErrWorkerClosed
	}
	if w.polling {
		return ErrReentrantPoll
	}

	w.polling = true
	w.armed = math.Inf(1)
	w.errs = w.errs[:0]
	w.stats.Wakeups++
	w.RunPending()
	wakeAt := w.clock.Now()

	due := w.scratch[:0]
	for _, t := range w.timers {
		if t.paused {
			continue
		}
		now := t.Now()
		for _, q := range t.queues {
			if !q.onBeginPoll(now) {
				continue
			}
			start := len(due)
			due = q.flushEntriesUpTo(now, due)
			for _, e := range due[start:] {
				w.seq++
				e.seq = w.seq
				e.shared = t.ToShared(e.ts)
			}
		}
	}

	held := w.deferred[:0]
	for _, e := range w.deferred {
		switch {
		case e.queue.closed:
			w.pool.put(e)
		case w.Busy(e.queue), e.queue.timer.paused:
			held = append(held, e)
		default:
			due = append(due, e)
		}
	}
	clear(w.deferred[len(held):])
	w.deferred = held

	slices.SortFunc(due, func(a, b *entry) int {
		if c := cmp.Compare(a.shared, b.shared); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	count := len(due)
	wakeCtx, span := w.spans.StartWakeSpan(ctx, w.runID, count)
	for _, e := range due {
		q := e.queue
		switch {
		case q.closed:
			w.pool.put(e)
		case w.Busy(q):
			w.deferFiring(wakeCtx, e, wakeAt)
		default:
			w.fire(wakeCtx, e, wakeAt)
			w.pool.put(e)
		}
	}
	clear(due)
	w.scratch = due[:0]

	w.polling = false
	next := math.Inf(1)
	for _, t := range w.timers {
		next = math.Min(next, t.nextShared())
	}
	// A timer resumed by a behavior releases its deferred firings right away.
	for _, e := range w.deferred {
		if !w.Busy(e.queue) && !e.queue.timer.paused {
			next = math.Min(next, wakeAt)
			break
		}
	}
	w.schedule(next)

	w.metrics.RecordWake(wakeCtx, count)
	observability.LogWake(w.logger, w.runID, wakeAt, count, len(w.deferred))

	if len(w.errs) > 0 {
		err := &PollError{RunID: w.runID, Errors: slices.Clone(w.errs)}
		w.spans.EndSpanWithError(span, err)
		return err
	}
	w.spans.EndSpanWithError(span, nil)
	return nil
}

func (w *Worker) deferFiring(ctx context.Context, e *entry, wakeAt float64) {
	name := e.queue.event.Name()
	w.deferred = append(w.deferred, e)
	w.stats.Deferrals++
	w.metrics.RecordDeferral(ctx, name)
	w.spans.AddSpanEvent(ctx, "firing.deferred",
		attribute.String("event.name", name),
		attribute.String("timer.name", e.queue.timer.name),
		attribute.Float64("firing.ts", e.ts),
	)
	observability.LogDeferred(w.logger, name, e.ts)
	if !e.held {
		e.held = true
		w.record(ctx, e.queue, e.shared, wakeAt, journal.OutcomeDeferred, nil)
	}
}

// hasDeferred reports whether a firing of a queue on t is held back.
func (w *Worker) hasDeferred(t *Timer) bool {
	for _, e := range w.deferred {
		if e.queue.timer == t {
			return true
		}
	}
	return false
}

// withdrawDeferred drops the deferred firings of q whose argument equals
// arg. Returns the number dropped.
func (w *Worker) withdrawDeferred(q *Queue, arg any) int {
	kept := w.deferred[:0]
	removed := 0
	for _, e := range w.deferred {
		if e.queue == q && sameArg(e.arg, arg) {
			w.pool.put(e)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(w.deferred[len(kept):])
	w.deferred = kept
	return removed
}

// fire posts one firing and records its outcome. A continuation returned
// next to behavior failures still marks the queue busy.
func (w *Worker) fire(ctx context.Context, e *entry, wakeAt float64) {
	q := e.queue
	w.stats.Posts++

	cont, err := q.event.Post(ctx, e.arg)
	outcome := journal.OutcomeDone
	switch {
	case cont == nil:
	case cont.IsSettled():
		if cerr := cont.Err(); cerr != nil && err != nil {
			err = errors.Join(err, cerr)
		} else if cerr != nil {
			err = cerr
		}
	default:
		w.track(q, cont, e.ts)
		outcome = journal.OutcomePending
	}

	if err != nil {
		err = &QueueError{Event: q.event.Name(), Timer: q.timer.name, Ts: e.ts, Err: err}
		w.errs = append(w.errs, err)
		w.stats.Failures++
		outcome = journal.OutcomeFailed
	}
	w.record(ctx, q, e.shared, wakeAt, outcome, err)
}

// track marks q busy until c settles. Settlement is handed back to the
// worker goroutine, which releases the queue and asks for an immediate
// wake-up so deferred firings go out.
func (w *Worker) track(q *Queue, c *tickgraph.Continuation, ts float64) {
	w.inflight[q] = c
	c.Then(func(err error) {
		_ = w.Submit(func() {
			if w.inflight[q] == c {
				delete(w.inflight, q)
			}
			if err != nil {
				w.stats.Failures++
				w.onError(&QueueError{Event: q.event.Name(), Timer: q.timer.name, Ts: ts, Err: err})
			}
			w.schedule(w.clock.Now())
		})
	})
}

// record appends a journal record, retrying transient store errors until
// ctx is done.
func (w *Worker) record(ctx context.Context, q *Queue, scheduled, firedAt float64, outcome journal.Outcome, err error) {
	if w.journal == nil {
		return
	}
	rec := journal.Record{
		RunID:     w.runID,
		Event:     q.event.Name(),
		Timer:     q.timer.name,
		Scheduled: scheduled,
		FiredAt:   firedAt,
		Outcome:   outcome,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	res := tgerrors.WithRetryContext(ctx, w.retry, func(context.Context) (int64, error) {
		return w.journal.Append(rec)
	})
	if res.Err != nil {
		observability.LogJournalError(w.logger, rec.Event, res.Err)
	}
}

// Run drives the worker until ctx is done or Close is called.
//
// It owns the single host timer. Structural failures (dependency cycles and
// conflicts) end Run with the error; every other failure goes to the error
// handler and scheduling continues.
func (w *Worker) Run(ctx context.Context) error {
	w.lifeMu.Lock()
	switch {
	case w.closing.Load():
		w.lifeMu.Unlock()
		return ErrWorkerClosed
	case w.running:
		w.lifeMu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.lifeMu.Unlock()

	host := time.NewTimer(time.Hour)
	host.Stop()
	defer func() {
		host.Stop()
		w.lifeMu.Lock()
		w.running = false
		if w.closing.Load() {
			_ = w.shutdown()
		}
		w.lifeMu.Unlock()
	}()

	hostAt := math.Inf(1)
	for {
		w.RunPending()
		if w.closing.Load() {
			return nil
		}
		if w.armed < hostAt {
			hostAt = w.armed
			host.Reset(w.untilShared(hostAt))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		case <-host.C:
			hostAt = math.Inf(1)
			if err := w.PollOnce(ctx); err != nil {
				if tgerrors.IsFatal(err) {
					return err
				}
				w.onError(err)
			}
		}
	}
}

// untilShared converts a shared deadline into a host timer delay.
func (w *Worker) untilShared(deadline float64) time.Duration {
	d := deadline - w.clock.Now()
	if d <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(d * float64(time.Second)))
}

// Close shuts the worker down. Pending requests and deferred firings are
// dropped, outstanding continuations are forgotten and the journal is
// closed. If Run is active it returns nil after finishing its current step.
//
// Close is safe to call from any goroutine and more than once.
func (w *Worker) Close() error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if !w.closing.CompareAndSwap(false, true) {
		return nil
	}
	if w.running {
		w.notify()
		return nil
	}
	return w.shutdown()
}

func (w *Worker) shutdown() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.armed = math.Inf(1)

	for _, t := range w.timers {
		for _, q := range t.queues {
			q.Clear()
		}
	}
	for _, e := range w.deferred {
		w.pool.put(e)
	}
	clear(w.deferred)
	w.deferred = w.deferred[:0]
	clear(w.inflight)

	w.taskMu.Lock()
	w.tasks = nil
	w.taskMu.Unlock()

	if w.journal != nil {
		return w.journal.Close()
	}
	return nil
}

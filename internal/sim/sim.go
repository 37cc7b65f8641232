// Package sim runs scheduling scenarios against a queue worker on a manual
// clock.
//
// A run jumps straight from one interesting moment to the next: the armed
// wake-up, a scripted request or pause, or the settlement of a pending
// continuation. Nothing sleeps, so a run is deterministic and its trace can
// be compared against golden files.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph"
	tgerrors "github.com/randalmurphal/tickgraph/pkg/tickgraph/errors"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/journal"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/queue"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/registry"
)

// DefaultMaxWakeups bounds a run whose behaviors keep requesting firings at
// the current instant.
const DefaultMaxWakeups = 100_000

// Options configures a run.
type Options struct {
	// Journal receives the worker's firing records. Default: a MemoryStore.
	// The run closes it.
	Journal journal.Store

	// Logger is passed to the worker and every event. Default: discard.
	Logger *slog.Logger

	// MaxWakeups aborts the run after this many polls.
	// Default: DefaultMaxWakeups.
	MaxWakeups int
}

// Invocation is one behavior run observed by the simulator.
type Invocation struct {
	At       float64 `json:"at"`
	Event    string  `json:"event"`
	Behavior string  `json:"behavior"`
	Arg      any     `json:"arg,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	Scenario    string           `json:"scenario"`
	End         float64          `json:"end"`
	Invocations []Invocation     `json:"invocations"`
	Errors      []string         `json:"errors,omitempty"`
	Stats       queue.Stats      `json:"stats"`
	Journal     []journal.Record `json:"journal"`
}

// action is a scripted or pending step applied at shared time at.
type action struct {
	at  float64
	run func()
}

// runner holds the state of one run.
type runner struct {
	sc     *Scenario
	clock  *queue.ManualClock
	worker *queue.Worker
	logger *slog.Logger

	behaviors *registry.Registry[string, *tickgraph.Behavior]
	events    *registry.Registry[string, *tickgraph.Event]
	queues    *registry.Registry[string, *queue.Queue]

	// actions is kept sorted by time; equal times keep insertion order.
	actions []action
	result  *Result
}

// Run executes sc until its duration has elapsed or nothing is left to do.
//
// Behavior failures are collected in the result. A dependency cycle or
// conflict ends the run with an error alongside the partial result.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	if opts.Journal == nil {
		opts.Journal = journal.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxWakeups <= 0 {
		opts.MaxWakeups = DefaultMaxWakeups
	}

	r := &runner{
		sc:        sc,
		clock:     queue.NewManualClock(0),
		logger:    opts.Logger,
		behaviors: registry.New[string, *tickgraph.Behavior](),
		events:    registry.New[string, *tickgraph.Event](),
		queues:    registry.New[string, *queue.Queue](),
		result:    &Result{Scenario: sc.Name},
	}
	r.worker = queue.New(
		queue.WithClock(r.clock),
		queue.WithLogger(opts.Logger),
		queue.WithJournal(opts.Journal),
		queue.WithRunID(sc.Name),
		queue.WithErrorHandler(r.collect),
	)
	defer r.worker.Close()

	if err := r.build(); err != nil {
		return nil, err
	}
	r.script()

	err := r.loop(ctx, opts.MaxWakeups)

	r.result.End = r.clock.Now()
	r.result.Stats = r.worker.Stats()
	records, listErr := opts.Journal.List(sc.Name)
	if listErr != nil && err == nil {
		err = fmt.Errorf("read journal: %w", listErr)
	}
	r.result.Journal = records
	return r.result, err
}

// build creates timers, behaviors, events and queues.
func (r *runner) build() error {
	for _, name := range r.sc.Timers {
		if _, err := r.worker.NewTimer(name); err != nil {
			return err
		}
	}

	for _, spec := range r.sc.Behaviors {
		b := tickgraph.NewBehavior(spec.Name, r.behaviorFunc(spec))
		if spec.Disabled {
			b.Disable()
		}
		r.behaviors.Register(spec.Name, b)
	}
	for _, spec := range r.sc.Behaviors {
		b := r.behaviors.MustGet(spec.Name)
		for _, name := range spec.After {
			if err := b.AddDependency(r.behaviors.MustGet(name), tickgraph.After); err != nil {
				return err
			}
		}
		for _, name := range spec.Before {
			if err := b.AddDependency(r.behaviors.MustGet(name), tickgraph.Before); err != nil {
				return err
			}
		}
	}

	for _, spec := range r.sc.Events {
		ev := tickgraph.NewEvent(spec.Name, tickgraph.WithLogger(r.logger))
		for _, name := range spec.Behaviors {
			ev.AddBehavior(r.behaviors.MustGet(name))
		}
		r.events.Register(spec.Name, ev)
	}

	for _, spec := range r.sc.Queues {
		timer, ok := r.worker.Timer(spec.Timer)
		if !ok {
			return fmt.Errorf("%w: unknown timer %q", ErrInvalidScenario, spec.Timer)
		}
		r.queues.Register(spec.Event, queue.NewQueue(r.events.MustGet(spec.Event), timer, spec.Policy))
	}
	return nil
}

// behaviorFunc records every invocation and applies the spec's failure and
// settlement settings.
func (r *runner) behaviorFunc(spec BehaviorSpec) tickgraph.BehaviorFunc {
	return func(ctx context.Context, ev *tickgraph.Event, arg any) (tickgraph.Outcome, error) {
		now := r.clock.Now()
		tickgraph.LoggerFrom(ctx).Debug("behavior invoked", slog.Float64("at", now), slog.Any("arg", arg))
		r.result.Invocations = append(r.result.Invocations, Invocation{
			At:       now,
			Event:    ev.Name(),
			Behavior: spec.Name,
			Arg:      arg,
		})
		if spec.Fail {
			return tickgraph.Done(), fmt.Errorf("%s failed at %.3f", spec.Name, now)
		}
		if spec.Settle > 0 {
			c := tickgraph.NewContinuation()
			r.schedule(now+spec.Settle, func() { c.Settle(nil) })
			return tickgraph.Pending(c), nil
		}
		return tickgraph.Done(), nil
	}
}

// script turns requests and pauses into actions.
func (r *runner) script() {
	for _, req := range r.sc.Requests {
		req := req // per-iteration copy (pre-Go 1.22 loop semantics)
		r.schedule(req.Issue, func() {
			q := r.queues.MustGet(req.Event)
			dedupe := req.Dedupe || q.Config().Dedupe
			if req.HasAt {
				q.RequestBy(req.Arg, req.At, dedupe)
				return
			}
			q.RequestIn(req.Arg, req.In, req.AllowEarlier)
		})
	}
	for _, p := range r.sc.Pauses {
		timer, _ := r.worker.Timer(p.Timer)
		r.schedule(p.At, timer.Pause)
		if p.Resume > 0 {
			r.schedule(p.Resume, timer.Resume)
		}
	}
}

func (r *runner) schedule(at float64, fn func()) {
	i, _ := slices.BinarySearchFunc(r.actions, at, func(a action, t float64) int {
		if a.at <= t {
			return -1
		}
		return 1
	})
	r.actions = slices.Insert(r.actions, i, action{at: at, run: fn})
}

func (r *runner) nextAction() float64 {
	if len(r.actions) == 0 {
		return math.Inf(1)
	}
	return r.actions[0].at
}

// runActions applies every action due at or before now, including actions
// added while running them.
func (r *runner) runActions(now float64) {
	for len(r.actions) > 0 && r.actions[0].at <= now {
		a := r.actions[0]
		r.actions = r.actions[1:]
		a.run()
	}
}

// loop advances the clock from one moment to the next until the scenario's
// duration is exceeded.
func (r *runner) loop(ctx context.Context, maxWakeups int) error {
	polls := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.worker.RunPending()

		next := r.nextAction()
		if deadline, ok := r.worker.Deadline(); ok {
			next = math.Min(next, deadline)
		}
		if math.IsInf(next, 1) || next > r.sc.Duration {
			return nil
		}
		if next > r.clock.Now() {
			r.clock.Set(next)
		}
		now := r.clock.Now()

		r.runActions(now)
		r.worker.RunPending()

		deadline, ok := r.worker.Deadline()
		if !ok || deadline > now {
			continue
		}
		if polls++; polls > maxWakeups {
			return fmt.Errorf("run %s: more than %d wake-ups by t=%.3f", r.sc.Name, maxWakeups, now)
		}
		if err := r.worker.PollOnce(ctx); err != nil {
			if tgerrors.IsFatal(err) {
				return err
			}
			r.collect(err)
		}
	}
}

// collect records a failure the run survives.
func (r *runner) collect(err error) {
	var pollErr *queue.PollError
	if errors.As(err, &pollErr) {
		for _, e := range pollErr.Errors {
			r.result.Errors = append(r.result.Errors, e.Error())
		}
		return
	}
	r.result.Errors = append(r.result.Errors, err.Error())
}

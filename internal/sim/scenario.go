package sim

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/config"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/queue"
)

// Scenario describes a scheduling run on a virtual clock.
//
// Behaviors are declared once and listed by name in every event they join.
// Each event gets one queue; requests and pauses are actions applied at a
// given shared time.
type Scenario struct {
	Name string

	// Duration is the virtual time, in seconds, after which the run stops.
	Duration float64

	// Timers lists extra named timers. The worker's default timer always
	// exists.
	Timers []string

	Behaviors []BehaviorSpec
	Events    []EventSpec
	Queues    []QueueSpec
	Requests  []RequestSpec
	Pauses    []PauseSpec
}

// BehaviorSpec declares a behavior and its ordering edges.
type BehaviorSpec struct {
	Name   string
	After  []string
	Before []string

	// Settle makes the behavior return a continuation that settles this many
	// virtual seconds after the invocation. Zero completes synchronously.
	Settle float64

	// Fail makes every invocation return an error.
	Fail bool

	Disabled bool
}

// EventSpec declares an event and its members in registration order.
type EventSpec struct {
	Name      string
	Behaviors []string
}

// QueueSpec binds an event to a timer.
type QueueSpec struct {
	Event  string
	Timer  string
	Policy queue.QueueConfig
}

// RequestSpec is a firing request issued at shared time Issue.
// With HasAt it is a RequestBy at local time At, otherwise a RequestIn with
// delay In.
type RequestSpec struct {
	Event        string
	Arg          any
	Issue        float64
	At           float64
	HasAt        bool
	In           float64
	AllowEarlier bool
	Dedupe       bool
}

// PauseSpec pauses a timer at shared time At and resumes it at Resume.
// A zero Resume leaves the timer paused.
type PauseSpec struct {
	Timer  string
	At     float64
	Resume float64
}

// ErrInvalidScenario is wrapped by every scenario validation error.
var ErrInvalidScenario = errors.New("invalid scenario")

// LoadScenario reads a scenario from a YAML or JSON file.
func LoadScenario(path string) (*Scenario, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	return ParseScenario(cfg)
}

// ReadScenario reads a scenario document from r. JSON is accepted as YAML.
func ReadScenario(r io.Reader) (*Scenario, error) {
	cfg, err := config.FromReader(r, config.FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(cfg)
}

// ParseScenario decodes and validates a scenario document.
//
// Keys:
//   - name: string (default "scenario")
//   - duration: seconds or duration string (required, > 0)
//   - timers: list of timer names
//   - behaviors: list of {name, after, before, settle, fail, disabled}
//   - events: list of {name, behaviors}
//   - queues: list of {event, timer, min_gap, recurring, dedupe}
//   - requests: list of {event, arg, issue, at | in, allow_earlier, dedupe}
//   - pauses: list of {timer, at, resume}
func ParseScenario(cfg config.Config) (*Scenario, error) {
	sc := &Scenario{
		Name:     cfg.String("name", "scenario"),
		Duration: cfg.Seconds("duration", 0),
		Timers:   cfg.StringSlice("timers", nil),
	}

	for _, b := range cfg.List("behaviors") {
		sc.Behaviors = append(sc.Behaviors, BehaviorSpec{
			Name:     b.String("name", ""),
			After:    b.StringSlice("after", nil),
			Before:   b.StringSlice("before", nil),
			Settle:   b.Seconds("settle", 0),
			Fail:     b.Bool("fail", false),
			Disabled: b.Bool("disabled", false),
		})
	}
	for _, e := range cfg.List("events") {
		sc.Events = append(sc.Events, EventSpec{
			Name:      e.String("name", ""),
			Behaviors: e.StringSlice("behaviors", nil),
		})
	}
	for _, q := range cfg.List("queues") {
		sc.Queues = append(sc.Queues, QueueSpec{
			Event:  q.String("event", ""),
			Timer:  q.String("timer", queue.DefaultTimerName),
			Policy: queue.ConfigFrom(q),
		})
	}
	for _, r := range cfg.List("requests") {
		sc.Requests = append(sc.Requests, RequestSpec{
			Event:        r.String("event", ""),
			Arg:          r.Any("arg", nil),
			Issue:        r.Seconds("issue", 0),
			At:           r.Seconds("at", 0),
			HasAt:        r.Has("at"),
			In:           r.Seconds("in", 0),
			AllowEarlier: r.Bool("allow_earlier", false),
			Dedupe:       r.Bool("dedupe", false),
		})
	}
	for _, p := range cfg.List("pauses") {
		sc.Pauses = append(sc.Pauses, PauseSpec{
			Timer:  p.String("timer", ""),
			At:     p.Seconds("at", 0),
			Resume: p.Seconds("resume", 0),
		})
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks names and references. It does not detect dependency
// cycles; those surface when the run posts the event.
func (sc *Scenario) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...)))
	}

	if !(sc.Duration > 0) || math.IsInf(sc.Duration, 1) {
		invalid("duration must be a positive number of seconds")
	}

	timers := map[string]bool{queue.DefaultTimerName: true}
	for _, name := range sc.Timers {
		if timers[name] {
			invalid("duplicate timer %q", name)
		}
		timers[name] = true
	}

	behaviors := make(map[string]bool)
	for _, b := range sc.Behaviors {
		if b.Name == "" {
			invalid("behavior without a name")
			continue
		}
		if behaviors[b.Name] {
			invalid("duplicate behavior %q", b.Name)
		}
		behaviors[b.Name] = true
	}
	for _, b := range sc.Behaviors {
		for _, dep := range append(append([]string(nil), b.After...), b.Before...) {
			if !behaviors[dep] {
				invalid("behavior %q depends on unknown behavior %q", b.Name, dep)
			}
		}
	}

	events := make(map[string]bool)
	for _, e := range sc.Events {
		if e.Name == "" {
			invalid("event without a name")
			continue
		}
		if events[e.Name] {
			invalid("duplicate event %q", e.Name)
		}
		events[e.Name] = true
		for _, b := range e.Behaviors {
			if !behaviors[b] {
				invalid("event %q lists unknown behavior %q", e.Name, b)
			}
		}
	}

	queued := make(map[string]bool)
	for _, q := range sc.Queues {
		switch {
		case !events[q.Event]:
			invalid("queue for unknown event %q", q.Event)
		case queued[q.Event]:
			invalid("second queue for event %q", q.Event)
		case !timers[q.Timer]:
			invalid("queue %q uses unknown timer %q", q.Event, q.Timer)
		}
		queued[q.Event] = true
	}

	for i, r := range sc.Requests {
		if !queued[r.Event] {
			invalid("request %d targets event %q without a queue", i, r.Event)
		}
	}
	for _, p := range sc.Pauses {
		if !timers[p.Timer] {
			invalid("pause of unknown timer %q", p.Timer)
		}
		if p.Resume != 0 && p.Resume < p.At {
			invalid("timer %q resumes at %.3f before pausing at %.3f", p.Timer, p.Resume, p.At)
		}
	}

	return errors.Join(errs...)
}

package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newManualWorker creates a worker on a manual clock starting at 0.
func newManualWorker(t *testing.T, opts ...Option) (*Worker, *ManualClock) {
	t.Helper()
	clock := NewManualClock(0)
	opts = append([]Option{WithClock(clock), WithLogger(discardLogger()), WithRunID("test-run")}, opts...)
	w := New(opts...)
	t.Cleanup(func() { _ = w.Close() })
	return w, clock
}

// firingLog records "event:arg" for each invocation.
type firingLog struct {
	entries []string
}

func (l *firingLog) add(ev *tickgraph.Event, arg any) {
	l.entries = append(l.entries, fmt.Sprintf("%s:%v", ev.Name(), arg))
}

// recordingEvent creates an event with one behavior appending to log.
func recordingEvent(name string, log *firingLog) *tickgraph.Event {
	ev := tickgraph.NewEvent(name, tickgraph.WithLogger(discardLogger()))
	ev.AddBehavior(tickgraph.NewBehavior("record", func(_ context.Context, ev *tickgraph.Event, arg any) (tickgraph.Outcome, error) {
		log.add(ev, arg)
		return tickgraph.Done(), nil
	}))
	return ev
}

// failingEvent creates an event whose only behavior returns err.
func failingEvent(name string, err error) *tickgraph.Event {
	ev := tickgraph.NewEvent(name, tickgraph.WithLogger(discardLogger()))
	ev.AddBehavior(tickgraph.NewBehavior("fail", func(context.Context, *tickgraph.Event, any) (tickgraph.Outcome, error) {
		return tickgraph.Done(), err
	}))
	return ev
}

// firingTimes extracts the timestamps of flushed firings.
func firingTimes(firings []Firing) []float64 {
	out := make([]float64, len(firings))
	for i, f := range firings {
		out[i] = f.Ts
	}
	return out
}

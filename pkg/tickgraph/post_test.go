package tickgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPost_DependencyOrder tests that behaviors run in resolved order and
// receive the event and argument.
func TestPost_DependencyOrder(t *testing.T) {
	var tracker []string
	a := makeTrackingBehavior("A", &tracker)
	b := makeTrackingBehavior("B", &tracker, RunsAfter(a))
	c := makeTrackingBehavior("C", &tracker, RunsBefore(a))
	ev := quietEvent("tick", a, b, c)

	cont, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, cont)
	assert.Equal(t, []string{"C", "A", "B"}, tracker)
}

// TestPost_PassesEventAndArg tests the invocation arguments.
func TestPost_PassesEventAndArg(t *testing.T) {
	var (
		gotEvent *Event
		gotArg   any
	)
	ev := quietEvent("tick", NewBehavior("b", func(_ context.Context, e *Event, arg any) (Outcome, error) {
		gotEvent, gotArg = e, arg
		return Done(), nil
	}))

	_, err := ev.Post(context.Background(), 0.016)
	require.NoError(t, err)
	assert.Same(t, ev, gotEvent)
	assert.Equal(t, 0.016, gotArg)
}

// TestPost_NilContext tests that a nil context is tolerated.
func TestPost_NilContext(t *testing.T) {
	var got context.Context
	ev := quietEvent("tick", NewBehavior("b", func(ctx context.Context, _ *Event, _ any) (Outcome, error) {
		got = ctx
		return Done(), nil
	}))

	//nolint:staticcheck // nil context is part of the contract
	_, err := ev.Post(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// TestPost_SkipsDisabled tests that disabled behaviors do not run.
func TestPost_SkipsDisabled(t *testing.T) {
	var tracker []string
	a := makeTrackingBehavior("a", &tracker)
	b := makeTrackingBehavior("b", &tracker)
	ev := quietEvent("tick", a, b)

	a.Disable()
	_, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tracker)

	a.Enable()
	_, err = ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "b"}, tracker)
}

// TestPost_DisableDuringFanOut tests that toggling a sibling mid fan-out only
// affects the next post.
func TestPost_DisableDuringFanOut(t *testing.T) {
	var tracker []string
	late := makeTrackingBehavior("late", &tracker)
	first := NewBehavior("first", func(context.Context, *Event, any) (Outcome, error) {
		tracker = append(tracker, "first")
		late.Disable()
		return Done(), nil
	}, RunsBefore(late))
	ev := quietEvent("tick", late, first)

	_, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "late"}, tracker)

	tracker = nil
	_, err = ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, tracker)
}

// TestPost_CollectsFailures tests that a failing behavior does not stop its
// siblings and every failure is reported.
func TestPost_CollectsFailures(t *testing.T) {
	var tracker []string
	errA := errors.New("a broke")
	errC := errors.New("c broke")

	a := makeFailingBehavior("a", errA)
	b := makeTrackingBehavior("b", &tracker, RunsAfter(a))
	c := makeFailingBehavior("c", errC, RunsAfter(b))
	ev := quietEvent("tick", a, b, c)

	cont, err := ev.Post(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, cont)
	assert.Equal(t, []string{"b"}, tracker)

	assert.ErrorIs(t, err, ErrBehaviorFailure)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)

	var failures *BehaviorFailures
	require.ErrorAs(t, err, &failures)
	require.Len(t, failures.Errors, 2)
	assert.Equal(t, "tick", failures.Event)

	var behaviorErr *BehaviorError
	require.ErrorAs(t, failures.Errors[0], &behaviorErr)
	assert.Equal(t, "a", behaviorErr.Behavior)
	assert.Equal(t, "event tick: behavior a: a broke", behaviorErr.Error())
	assert.Contains(t, err.Error(), "2 behaviors failed")
}

// TestPost_SingleFailureMessage tests that one failure is reported as is.
func TestPost_SingleFailureMessage(t *testing.T) {
	ev := quietEvent("tick", makeFailingBehavior("a", errors.New("boom")))

	_, err := ev.Post(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "event tick: behavior a: boom", err.Error())
}

// TestPost_RecoversPanics tests that a panicking behavior becomes a
// *PanicError and its siblings still run.
func TestPost_RecoversPanics(t *testing.T) {
	var tracker []string
	p := makePanicBehavior("p", "oops")
	after := makeTrackingBehavior("after", &tracker, RunsAfter(p))
	ev := quietEvent("tick", p, after)

	_, err := ev.Post(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"after"}, tracker)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "tick", panicErr.Event)
	assert.Equal(t, "p", panicErr.Behavior)
	assert.Equal(t, "oops", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.ErrorIs(t, err, ErrBehaviorFailure)
}

// TestPost_CycleInvokesNothing tests that a cyclic event fails before any
// behavior runs.
func TestPost_CycleInvokesNothing(t *testing.T) {
	var tracker []string
	a := makeTrackingBehavior("a", &tracker)
	b := makeTrackingBehavior("b", &tracker, RunsAfter(a))
	require.NoError(t, a.AddDependency(b, After))
	ev := quietEvent("tick", a, b)

	cont, err := ev.Post(context.Background(), nil)
	assert.ErrorIs(t, err, ErrGraphCycle)
	assert.Nil(t, cont)
	assert.Empty(t, tracker)
}

// TestPost_PendingOutcomes tests that pending continuations are combined.
func TestPost_PendingOutcomes(t *testing.T) {
	c1 := NewContinuation()
	c2 := NewContinuation()
	ev := quietEvent("tick",
		makePendingBehavior("one", c1),
		NewBehavior("sync", noop),
		makePendingBehavior("two", c2),
	)

	cont, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, cont)
	assert.False(t, cont.IsSettled())

	c1.Settle(nil)
	assert.False(t, cont.IsSettled())
	c2.Settle(errors.New("write failed"))
	assert.True(t, cont.IsSettled())
	assert.EqualError(t, cont.Err(), "write failed")
}

// TestPost_SinglePendingOutcome tests that a lone continuation is returned
// as is.
func TestPost_SinglePendingOutcome(t *testing.T) {
	c := NewContinuation()
	ev := quietEvent("tick", makePendingBehavior("one", c))

	cont, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, c, cont)
}

// TestPost_FailureWithPending tests that failures are reported alongside
// the continuations of the behaviors that did not fail.
func TestPost_FailureWithPending(t *testing.T) {
	slow := NewContinuation()
	ev := quietEvent("tick",
		makePendingBehavior("slow", slow),
		makeFailingBehavior("bad", errors.New("boom")),
	)

	cont, err := ev.Post(context.Background(), nil)
	var failures *BehaviorFailures
	require.ErrorAs(t, err, &failures)
	assert.Len(t, failures.Errors, 1)

	require.NotNil(t, cont)
	assert.False(t, cont.IsSettled())
	slow.Settle(nil)
	assert.True(t, cont.IsSettled())
	assert.NoError(t, cont.Err())
}

// TestPost_FailureWithoutPending tests that a failed post with no pending
// work returns no continuation.
func TestPost_FailureWithoutPending(t *testing.T) {
	ev := quietEvent("tick", makeFailingBehavior("bad", errors.New("boom")))

	cont, err := ev.Post(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, cont)
}

// TestLoggerFrom tests that behaviors get a logger carrying their names.
func TestLoggerFrom(t *testing.T) {
	var buf bytes.Buffer
	ev := NewEvent("tick", WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	ev.AddBehavior(NewBehavior("physics", func(ctx context.Context, _ *Event, _ any) (Outcome, error) {
		LoggerFrom(ctx).Info("stepping")
		return Done(), nil
	}))

	_, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"stepping"`)
	assert.Contains(t, out, `"event":"tick"`)
	assert.Contains(t, out, `"behavior":"physics"`)

	assert.Same(t, slog.Default(), LoggerFrom(context.Background()))
}

// TestPost_EmptyEvent tests posting an event with no behaviors.
func TestPost_EmptyEvent(t *testing.T) {
	cont, err := quietEvent("tick").Post(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, cont)
}

// TestPost_MembershipChangeDuringFanOut tests that adding a behavior from
// inside a fan-out takes effect on the next post.
func TestPost_MembershipChangeDuringFanOut(t *testing.T) {
	var tracker []string
	added := makeTrackingBehavior("added", &tracker)
	ev := quietEvent("tick")
	ev.AddBehavior(NewBehavior("adder", func(_ context.Context, e *Event, _ any) (Outcome, error) {
		tracker = append(tracker, "adder")
		e.AddBehavior(added)
		return Done(), nil
	}))

	_, err := ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"adder"}, tracker)

	tracker = nil
	_, err = ev.Post(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"adder", "added"}, tracker)
}

// testLogHandler captures log records as JSON lines.
type testLogHandler struct {
	buf *bytes.Buffer
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{"level": r.Level.String(), "msg": r.Message}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *testLogHandler) WithGroup(string) slog.Handler      { return h }

func (h *testLogHandler) messages() []string {
	var out []string
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		var m map[string]any
		if len(line) > 0 && json.Unmarshal(line, &m) == nil {
			out = append(out, m["msg"].(string))
		}
	}
	return out
}

// TestPost_Logging tests the log records written for a failing post.
func TestPost_Logging(t *testing.T) {
	h := &testLogHandler{buf: &bytes.Buffer{}}
	ev := NewEvent("tick", WithLogger(slog.New(h)))
	ev.AddBehavior(makeFailingBehavior("bad", errors.New("boom")))

	_, _ = ev.Post(context.Background(), nil)

	msgs := h.messages()
	assert.Contains(t, msgs, "behavior order recomputed")
	assert.Contains(t, msgs, "behavior failed")
	assert.Contains(t, msgs, "event posted")
}

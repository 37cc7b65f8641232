package tickgraph

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/observability"
)

// Post fires the event synchronously.
//
// Every behavior enabled at the time the order is resolved is invoked with
// (ctx, e, arg) in dependency order. A failing or panicking behavior never
// stops the fan-out; its error is collected and the remaining behaviors run.
//
// Results:
//   - (nil, err) with err a *CycleError if the order cannot be resolved
//   - (c, err) with err a *BehaviorFailures if any behavior failed; c is
//     non-nil when other behaviors returned pending outcomes
//   - (c, nil) if behaviors returned pending outcomes; c settles once all of
//     them have settled
//   - (nil, nil) if all work completed synchronously
//
// Callers that track in-flight work must hold on to c even when err is
// non-nil.
func (e *Event) Post(ctx context.Context, arg any) (*Continuation, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	order, err := e.resolve()
	if err != nil {
		return nil, err
	}

	// Enable/disable during the fan-out applies to the next post only.
	runnable := make([]*Behavior, 0, len(order))
	for _, b := range order {
		if b.enabled {
			runnable = append(runnable, b)
		}
	}

	start := time.Now()
	postCtx, span := e.spans.StartPostSpan(ctx, e.name)

	var (
		errs  []error
		conts []*Continuation
	)
	for _, b := range runnable {
		outcome, err := e.invoke(postCtx, b, arg)
		if err != nil {
			observability.LogBehaviorError(e.logger, e.name, b.name, err)
			errs = append(errs, err)
			continue
		}
		if c, ok := outcome.Continuation(); ok {
			conts = append(conts, c)
		}
	}

	duration := time.Since(start)
	e.metrics.RecordPost(postCtx, e.name, duration, len(errs) > 0)
	observability.LogPost(e.logger, e.name, len(runnable), len(conts), float64(duration.Microseconds())/1000)

	var pending *Continuation
	if len(conts) > 0 {
		pending = All(conts...)
	}

	if len(errs) > 0 {
		failure := &BehaviorFailures{Event: e.name, Errors: errs}
		e.spans.EndSpanWithError(span, failure)
		return pending, failure
	}
	e.spans.EndSpanWithError(span, nil)
	return pending, nil
}

// invoke runs a single behavior with panic recovery.
func (e *Event) invoke(ctx context.Context, b *Behavior, arg any) (outcome Outcome, err error) {
	bctx, span := e.spans.StartBehaviorSpan(ctx, e.name, b.name)
	bctx = context.WithValue(bctx, loggerKey{}, observability.EnrichLogger(e.logger, e.name, b.name))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome = Done()
			err = &PanicError{
				Event:    e.name,
				Behavior: b.name,
				Value:    r,
				Stack:    string(debug.Stack()),
			}
		}
		e.metrics.RecordBehavior(bctx, e.name, b.name, time.Since(start), err)
		e.spans.EndSpanWithError(span, err)
	}()

	outcome, err = b.fn(bctx, e, arg)
	if err != nil {
		return Done(), &BehaviorError{
			Event:    e.name,
			Behavior: b.name,
			Err:      err,
		}
	}
	return outcome, nil
}

type loggerKey struct{}

// LoggerFrom returns the logger of the behavior invocation running under
// ctx. It carries the event and behavior names. Outside an invocation it
// returns slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

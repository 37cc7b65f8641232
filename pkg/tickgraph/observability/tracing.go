package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the tickgraph tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("tickgraph")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartWakeSpan starts a span covering one worker wake-up.
	// Post spans of the firings handled by the wake-up are its children.
	StartWakeSpan(ctx context.Context, runID string, due int) (context.Context, trace.Span)

	// StartPostSpan starts a span covering one event fan-out.
	StartPostSpan(ctx context.Context, event string) (context.Context, trace.Span)

	// StartBehaviorSpan starts a span for one behavior invocation.
	// The behavior span should be a child of the post span.
	StartBehaviorSpan(ctx context.Context, event, behavior string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartWakeSpan starts a span for a worker wake-up.
func (m *otelSpanManager) StartWakeSpan(ctx context.Context, runID string, due int) (context.Context, trace.Span) {
	return StartWakeSpan(ctx, runID, due)
}

// StartPostSpan starts a span for an event fan-out.
func (m *otelSpanManager) StartPostSpan(ctx context.Context, event string) (context.Context, trace.Span) {
	return StartPostSpan(ctx, event)
}

// StartBehaviorSpan starts a span for a behavior invocation.
func (m *otelSpanManager) StartBehaviorSpan(ctx context.Context, event, behavior string) (context.Context, trace.Span) {
	return StartBehaviorSpan(ctx, event, behavior)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartWakeSpan starts a span for a worker wake-up.
// Uses the global OTel tracer.
func StartWakeSpan(ctx context.Context, runID string, due int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tickgraph.wake",
		trace.WithAttributes(
			attribute.String("worker.run_id", runID),
			attribute.Int("worker.due", due),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPostSpan starts a span for an event fan-out.
// Uses the global OTel tracer.
func StartPostSpan(ctx context.Context, event string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tickgraph.post",
		trace.WithAttributes(
			attribute.String("event.name", event),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartBehaviorSpan starts a span for a behavior invocation.
// Uses the global OTel tracer.
func StartBehaviorSpan(ctx context.Context, event, behavior string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tickgraph.behavior."+behavior,
		trace.WithAttributes(
			attribute.String("event.name", event),
			attribute.String("behavior.name", behavior),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

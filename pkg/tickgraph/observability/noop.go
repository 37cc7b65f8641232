package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordBehavior does nothing.
func (NoopMetrics) RecordBehavior(_ context.Context, _, _ string, _ time.Duration, _ error) {}

// RecordPost does nothing.
func (NoopMetrics) RecordPost(_ context.Context, _ string, _ time.Duration, _ bool) {}

// RecordWake does nothing.
func (NoopMetrics) RecordWake(_ context.Context, _ int) {}

// RecordDeferral does nothing.
func (NoopMetrics) RecordDeferral(_ context.Context, _ string) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
var noopSpan = noop.Span{}

// StartWakeSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartWakeSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartPostSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartPostSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartBehaviorSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartBehaviorSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}

package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records tickgraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordBehavior records one behavior invocation and its error status.
	RecordBehavior(ctx context.Context, event, behavior string, duration time.Duration, err error)

	// RecordPost records a completed event fan-out.
	RecordPost(ctx context.Context, event string, duration time.Duration, failed bool)

	// RecordWake records a worker wake-up and how many firings were due.
	RecordWake(ctx context.Context, due int)

	// RecordDeferral records a firing deferred by backpressure.
	RecordDeferral(ctx context.Context, event string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	invocations metric.Int64Counter
	errors      metric.Int64Counter
	latency     metric.Float64Histogram
	postLatency metric.Float64Histogram
	posts       metric.Int64Counter
	wakeups     metric.Int64Counter
	dueFirings  metric.Int64Histogram
	deferrals   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("tickgraph")

	invocations, err := meter.Int64Counter("tickgraph.behavior.invocations",
		metric.WithDescription("Number of behavior invocations"),
	)
	if err != nil {
		return nil, err
	}

	behaviorErrors, err := meter.Int64Counter("tickgraph.behavior.errors",
		metric.WithDescription("Number of failed behavior invocations"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("tickgraph.behavior.latency_ms",
		metric.WithDescription("Behavior invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	postLatency, err := meter.Float64Histogram("tickgraph.post.latency_ms",
		metric.WithDescription("Event fan-out latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	posts, err := meter.Int64Counter("tickgraph.event.posts",
		metric.WithDescription("Number of event posts"),
	)
	if err != nil {
		return nil, err
	}

	wakeups, err := meter.Int64Counter("tickgraph.worker.wakeups",
		metric.WithDescription("Number of worker wake-ups"),
	)
	if err != nil {
		return nil, err
	}

	dueFirings, err := meter.Int64Histogram("tickgraph.worker.due",
		metric.WithDescription("Firings due per wake-up"),
	)
	if err != nil {
		return nil, err
	}

	deferrals, err := meter.Int64Counter("tickgraph.worker.deferrals",
		metric.WithDescription("Firings deferred by an unsettled continuation"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		invocations: invocations,
		errors:      behaviorErrors,
		latency:     latency,
		postLatency: postLatency,
		posts:       posts,
		wakeups:     wakeups,
		dueFirings:  dueFirings,
		deferrals:   deferrals,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordBehavior records a behavior invocation.
func (m *otelMetrics) RecordBehavior(ctx context.Context, event, behavior string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("behavior", behavior),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// RecordPost records an event fan-out.
func (m *otelMetrics) RecordPost(ctx context.Context, event string, duration time.Duration, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.Bool("failed", failed),
	)
	m.posts.Add(ctx, 1, attrs)
	m.postLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordWake records a worker wake-up.
func (m *otelMetrics) RecordWake(ctx context.Context, due int) {
	m.wakeups.Add(ctx, 1)
	m.dueFirings.Record(ctx, int64(due))
}

// RecordDeferral records a deferred firing.
func (m *otelMetrics) RecordDeferral(ctx context.Context, event string) {
	m.deferrals.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

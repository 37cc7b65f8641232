package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordBehavior(ctx, "tick", "b", time.Millisecond, errors.New("x"))
		m.RecordPost(ctx, "tick", time.Millisecond, true)
		m.RecordWake(ctx, 3)
		m.RecordDeferral(ctx, "tick")
	})
}

func TestNoopSpanManager(t *testing.T) {
	var m SpanManager = NoopSpanManager{}
	ctx := context.Background()

	wakeCtx, wake := m.StartWakeSpan(ctx, "run", 1)
	assert.Equal(t, ctx, wakeCtx, "context is passed through")
	assert.False(t, wake.IsRecording())

	postCtx, post := m.StartPostSpan(ctx, "tick")
	assert.Equal(t, ctx, postCtx)

	behaviorCtx, behavior := m.StartBehaviorSpan(ctx, "tick", "b")
	assert.Equal(t, ctx, behaviorCtx)

	assert.NotPanics(t, func() {
		m.AddSpanEvent(ctx, "event", attribute.Int("n", 1))
		m.EndSpanWithError(behavior, errors.New("x"))
		m.EndSpanWithError(post, nil)
		m.EndSpanWithError(wake, nil)
	})
}

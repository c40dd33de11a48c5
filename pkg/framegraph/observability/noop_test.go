package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordFrames(ctx, 0, 10)
		m.RecordStage(ctx, 0, "streaming", time.Second, errors.New("x"))
		m.RecordNodeError(ctx, "n")
		m.RecordRun(ctx, "failed", time.Second)
		m.RecordSpill(ctx, "s", 1)
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	runCtx, span := sm.StartRunSpan(ctx, "g", "r")
	assert.Equal(t, ctx, runCtx)
	assert.False(t, span.IsRecording())

	stageCtx, stageSpan := sm.StartStageSpan(ctx, 0, "batch", 1)
	assert.Equal(t, ctx, stageCtx)
	assert.NotPanics(t, func() {
		sm.AddSpanEvent(stageCtx, "e")
		sm.EndSpanWithError(stageSpan, errors.New("x"))
	})
}

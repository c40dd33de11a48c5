package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a test meter provider and returns its reader.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue totals an Int64 sum metric across data points.
func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordFramesAndStage(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFrames(ctx, 0, 100)
	m.RecordFrames(ctx, 0, 20)
	m.RecordStage(ctx, 0, "streaming", 30*time.Millisecond, nil)
	m.RecordStage(ctx, 1, "batch", 5*time.Millisecond, errors.New("fail"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(120), sumValue(t, findMetric(rm, "framegraph.stage.frames")))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "framegraph.stage.runs")))

	latency := findMetric(rm, "framegraph.stage.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)

	runs := findMetric(rm, "framegraph.stage.runs")
	sum := runs.Data.(metricdata.Sum[int64])
	var failed int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("success")); ok && !v.AsBool() {
			failed += dp.Value
		}
	}
	assert.Equal(t, int64(1), failed)
}

func TestRecordRunNodeErrorAndSpill(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRun(ctx, "completed", time.Second)
	m.RecordRun(ctx, "cancelled", time.Second)
	m.RecordNodeError(ctx, "gamma")
	m.RecordSpill(ctx, "track.video", 2048)
	m.RecordSpill(ctx, "track.video", 1024)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "framegraph.runs")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "framegraph.node.errors")))
	assert.Equal(t, int64(3072), sumValue(t, findMetric(rm, "framegraph.spill.bytes")))
	assert.NotNil(t, findMetric(rm, "framegraph.run.latency_ms"))
}

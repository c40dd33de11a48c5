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

// MetricsRecorder records framegraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordFrames records frames pulled through a streaming stage.
	RecordFrames(ctx context.Context, stage int, frames int64)

	// RecordStage records a stage completion with its duration and error status.
	RecordStage(ctx context.Context, stage int, mode string, duration time.Duration, err error)

	// RecordNodeError records a node behavior failure.
	RecordNodeError(ctx context.Context, nodeID string)

	// RecordRun records a run completion. Status is completed, failed or cancelled.
	RecordRun(ctx context.Context, status string, duration time.Duration)

	// RecordSpill records bytes written to the spill store.
	RecordSpill(ctx context.Context, stream string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	frames       metric.Int64Counter
	stageRuns    metric.Int64Counter
	stageLatency metric.Float64Histogram
	nodeErrors   metric.Int64Counter
	runs         metric.Int64Counter
	runLatency   metric.Float64Histogram
	spillSize    metric.Int64Counter
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
	meter := otel.Meter("framegraph")

	frames, err := meter.Int64Counter("framegraph.stage.frames",
		metric.WithDescription("Number of frames pulled through streaming stages"),
	)
	if err != nil {
		return nil, err
	}

	stageRuns, err := meter.Int64Counter("framegraph.stage.runs",
		metric.WithDescription("Number of executed stages"),
	)
	if err != nil {
		return nil, err
	}

	stageLatency, err := meter.Float64Histogram("framegraph.stage.latency_ms",
		metric.WithDescription("Stage execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("framegraph.node.errors",
		metric.WithDescription("Number of node behavior failures"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("framegraph.runs",
		metric.WithDescription("Number of graph runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("framegraph.run.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	spillSize, err := meter.Int64Counter("framegraph.spill.bytes",
		metric.WithDescription("Bytes written to the spill store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		frames:       frames,
		stageRuns:    stageRuns,
		stageLatency: stageLatency,
		nodeErrors:   nodeErrors,
		runs:         runs,
		runLatency:   runLatency,
		spillSize:    spillSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
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

// RecordFrames records streamed frames.
func (m *otelMetrics) RecordFrames(ctx context.Context, stage int, frames int64) {
	m.frames.Add(ctx, frames, metric.WithAttributes(attribute.Int("stage", stage)))
}

// RecordStage records a stage execution.
func (m *otelMetrics) RecordStage(ctx context.Context, stage int, mode string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.Int("stage", stage),
		attribute.String("mode", mode),
		attribute.Bool("success", err == nil),
	)
	m.stageRuns.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordNodeError records a node failure.
func (m *otelMetrics) RecordNodeError(ctx context.Context, nodeID string) {
	m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordRun records a run.
func (m *otelMetrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordSpill records spilled bytes.
func (m *otelMetrics) RecordSpill(ctx context.Context, stream string, sizeBytes int64) {
	m.spillSize.Add(ctx, sizeBytes, metric.WithAttributes(attribute.String("stream", stream)))
}

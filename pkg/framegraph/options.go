package framegraph

import (
	"log/slog"

	"github.com/randalmurphal/framegraph/pkg/framegraph/event"
	"github.com/randalmurphal/framegraph/pkg/framegraph/observability"
	"github.com/randalmurphal/framegraph/pkg/framegraph/spill"
)

// runConfig holds configuration for plan execution.
type runConfig struct {
	runID            string
	progressInterval int

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool

	spillStore spill.Store
	spillCodec spill.Codec

	bus event.Bus
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		progressInterval: 100,
		metrics:          observability.NoopMetrics{},
		spans:            observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithRunID sets the run identifier used in logs, events and spill keys.
// Default: the Context's RunID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithProgressInterval sets how often, in frames, a streaming stage logs and
// publishes progress. Default: 100
func WithProgressInterval(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.progressInterval = n
		}
	}
}

// WithObservabilityLogger sets the logger for run and stage events.
// Default: the Context's logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics.
// The global meter provider must be configured before the run.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and each stage.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpill stores materialized frame streams in store instead of memory.
// Frames are encoded with codec; a nil codec stores []byte payloads as-is.
//
// Example:
//
//	store, _ := spill.NewSQLiteStore("/scratch/spill.db")
//	result, err := plan.Run(ctx, framegraph.WithSpill(store, media.ImageCodec{}))
func WithSpill(store spill.Store, codec spill.Codec) RunOption {
	return func(c *runConfig) {
		c.spillStore = store
		if codec == nil {
			codec = spill.BytesCodec{}
		}
		c.spillCodec = codec
	}
}

// WithEventBus publishes run and stage events to bus.
func WithEventBus(bus event.Bus) RunOption {
	return func(c *runConfig) {
		c.bus = bus
	}
}

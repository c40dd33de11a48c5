// Package observability provides structured logging, metrics and tracing
// for framegraph runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All helpers accept a nil logger, and every recorder has a no-op
// implementation for runs that do not want the overhead.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run, stage and node context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", 1, "tracker")
//	enriched.Info("lost feature") // includes run_id, stage, node_id
func EnrichLogger(logger *slog.Logger, runID string, stage int, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("stage", stage),
		slog.String("node_id", nodeID),
	)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, runID string, stages int) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.Int("stages", stages),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, frames int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("frames", frames),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, stage int) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stage", stage),
	)
}

// LogRunCancelled logs a run stopped by its caller.
func LogRunCancelled(logger *slog.Logger, runID string, stage, frame int) {
	if logger == nil {
		return
	}
	logger.Warn("run cancelled",
		slog.String("run_id", runID),
		slog.Int("stage", stage),
		slog.Int("frame", frame),
	)
}

// LogStageStart logs the start of a stage.
func LogStageStart(logger *slog.Logger, stage int, mode string, nodes []string) {
	if logger == nil {
		return
	}
	logger.Info("stage starting",
		slog.Int("stage", stage),
		slog.String("mode", mode),
		slog.Any("nodes", nodes),
	)
}

// LogStageComplete logs successful stage completion.
func LogStageComplete(logger *slog.Logger, stage, frames int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("stage completed",
		slog.Int("stage", stage),
		slog.Int("frames", frames),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStageError logs stage failure.
func LogStageError(logger *slog.Logger, stage int, err error) {
	if logger == nil {
		return
	}
	logger.Error("stage failed",
		slog.Int("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogStageSkipped logs a stage that never ran.
func LogStageSkipped(logger *slog.Logger, stage int) {
	if logger == nil {
		return
	}
	logger.Debug("stage skipped",
		slog.Int("stage", stage),
	)
}

// LogProgress logs streaming progress.
func LogProgress(logger *slog.Logger, stage, frames int) {
	if logger == nil {
		return
	}
	logger.Info("processed frames",
		slog.Int("stage", stage),
		slog.Int("frames", frames),
	)
}

// LogNodeError logs a node behavior failure.
// Index is -1 for failures outside a per-frame step.
func LogNodeError(logger *slog.Logger, nodeID string, index int, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.Int("frame", index),
		slog.String("error", err.Error()),
	)
}

// LogSpill logs a stream written to the spill store.
func LogSpill(logger *slog.Logger, stream string, frames int, sizeBytes int64) {
	if logger == nil {
		return
	}
	logger.Debug("stream spilled",
		slog.String("stream", stream),
		slog.Int("frames", frames),
		slog.Int64("size_bytes", sizeBytes),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}

package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJSONLogger returns a debug-level JSON logger writing to buf.
func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// records decodes every JSON log line in buf.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds run_id, stage and node_id", func(t *testing.T) {
		var buf bytes.Buffer
		enriched := EnrichLogger(newJSONLogger(&buf), "run-123", 2, "tracker")
		enriched.Info("lost feature")

		recs := records(t, &buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "run-123", recs[0]["run_id"])
		assert.Equal(t, float64(2), recs[0]["stage"]) // JSON decodes ints as float64
		assert.Equal(t, "tracker", recs[0]["node_id"])
		assert.Equal(t, "lost feature", recs[0]["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "run-123", 0, "x"))
	})
}

// TestLogHelpers verifies each helper emits one record with its level and key fields.
func TestLogHelpers(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		check map[string]any
	}{
		{"run start", func(l *slog.Logger) { LogRunStart(l, "r1", 3) }, "INFO", "run starting",
			map[string]any{"run_id": "r1", "stages": float64(3)}},
		{"run complete", func(l *slog.Logger) { LogRunComplete(l, "r1", 12, 40) }, "INFO", "run completed",
			map[string]any{"frames": float64(40), "duration_ms": float64(12)}},
		{"run error", func(l *slog.Logger) { LogRunError(l, "r1", boom, 5, 1) }, "ERROR", "run failed",
			map[string]any{"error": "boom", "stage": float64(1)}},
		{"run cancelled", func(l *slog.Logger) { LogRunCancelled(l, "r1", 0, 17) }, "WARN", "run cancelled",
			map[string]any{"frame": float64(17)}},
		{"stage start", func(l *slog.Logger) { LogStageStart(l, 0, "streaming", []string{"src", "out"}) }, "INFO", "stage starting",
			map[string]any{"mode": "streaming", "nodes": []any{"src", "out"}}},
		{"stage complete", func(l *slog.Logger) { LogStageComplete(l, 1, 10, 3) }, "INFO", "stage completed",
			map[string]any{"stage": float64(1), "frames": float64(10)}},
		{"stage error", func(l *slog.Logger) { LogStageError(l, 2, boom) }, "ERROR", "stage failed",
			map[string]any{"error": "boom"}},
		{"stage skipped", func(l *slog.Logger) { LogStageSkipped(l, 3) }, "DEBUG", "stage skipped",
			map[string]any{"stage": float64(3)}},
		{"progress", func(l *slog.Logger) { LogProgress(l, 0, 100) }, "INFO", "processed frames",
			map[string]any{"frames": float64(100)}},
		{"node error", func(l *slog.Logger) { LogNodeError(l, "gamma", 4, boom) }, "ERROR", "node failed",
			map[string]any{"node_id": "gamma", "frame": float64(4)}},
		{"spill", func(l *slog.Logger) { LogSpill(l, "tracker.video", 9, 1024) }, "DEBUG", "stream spilled",
			map[string]any{"stream": "tracker.video", "size_bytes": float64(1024)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(newJSONLogger(&buf))

			recs := records(t, &buf)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.level, recs[0]["level"])
			assert.Equal(t, tt.msg, recs[0]["msg"])
			for k, v := range tt.check {
				assert.Equal(t, v, recs[0][k], "field %s", k)
			}
		})
	}
}

// TestLogHelpersNilLogger verifies helpers tolerate a nil logger.
func TestLogHelpersNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "r", 1)
		LogRunComplete(nil, "r", 1, 1)
		LogRunError(nil, "r", errors.New("x"), 1, 0)
		LogRunCancelled(nil, "r", 0, 0)
		LogStageStart(nil, 0, "batch", nil)
		LogStageComplete(nil, 0, 0, 0)
		LogStageError(nil, 0, errors.New("x"))
		LogStageSkipped(nil, 0)
		LogProgress(nil, 0, 0)
		LogNodeError(nil, "n", 0, errors.New("x"))
		LogSpill(nil, "s", 0, 0)
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}

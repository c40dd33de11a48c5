package framegraph

import (
	"time"

	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
)

// RunStatus is the outcome of a run.
type RunStatus int

const (
	RunCompleted RunStatus = iota
	RunFailed
	RunCancelled
)

// String returns "completed", "failed" or "cancelled".
func (s RunStatus) String() string {
	switch s {
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	case RunCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StageStatus is the state of one stage.
type StageStatus int

const (
	StagePending StageStatus = iota
	StageRunning
	StageCompleted
	StageFailed
	StageSkipped
)

// String returns the lower-case state name.
func (s StageStatus) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageRunning:
		return "running"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	case StageSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StageReport describes how one stage ran.
type StageReport struct {
	Index  int
	Mode   Capability
	Nodes  []string
	Status StageStatus
	// Frames is the number of iterations of a streaming stage in which at
	// least one node processed its frame, or the number of frames drained by
	// a batch stage.
	Frames   int
	Duration time.Duration
	Err      error
}

// RunResult is the structured outcome of Plan.Run.
type RunResult struct {
	RunID  string
	Status RunStatus
	Stages []StageReport

	// Frames is the total number of streaming iterations across stages.
	Frames int
	// PeakLiveFrames is the largest number of frames held in per-iteration
	// slots at once. It does not grow with stream length.
	PeakLiveFrames int
	// MaterializedFrames counts frames written to recording or drain buffers.
	MaterializedFrames int

	Duration time.Duration
	Err      error
}

// Category classifies Err; CategoryUser for a successful run.
func (r *RunResult) Category() fgerrors.Category {
	if r.Err == nil {
		return fgerrors.CategoryUser
	}
	return fgerrors.Categorize(r.Err)
}

// Stage returns the report for stage i.
func (r *RunResult) Stage(i int) (StageReport, bool) {
	if i < 0 || i >= len(r.Stages) {
		return StageReport{}, false
	}
	return r.Stages[i], true
}

package framegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/framegraph/pkg/framegraph/event"
	"github.com/randalmurphal/framegraph/pkg/framegraph/observability"
	"go.opentelemetry.io/otel/trace"
)

// runner holds the mutable state of one execution of a plan.
type runner struct {
	plan   *Plan
	cfg    *runConfig
	ctx    Context
	runID  string
	logger *slog.Logger

	// artifacts holds non-stream outputs and materialized streams by producer port.
	artifacts map[StreamRef]any
	result    *RunResult
	current   int
}

// Run executes the plan's stages in order.
// A plan runs at most once; a second call returns ErrPlanConsumed.
//
// The returned RunResult is always non-nil when the plan was not already
// consumed. On failure or cancellation its Status and Err describe what
// happened, stages that did not run are Skipped, and the same error is
// returned. Every behavior implementing Closer is closed before Run returns.
//
// Example:
//
//	ctx := framegraph.NewContext(context.Background())
//	result, err := plan.Run(ctx, framegraph.WithProgressInterval(250))
//	if err != nil {
//	    // result.Stages shows which stage failed
//	}
func (p *Plan) Run(ctx Context, opts ...RunOption) (result *RunResult, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !p.consumed.CompareAndSwap(false, true) {
		return nil, ErrPlanConsumed
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}
	logger := cfg.logger
	if logger == nil {
		logger = ctx.Logger()
	}

	r := &runner{
		plan:      p,
		cfg:       &cfg,
		ctx:       ctx,
		runID:     runID,
		logger:    logger,
		artifacts: make(map[StreamRef]any),
		result:    &RunResult{RunID: runID, Stages: make([]StageReport, len(p.Stages))},
		current:   -1,
	}
	for i, s := range p.Stages {
		r.result.Stages[i] = StageReport{Index: s.Index, Mode: s.Mode, Nodes: s.Nodes, Status: StagePending}
	}

	startTime := time.Now()
	observability.LogRunStart(logger, runID, len(p.Stages))
	r.publishRun(event.TypeRunStarted, event.RunPayload{RunID: runID, Stages: len(p.Stages)})

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, p.Name, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	runErr = r.execute(execCtx)

	if err := closeBehaviors(p.Order(), p.nodes); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if cfg.spillStore != nil {
		if err := cfg.spillStore.DeleteRun(runID); err != nil {
			logger.Warn("spill cleanup failed", slog.String("run_id", runID), slog.String("error", err.Error()))
		}
	}

	res := r.result
	res.Duration = time.Since(startTime)
	res.Err = runErr
	durationMs := float64(res.Duration.Milliseconds())
	switch {
	case runErr == nil:
		res.Status = RunCompleted
		observability.LogRunComplete(logger, runID, durationMs, res.Frames)
	case errors.Is(runErr, ErrCancelled):
		res.Status = RunCancelled
		frame := 0
		if r.current >= 0 {
			frame = res.Stages[r.current].Frames
		}
		observability.LogRunCancelled(logger, runID, r.current, frame)
	default:
		res.Status = RunFailed
		observability.LogRunError(logger, runID, runErr, durationMs, r.current)
	}
	cfg.metrics.RecordRun(execCtx, res.Status.String(), res.Duration)

	payload := event.RunPayload{RunID: runID, Stages: len(p.Stages), Status: res.Status.String(), Frames: res.Frames}
	if runErr != nil {
		payload.Error = runErr.Error()
	}
	r.publishRun(event.TypeRunCompleted, payload)

	return res, runErr
}

// execute prepares artifacts and runs each stage, skipping the rest after
// the first failure or cancellation.
func (r *runner) execute(execCtx context.Context) error {
	if err := r.prepare(execCtx); err != nil {
		r.skipFrom(0)
		return err
	}

	for i := range r.plan.Stages {
		if err := execCtx.Err(); err != nil {
			r.skipFrom(i)
			return &CancellationError{Stage: i, Frame: 0, Cause: err}
		}
		r.current = i
		if err := r.runStage(execCtx, i); err != nil {
			r.skipFrom(i + 1)
			return err
		}
	}
	return nil
}

// prepare collects artifacts that exist before any stage, such as source
// properties.
func (r *runner) prepare(execCtx context.Context) error {
	for _, id := range r.plan.Order() {
		n := r.plan.nodes[id]
		pr, ok := n.behavior.(Preparer)
		if !ok {
			continue
		}
		nctx := forNode(execCtx, r.runID, r.logger, r.plan.stageOf[id], id)
		out, err := safeCall(id, func() (Values, error) { return pr.Prepare(nctx) })
		if err != nil {
			return r.nodeFailed(execCtx, id, "prepare", -1, err)
		}
		if err := r.storeArtifacts(n, out, false); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) runStage(execCtx context.Context, i int) error {
	s := &r.plan.Stages[i]
	rep := &r.result.Stages[i]
	rep.Status = StageRunning
	mode := s.Mode.String()

	observability.LogStageStart(r.logger, i, mode, s.Nodes)
	r.publishStage(event.TypeStageStarted, event.StagePayload{RunID: r.runID, Stage: i, Mode: mode, Nodes: s.Nodes})

	stageCtx, span := r.cfg.spans.StartStageSpan(execCtx, i, mode, len(s.Nodes))
	start := time.Now()

	var frames int
	err := r.checkArtifacts(s)
	if err == nil {
		if s.Mode == Batch {
			frames, err = r.runBatch(stageCtx, s)
		} else {
			frames, err = r.runStreaming(stageCtx, s)
		}
	}

	rep.Frames = frames
	rep.Duration = time.Since(start)
	rep.Err = err
	if s.Mode == Streaming {
		r.result.Frames += frames
		r.cfg.metrics.RecordFrames(stageCtx, i, int64(frames))
	}
	r.cfg.spans.EndSpanWithError(span, err)
	r.cfg.metrics.RecordStage(stageCtx, i, mode, rep.Duration, err)

	payload := event.StagePayload{RunID: r.runID, Stage: i, Mode: mode, Nodes: s.Nodes, Frames: frames}
	if err != nil {
		rep.Status = StageFailed
		payload.Error = err.Error()
		observability.LogStageError(r.logger, i, err)
		r.publishStage(event.TypeStageFailed, payload)
		return err
	}
	rep.Status = StageCompleted
	observability.LogStageComplete(r.logger, i, frames, float64(rep.Duration.Milliseconds()))
	r.publishStage(event.TypeStageCompleted, payload)
	return nil
}

// checkArtifacts fails the stage early if a required artifact input was
// never produced.
func (r *runner) checkArtifacts(s *Stage) error {
	for _, id := range s.Nodes {
		n := r.plan.nodes[id]
		for _, p := range n.typ.Inputs {
			ref, bound := n.inputs[p.Name]
			if !bound || !p.Required || p.Kind.IsStream() {
				continue
			}
			if _, ok := r.artifacts[ref]; !ok {
				return &NodeError{
					NodeID: ref.Node,
					Op:     "output",
					Index:  -1,
					Err:    fmt.Errorf("%w: %s needed by %s.%s", ErrMissingOutput, ref, id, p.Name),
				}
			}
		}
	}
	return nil
}

// storeArtifacts keeps the values of declared outputs for later stages.
// Frame-stream outputs are accepted only from batch behaviors and must be
// a Sequence.
func (r *runner) storeArtifacts(n *instance, out Values, allowStreams bool) error {
	for port, v := range out {
		spec, ok := n.typ.Output(port)
		if !ok {
			return &NodeError{NodeID: n.id, Op: "output", Index: -1, Err: fmt.Errorf("undeclared output %q", port)}
		}
		if spec.Kind.IsStream() {
			if !allowStreams {
				continue
			}
			if _, ok := v.(Sequence); !ok {
				return &NodeError{
					NodeID: n.id,
					Op:     "output",
					Index:  -1,
					Err:    fmt.Errorf("frame-stream output %q is %T, want Sequence", port, v),
				}
			}
		}
		r.artifacts[StreamRef{Node: n.id, Port: port}] = v
	}
	return nil
}

func (r *runner) skipFrom(i int) {
	for ; i < len(r.result.Stages); i++ {
		r.result.Stages[i].Status = StageSkipped
		observability.LogStageSkipped(r.logger, i)
		r.publishStage(event.TypeStageSkipped, event.StagePayload{
			RunID: r.runID,
			Stage: i,
			Mode:  r.plan.Stages[i].Mode.String(),
			Nodes: r.plan.Stages[i].Nodes,
		})
	}
}

// nodeFailed wraps a behavior error, logs it and records the metric.
// Panics are returned as PanicError unwrapped.
func (r *runner) nodeFailed(ctx context.Context, nodeID, op string, index int, err error) error {
	var pe *PanicError
	if !errors.As(err, &pe) {
		err = &NodeError{NodeID: nodeID, Op: op, Index: index, Err: err}
	}
	observability.LogNodeError(r.logger, nodeID, index, err)
	r.cfg.metrics.RecordNodeError(ctx, nodeID)
	return err
}

func (r *runner) publishRun(typ string, payload event.RunPayload) {
	if r.cfg.bus == nil {
		return
	}
	r.publish(event.New(typ, "framegraph", payload, event.WithCorrelationID(r.runID)))
}

func (r *runner) publishStage(typ string, payload event.StagePayload) {
	if r.cfg.bus == nil {
		return
	}
	r.publish(event.New(typ, "framegraph", payload, event.WithCorrelationID(r.runID)))
}

// publish delivers even after cancellation so subscribers see the final events.
func (r *runner) publish(evt event.Event) {
	if err := r.cfg.bus.Publish(context.WithoutCancel(r.ctx), evt); err != nil {
		r.logger.Debug("event not published",
			slog.String("type", evt.Type()),
			slog.String("error", err.Error()))
	}
}

// safeCall invokes a behavior method, converting a panic into PanicError.
func safeCall(nodeID string, fn func() (Values, error)) (out Values, err error) {
	defer func() {
		if v := recover(); v != nil {
			out = nil
			err = &PanicError{
				NodeID: nodeID,
				Value:  v,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return fn()
}

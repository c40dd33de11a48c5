package framegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/framegraph/pkg/framegraph/event"
	"github.com/randalmurphal/framegraph/pkg/framegraph/observability"
)

// feed is one live input of a streaming stage: a freshly opened source or
// a replay of a materialized stream.
type feed struct {
	name   string
	owner  string
	handle Handle
	source *instance
	ref    StreamRef
}

// runStreaming drives the pull loop of a streaming stage.
//
// Each iteration pulls one frame from every feed, checks that every node's
// synchronized inputs agree on the index before any node runs, steps the
// nodes in stage order, records streams needed by later stages, and then
// drops all frame references. Returns the number of completed iterations.
func (r *runner) runStreaming(stageCtx context.Context, s *Stage) (frames int, err error) {
	var steps []*instance
	ctxs := make(map[string]*executionContext)
	for _, id := range s.Nodes {
		n := r.plan.nodes[id]
		if n.isSource() {
			continue
		}
		steps = append(steps, n)
		ctxs[id] = forNode(stageCtx, r.runID, r.logger, s.Index, id)
	}

	feeds, err := r.openFeeds(s)
	defer func() {
		for _, f := range feeds {
			if cerr := f.handle.Close(); cerr != nil && err == nil {
				err = &NodeError{NodeID: f.owner, Op: "close", Index: -1, Err: cerr}
			}
		}
	}()
	if err != nil {
		return 0, err
	}

	recorders := make(map[StreamRef]frameBuffer, len(s.Records))
	for _, ref := range s.Records {
		recorders[ref] = r.cfg.newBuffer(r.runID, ref.String())
	}

	slots := make(map[StreamRef]Frame)
	nodeIndex := make(map[string]int, len(steps))

	for len(feeds) > 0 {
		if cerr := stageCtx.Err(); cerr != nil {
			return frames, &CancellationError{Stage: s.Index, Frame: frames, Cause: cerr}
		}

		done, err := r.pull(s, feeds, slots, frames)
		if err != nil {
			return frames, err
		}
		if done {
			break
		}

		if err := r.align(s, steps, slots, nodeIndex, frames); err != nil {
			return frames, err
		}

		stopped, stepped, err := r.stepAll(stageCtx, steps, ctxs, slots, nodeIndex)
		if err != nil {
			return frames, err
		}
		if stopped && stepped == 0 {
			break
		}

		if live := len(slots); live > r.result.PeakLiveFrames {
			r.result.PeakLiveFrames = live
		}
		if err := r.record(s, recorders, slots, frames, stopped); err != nil {
			return frames, err
		}
		clear(slots)

		frames++
		if stopped {
			break
		}
		if frames%r.cfg.progressInterval == 0 {
			observability.LogProgress(r.logger, s.Index, frames)
			r.publishStage(event.TypeStageProgress, event.StagePayload{
				RunID:  r.runID,
				Stage:  s.Index,
				Mode:   s.Mode.String(),
				Frames: frames,
			})
		}
	}

	for _, n := range steps {
		fin, ok := n.behavior.(Finisher)
		if !ok {
			continue
		}
		out, err := safeCall(n.id, func() (Values, error) { return fin.Finish(ctxs[n.id]) })
		if err != nil {
			return frames, r.nodeFailed(stageCtx, n.id, "finish", -1, err)
		}
		if err := r.storeArtifacts(n, out, false); err != nil {
			return frames, err
		}
	}

	for _, ref := range s.Records {
		buf := recorders[ref]
		r.artifacts[ref] = buf
		r.noteSpill(stageCtx, ref.String(), buf)
	}
	return frames, nil
}

// openFeeds opens every source the stage reads at frame 0 and a replay for
// every materialized stream. On error the feeds opened so far are returned
// so the caller can close them.
func (r *runner) openFeeds(s *Stage) ([]*feed, error) {
	var feeds []*feed
	for _, id := range s.Sources {
		src := r.plan.nodes[id]
		h, err := src.source.OpenAt(0)
		if err != nil {
			return feeds, &NodeError{NodeID: id, Op: "open", Index: -1, Err: err}
		}
		feeds = append(feeds, &feed{name: id, owner: id, handle: h, source: src})
	}
	for _, ref := range s.Replays {
		seq, ok := r.artifacts[ref].(Sequence)
		if !ok {
			return feeds, &NodeError{
				NodeID: ref.Node,
				Op:     "output",
				Index:  -1,
				Err:    fmt.Errorf("%w: no frame stream recorded for %s", ErrMissingOutput, ref),
			}
		}
		feeds = append(feeds, &feed{name: ref.String(), owner: ref.Node, handle: Replay(seq), ref: ref})
	}
	return feeds, nil
}

// pull requests the next frame of every feed. It reports done when all
// feeds are exhausted together and TruncatedStreamError when only some are.
func (r *runner) pull(s *Stage, feeds []*feed, slots map[StreamRef]Frame, iter int) (bool, error) {
	var exhausted, live []string
	pulled := make([]Frame, len(feeds))
	for i, f := range feeds {
		fr, err := f.handle.Next()
		if errors.Is(err, ErrExhausted) {
			exhausted = append(exhausted, f.name)
			continue
		}
		if err != nil {
			return false, &NodeError{NodeID: f.owner, Op: "read", Index: iter, Err: err}
		}
		live = append(live, f.name)
		pulled[i] = fr
	}

	if len(exhausted) == len(feeds) {
		return true, nil
	}
	if len(exhausted) > 0 {
		return false, &TruncatedStreamError{Stage: s.Index, Index: iter, Exhausted: exhausted, Live: live}
	}

	for i, f := range feeds {
		if f.source == nil {
			slots[f.ref] = pulled[i]
			continue
		}
		for _, out := range f.source.typ.Outputs {
			if out.Kind.IsStream() && f.source.consumed[out.Name] {
				slots[StreamRef{Node: f.source.id, Port: out.Name}] = pulled[i]
			}
		}
	}
	return false, nil
}

// align computes the frame index each node will process and fails if a
// node's frame-stream inputs disagree. It runs before any node is stepped,
// so no sink sees a frame of a misaligned iteration. A node without
// frame-stream inputs processes the iteration number.
func (r *runner) align(s *Stage, steps []*instance, slots map[StreamRef]Frame, nodeIndex map[string]int, iter int) error {
	for _, n := range steps {
		indices := make(map[string]int)
		for _, p := range n.typ.Inputs {
			ref, bound := n.inputs[p.Name]
			if !bound || !p.Kind.IsStream() {
				continue
			}
			if f, ok := slots[ref]; ok {
				indices[p.Name] = f.Index
			} else if idx, ok := nodeIndex[ref.Node]; ok && r.plan.stageOf[ref.Node] == s.Index {
				indices[p.Name] = idx
			}
		}

		idx, first := iter, true
		for _, v := range indices {
			if first {
				idx, first = v, false
				continue
			}
			if v != idx {
				return &FrameAlignmentError{NodeID: n.id, Stage: s.Index, Indices: indices}
			}
		}
		nodeIndex[n.id] = idx
	}
	return nil
}

// stepAll runs one iteration of every node in stage order.
//
// A node returning ErrExhausted forwards nothing for the iteration and
// ends the stage once the iteration is finished: nodes fed by it in this
// stage skip the index, every other node still processes it. stopped
// reports that a node ended the stage; stepped counts the nodes that
// processed their index.
func (r *runner) stepAll(
	stageCtx context.Context,
	steps []*instance,
	ctxs map[string]*executionContext,
	slots map[StreamRef]Frame,
	nodeIndex map[string]int,
) (stopped bool, stepped int, err error) {
	var skipped map[string]bool
	for _, n := range steps {
		idx := nodeIndex[n.id]
		in := make(Values, len(n.inputs))
		skip := false
		for port, ref := range n.inputs {
			spec, _ := n.typ.Input(port)
			if spec.Kind.IsStream() {
				if skipped[ref.Node] {
					skip = true
					break
				}
				if f, ok := slots[ref]; ok {
					in[port] = f.Data
				}
				continue
			}
			if v, ok := r.artifacts[ref]; ok {
				in[port] = v
			}
		}
		if skip {
			skipped[n.id] = true
			continue
		}

		sb := n.behavior.(StreamingBehavior)
		nctx := ctxs[n.id]
		out, err := safeCall(n.id, func() (Values, error) { return sb.Step(nctx, idx, in) })
		if errors.Is(err, ErrExhausted) {
			r.logger.Debug("node ended stage", "node_id", n.id, "frame", idx)
			if skipped == nil {
				skipped = make(map[string]bool)
			}
			skipped[n.id] = true
			stopped = true
			continue
		}
		if err != nil {
			return stopped, stepped, r.nodeFailed(stageCtx, n.id, "step", idx, err)
		}
		stepped++

		for _, p := range n.typ.Outputs {
			if !p.Kind.IsStream() || !n.consumed[p.Name] {
				continue
			}
			v, ok := out[p.Name]
			if !ok {
				return stopped, stepped, r.nodeFailed(stageCtx, n.id, "step", idx,
					fmt.Errorf("%w: no value for consumed output %q", ErrMissingOutput, p.Name))
			}
			slots[StreamRef{Node: n.id, Port: p.Name}] = Frame{Index: idx, Data: v}
		}
	}
	return stopped, stepped, nil
}

// record appends the iteration's frames to the cross-stage recorders. On
// the iteration that ends the stage the frames are recorded only when every
// recorded stream has one, so later stages replay streams of equal length.
func (r *runner) record(s *Stage, recorders map[StreamRef]frameBuffer, slots map[StreamRef]Frame, iter int, last bool) error {
	for _, ref := range s.Records {
		if _, ok := slots[ref]; ok {
			continue
		}
		if last {
			return nil
		}
		return &InvariantError{Op: "record", Detail: fmt.Sprintf("no frame for %s at iteration %d", ref, iter)}
	}
	for _, ref := range s.Records {
		if err := recorders[ref].Append(slots[ref]); err != nil {
			return err
		}
		r.result.MaterializedFrames++
	}
	return nil
}

// noteSpill logs and records the bytes a buffer wrote to the spill store.
func (r *runner) noteSpill(ctx context.Context, stream string, buf frameBuffer) {
	if size := buf.Size(); size > 0 {
		observability.LogSpill(r.logger, stream, buf.Len(), size)
		r.cfg.metrics.RecordSpill(ctx, stream, size)
	}
}

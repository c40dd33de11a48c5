package framegraph

import (
	"context"
	"errors"
	"fmt"
)

// runBatch materializes the inputs of a batch node and calls Compute once.
//
// Frame-stream inputs from a source are drained from a fresh handle into a
// buffer; streams recorded by earlier stages are passed as they are.
// Returns the number of frames drained.
func (r *runner) runBatch(stageCtx context.Context, s *Stage) (int, error) {
	if len(s.Nodes) != 1 {
		return 0, &InvariantError{Op: "batch", Detail: fmt.Sprintf("stage %d has %d nodes", s.Index, len(s.Nodes))}
	}
	n := r.plan.nodes[s.Nodes[0]]

	in := make(Values, len(n.inputs))
	drained := make(map[string]Sequence)
	total := 0
	for _, p := range n.typ.Inputs {
		ref, bound := n.inputs[p.Name]
		if !bound {
			continue
		}
		if !p.Kind.IsStream() {
			if v, ok := r.artifacts[ref]; ok {
				in[p.Name] = v
			}
			continue
		}

		prod := r.plan.nodes[ref.Node]
		if !prod.isSource() {
			seq, ok := r.artifacts[ref].(Sequence)
			if !ok {
				return total, &NodeError{
					NodeID: ref.Node,
					Op:     "output",
					Index:  -1,
					Err:    fmt.Errorf("%w: no frame stream recorded for %s", ErrMissingOutput, ref),
				}
			}
			in[p.Name] = seq
			continue
		}

		if seq, ok := drained[prod.id]; ok {
			in[p.Name] = seq
			continue
		}
		seq, err := r.drain(stageCtx, s, prod)
		total += seq.Len()
		if err != nil {
			return total, err
		}
		drained[prod.id] = seq
		in[p.Name] = seq
	}

	bb := n.behavior.(BatchBehavior)
	nctx := forNode(stageCtx, r.runID, r.logger, s.Index, n.id)
	out, err := safeCall(n.id, func() (Values, error) { return bb.Compute(nctx, in) })
	if err != nil {
		return total, r.nodeFailed(stageCtx, n.id, "compute", -1, err)
	}
	return total, r.storeArtifacts(n, out, true)
}

// drain reads a source from frame 0 to its end into a buffer.
// The returned sequence is never nil.
func (r *runner) drain(ctx context.Context, s *Stage, src *instance) (seq frameBuffer, err error) {
	seq = r.cfg.newBuffer(r.runID, fmt.Sprintf("%s@%d", src.id, s.Index))

	h, err := src.source.OpenAt(0)
	if err != nil {
		return seq, &NodeError{NodeID: src.id, Op: "open", Index: -1, Err: err}
	}
	defer func() {
		if cerr := h.Close(); cerr != nil && err == nil {
			err = &NodeError{NodeID: src.id, Op: "close", Index: -1, Err: cerr}
		}
	}()

	for {
		if cerr := ctx.Err(); cerr != nil {
			return seq, &CancellationError{Stage: s.Index, Frame: seq.Len(), Cause: cerr}
		}
		f, err := h.Next()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return seq, &NodeError{NodeID: src.id, Op: "read", Index: seq.Len(), Err: err}
		}
		if err := seq.Append(f); err != nil {
			return seq, err
		}
		r.result.MaterializedFrames++
	}

	r.noteSpill(ctx, fmt.Sprintf("%s@%d", src.id, s.Index), seq)
	return seq, nil
}

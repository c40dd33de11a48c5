/*
Package framegraph executes video-processing node graphs with bounded memory.

# Overview

A workflow is a directed acyclic graph of typed nodes: capture, tracking,
transform, compositing and output. Ports carry one DataKind each and an edge
may only connect ports of the same kind. Every node type is either
Streaming, processing one frame index at a time, or Batch, consuming whole
inputs before it emits.

Compile validates the graph, builds node behaviors and splits the nodes into
stages. Run executes the stages in order:

  - A streaming stage pulls one frame from every feed per iteration, steps
    each node in order and forgets the frame before pulling the next.
  - A batch stage drains its inputs, calls Compute once and keeps the result
    for later stages.
  - A stream that has to cross a stage boundary is recorded, in memory or in a
    spill store. A source read by more than one stage is re-opened at frame 0,
    which requires a rewindable source.

# Basic Usage

	types := framegraph.NewTypeRegistry()
	nodes.RegisterBuiltins(types, nodes.Env{})

	g := framegraph.NewGraph(types).
	    AddNode("src", "video_input", map[string]any{"path": "plates/sh010"}).
	    AddNode("track", "feature_tracker", nil).
	    AddNode("stab", "stabilizer", nil).
	    AddNode("warp", "apply_transform", nil).
	    AddNode("out", "video_output", map[string]any{"path": "renders/sh010"}).
	    AddEdge("src", "video", "track", "video").
	    AddEdge("track", "track_data", "stab", "track1").
	    AddEdge("src", "video", "warp", "video_in").
	    AddEdge("stab", "transforms", "warp", "transforms").
	    AddEdge("warp", "video_out", "out", "video")

	plan, err := g.Compile()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(plan)
	// stage 0 streaming: src, track
	// stage 1 batch: stab (after 0)
	// stage 2 streaming: warp, out (after 1; rescans src)

	result, err := plan.Run(framegraph.NewContext(context.Background()))

# Errors

Build and plan errors are collected and joined; use errors.Is with the
sentinels (ErrCycleDetected, ErrTypeMismatch, ErrUnboundInput,
ErrNonRewindableSource, ...) or errors.As with the typed errors to find the
offending element. Run errors are categorized by the errors subpackage as
user, invariant or cancelled, and the RunResult reports each stage's state.

# Cancellation

Cancelling the Context stops a streaming stage before its next pull. Frames
already handed to sinks stay written, the remaining stages are Skipped and the
result status is RunCancelled.
*/
package framegraph

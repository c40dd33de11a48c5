package framegraph

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/stretchr/testify/require"
)

// Behavior adapters

type stepFunc func(ctx Context, index int, in Values) (Values, error)

func (f stepFunc) Step(ctx Context, index int, in Values) (Values, error) { return f(ctx, index, in) }

type computeFunc func(ctx Context, in Values) (Values, error)

func (f computeFunc) Compute(ctx Context, in Values) (Values, error) { return f(ctx, in) }

// Port helpers

func port(name string, kind DataKind) PortSpec {
	return PortSpec{Name: name, Kind: kind, Required: true}
}

func optionalPort(name string, kind DataKind) PortSpec {
	return PortSpec{Name: name, Kind: kind}
}

func ports(p ...PortSpec) []PortSpec { return p }

// Node type builders

func streamType(name string, in, out []PortSpec, step stepFunc) NodeType {
	return NodeType{
		Name:       name,
		Capability: Streaming,
		Inputs:     in,
		Outputs:    out,
		New:        func(config.Config) (Behavior, error) { return step, nil },
	}
}

func batchType(name string, in, out []PortSpec, fn computeFunc) NodeType {
	return NodeType{
		Name:       name,
		Capability: Batch,
		Inputs:     in,
		Outputs:    out,
		New:        func(config.Config) (Behavior, error) { return fn, nil },
	}
}

// passType forwards its frame-stream input unchanged.
func passType(name string) NodeType {
	return streamType(name,
		ports(port("in", KindFrameStream)),
		ports(port("out", KindFrameStream)),
		func(_ Context, _ int, in Values) (Values, error) {
			return Values{"out": in["in"]}, nil
		})
}

// mixType adds two synchronized integer streams.
func mixType() NodeType {
	return streamType("mix",
		ports(port("a", KindFrameStream), port("b", KindFrameStream)),
		ports(port("out", KindFrameStream)),
		func(_ Context, _ int, in Values) (Values, error) {
			return Values{"out": in["a"].(int) + in["b"].(int)}, nil
		})
}

// Test source

// testSource yields n frames whose data equals their position.
// Frame indices are shifted by offset.
type testSource struct {
	mu         sync.Mutex
	n          int
	offset     int
	rewindable bool
	opens      int
	closes     int
}

func newSource(n int, rewindable bool) *testSource {
	return &testSource{n: n, rewindable: rewindable}
}

func (s *testSource) OpenAt(index int) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opens > 0 && !s.rewindable {
		return nil, errors.New("source already opened")
	}
	s.opens++
	return &testHandle{src: s, pos: max(index, 0)}, nil
}

func (s *testSource) Rewindable() bool { return s.rewindable }

func (s *testSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type testHandle struct {
	src *testSource
	pos int
}

func (h *testHandle) Next() (Frame, error) {
	if h.pos >= h.src.n {
		return Frame{}, ErrExhausted
	}
	f := Frame{Index: h.pos + h.src.offset, Data: h.pos}
	h.pos++
	return f, nil
}

func (h *testHandle) Close() error {
	h.src.mu.Lock()
	h.src.closes++
	h.src.mu.Unlock()
	return nil
}

// sourceNode exposes a Source and its properties.
type sourceNode struct {
	src   Source
	props map[string]any
}

func (s *sourceNode) Source() Source { return s.src }

func (s *sourceNode) Prepare(Context) (Values, error) {
	return Values{"props": s.props}, nil
}

func sourceType(name string, src Source) NodeType {
	return NodeType{
		Name:       name,
		Capability: Streaming,
		Outputs:    ports(port("video", KindFrameStream), port("props", KindProperties)),
		New: func(config.Config) (Behavior, error) {
			return &sourceNode{src: src, props: map[string]any{"source": name}}, nil
		},
	}
}

// Test sink

// collector records what a sink node received.
type collector struct {
	mu      sync.Mutex
	indices []int
	data    []any
	closed  int
	onWrite func(index int)
}

func (c *collector) written() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.indices...)
}

func (c *collector) values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.data...)
}

type sinkNode struct{ c *collector }

func (s *sinkNode) Step(_ Context, index int, in Values) (Values, error) {
	s.c.mu.Lock()
	s.c.indices = append(s.c.indices, index)
	s.c.data = append(s.c.data, in["in"])
	hook := s.c.onWrite
	s.c.mu.Unlock()
	if hook != nil {
		hook(index)
	}
	return nil, nil
}

func (s *sinkNode) Close() error {
	s.c.mu.Lock()
	s.c.closed++
	s.c.mu.Unlock()
	return nil
}

func sinkType(name string, c *collector) NodeType {
	return NodeType{
		Name:       name,
		Capability: Streaming,
		Inputs:     ports(port("in", KindFrameStream)),
		New:        func(config.Config) (Behavior, error) { return &sinkNode{c: c}, nil },
	}
}

// Tracking pipeline types: count frames, derive a transform, apply it.

type countNode struct{ n int }

func (c *countNode) Step(_ Context, _ int, _ Values) (Values, error) {
	c.n++
	return nil, nil
}

func (c *countNode) Finish(Context) (Values, error) {
	return Values{"track_data": c.n}, nil
}

func trackerType() NodeType {
	return NodeType{
		Name:       "tracker",
		Capability: Streaming,
		Inputs:     ports(port("video", KindFrameStream)),
		Outputs:    ports(port("track_data", KindTrackData)),
		New:        func(config.Config) (Behavior, error) { return &countNode{}, nil },
	}
}

func stabilizerType() NodeType {
	return batchType("stabilizer",
		ports(port("track", KindTrackData)),
		ports(port("transforms", KindTransformSequence)),
		func(_ Context, in Values) (Values, error) {
			return Values{"transforms": in["track"].(int) * 100}, nil
		})
}

func warpType() NodeType {
	return streamType("warp",
		ports(port("video_in", KindFrameStream), port("transforms", KindTransformSequence)),
		ports(port("video_out", KindFrameStream)),
		func(_ Context, _ int, in Values) (Values, error) {
			return Values{"video_out": in["video_in"].(int) + in["transforms"].(int)}, nil
		})
}

// reverseType is a batch node that reverses a frame stream.
func reverseType() NodeType {
	return batchType("reverse",
		ports(port("in", KindFrameStream)),
		ports(port("out", KindFrameStream)),
		func(_ Context, in Values) (Values, error) {
			seq := in["in"].(Sequence)
			out := make(FrameSlice, seq.Len())
			for i := 0; i < seq.Len(); i++ {
				f, err := seq.Frame(seq.Len() - 1 - i)
				if err != nil {
					return nil, err
				}
				out[i] = Frame{Index: i, Data: f.Data}
			}
			return Values{"out": out}, nil
		})
}

// newTypes registers the given types, failing the test on error.
func newTypes(t *testing.T, types ...NodeType) *TypeRegistry {
	t.Helper()
	reg := NewTypeRegistry()
	for _, nt := range types {
		require.NoError(t, reg.Register(nt))
	}
	return reg
}

// threeStageGraph builds source -> tracker -> stabilizer -> warp -> sink,
// with warp also reading the source.
func threeStageGraph(t *testing.T, src Source, sink *collector) *Graph {
	t.Helper()
	types := newTypes(t, sourceType("source", src), trackerType(), stabilizerType(), warpType(), sinkType("sink", sink))
	return NewGraph(types).
		AddNode("src", "source", nil).
		AddNode("track", "tracker", nil).
		AddNode("stab", "stabilizer", nil).
		AddNode("warp", "warp", nil).
		AddNode("out", "sink", nil).
		AddEdge("src", "video", "track", "video").
		AddEdge("track", "track_data", "stab", "track").
		AddEdge("src", "video", "warp", "video_in").
		AddEdge("stab", "transforms", "warp", "transforms").
		AddEdge("warp", "video_out", "out", "in")
}

// linearGraph builds source -> pass -> sink.
func linearGraph(t *testing.T, src Source, sink *collector) *Graph {
	t.Helper()
	types := newTypes(t, sourceType("source", src), passType("pass"), sinkType("sink", sink))
	return NewGraph(types).
		AddNode("src", "source", nil).
		AddNode("p", "pass", nil).
		AddNode("out", "sink", nil).
		AddEdge("src", "video", "p", "in").
		AddEdge("p", "out", "out", "in")
}

// intCodec spills int payloads as decimal text.
type intCodec struct{}

func (intCodec) Encode(v any) ([]byte, error) {
	n, ok := v.(int)
	if !ok {
		return nil, fmt.Errorf("intCodec: %T", v)
	}
	return []byte(strconv.Itoa(n)), nil
}

func (intCodec) Decode(data []byte) (any, error) {
	return strconv.Atoi(string(data))
}

func mustCompile(t *testing.T, g *Graph) *Plan {
	t.Helper()
	p, err := g.Compile()
	require.NoError(t, err)
	return p
}

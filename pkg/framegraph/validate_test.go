package framegraph

import (
	"errors"
	"testing"

	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationTypes(t *testing.T) *TypeRegistry {
	t.Helper()
	cfgType := passType("blur")
	cfgType.Options = config.Schema{
		{Name: "sigma", Type: config.TypeFloat, Default: 1.0, Min: config.Bound(0)},
	}
	return newTypes(t,
		sourceType("source", newSource(3, true)),
		passType("pass"),
		mixType(),
		cfgType,
		sinkType("sink", &collector{}),
	)
}

// TestValidate_ValidGraph verifies a well-formed graph has no errors.
func TestValidate_ValidGraph(t *testing.T) {
	g := linearGraph(t, newSource(3, true), &collector{})
	res := g.Validate()
	assert.True(t, res.OK())
	assert.NoError(t, res.Err())
	assert.Equal(t, "ok", res.String())
}

// TestValidate_SingleCycle verifies a single cycle yields exactly one
// CycleError naming its nodes.
func TestValidate_SingleCycle(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("a", "pass", nil).
		AddNode("b", "pass", nil).
		AddEdge("a", "out", "b", "in").
		AddEdge("b", "out", "a", "in")

	res := g.Validate()
	require.Len(t, res.Errors, 1)
	var ce *CycleError
	require.True(t, errors.As(res.Errors[0], &ce))
	assert.Equal(t, []string{"a", "b", "a"}, ce.Path)
	assert.True(t, errors.Is(res.Err(), ErrCycleDetected))
	assert.Equal(t, "cycle detected: a -> b -> a", ce.Error())
}

// TestValidate_SelfLoop verifies an edge from a node to itself is reported
// as a cycle and nothing else.
func TestValidate_SelfLoop(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("p", "pass", nil).
		AddEdge("p", "out", "p", "in")

	res := g.Validate()
	require.Len(t, res.Errors, 1, res.String())
	var ce *CycleError
	require.True(t, errors.As(res.Errors[0], &ce))
	assert.Equal(t, []string{"p", "p"}, ce.Path)
	assert.True(t, errors.Is(res.Err(), ErrCycleDetected))
	assert.False(t, errors.Is(res.Err(), ErrDanglingEdge))
	assert.False(t, errors.Is(res.Err(), ErrUnboundInput))

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrCycleDetected)
}

// TestValidate_CycleSkipsCompleteness verifies nodes on a cycle are not
// reported as unbound.
func TestValidate_CycleSkipsCompleteness(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("m", "mix", nil).
		AddNode("p", "pass", nil).
		AddEdge("m", "out", "p", "in").
		AddEdge("p", "out", "m", "a")

	res := g.Validate()
	require.Len(t, res.Errors, 1, res.String())
	assert.True(t, errors.Is(res.Errors[0], ErrCycleDetected))
}

// TestValidate_SingleTypeMismatch verifies a single mismatched edge yields
// exactly one TypeMismatchError naming both ports.
func TestValidate_SingleTypeMismatch(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("src", "source", nil).
		AddNode("out", "sink", nil).
		AddEdge("src", "props", "out", "in")

	res := g.Validate()
	require.Len(t, res.Errors, 1, res.String())
	var tm *TypeMismatchError
	require.True(t, errors.As(res.Errors[0], &tm))
	assert.Equal(t, Edge{Source: "src", SourcePort: "props", Target: "out", TargetPort: "in"}, tm.Edge)
	assert.Equal(t, KindProperties, tm.SourceKind)
	assert.Equal(t, KindFrameStream, tm.TargetKind)
	assert.Equal(t, "type mismatch: src.props (scalar-properties) -> out.in (frame-stream)", tm.Error())
}

// TestValidate_SingleUnboundInput verifies a single missing required input
// yields exactly one UnboundInputError.
func TestValidate_SingleUnboundInput(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("src", "source", nil).
		AddNode("m", "mix", nil).
		AddEdge("src", "video", "m", "a")

	res := g.Validate()
	require.Len(t, res.Errors, 1, res.String())
	var ub *UnboundInputError
	require.True(t, errors.As(res.Errors[0], &ub))
	assert.Equal(t, "m", ub.NodeID)
	assert.Equal(t, "b", ub.Port)
}

// TestValidate_Structural verifies each structural problem is reported.
func TestValidate_Structural(t *testing.T) {
	tests := []struct {
		name   string
		build  func(g *Graph)
		target error
	}{
		{
			name:   "unknown node type",
			build:  func(g *Graph) { g.AddNode("x", "nope", nil) },
			target: ErrUnknownNodeType,
		},
		{
			name: "duplicate node",
			build: func(g *Graph) {
				g.AddNode("x", "pass", nil).AddNode("x", "pass", nil).
					AddNode("src", "source", nil).AddEdge("src", "video", "x", "in")
			},
			target: ErrDuplicateNode,
		},
		{
			name:   "invalid node id",
			build:  func(g *Graph) { g.AddNode("a.b", "source", nil) },
			target: ErrInvalidNodeID,
		},
		{
			name: "unknown source node",
			build: func(g *Graph) {
				g.AddNode("src", "source", nil).AddNode("out", "sink", nil).
					AddEdge("src", "video", "out", "in").
					AddEdge("ghost", "video", "out", "in")
			},
			target: ErrDanglingEdge,
		},
		{
			name: "unknown port",
			build: func(g *Graph) {
				g.AddNode("src", "source", nil).AddNode("out", "sink", nil).
					AddEdge("src", "video", "out", "in").
					AddEdge("src", "audio", "out", "in")
			},
			target: ErrDanglingEdge,
		},
		{
			name: "wrong direction",
			build: func(g *Graph) {
				g.AddNode("src", "source", nil).AddNode("out", "sink", nil).
					AddEdge("src", "video", "out", "in").
					AddEdge("out", "in", "src", "video")
			},
			target: ErrDanglingEdge,
		},
		{
			name: "input bound twice",
			build: func(g *Graph) {
				g.AddNode("a", "source", nil).AddNode("b", "source", nil).AddNode("out", "sink", nil).
					AddEdge("a", "video", "out", "in").
					AddEdge("b", "video", "out", "in")
			},
			target: ErrInputAlreadyBound,
		},
		{
			name: "invalid config",
			build: func(g *Graph) {
				g.AddNode("src", "source", nil).
					AddNode("b", "blur", map[string]any{"sigma": -1.0}).
					AddEdge("src", "video", "b", "in")
			},
			target: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(validationTypes(t))
			tt.build(g)
			res := g.Validate()
			require.Len(t, res.Errors, 1, res.String())
			assert.True(t, errors.Is(res.Errors[0], tt.target), res.Errors[0].Error())
		})
	}
}

// TestValidate_ConfigErrorDetail verifies config errors keep the schema problem.
func TestValidate_ConfigErrorDetail(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("src", "source", nil).
		AddNode("b", "blur", map[string]any{"sigma": "wide", "radius": 2}).
		AddEdge("src", "video", "b", "in")

	res := g.Validate()
	require.Len(t, res.Errors, 1)
	var ce *ConfigError
	require.True(t, errors.As(res.Errors[0], &ce))
	assert.Equal(t, "b", ce.NodeID)
	assert.Equal(t, "blur", ce.Type)
	assert.True(t, errors.Is(ce, config.ErrInvalidOption))
	assert.Contains(t, ce.Error(), "radius")
}

// TestValidate_Order verifies errors are grouped structural, cycle, type,
// then completeness, all in one pass.
func TestValidate_Order(t *testing.T) {
	g := NewGraph(validationTypes(t)).
		AddNode("src", "source", nil).
		AddNode("a", "pass", nil).
		AddNode("b", "pass", nil).
		AddNode("m", "mix", nil).
		AddNode("out", "sink", nil).
		AddEdge("a", "out", "b", "in").
		AddEdge("b", "out", "a", "in").
		AddEdge("src", "props", "out", "in").
		AddEdge("src", "video", "m", "a").
		AddNode("ghost", "nope", nil)

	res := g.Validate()
	require.Len(t, res.Errors, 4, res.String())
	assert.True(t, errors.Is(res.Errors[0], ErrUnknownNodeType))
	assert.True(t, errors.Is(res.Errors[1], ErrCycleDetected))
	assert.True(t, errors.Is(res.Errors[2], ErrTypeMismatch))
	assert.True(t, errors.Is(res.Errors[3], ErrUnboundInput))
	assert.Contains(t, res.String(), "unbound input: m.b")
}

// TestCompile_ReturnsValidationErrors verifies Compile refuses invalid graphs.
func TestCompile_ReturnsValidationErrors(t *testing.T) {
	g := NewGraph(validationTypes(t)).AddNode("m", "mix", nil)
	p, err := g.Compile()
	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnboundInput))
}

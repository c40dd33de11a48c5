package framegraph

import (
	"fmt"
	"maps"
	"strings"
)

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	Source     string
	SourcePort string
	Target     string
	TargetPort string
}

// String returns "source.port -> target.port".
func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.Source, e.SourcePort, e.Target, e.TargetPort)
}

// nodeSpec is one node as added to a Graph.
type nodeSpec struct {
	id     string
	typ    NodeType
	known  bool
	params map[string]any
	order  int
}

// Graph is a mutable builder for a node graph.
// Use NewGraph to create a graph, then chain AddNode and AddEdge calls.
//
// Graph is NOT thread-safe during building. Construction problems such as
// an unknown node type or a duplicate id are recorded rather than panicking,
// and reported together by Validate and Compile.
//
// Example:
//
//	g := framegraph.NewGraph(types).
//	    AddNode("src", "video_input", map[string]any{"path": "plates/shot"}).
//	    AddNode("out", "video_output", map[string]any{"path": "renders/shot"}).
//	    AddEdge("src", "video", "out", "video")
//
//	plan, err := g.Compile()
type Graph struct {
	types *TypeRegistry
	name  string
	nodes []*nodeSpec
	index map[string]*nodeSpec
	edges []Edge
	errs  []error
}

// NewGraph creates a graph whose nodes are resolved against types.
func NewGraph(types *TypeRegistry) *Graph {
	if types == nil {
		types = NewTypeRegistry()
	}
	return &Graph{
		types: types,
		name:  "framegraph",
		index: make(map[string]*nodeSpec),
	}
}

// SetName sets the name used in spans and logs.
func (g *Graph) SetName(name string) *Graph {
	if name != "" {
		g.name = name
	}
	return g
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// AddNode adds a node of the named type with the given parameters.
// Parameters are copied. Returns the graph for method chaining.
func (g *Graph) AddNode(id, typeName string, params map[string]any) *Graph {
	if id == "" || strings.ContainsAny(id, " \t\n\r.") {
		g.errs = append(g.errs, fmt.Errorf("%w: %q", ErrInvalidNodeID, id))
		return g
	}
	if _, exists := g.index[id]; exists {
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
		return g
	}

	n := &nodeSpec{id: id, params: maps.Clone(params), order: len(g.nodes)}
	if n.params == nil {
		n.params = map[string]any{}
	}
	t, err := g.types.Lookup(typeName)
	if err != nil {
		g.errs = append(g.errs, fmt.Errorf("node %s: %w", id, err))
	} else {
		n.typ = t
		n.known = true
	}

	g.nodes = append(g.nodes, n)
	g.index[id] = n
	return g
}

// AddEdge connects srcPort of src to dstPort of dst.
// Returns the graph for method chaining.
//
// Edge validation happens in Validate, so edges may be added before
// the nodes they reference.
func (g *Graph) AddEdge(src, srcPort, dst, dstPort string) *Graph {
	g.edges = append(g.edges, Edge{Source: src, SourcePort: srcPort, Target: dst, TargetPort: dstPort})
	return g
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.id
	}
	return ids
}

// Edges returns a copy of the edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// NodeType returns the type of a node, if the node exists and its type is known.
func (g *Graph) NodeType(id string) (NodeType, bool) {
	n, ok := g.index[id]
	if !ok || !n.known {
		return NodeType{}, false
	}
	return n.typ, true
}

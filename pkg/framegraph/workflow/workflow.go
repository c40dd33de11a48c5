package workflow

import (
	"errors"
	"fmt"
	"maps"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/template"
)

// Document is a format-independent graph description.
type Document struct {
	Name  string         `json:"name,omitempty" yaml:"name,omitempty"`
	Vars  map[string]any `json:"vars,omitempty" yaml:"vars,omitempty"`
	Nodes []NodeSpec     `json:"nodes" yaml:"nodes"`
	Edges []EdgeSpec     `json:"edges,omitempty" yaml:"edges,omitempty"`

	// Conns is the compact edge form. Parsers fold it into Edges.
	Conns []Conn `json:"conns,omitempty" yaml:"conns,omitempty"`
}

// NodeSpec describes one node.
type NodeSpec struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// EdgeSpec connects an output port to an input port.
type EdgeSpec struct {
	Source     string `json:"source" yaml:"source"`
	SourcePort string `json:"source_port" yaml:"source_port"`
	Target     string `json:"target" yaml:"target"`
	TargetPort string `json:"target_port" yaml:"target_port"`
}

// Conn is the compact edge form: source node, source port, target node, target port.
type Conn struct {
	SN string `json:"sn" yaml:"sn"`
	SP string `json:"sp" yaml:"sp"`
	TN string `json:"tn" yaml:"tn"`
	TP string `json:"tp" yaml:"tp"`
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*NodeSpec, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// normalize folds Conns into Edges and checks that every entry is complete.
func (d *Document) normalize() error {
	for _, c := range d.Conns {
		d.Edges = append(d.Edges, EdgeSpec{Source: c.SN, SourcePort: c.SP, Target: c.TN, TargetPort: c.TP})
	}
	d.Conns = nil

	var errs []error
	if len(d.Nodes) == 0 {
		errs = append(errs, errors.New("no nodes"))
	}
	for i, n := range d.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("node %d: missing id", i))
		}
		if n.Type == "" {
			errs = append(errs, fmt.Errorf("node %d (%s): missing type", i, n.ID))
		}
	}
	for i, e := range d.Edges {
		if e.Source == "" || e.SourcePort == "" || e.Target == "" || e.TargetPort == "" {
			errs = append(errs, fmt.Errorf("edge %d: source, source_port, target and target_port are all required", i))
		}
	}
	return errors.Join(errs...)
}

// Expand returns a copy of doc with ${var} placeholders in node parameters
// replaced. vars override the document's own Vars. An undefined variable is
// an error.
func Expand(doc *Document, vars map[string]any) (*Document, error) {
	merged := maps.Clone(doc.Vars)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, vars)

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	out := *doc
	out.Vars = merged
	out.Nodes = make([]NodeSpec, len(doc.Nodes))
	var errs []error
	for i, n := range doc.Nodes {
		params, err := exp.ExpandMap(n.Params, merged)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.ID, err))
		}
		n.Params = params
		out.Nodes[i] = n
	}
	out.Edges = append([]EdgeSpec(nil), doc.Edges...)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Build adds the document's nodes and edges to a new graph resolved against
// types. Node and edge problems are reported by the graph's validation.
func Build(doc *Document, types *framegraph.TypeRegistry) (*framegraph.Graph, error) {
	if doc == nil {
		return nil, errors.New("nil workflow document")
	}
	if err := doc.normalize(); err != nil {
		return nil, err
	}
	g := framegraph.NewGraph(types).SetName(doc.Name)
	for _, n := range doc.Nodes {
		g.AddNode(n.ID, n.Type, n.Params)
	}
	for _, e := range doc.Edges {
		g.AddEdge(e.Source, e.SourcePort, e.Target, e.TargetPort)
	}
	return g, nil
}

package framegraph

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
)

// StreamRef identifies an output port.
type StreamRef struct {
	Node string
	Port string
}

// String returns "node.port".
func (r StreamRef) String() string { return r.Node + "." + r.Port }

// Stage is a maximal run of topologically adjacent nodes sharing one
// execution mode.
type Stage struct {
	Index int
	Mode  Capability
	Nodes []string

	// DependsOn lists earlier stages whose outputs this stage reads.
	DependsOn []int
	// Sources lists source nodes this stage opens from frame 0.
	Sources []string
	// Rescans lists the Sources that an earlier stage already read.
	Rescans []string
	// Replays lists materialized streams this stage reads.
	Replays []StreamRef
	// Records lists streams this stage materializes for later stages.
	Records []StreamRef
}

// instance is a node with its constructed behavior and resolved inputs.
type instance struct {
	id       string
	typ      NodeType
	behavior Behavior
	source   Source
	inputs   map[string]StreamRef
	consumed map[string]bool
}

func (n *instance) isSource() bool { return n.source != nil }

// Plan is an immutable, ordered list of stages ready to run once.
// It is created by calling Compile() on a Graph.
type Plan struct {
	Name   string
	Stages []Stage

	nodes    map[string]*instance
	stageOf  map[string]int
	consumed atomic.Bool
}

// Order returns the node ids of all stages concatenated; this is a
// topological order of the graph.
func (p *Plan) Order() []string {
	var out []string
	for _, s := range p.Stages {
		out = append(out, s.Nodes...)
	}
	return out
}

// StageOf returns the index of the stage containing node id.
func (p *Plan) StageOf(id string) (int, bool) {
	i, ok := p.stageOf[id]
	return i, ok
}

// String renders the plan one stage per line.
//
//	stage 0 streaming: src, tracker
//	stage 1 batch: stab (after 0)
//	stage 2 streaming: warp, out (after 1; rescans src)
func (p *Plan) String() string {
	var b strings.Builder
	for i, s := range p.Stages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "stage %d %s: %s", s.Index, s.Mode, strings.Join(s.Nodes, ", "))
		var notes []string
		if len(s.DependsOn) > 0 {
			deps := make([]string, len(s.DependsOn))
			for j, d := range s.DependsOn {
				deps[j] = fmt.Sprint(d)
			}
			notes = append(notes, "after "+strings.Join(deps, ", "))
		}
		if len(s.Rescans) > 0 {
			notes = append(notes, "rescans "+strings.Join(s.Rescans, ", "))
		}
		if len(s.Records) > 0 {
			notes = append(notes, "records "+joinRefs(s.Records))
		}
		if len(s.Replays) > 0 {
			notes = append(notes, "replays "+joinRefs(s.Replays))
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(notes, "; "))
		}
	}
	return b.String()
}

func joinRefs(refs []StreamRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// Close releases the behaviors of a plan that will not be run.
// It is a no-op on a plan that has run.
func (p *Plan) Close() error {
	if !p.consumed.CompareAndSwap(false, true) {
		return nil
	}
	return closeBehaviors(p.Order(), p.nodes)
}

// Compile validates the graph, constructs node behaviors and plans stages.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Planning:
//  1. Sort nodes topologically, breaking ties by insertion order
//  2. Grow stages greedily: a node joins the current stage if it is streaming,
//     the stage is streaming, and each producer is a source node or an
//     in-stage node feeding it a frame stream
//  3. Give every batch node a stage of its own
//  4. Record streams that cross a stage boundary from a non-source producer
//  5. Reject plans that read a non-rewindable source in more than one stage
func (g *Graph) Compile() (*Plan, error) {
	res, edges := g.validate()
	if !res.OK() {
		return nil, res.Err()
	}

	nodes, err := g.instantiate(edges)
	if err != nil {
		return nil, err
	}

	p, err := g.plan(nodes, edges)
	if err != nil {
		_ = closeBehaviors(g.NodeIDs(), nodes)
		return nil, err
	}
	return p, nil
}

// instantiate builds each node's behavior from its configuration with
// defaults applied and checks it against the type's capability.
func (g *Graph) instantiate(edges []Edge) (map[string]*instance, error) {
	nodes := make(map[string]*instance, len(g.nodes))
	var errs []error
	var built []string

	for _, n := range g.nodes {
		b, err := n.typ.New(n.typ.Options.Apply(n.params))
		if err != nil {
			errs = append(errs, &ConfigError{NodeID: n.id, Type: n.typ.Name, Err: err})
			continue
		}
		inst := &instance{
			id:       n.id,
			typ:      n.typ,
			behavior: b,
			inputs:   make(map[string]StreamRef),
			consumed: make(map[string]bool),
		}
		nodes[n.id] = inst
		built = append(built, n.id)
		if err := checkBehavior(inst); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		_ = closeBehaviors(built, nodes)
		return nil, errors.Join(errs...)
	}

	for _, e := range edges {
		nodes[e.Target].inputs[e.TargetPort] = StreamRef{Node: e.Source, Port: e.SourcePort}
		nodes[e.Source].consumed[e.SourcePort] = true
	}
	return nodes, nil
}

func checkBehavior(n *instance) error {
	fail := func(want string) error {
		return fmt.Errorf("node %s (%s): %w: %s type needs %s, got %T",
			n.id, n.typ.Name, ErrInvalidBehavior, n.typ.Capability, want, n.behavior)
	}
	if sb, ok := n.behavior.(SourceBehavior); ok {
		if n.typ.Capability != Streaming {
			return fail("a non-source behavior")
		}
		n.source = sb.Source()
		if n.source == nil {
			return fmt.Errorf("node %s (%s): %w: nil source", n.id, n.typ.Name, ErrInvalidBehavior)
		}
		return nil
	}
	switch n.typ.Capability {
	case Streaming:
		if _, ok := n.behavior.(StreamingBehavior); !ok {
			return fail("StreamingBehavior")
		}
	case Batch:
		if _, ok := n.behavior.(BatchBehavior); !ok {
			return fail("BatchBehavior")
		}
	}
	return nil
}

// topoOrder is Kahn's algorithm choosing the earliest-inserted ready node.
func (g *Graph) topoOrder(edges []Edge) []*nodeSpec {
	indeg := make(map[string]int, len(g.nodes))
	succ := make(map[string][]string)
	for _, e := range edges {
		indeg[e.Target]++
		succ[e.Source] = append(succ[e.Source], e.Target)
	}

	var ready []*nodeSpec
	for _, n := range g.nodes {
		if indeg[n.id] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]*nodeSpec, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, next := range succ[n.id] {
			indeg[next]--
			if indeg[next] == 0 {
				m := g.index[next]
				at, _ := slices.BinarySearchFunc(ready, m.order, func(a *nodeSpec, o int) int { return a.order - o })
				ready = slices.Insert(ready, at, m)
			}
		}
	}
	return order
}

type sourceRead struct {
	stage int
	node  string
	edge  Edge
}

func (g *Graph) plan(nodes map[string]*instance, edges []Edge) (*Plan, error) {
	incoming := make(map[string][]Edge)
	for _, e := range edges {
		incoming[e.Target] = append(incoming[e.Target], e)
	}

	p := &Plan{Name: g.name, nodes: nodes, stageOf: make(map[string]int, len(nodes))}

	var cur *Stage
	for _, spec := range g.topoOrder(edges) {
		n := nodes[spec.id]
		if cur == nil || !p.canJoin(n, cur, incoming[n.id]) {
			p.Stages = append(p.Stages, Stage{Index: len(p.Stages), Mode: n.typ.Capability})
			cur = &p.Stages[len(p.Stages)-1]
		}
		cur.Nodes = append(cur.Nodes, n.id)
		p.stageOf[n.id] = cur.Index
	}

	if len(p.Order()) != len(nodes) {
		return nil, &InvariantError{Op: "plan", Detail: "topological order does not cover every node"}
	}

	reads := make(map[string][]sourceRead)
	var sourceOrder []string
	for i := range p.Stages {
		s := &p.Stages[i]
		deps := make(map[int]bool)
		for _, id := range s.Nodes {
			for _, e := range incoming[id] {
				prod := nodes[e.Source]
				out, _ := prod.typ.Output(e.SourcePort)
				ps := p.stageOf[e.Source]

				if prod.isSource() && out.Kind.IsStream() {
					if !slices.Contains(s.Sources, prod.id) {
						s.Sources = append(s.Sources, prod.id)
					}
					r := reads[prod.id]
					if len(r) == 0 {
						sourceOrder = append(sourceOrder, prod.id)
					}
					if len(r) == 0 || r[len(r)-1].stage != s.Index {
						reads[prod.id] = append(r, sourceRead{stage: s.Index, node: id, edge: e})
					}
					continue
				}
				if prod.isSource() || ps == s.Index {
					continue
				}

				deps[ps] = true
				if !out.Kind.IsStream() {
					continue
				}
				ref := StreamRef{Node: e.Source, Port: e.SourcePort}
				if !slices.Contains(s.Replays, ref) {
					s.Replays = append(s.Replays, ref)
				}
				producer := &p.Stages[ps]
				if producer.Mode == Streaming && !slices.Contains(producer.Records, ref) {
					producer.Records = append(producer.Records, ref)
				}
			}
		}
		for d := range deps {
			s.DependsOn = append(s.DependsOn, d)
		}
		sort.Ints(s.DependsOn)
	}

	var errs []error
	for _, src := range sourceOrder {
		r := reads[src]
		for _, later := range r[1:] {
			s := &p.Stages[later.stage]
			s.Rescans = append(s.Rescans, src)
		}
		if len(r) > 1 && !nodes[src].source.Rewindable() {
			errs = append(errs, &NonRewindableSourceError{
				Source: src,
				NodeID: r[1].node,
				Edge:   r[1].edge,
				Stage:  r[1].stage,
			})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// canJoin reports whether n may extend stage s.
// Artifact edges from in-stage producers force a boundary since the
// artifact only exists once the stage has finished.
func (p *Plan) canJoin(n *instance, s *Stage, in []Edge) bool {
	if n.typ.Capability != Streaming || s.Mode != Streaming {
		return false
	}
	for _, e := range in {
		prod := p.nodes[e.Source]
		if prod.isSource() {
			continue
		}
		ps, placed := p.stageOf[e.Source]
		if !placed || ps != s.Index {
			return false
		}
		out, _ := prod.typ.Output(e.SourcePort)
		if !out.Kind.IsStream() {
			return false
		}
	}
	return true
}

// closeBehaviors calls Close on every behavior implementing Closer, in order.
func closeBehaviors(order []string, nodes map[string]*instance) error {
	var errs []error
	for _, id := range order {
		n, ok := nodes[id]
		if !ok {
			continue
		}
		if c, ok := n.behavior.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, &NodeError{NodeID: id, Op: "close", Index: -1, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

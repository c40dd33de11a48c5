package framegraph

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationResult lists every problem found in a graph.
type ValidationResult struct {
	Errors []error
}

// OK reports whether the graph is valid.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Err returns all errors joined, or nil if the graph is valid.
func (r ValidationResult) Err() error { return errors.Join(r.Errors...) }

// String returns one error per line.
func (r ValidationResult) String() string {
	if r.OK() {
		return "ok"
	}
	lines := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

// Validate checks the graph and reports every problem in one pass.
//
// Checks run in order:
//  1. Structure: unknown types, duplicate or invalid ids, node configuration
//     against the type's option schema, edges referencing missing nodes or
//     ports or the wrong direction, inputs bound more than once
//  2. Acyclicity, reporting each cycle as a node path; a self-loop is the
//     cycle [p, p]
//  3. Kind compatibility of every edge
//  4. Required inputs bound; nodes on a cycle are skipped
//
// Edges rejected by the structural checks take no part in later checks.
func (g *Graph) Validate() ValidationResult {
	res, _ := g.validate()
	return res
}

// validate returns the result and the structurally sound edges.
func (g *Graph) validate() (ValidationResult, []Edge) {
	var errs []error
	errs = append(errs, g.errs...)

	for _, n := range g.nodes {
		if !n.known {
			continue
		}
		if problems := n.typ.Options.Validate(n.params); len(problems) > 0 {
			errs = append(errs, &ConfigError{NodeID: n.id, Type: n.typ.Name, Err: errors.Join(problems...)})
		}
	}

	edges := make([]Edge, 0, len(g.edges))
	bound := make(map[string]Edge)
	for _, e := range g.edges {
		if err := g.checkEdge(e); err != nil {
			errs = append(errs, err)
			continue
		}
		key := e.Target + "." + e.TargetPort
		if first, dup := bound[key]; dup {
			errs = append(errs, fmt.Errorf("%w: %s.%s by %s and %s",
				ErrInputAlreadyBound, e.Target, e.TargetPort, first, e))
			continue
		}
		bound[key] = e
		edges = append(edges, e)
	}

	cycles, onCycle := g.findCycles(edges)
	for _, c := range cycles {
		errs = append(errs, c)
	}

	for _, e := range edges {
		src, dst := g.index[e.Source], g.index[e.Target]
		if !src.known || !dst.known {
			continue
		}
		out, _ := src.typ.Output(e.SourcePort)
		in, _ := dst.typ.Input(e.TargetPort)
		if !Compatible(out.Kind, in.Kind) {
			errs = append(errs, &TypeMismatchError{Edge: e, SourceKind: out.Kind, TargetKind: in.Kind})
		}
	}

	for _, n := range g.nodes {
		if !n.known || onCycle[n.id] {
			continue
		}
		for _, p := range n.typ.Inputs {
			if !p.Required {
				continue
			}
			if _, ok := bound[n.id+"."+p.Name]; !ok {
				errs = append(errs, &UnboundInputError{NodeID: n.id, Port: p.Name})
			}
		}
	}

	return ValidationResult{Errors: errs}, edges
}

// checkEdge verifies both ends of an edge exist with the right direction.
// Ports on nodes of unknown type are not checked.
func (g *Graph) checkEdge(e Edge) error {
	src, ok := g.index[e.Source]
	if !ok {
		return &EdgeError{Edge: e, Reason: fmt.Sprintf("unknown source node %q", e.Source)}
	}
	dst, ok := g.index[e.Target]
	if !ok {
		return &EdgeError{Edge: e, Reason: fmt.Sprintf("unknown target node %q", e.Target)}
	}
	if src.known {
		if _, ok := src.typ.Output(e.SourcePort); !ok {
			if _, isInput := src.typ.Input(e.SourcePort); isInput {
				return &EdgeError{Edge: e, Reason: fmt.Sprintf("%s.%s is an input port", e.Source, e.SourcePort)}
			}
			return &EdgeError{Edge: e, Reason: fmt.Sprintf("%s (%s) has no output %q", e.Source, src.typ.Name, e.SourcePort)}
		}
	}
	if dst.known {
		if _, ok := dst.typ.Input(e.TargetPort); !ok {
			if _, isOutput := dst.typ.Output(e.TargetPort); isOutput {
				return &EdgeError{Edge: e, Reason: fmt.Sprintf("%s.%s is an output port", e.Target, e.TargetPort)}
			}
			return &EdgeError{Edge: e, Reason: fmt.Sprintf("%s (%s) has no input %q", e.Target, dst.typ.Name, e.TargetPort)}
		}
	}
	return nil
}

// findCycles runs a depth-first search from each node in insertion order and
// reports one CycleError per back edge found. It also returns the set of nodes
// lying on a reported cycle.
func (g *Graph) findCycles(edges []Edge) ([]*CycleError, map[string]bool) {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycles []*CycleError
	onCycle := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				path := append(append([]string{}, stack[start:]...), next)
				for _, n := range stack[start:] {
					onCycle[n] = true
				}
				cycles = append(cycles, &CycleError{Path: path})
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, n := range g.nodes {
		if color[n.id] == white {
			visit(n.id)
		}
	}
	return cycles, onCycle
}

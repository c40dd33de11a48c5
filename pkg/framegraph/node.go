package framegraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/registry"
)

// Values maps port names to the data on those ports.
//
// Frame-stream ports carry the frame payload (Frame.Data) in streaming
// behaviors and a Sequence in batch behaviors. Artifact ports carry the
// artifact value.
type Values map[string]any

// Behavior is the runtime implementation of a node, created by NodeType.New.
//
// Depending on the type's capability it must implement StreamingBehavior,
// BatchBehavior or SourceBehavior; this is checked when the graph is compiled.
type Behavior = any

// StreamingBehavior processes one frame index at a time.
type StreamingBehavior interface {
	// Step receives the inputs at index and returns the outputs at index.
	// Returning ErrExhausted forwards nothing at index and ends the stage
	// after the current iteration: in-stage consumers of the node skip
	// index, other nodes still process it.
	Step(ctx Context, index int, in Values) (Values, error)
}

// BatchBehavior consumes its inputs in full and runs once.
type BatchBehavior interface {
	Compute(ctx Context, in Values) (Values, error)
}

// SourceBehavior marks a node whose frame-stream outputs come from a Source.
// Source nodes are never stepped; every frame-stream output carries the
// source's frames.
type SourceBehavior interface {
	Source() Source
}

// Preparer provides artifacts available before any stage runs,
// such as the properties of a source.
type Preparer interface {
	Prepare(ctx Context) (Values, error)
}

// Finisher provides artifacts of a streaming node after its stage's last frame.
type Finisher interface {
	Finish(ctx Context) (Values, error)
}

// Closer is called once per behavior when the run ends, successful or not.
type Closer interface {
	Close() error
}

// PortSpec declares one input or output port of a node type.
type PortSpec struct {
	Name     string
	Kind     DataKind
	Required bool
}

// NodeType describes a kind of node: its ports, options and behavior factory.
type NodeType struct {
	Name        string
	Description string
	Category    string
	Capability  Capability
	Inputs      []PortSpec
	Outputs     []PortSpec
	Options     config.Schema

	// New builds a behavior from validated configuration with defaults applied.
	New func(cfg config.Config) (Behavior, error)
}

// Input returns the input port with the given name.
func (t NodeType) Input(name string) (PortSpec, bool) {
	return findPort(t.Inputs, name)
}

// Output returns the output port with the given name.
func (t NodeType) Output(name string) (PortSpec, bool) {
	return findPort(t.Outputs, name)
}

func findPort(ports []PortSpec, name string) (PortSpec, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

func (t NodeType) validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if t.New == nil {
		errs = append(errs, errors.New("New is nil"))
	}
	if t.Capability != Streaming && t.Capability != Batch {
		errs = append(errs, fmt.Errorf("unknown capability %d", t.Capability))
	}
	seen := make(map[string]bool)
	for _, p := range append(append([]PortSpec{}, t.Inputs...), t.Outputs...) {
		if p.Name == "" {
			errs = append(errs, errors.New("port name is empty"))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("port %q declared twice", p.Name))
		}
		seen[p.Name] = true
		if _, ok := kindNames[p.Kind]; !ok {
			errs = append(errs, fmt.Errorf("port %q: %s", p.Name, p.Kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidNodeType, t.Name, errors.Join(errs...))
	}
	return nil
}

// TypeRegistry holds the node types available to graphs.
// Populate it at start-up; lookups afterwards are safe for concurrent use.
type TypeRegistry struct {
	types *registry.Registry[string, NodeType]
}

// NewTypeRegistry creates an empty TypeRegistry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: registry.New[string, NodeType]()}
}

// Register adds a node type. It fails with ErrDuplicateNodeType if the name
// is taken and with ErrInvalidNodeType if the definition is malformed;
// on failure the registry is unchanged.
func (r *TypeRegistry) Register(t NodeType) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := r.types.Add(t.Name, t); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeType, t.Name)
	}
	return nil
}

// MustRegister is like Register but panics on error.
// Intended for init-time registration of builtin types.
func (r *TypeRegistry) MustRegister(t NodeType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the named type or ErrUnknownNodeType.
func (r *TypeRegistry) Lookup(name string) (NodeType, error) {
	t, ok := r.types.Get(name)
	if !ok {
		return NodeType{}, fmt.Errorf("%w: %s", ErrUnknownNodeType, name)
	}
	return t, nil
}

// List returns every type in registration order.
func (r *TypeRegistry) List() []NodeType {
	out := make([]NodeType, 0, r.types.Len())
	r.types.Range(func(_ string, t NodeType) bool {
		out = append(out, t)
		return true
	})
	return out
}

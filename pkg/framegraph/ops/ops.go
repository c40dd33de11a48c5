// Package ops is the registry of named image operations applied by
// postprocess nodes to an image and alpha pair.
//
// An operation receives the color image, a matte (channel 0 is used; nil
// means fully opaque) and its parameters, and returns a new color image.
// Operations never modify their inputs.
package ops

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
	"github.com/randalmurphal/framegraph/pkg/framegraph/registry"
)

// Sentinel errors.
var (
	ErrDuplicateName    = errors.New("duplicate operation name")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Operation transforms an image using an alpha matte.
type Operation func(img, alpha *media.Image, cfg config.Config) (*media.Image, error)

// Info describes a registered operation.
type Info struct {
	Name        string
	Description string
	// Options are the parameters the operation reads.
	Options config.Schema
}

type entry struct {
	info Info
	op   Operation
}

// Registry maps operation names to implementations.
type Registry struct {
	ops *registry.Registry[string, entry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: registry.New[string, entry]()}
}

// Register adds an operation. Registering a taken name fails with
// ErrDuplicateName and keeps the existing operation.
func (r *Registry) Register(name, description string, op Operation, options ...config.Option) error {
	if name == "" || op == nil {
		return fmt.Errorf("register operation %q: name and function are required", name)
	}
	e := entry{info: Info{Name: name, Description: description, Options: options}, op: op}
	if err := r.ops.Add(name, e); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	return nil
}

// Lookup returns the named operation.
func (r *Registry) Lookup(name string) (Operation, error) {
	e, ok := r.ops.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownOperation, name, r.ops.Keys())
	}
	return e.op, nil
}

// Describe returns the Info of the named operation.
func (r *Registry) Describe(name string) (Info, bool) {
	e, ok := r.ops.Get(name)
	return e.info, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool { return r.ops.Has(name) }

// List returns every operation in registration order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, r.ops.Len())
	r.ops.Range(func(_ string, e entry) bool {
		out = append(out, e.info)
		return true
	})
	return out
}

// Apply runs the named operation.
func (r *Registry) Apply(name string, img, alpha *media.Image, cfg config.Config) (*media.Image, error) {
	op, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("operation %s: image: %w", name, err)
	}
	if alpha != nil && !img.SameSize(alpha) {
		return nil, fmt.Errorf("operation %s: %w: image %dx%d, alpha %dx%d",
			name, media.ErrShape, img.Width, img.Height, alpha.Width, alpha.Height)
	}
	return op(img, alpha, cfg)
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}()

// Default returns the process-wide registry holding the builtin operations.
func Default() *Registry { return defaultRegistry }

// Apply runs a named operation from the default registry.
func Apply(name string, img, alpha *media.Image, cfg config.Config) (*media.Image, error) {
	return defaultRegistry.Apply(name, img, alpha, cfg)
}

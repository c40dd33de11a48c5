// Package nodes provides the builtin video processing node types.
//
// Register them on a type registry with RegisterBuiltins. Sources, sinks and
// the operation registry are injected through an Env, so the same types run
// against PNG frame directories, in-memory test media or caller-provided
// readers and writers.
//
//	types := framegraph.NewTypeRegistry()
//	nodes.RegisterBuiltins(types, nodes.Env{})
//	g := framegraph.NewGraph(types).
//	    AddNode("in", "video_input", map[string]any{"path": "shot/"}).
//	    ...
package nodes

import (
	"fmt"
	"path/filepath"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
	"github.com/randalmurphal/framegraph/pkg/framegraph/ops"
)

// Node type categories.
const (
	CategoryInput     = "input"
	CategoryTracking  = "tracking"
	CategoryTransform = "transform"
	CategoryColor     = "color"
	CategoryComposite = "composite"
	CategoryOutput    = "output"
)

// Env holds the collaborators builtin nodes resolve by name.
type Env struct {
	// Sources are referenced by video_input's "source" option.
	Sources map[string]framegraph.Source
	// Sinks are referenced by the "sink" option of output nodes.
	Sinks map[string]framegraph.Sink
	// Ops defaults to ops.Default().
	Ops *ops.Registry
	// Retry applies to frame reads from directories. Zero means fgerrors.DefaultRetry.
	Retry fgerrors.RetryConfig
	// Dir is the base for relative "path" options. Empty means the process
	// working directory.
	Dir string
}

func (e Env) withDefaults() Env {
	if e.Ops == nil {
		e.Ops = ops.Default()
	}
	if e.Retry.MaxAttempts == 0 {
		e.Retry = fgerrors.DefaultRetry
	}
	return e
}

func (e Env) path(p string) string {
	if p == "" || e.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.Dir, p)
}

func (e Env) source(name string) (framegraph.Source, error) {
	src, ok := e.Sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return src, nil
}

func (e Env) sink(name string) (framegraph.Sink, error) {
	sink, ok := e.Sinks[name]
	if !ok {
		return nil, fmt.Errorf("unknown sink %q", name)
	}
	return sink, nil
}

// RegisterBuiltins adds every builtin node type to types.
func RegisterBuiltins(types *framegraph.TypeRegistry, env Env) error {
	env = env.withDefaults()
	for _, t := range Builtins(env) {
		if err := types.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Builtins returns the builtin node types bound to env.
func Builtins(env Env) []framegraph.NodeType {
	env = env.withDefaults()
	return []framegraph.NodeType{
		videoInputType(env),
		roiType(),
		trackInputType(env),
		featureTrackerType(),
		gaussianFilterType(),
		stabilizerType(),
		applyTransformType(),
		gammaType(),
		claheType(),
		frameAverageType(),
		postprocessType(env),
		videoOutputType(env),
		imageOutputType(env),
		trackOutputType(env),
	}
}

func reqPort(name string, kind framegraph.DataKind) framegraph.PortSpec {
	return framegraph.PortSpec{Name: name, Kind: kind, Required: true}
}

func optPort(name string, kind framegraph.DataKind) framegraph.PortSpec {
	return framegraph.PortSpec{Name: name, Kind: kind}
}

func outPort(name string, kind framegraph.DataKind) framegraph.PortSpec {
	return framegraph.PortSpec{Name: name, Kind: kind}
}

// image returns the *media.Image on port, or an error naming the port.
func image(v framegraph.Values, port string) (*media.Image, error) {
	raw, ok := v[port]
	if !ok {
		return nil, fmt.Errorf("input %q: no value", port)
	}
	img, ok := raw.(*media.Image)
	if !ok || img == nil {
		return nil, fmt.Errorf("input %q: expected image, got %T", port, raw)
	}
	return img, nil
}

// optionalImage is like image but returns nil when the port is unbound.
func optionalImage(v framegraph.Values, port string) (*media.Image, error) {
	if _, ok := v[port]; !ok {
		return nil, nil
	}
	return image(v, port)
}

func artifact[T any](v framegraph.Values, port string) (T, bool, error) {
	var zero T
	raw, ok := v[port]
	if !ok {
		return zero, false, nil
	}
	t, ok := raw.(T)
	if !ok {
		return zero, false, fmt.Errorf("input %q: expected %T, got %T", port, zero, raw)
	}
	return t, true, nil
}

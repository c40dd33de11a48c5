package framegraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
)

// Sentinel errors for node types and graph building.
var (
	// ErrDuplicateNodeType indicates a node type name is already registered.
	ErrDuplicateNodeType = errors.New("duplicate node type")

	// ErrUnknownNodeType indicates a node references an unregistered type.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidNodeType indicates a NodeType definition is malformed.
	ErrInvalidNodeType = errors.New("invalid node type")

	// ErrDuplicateNode indicates two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrInvalidNodeID indicates an empty or malformed node id.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrDanglingEdge indicates an edge references a missing node or port.
	ErrDanglingEdge = errors.New("dangling edge")

	// ErrInputAlreadyBound indicates a second edge targets the same input port.
	ErrInputAlreadyBound = errors.New("input already bound")

	// ErrInvalidConfig indicates node parameters failed the type's option schema.
	ErrInvalidConfig = errors.New("invalid node configuration")

	// ErrInvalidBehavior indicates a constructed behavior does not implement
	// the interface its type's capability requires.
	ErrInvalidBehavior = errors.New("behavior does not match capability")
)

// Sentinel errors for validation and planning.
var (
	// ErrCycleDetected indicates the graph is not acyclic.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrTypeMismatch indicates an edge connects ports of different kinds.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnboundInput indicates a required input has no incoming edge.
	ErrUnboundInput = errors.New("unbound input")

	// ErrNonRewindableSource indicates the plan reads a source more than once
	// but the source cannot be re-opened.
	ErrNonRewindableSource = errors.New("non-rewindable source")
)

// Sentinel errors for execution.
var (
	// ErrExhausted signals the end of a stream. Source handles return it from
	// Next; streaming behaviors may return it from Step to end their stage.
	ErrExhausted = errors.New("stream exhausted")

	// ErrFrameAlignment indicates a node's synchronized inputs disagree on the frame index.
	ErrFrameAlignment = errors.New("frame alignment")

	// ErrTruncatedStream indicates some feeds of a stage ended before others.
	ErrTruncatedStream = errors.New("truncated stream")

	// ErrMissingOutput indicates a node returned no value for a consumed output.
	ErrMissingOutput = errors.New("missing output")

	// ErrCancelled indicates the run was cancelled by its caller.
	ErrCancelled = errors.New("run cancelled")

	// ErrPlanConsumed indicates Run was called on a plan that already ran.
	ErrPlanConsumed = errors.New("plan already executed")

	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvariant indicates an internal engine invariant was violated.
	ErrInvariant = errors.New("engine invariant violated")
)

// CycleError reports a cycle as the sequence of node ids along it.
// The first id is repeated at the end.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCycleDetected for errors.Is support.
func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// ErrorCategory implements errors.Categorizer.
func (e *CycleError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// TypeMismatchError names both ends of an edge whose kinds differ.
type TypeMismatchError struct {
	Edge       Edge
	SourceKind DataKind
	TargetKind DataKind
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %s.%s (%s) -> %s.%s (%s)",
		e.Edge.Source, e.Edge.SourcePort, e.SourceKind,
		e.Edge.Target, e.Edge.TargetPort, e.TargetKind)
}

// Unwrap returns ErrTypeMismatch for errors.Is support.
func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// ErrorCategory implements errors.Categorizer.
func (e *TypeMismatchError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// UnboundInputError names a required input port with no incoming edge.
type UnboundInputError struct {
	NodeID string
	Port   string
}

// Error implements the error interface.
func (e *UnboundInputError) Error() string {
	return fmt.Sprintf("unbound input: %s.%s", e.NodeID, e.Port)
}

// Unwrap returns ErrUnboundInput for errors.Is support.
func (e *UnboundInputError) Unwrap() error { return ErrUnboundInput }

// ErrorCategory implements errors.Categorizer.
func (e *UnboundInputError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// EdgeError reports an edge that references a missing node or port,
// or connects ports in the wrong direction.
type EdgeError struct {
	Edge   Edge
	Reason string
}

// Error implements the error interface.
func (e *EdgeError) Error() string {
	return fmt.Sprintf("dangling edge %s: %s", e.Edge, e.Reason)
}

// Unwrap returns ErrDanglingEdge for errors.Is support.
func (e *EdgeError) Unwrap() error { return ErrDanglingEdge }

// ErrorCategory implements errors.Categorizer.
func (e *EdgeError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// ConfigError wraps option schema or constructor failures for one node.
type ConfigError struct {
	NodeID string
	Type   string
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("node %s (%s): invalid configuration: %v", e.NodeID, e.Type, e.Err)
}

// Unwrap returns ErrInvalidConfig and the underlying error.
func (e *ConfigError) Unwrap() []error { return []error{ErrInvalidConfig, e.Err} }

// ErrorCategory implements errors.Categorizer.
func (e *ConfigError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// NonRewindableSourceError names the source, and the node and edge that
// would need to read it a second time.
type NonRewindableSourceError struct {
	Source string
	NodeID string
	Edge   Edge
	// Stage is the stage that would re-open the source.
	Stage int
}

// Error implements the error interface.
func (e *NonRewindableSourceError) Error() string {
	return fmt.Sprintf("non-rewindable source %s: node %s re-reads it in stage %d via %s",
		e.Source, e.NodeID, e.Stage, e.Edge)
}

// Unwrap returns ErrNonRewindableSource for errors.Is support.
func (e *NonRewindableSourceError) Unwrap() error { return ErrNonRewindableSource }

// ErrorCategory implements errors.Categorizer.
func (e *NonRewindableSourceError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// FrameAlignmentError reports the frame index seen on each synchronized input
// of a node when they disagree.
type FrameAlignmentError struct {
	NodeID  string
	Stage   int
	Indices map[string]int
}

// Error implements the error interface.
func (e *FrameAlignmentError) Error() string {
	ports := make([]string, 0, len(e.Indices))
	for p := range e.Indices {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%s=%d", p, e.Indices[p])
	}
	return fmt.Sprintf("frame alignment: node %s inputs disagree (%s)", e.NodeID, strings.Join(parts, ", "))
}

// Unwrap returns ErrFrameAlignment for errors.Is support.
func (e *FrameAlignmentError) Unwrap() error { return ErrFrameAlignment }

// ErrorCategory implements errors.Categorizer.
func (e *FrameAlignmentError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// TruncatedStreamError reports feeds that ended while others still had frames.
type TruncatedStreamError struct {
	Stage int
	// Index is the iteration at which the first feed ran dry.
	Index     int
	Exhausted []string
	Live      []string
}

// Error implements the error interface.
func (e *TruncatedStreamError) Error() string {
	return fmt.Sprintf("truncated stream in stage %d at frame %d: %s ended, %s still live",
		e.Stage, e.Index, strings.Join(e.Exhausted, ", "), strings.Join(e.Live, ", "))
}

// Unwrap returns ErrTruncatedStream for errors.Is support.
func (e *TruncatedStreamError) Unwrap() error { return ErrTruncatedStream }

// ErrorCategory implements errors.Categorizer.
func (e *TruncatedStreamError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryUser }

// NodeError wraps an error with node context.
// It provides information about which node failed and what operation was attempted.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("prepare", "step", "compute", "finish", "read", "close").
	Op string
	// Index is the frame being processed, or -1 when the failure is not frame specific.
	Index int
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("node %s: %s at frame %d: %v", e.NodeID, e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// ErrorCategory reports the category of the wrapped error.
func (e *NodeError) ErrorCategory() fgerrors.Category {
	return fgerrors.Categorize(e.Err)
}

// PanicError captures panic information from a node behavior.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// ErrorCategory implements errors.Categorizer.
func (e *PanicError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryInvariant }

// CancellationError captures where a run was stopped.
type CancellationError struct {
	// Stage is the stage that was running.
	Stage int
	// Frame is the number of frames the stage completed before stopping.
	Frame int
	// Cause is the underlying cancellation cause (context.Canceled or context.DeadlineExceeded).
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled in stage %d after %d frames: %v", e.Stage, e.Frame, e.Cause)
}

// Unwrap returns ErrCancelled and the cause for errors.Is/As support.
func (e *CancellationError) Unwrap() []error { return []error{ErrCancelled, e.Cause} }

// ErrorCategory implements errors.Categorizer.
func (e *CancellationError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryCancelled }

// InvariantError reports a defect in the engine rather than in the graph.
type InvariantError struct {
	Op     string
	Detail string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("engine invariant violated in %s: %s", e.Op, e.Detail)
}

// Unwrap returns ErrInvariant for errors.Is support.
func (e *InvariantError) Unwrap() error { return ErrInvariant }

// ErrorCategory implements errors.Categorizer.
func (e *InvariantError) ErrorCategory() fgerrors.Category { return fgerrors.CategoryInvariant }

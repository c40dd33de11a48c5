package framegraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/framegraph/pkg/framegraph/observability"
)

// Context provides execution context to node behaviors.
// It extends context.Context with framegraph-specific services and metadata.
//
// Context is immutable after creation. The runtime derives one context per
// node per stage with the node ID set and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run, stage and node.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the node being executed.
	// Empty string outside node calls.
	NodeID() string

	// StageIndex returns the stage being executed, or -1 outside a stage.
	StageIndex() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	nodeID string
	stage  int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// StageIndex returns the current stage.
func (c *executionContext) StageIndex() int {
	return c.stage
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The runtime enriches it with run_id, stage and node_id.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated. WithRunID on Run takes precedence.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := framegraph.NewContext(context.Background(),
//	    framegraph.WithLogger(myLogger),
//	    framegraph.WithContextRunID("shot-042"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		stage:   -1,
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// forNode returns the context handed to one node's behavior during a stage.
func forNode(parent context.Context, runID string, logger *slog.Logger, stage int, nodeID string) *executionContext {
	return &executionContext{
		Context: parent,
		logger:  observability.EnrichLogger(logger, runID, stage, nodeID),
		runID:   runID,
		nodeID:  nodeID,
		stage:   stage,
	}
}

package event

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the runtime.
const (
	TypeRunStarted     = "run.started"
	TypeRunCompleted   = "run.completed"
	TypeStageStarted   = "stage.started"
	TypeStageProgress  = "stage.progress"
	TypeStageCompleted = "stage.completed"
	TypeStageFailed    = "stage.failed"
	TypeStageSkipped   = "stage.skipped"
)

// Event is the interface for all events on a bus.
// Events are immutable once created.
type Event interface {
	ID() string     // Unique event identifier
	Type() string   // Event type (e.g., "stage.progress")
	Source() string // Event source (e.g., "framegraph")

	// CorrelationID groups the events of one run.
	CorrelationID() string

	Timestamp() time.Time
	Data() any
}

// Metadata contains common event metadata fields.
type Metadata struct {
	EventID       string    `json:"id"`
	EventType     string    `json:"type"`
	EventSource   string    `json:"source"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// BaseEvent provides a generic event implementation.
// T is the payload type for type-safe access.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`
}

// ID returns the unique event identifier.
func (e *BaseEvent[T]) ID() string { return e.Meta.EventID }

// Type returns the event type.
func (e *BaseEvent[T]) Type() string { return e.Meta.EventType }

// Source returns the event source.
func (e *BaseEvent[T]) Source() string { return e.Meta.EventSource }

// CorrelationID returns the run the event belongs to.
func (e *BaseEvent[T]) CorrelationID() string { return e.Meta.CorrelationID }

// Timestamp returns when the event occurred.
func (e *BaseEvent[T]) Timestamp() time.Time { return e.Meta.Timestamp }

// Data returns the event payload.
func (e *BaseEvent[T]) Data() any { return e.Payload }

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T { return e.Payload }

// EventOption configures event creation.
type EventOption func(*Metadata)

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(m *Metadata) {
		m.EventID = id
	}
}

// WithCorrelationID sets the correlation ID, normally the run ID.
func WithCorrelationID(id string) EventOption {
	return func(m *Metadata) {
		m.CorrelationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(m *Metadata) {
		m.Timestamp = t
	}
}

// New creates a new event with the given type, source, and payload.
func New[T any](eventType, source string, payload T, opts ...EventOption) *BaseEvent[T] {
	meta := Metadata{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		EventSource: source,
		Timestamp:   time.Now(),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = meta.EventID
	}
	return &BaseEvent[T]{Meta: meta, Payload: payload}
}

// RunPayload is carried by run.* events.
type RunPayload struct {
	RunID  string `json:"run_id"`
	Stages int    `json:"stages"`
	Status string `json:"status,omitempty"`
	Frames int    `json:"frames,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StagePayload is carried by stage.* events.
type StagePayload struct {
	RunID  string   `json:"run_id"`
	Stage  int      `json:"stage"`
	Mode   string   `json:"mode"`
	Nodes  []string `json:"nodes,omitempty"`
	Frames int      `json:"frames"`
	Error  string   `json:"error,omitempty"`
}

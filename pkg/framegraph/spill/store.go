// Package spill provides storage for frame streams materialized between stages.
//
// When a batch stage needs a full pass over a stream produced by an earlier
// streaming stage, the runtime records that stream. Small runs keep it in
// memory; long videos spill it to a Store so memory use stays flat.
package spill

import (
	"errors"
)

// Store persists encoded frames of materialized streams.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores the frame at position seq of a stream within a run.
	// Overwrites an existing frame at the same position.
	Put(runID, stream string, seq int, data []byte) error

	// Get retrieves a frame.
	// Returns ErrNotFound if the frame doesn't exist.
	Get(runID, stream string, seq int) ([]byte, error)

	// List returns one Info per stream of a run, ordered by stream name.
	// Returns an empty slice (not error) if the run has no streams.
	List(runID string) ([]Info, error)

	// DeleteRun removes every stream of a run.
	// Returns nil if the run has nothing stored.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info summarizes a stored stream without loading its frames.
type Info struct {
	RunID  string
	Stream string
	Frames int
	Size   int64
}

// Codec converts frame payloads to and from bytes for a Store.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Sentinel errors for spill operations.
var (
	// ErrNotFound indicates a frame doesn't exist.
	ErrNotFound = errors.New("spilled frame not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("spill store closed")

	// ErrUnsupportedPayload indicates a codec cannot encode a value.
	ErrUnsupportedPayload = errors.New("unsupported payload type")
)

// BytesCodec stores []byte payloads as-is.
type BytesCodec struct{}

// Encode implements Codec.
func (BytesCodec) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrUnsupportedPayload
	}
	return b, nil
}

// Decode implements Codec.
func (BytesCodec) Decode(data []byte) (any, error) {
	return data, nil
}

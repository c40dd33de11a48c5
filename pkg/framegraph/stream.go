package framegraph

import "fmt"

// Frame is one element of a frame stream.
type Frame struct {
	Index int
	Data  any
}

// Source produces an ordered stream of frames.
//
// A rewindable source can be opened more than once; a plan that reads
// a non-rewindable source in two stages fails to compile.
type Source interface {
	// OpenAt returns a handle positioned at the first frame whose index is >= index.
	OpenAt(index int) (Handle, error)

	// Rewindable reports whether OpenAt may be called again after a first open.
	Rewindable() bool
}

// Handle reads frames from an opened Source.
type Handle interface {
	// Next returns the next frame, or ErrExhausted at end of stream.
	Next() (Frame, error)

	Close() error
}

// Sink receives frames in index order.
type Sink interface {
	Write(index int, frame any) error
	Close() error
}

// Sequence is a fully materialized frame stream with random access.
// Batch behaviors receive frame-stream inputs as a Sequence and must
// return frame-stream outputs as one.
type Sequence interface {
	Len() int
	Frame(i int) (Frame, error)
}

// FrameSlice is an in-memory Sequence.
type FrameSlice []Frame

// Len implements Sequence.
func (s FrameSlice) Len() int { return len(s) }

// Frame implements Sequence.
func (s FrameSlice) Frame(i int) (Frame, error) {
	if i < 0 || i >= len(s) {
		return Frame{}, fmt.Errorf("frame position %d out of range [0,%d)", i, len(s))
	}
	return s[i], nil
}

// sequenceHandle replays a Sequence as a Handle.
type sequenceHandle struct {
	seq Sequence
	pos int
}

// Replay returns a Handle that yields the frames of seq in order.
func Replay(seq Sequence) Handle {
	return &sequenceHandle{seq: seq}
}

func (h *sequenceHandle) Next() (Frame, error) {
	if h.pos >= h.seq.Len() {
		return Frame{}, ErrExhausted
	}
	f, err := h.seq.Frame(h.pos)
	if err != nil {
		return Frame{}, err
	}
	h.pos++
	return f, nil
}

func (h *sequenceHandle) Close() error { return nil }

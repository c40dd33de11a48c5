package framegraph

import (
	"fmt"

	"github.com/randalmurphal/framegraph/pkg/framegraph/spill"
)

// frameBuffer accumulates a stream for later full-pass or replay access.
type frameBuffer interface {
	Sequence
	Append(f Frame) error
	// Size returns the bytes written to a spill store, or 0 in memory.
	Size() int64
}

// memoryBuffer keeps frames in memory.
type memoryBuffer struct {
	frames FrameSlice
}

func (b *memoryBuffer) Append(f Frame) error {
	b.frames = append(b.frames, f)
	return nil
}

func (b *memoryBuffer) Len() int                   { return len(b.frames) }
func (b *memoryBuffer) Frame(i int) (Frame, error) { return b.frames.Frame(i) }
func (b *memoryBuffer) Size() int64                { return 0 }

// spillBuffer encodes frames into a spill store and keeps only their indices.
type spillBuffer struct {
	store   spill.Store
	codec   spill.Codec
	runID   string
	stream  string
	indices []int
	size    int64
}

func (b *spillBuffer) Append(f Frame) error {
	data, err := b.codec.Encode(f.Data)
	if err != nil {
		return fmt.Errorf("spill %s frame %d: encode: %w", b.stream, f.Index, err)
	}
	if err := b.store.Put(b.runID, b.stream, len(b.indices), data); err != nil {
		return fmt.Errorf("spill %s frame %d: %w", b.stream, f.Index, err)
	}
	b.indices = append(b.indices, f.Index)
	b.size += int64(len(data))
	return nil
}

func (b *spillBuffer) Len() int { return len(b.indices) }

func (b *spillBuffer) Frame(i int) (Frame, error) {
	if i < 0 || i >= len(b.indices) {
		return Frame{}, fmt.Errorf("frame position %d out of range [0,%d)", i, len(b.indices))
	}
	data, err := b.store.Get(b.runID, b.stream, i)
	if err != nil {
		return Frame{}, fmt.Errorf("spill %s position %d: %w", b.stream, i, err)
	}
	v, err := b.codec.Decode(data)
	if err != nil {
		return Frame{}, fmt.Errorf("spill %s position %d: decode: %w", b.stream, i, err)
	}
	return Frame{Index: b.indices[i], Data: v}, nil
}

func (b *spillBuffer) Size() int64 { return b.size }

// newBuffer returns a spill buffer when a store is configured, else a memory buffer.
func (cfg *runConfig) newBuffer(runID, stream string) frameBuffer {
	if cfg.spillStore == nil {
		return &memoryBuffer{}
	}
	return &spillBuffer{store: cfg.spillStore, codec: cfg.spillCodec, runID: runID, stream: stream}
}

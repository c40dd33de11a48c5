package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
)

// DirSink writes frames as numbered PNG files (frame_000000.png, ...).
type DirSink struct {
	Dir      string
	BitDepth int
	// Pattern is a printf pattern taking the frame index.
	Pattern string

	written int
	ready   bool
}

var _ framegraph.Sink = (*DirSink)(nil)

// NewDirSink returns a sink writing into dir. The directory is created on the
// first write; an existing non-directory at dir is an error.
func NewDirSink(dir string, bitDepth int) (*DirSink, error) {
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		return nil, &fgerrors.IOError{Op: "create output", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return &DirSink{Dir: dir, BitDepth: bitDepth, Pattern: "frame_%06d.png"}, nil
}

// Write implements framegraph.Sink.
func (s *DirSink) Write(index int, frame any) error {
	img, ok := frame.(*Image)
	if !ok {
		return fmt.Errorf("dir sink: unsupported frame %T", frame)
	}
	depth := s.BitDepth
	if depth == 0 {
		depth = 8
	}
	if !s.ready {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return &fgerrors.IOError{Op: "create output", Path: s.Dir, Err: err}
		}
		s.ready = true
	}
	path := filepath.Join(s.Dir, fmt.Sprintf(s.Pattern, index))
	if err := WritePNG(path, img, depth); err != nil {
		return &fgerrors.IOError{Op: "write frame", Path: path, Err: err}
	}
	s.written++
	return nil
}

// Written returns the number of frames written.
func (s *DirSink) Written() int { return s.written }

// Close implements framegraph.Sink.
func (s *DirSink) Close() error { return nil }

// CollectSink keeps written frames in memory.
type CollectSink struct {
	mu      sync.Mutex
	Indices []int
	Images  []*Image
	Closed  bool
}

var _ framegraph.Sink = (*CollectSink)(nil)

// Write implements framegraph.Sink.
func (s *CollectSink) Write(index int, frame any) error {
	img, ok := frame.(*Image)
	if !ok {
		return fmt.Errorf("collect sink: unsupported frame %T", frame)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Indices = append(s.Indices, index)
	s.Images = append(s.Images, img)
	return nil
}

// Close implements framegraph.Sink.
func (s *CollectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

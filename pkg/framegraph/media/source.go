package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
)

// ErrAlreadyOpened is returned when a non-rewindable source is opened twice.
var ErrAlreadyOpened = errors.New("source already opened")

// SliceSource serves in-memory images. Frame i has index Start+i.
type SliceSource struct {
	Images []*Image
	Start  int
	FPS    float64
}

var (
	_ framegraph.Source  = (*SliceSource)(nil)
	_ PropertiesProvider = (*SliceSource)(nil)
)

// OpenAt implements framegraph.Source.
func (s *SliceSource) OpenAt(index int) (framegraph.Handle, error) {
	pos := max(index-s.Start, 0)
	return &funcHandle{pos: pos, n: len(s.Images), frame: func(i int) (framegraph.Frame, error) {
		return framegraph.Frame{Index: s.Start + i, Data: s.Images[i]}, nil
	}}, nil
}

// Rewindable implements framegraph.Source.
func (s *SliceSource) Rewindable() bool { return true }

// Properties implements PropertiesProvider.
func (s *SliceSource) Properties() (Properties, error) {
	p := Properties{FrameCount: len(s.Images), FPS: s.FPS, Source: "memory"}
	if len(s.Images) > 0 {
		p.Width, p.Height = s.Images[0].Width, s.Images[0].Height
	}
	return p, nil
}

// SyntheticSource renders a bright dot moving at constant velocity over a
// dark background. Frames are generated on demand, so any length is cheap.
type SyntheticSource struct {
	Width, Height int
	Count         int
	Channels      int

	// Dot center at frame 0 and per-frame velocity, in pixels.
	X, Y       float64
	VelX, VelY float64
	Radius     float64

	Background float32
}

var (
	_ framegraph.Source  = (*SyntheticSource)(nil)
	_ PropertiesProvider = (*SyntheticSource)(nil)
)

// DotAt returns the dot center in frame i.
func (s *SyntheticSource) DotAt(i int) (float64, float64) {
	return s.X + s.VelX*float64(i), s.Y + s.VelY*float64(i)
}

// Render returns frame i.
func (s *SyntheticSource) Render(i int) *Image {
	ch := s.Channels
	if ch == 0 {
		ch = 3
	}
	img := Filled(s.Width, s.Height, ch, s.Background)
	cx, cy := s.DotAt(i)
	r := s.Radius
	for y := int(math.Floor(cy - r)); y <= int(math.Ceil(cy+r)); y++ {
		for x := int(math.Floor(cx - r)); x <= int(math.Ceil(cx+r)); x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy > r*r {
				continue
			}
			for c := range ch {
				img.Set(x, y, c, 1)
			}
		}
	}
	return img
}

// OpenAt implements framegraph.Source.
func (s *SyntheticSource) OpenAt(index int) (framegraph.Handle, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("synthetic source: invalid size %dx%d", s.Width, s.Height)
	}
	return &funcHandle{pos: max(index, 0), n: s.Count, frame: func(i int) (framegraph.Frame, error) {
		return framegraph.Frame{Index: i, Data: s.Render(i)}, nil
	}}, nil
}

// Rewindable implements framegraph.Source.
func (s *SyntheticSource) Rewindable() bool { return true }

// Properties implements PropertiesProvider.
func (s *SyntheticSource) Properties() (Properties, error) {
	return Properties{Width: s.Width, Height: s.Height, FrameCount: s.Count, FPS: 24, Source: "synthetic"}, nil
}

// funcHandle yields frame(pos) for pos in [pos, n).
type funcHandle struct {
	pos   int
	n     int
	frame func(i int) (framegraph.Frame, error)
}

func (h *funcHandle) Next() (framegraph.Frame, error) {
	if h.pos >= h.n {
		return framegraph.Frame{}, framegraph.ErrExhausted
	}
	f, err := h.frame(h.pos)
	if err != nil {
		return framegraph.Frame{}, err
	}
	h.pos++
	return f, nil
}

func (h *funcHandle) Close() error { return nil }

// onceSource allows a single open.
type onceSource struct {
	framegraph.Source
	mu     sync.Mutex
	opened bool
}

// Once wraps src so it can be opened only once, like a live capture or pipe.
func Once(src framegraph.Source) framegraph.Source {
	return &onceSource{Source: src}
}

func (s *onceSource) OpenAt(index int) (framegraph.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil, ErrAlreadyOpened
	}
	s.opened = true
	return s.Source.OpenAt(index)
}

func (s *onceSource) Rewindable() bool { return false }

func (s *onceSource) Properties() (Properties, error) {
	return SourceProperties(s.Source)
}

// rangeSource limits a source to [first, last].
type rangeSource struct {
	framegraph.Source
	first, last int
}

// Range restricts src to frames with first <= index <= last.
// A negative last means no upper bound.
func Range(src framegraph.Source, first, last int) framegraph.Source {
	if first <= 0 && last < 0 {
		return src
	}
	return &rangeSource{Source: src, first: max(first, 0), last: last}
}

func (s *rangeSource) OpenAt(index int) (framegraph.Handle, error) {
	h, err := s.Source.OpenAt(max(index, s.first))
	if err != nil {
		return nil, err
	}
	return &rangeHandle{Handle: h, last: s.last}, nil
}

func (s *rangeSource) Properties() (Properties, error) {
	p, err := SourceProperties(s.Source)
	if err != nil {
		return p, err
	}
	if p.FrameCount > 0 {
		end := p.FrameCount - 1
		if s.last >= 0 {
			end = min(end, s.last)
		}
		p.FrameCount = max(end-s.first+1, 0)
	}
	return p, nil
}

type rangeHandle struct {
	framegraph.Handle
	last int
}

func (h *rangeHandle) Next() (framegraph.Frame, error) {
	f, err := h.Handle.Next()
	if err != nil {
		return f, err
	}
	if h.last >= 0 && f.Index > h.last {
		return framegraph.Frame{}, framegraph.ErrExhausted
	}
	return f, nil
}

// SourceProperties returns the properties of src if it provides them,
// or zero Properties otherwise.
func SourceProperties(src framegraph.Source) (Properties, error) {
	if p, ok := src.(PropertiesProvider); ok {
		return p.Properties()
	}
	return Properties{}, nil
}

// DirSource reads a directory of PNG frames in file name order.
// Frame i is the i-th file. Reads are retried on transient I/O errors.
type DirSource struct {
	dir   string
	files []string
	retry fgerrors.RetryConfig
	ctx   context.Context
}

var (
	_ framegraph.Source  = (*DirSource)(nil)
	_ PropertiesProvider = (*DirSource)(nil)
)

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithReadRetry sets the retry policy for frame reads.
func WithReadRetry(cfg fgerrors.RetryConfig) DirOption {
	return func(s *DirSource) { s.retry = cfg }
}

// WithReadContext bounds retry backoff by ctx.
func WithReadContext(ctx context.Context) DirOption {
	return func(s *DirSource) {
		if ctx != nil {
			s.ctx = ctx
		}
	}
}

// NewDirSource lists the PNG files in dir.
func NewDirSource(dir string, opts ...DirOption) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &fgerrors.IOError{Op: "open frames", Path: dir, Err: err}
	}
	s := &DirSource{dir: dir, retry: fgerrors.DefaultRetry, ctx: context.Background()}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			s.files = append(s.files, e.Name())
		}
	}
	slices.Sort(s.files)
	if len(s.files) == 0 {
		return nil, &fgerrors.IOError{Op: "open frames", Path: dir, Err: errors.New("no png files")}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Len returns the number of frames.
func (s *DirSource) Len() int { return len(s.files) }

// OpenAt implements framegraph.Source.
func (s *DirSource) OpenAt(index int) (framegraph.Handle, error) {
	return &funcHandle{pos: max(index, 0), n: len(s.files), frame: s.read}, nil
}

// Rewindable implements framegraph.Source.
func (s *DirSource) Rewindable() bool { return true }

// Properties implements PropertiesProvider by decoding the first frame.
func (s *DirSource) Properties() (Properties, error) {
	f, err := s.read(0)
	if err != nil {
		return Properties{}, err
	}
	img := f.Data.(*Image)
	return Properties{Width: img.Width, Height: img.Height, FrameCount: len(s.files), Source: s.dir}, nil
}

func (s *DirSource) read(i int) (framegraph.Frame, error) {
	path := filepath.Join(s.dir, s.files[i])
	res := fgerrors.WithRetryContext(s.ctx, s.retry, func(context.Context) (*Image, error) {
		img, err := ReadPNG(path)
		if err != nil {
			return nil, &fgerrors.IOError{Op: "read frame", Path: path, Err: err}
		}
		return img, nil
	})
	if res.Err != nil {
		return framegraph.Frame{}, res.Err
	}
	return framegraph.Frame{Index: i, Data: res.Value}, nil
}

package media

import (
	"errors"
	"fmt"
	"math"
)

// ErrShape is returned when images that must share dimensions do not.
var ErrShape = errors.New("image shape mismatch")

// Image is a frame or still in linear float samples, nominally in [0, 1].
//
// Samples are stored row-major with interleaved channels: the sample for
// channel c of pixel (x, y) is Pix[(y*Width+x)*Channels+c].
//
// Images passed between nodes are treated as immutable. A behavior that
// needs to modify an input must Clone it first.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

// NewImage returns a black image.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

// Filled returns an image with every sample set to v.
func Filled(width, height, channels int, v float32) *Image {
	img := NewImage(width, height, channels)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Validate reports whether the sample buffer matches the dimensions.
func (m *Image) Validate() error {
	if m == nil {
		return errors.New("nil image")
	}
	if m.Width <= 0 || m.Height <= 0 || m.Channels <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%dx%d", m.Width, m.Height, m.Channels)
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return fmt.Errorf("image %dx%dx%d has %d samples", m.Width, m.Height, m.Channels, len(m.Pix))
	}
	return nil
}

func (m *Image) offset(x, y, c int) int {
	return (y*m.Width+x)*m.Channels + c
}

// At returns the sample at (x, y, c), or 0 outside the image.
func (m *Image) At(x, y, c int) float32 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height || c < 0 || c >= m.Channels {
		return 0
	}
	return m.Pix[m.offset(x, y, c)]
}

// Set stores v at (x, y, c). Out-of-range coordinates are ignored.
func (m *Image) Set(x, y, c int, v float32) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height || c < 0 || c >= m.Channels {
		return
	}
	m.Pix[m.offset(x, y, c)] = v
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{Width: m.Width, Height: m.Height, Channels: m.Channels, Pix: make([]float32, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// SameSize reports whether o has the same width and height.
func (m *Image) SameSize(o *Image) bool {
	return o != nil && m.Width == o.Width && m.Height == o.Height
}

// Luminance returns the mean of the color channels at (x, y).
// The fourth channel of an RGBA image is not included.
func (m *Image) Luminance(x, y int) float32 {
	n := min(m.Channels, 3)
	var sum float32
	for c := range n {
		sum += m.At(x, y, c)
	}
	return sum / float32(n)
}

// Channel returns channel c as a single-channel image.
func (m *Image) Channel(c int) *Image {
	out := NewImage(m.Width, m.Height, 1)
	for y := range m.Height {
		for x := range m.Width {
			out.Pix[y*m.Width+x] = m.At(x, y, c)
		}
	}
	return out
}

// Map returns a new image with fn applied to every sample.
func (m *Image) Map(fn func(v float32) float32) *Image {
	out := &Image{Width: m.Width, Height: m.Height, Channels: m.Channels, Pix: make([]float32, len(m.Pix))}
	for i, v := range m.Pix {
		out.Pix[i] = fn(v)
	}
	return out
}

// Sample returns channel c at the real-valued position (x, y) by bilinear
// interpolation. Positions outside the image read as 0.
func (m *Image) Sample(x, y float64, c int) float32 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := float32(x - float64(x0))
	fy := float32(y - float64(y0))

	top := m.At(x0, y0, c)*(1-fx) + m.At(x0+1, y0, c)*fx
	bottom := m.At(x0, y0+1, c)*(1-fx) + m.At(x0+1, y0+1, c)*fx
	return top*(1-fy) + bottom*fy
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	case v != v: // NaN
		return 0
	default:
		return v
	}
}

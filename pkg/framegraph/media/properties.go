package media

import "fmt"

// Default frame size assumed when a stream's properties are unknown.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Properties describes a frame stream.
type Properties struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps,omitempty"`
	FrameCount int     `json:"frame_count"`
	Source     string  `json:"source,omitempty"`
}

// String returns a short description such as "1920x1080 @ 24fps, 120 frames".
func (p Properties) String() string {
	s := fmt.Sprintf("%dx%d", p.Width, p.Height)
	if p.FPS > 0 {
		s += fmt.Sprintf(" @ %gfps", p.FPS)
	}
	if p.FrameCount > 0 {
		s += fmt.Sprintf(", %d frames", p.FrameCount)
	}
	return s
}

// Size returns the frame size, falling back to DefaultWidth x DefaultHeight.
func (p Properties) Size() (int, int) {
	w, h := p.Width, p.Height
	if w <= 0 || h <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return w, h
}

// PropertiesProvider is implemented by sources that know their properties
// without reading frames.
type PropertiesProvider interface {
	Properties() (Properties, error)
}

// ROI is a rectangular region of interest in pixels.
// A zero width or height means the full frame.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether r selects the full frame.
func (r ROI) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Clip returns r limited to a width x height frame.
// An empty r becomes the full frame.
func (r ROI) Clip(width, height int) ROI {
	if r.Empty() {
		return ROI{Width: width, Height: height}
	}
	x0 := max(0, min(r.X, width))
	y0 := max(0, min(r.Y, height))
	x1 := max(x0, min(r.X+r.Width, width))
	y1 := max(y0, min(r.Y+r.Height, height))
	return ROI{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

package media

import (
	"math"
	"slices"
)

// TrackPoint is the position of a tracked feature in one frame.
// Normalized points are in [0, 1] with the origin at the bottom left,
// as exported by 3D trackers; pixel points use the image origin.
type TrackPoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Normalized bool    `json:"normalized,omitempty"`
}

// Pixels converts a normalized point to pixels in a w x h image.
// Pixel points are returned as is.
func (p TrackPoint) Pixels(w, h int) TrackPoint {
	if !p.Normalized {
		return p
	}
	return TrackPoint{X: p.X * float64(w), Y: (1 - p.Y) * float64(h)}
}

// Normalize converts a pixel point in a w x h image to normalized y-up
// coordinates. Normalized points are returned as is.
func (p TrackPoint) Normalize(w, h int) TrackPoint {
	if p.Normalized {
		return p
	}
	return TrackPoint{X: p.X / float64(w), Y: 1 - p.Y/float64(h), Normalized: true}
}

// TrackData maps frame index to feature position.
// Frames where the feature was lost are absent.
type TrackData map[int]TrackPoint

// Frames returns the tracked frame indices in ascending order.
func (t TrackData) Frames() []int {
	frames := make([]int, 0, len(t))
	for f := range t {
		frames = append(frames, f)
	}
	slices.Sort(frames)
	return frames
}

// Clone returns a copy of t.
func (t TrackData) Clone() TrackData {
	out := make(TrackData, len(t))
	for f, p := range t {
		out[f] = p
	}
	return out
}

// Smooth returns t with a gaussian filter of the given sigma applied to the
// X and Y series in frame order. Edges are handled by reflection.
// A non-positive sigma returns a copy.
func (t TrackData) Smooth(sigma float64) TrackData {
	frames := t.Frames()
	if sigma <= 0 || len(frames) < 2 {
		return t.Clone()
	}

	xs := make([]float64, len(frames))
	ys := make([]float64, len(frames))
	for i, f := range frames {
		xs[i] = t[f].X
		ys[i] = t[f].Y
	}
	kernel := GaussianKernel(sigma)
	xs = Convolve1D(xs, kernel)
	ys = Convolve1D(ys, kernel)

	out := make(TrackData, len(frames))
	for i, f := range frames {
		out[f] = TrackPoint{X: xs[i], Y: ys[i], Normalized: t[f].Normalized}
	}
	return out
}

// GaussianKernel returns a normalized kernel truncated at four sigma.
func GaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// Convolve1D convolves xs with an odd-length kernel, reflecting at the edges
// (d c b a | a b c d | d c b a).
func Convolve1D(xs, kernel []float64) []float64 {
	n := len(xs)
	radius := len(kernel) / 2
	out := make([]float64, n)
	for i := range n {
		var acc float64
		for k := -radius; k <= radius; k++ {
			acc += kernel[k+radius] * xs[reflect(i+k, n)]
		}
		out[i] = acc
	}
	return out
}

// reflect folds i into [0, n) by mirroring about the edges.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

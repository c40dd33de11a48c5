package media

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Affine is a 2x3 affine matrix [a b c; d e f] mapping (x, y) to
// (a*x + b*y + c, d*x + e*y + f).
type Affine [6]float64

// Identity is the identity transform.
var Identity = Affine{1, 0, 0, 0, 1, 0}

// Translate returns a translation by (dx, dy).
func Translate(dx, dy float64) Affine {
	return Affine{1, 0, dx, 0, 1, dy}
}

// RotateScale returns a rotation by rad counter-clockwise (in a y-up frame)
// combined with a uniform scale, about the origin.
func RotateScale(rad, scale float64) Affine {
	c := math.Cos(rad) * scale
	s := math.Sin(rad) * scale
	return Affine{c, -s, 0, s, c, 0}
}

// Mul returns m·n, the transform that applies n first and then m.
func (m Affine) Mul(n Affine) Affine {
	return Affine{
		m[0]*n[0] + m[1]*n[3],
		m[0]*n[1] + m[1]*n[4],
		m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3],
		m[3]*n[1] + m[4]*n[4],
		m[3]*n[2] + m[4]*n[5] + m[5],
	}
}

// Apply maps the point (x, y).
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// ErrSingular is returned when inverting a degenerate transform.
var ErrSingular = errors.New("singular transform")

// Invert returns the inverse transform.
func (m Affine) Invert() (Affine, error) {
	det := m[0]*m[4] - m[1]*m[3]
	if math.Abs(det) < 1e-12 {
		return Affine{}, ErrSingular
	}
	inv := 1 / det
	a := m[4] * inv
	b := -m[1] * inv
	d := -m[3] * inv
	e := m[0] * inv
	return Affine{a, b, -(a*m[2] + b*m[5]), d, e, -(d*m[2] + e*m[5])}, nil
}

// Transform is the stabilizing correction for one frame: the tracked point
// (PntX, PntY) is moved onto the reference point (RefX, RefY) after rotating
// by Rotation radians and scaling by Scale around it.
type Transform struct {
	PntX     float64 `json:"pnt_x"`
	PntY     float64 `json:"pnt_y"`
	RefX     float64 `json:"ref_x"`
	RefY     float64 `json:"ref_y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// Matrix returns the affine transform for output canvases padded by
// (xPad, yPad) and shifted by (xOff, yOff).
func (t Transform) Matrix(xPad, yPad, xOff, yOff float64) Affine {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	offset := Translate(-t.PntX, -t.PntY)
	place := Translate(t.RefX+xPad/2+xOff, t.RefY+yPad/2+yOff)
	return place.Mul(RotateScale(t.Rotation, scale)).Mul(offset)
}

// TransformSequence holds the per-frame transforms computed by a stabilizer.
type TransformSequence struct {
	// Frames lists the frames with a transform in ascending order.
	Frames     []int
	Transforms map[int]Transform
}

// NewTransformSequence builds a sequence from a frame map.
func NewTransformSequence(transforms map[int]Transform) TransformSequence {
	frames := make([]int, 0, len(transforms))
	for f := range transforms {
		frames = append(frames, f)
	}
	slices.Sort(frames)
	return TransformSequence{Frames: frames, Transforms: transforms}
}

// At returns the transform for frame.
func (s TransformSequence) At(frame int) (Transform, bool) {
	t, ok := s.Transforms[frame]
	return t, ok
}

// Matrix returns the padded matrix for frame. Frames without a transform are
// only centered on the padded canvas.
func (s TransformSequence) Matrix(frame int, xPad, yPad, xOff, yOff float64) Affine {
	t, ok := s.Transforms[frame]
	if !ok {
		return Translate(xPad/2+xOff, yPad/2+yOff)
	}
	return t.Matrix(xPad, yPad, xOff, yOff)
}

// Warp maps img through m onto a width x height canvas using bilinear
// sampling of the inverse transform. The returned mask is 1 where the
// output pixel maps inside the source image and 0 elsewhere.
func Warp(img *Image, m Affine, width, height int) (*Image, *Image, error) {
	if width <= 0 || height <= 0 {
		return nil, nil, fmt.Errorf("invalid warp size %dx%d", width, height)
	}
	inv, err := m.Invert()
	if err != nil {
		return nil, nil, err
	}

	out := NewImage(width, height, img.Channels)
	mask := NewImage(width, height, 1)
	maxX := float64(img.Width - 1)
	maxY := float64(img.Height - 1)
	for y := range height {
		for x := range width {
			sx, sy := inv.Apply(float64(x), float64(y))
			if sx < -0.5 || sy < -0.5 || sx > maxX+0.5 || sy > maxY+0.5 {
				continue
			}
			sx = math.Max(0, math.Min(maxX, sx))
			sy = math.Max(0, math.Min(maxY, sy))
			for c := range img.Channels {
				out.Set(x, y, c, img.Sample(sx, sy, c))
			}
			mask.Pix[y*width+x] = 1
		}
	}
	return out, mask, nil
}

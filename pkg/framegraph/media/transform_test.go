package media

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPoint(t *testing.T, wantX, wantY, gotX, gotY float64) {
	t.Helper()
	assert.InDelta(t, wantX, gotX, 1e-9, "x")
	assert.InDelta(t, wantY, gotY, 1e-9, "y")
}

func TestTransform_MatrixMovesPointOntoReference(t *testing.T) {
	tr := Transform{PntX: 10, PntY: 20, RefX: 12, RefY: 18, Scale: 1}

	x, y := tr.Matrix(0, 0, 0, 0).Apply(10, 20)
	assertPoint(t, 12, 18, x, y)

	x, y = tr.Matrix(4, 6, 1, 0).Apply(10, 20)
	assertPoint(t, 15, 21, x, y)
}

func TestTransform_RotationAndScale(t *testing.T) {
	tr := Transform{PntX: 10, PntY: 20, RefX: 12, RefY: 20, Rotation: math.Pi / 2, Scale: 2}
	m := tr.Matrix(0, 0, 0, 0)

	x, y := m.Apply(11, 20)
	assertPoint(t, 12, 22, x, y)

	// Zero scale is treated as 1.
	x, y = Transform{PntX: 1, PntY: 1, RefX: 1, RefY: 1}.Matrix(0, 0, 0, 0).Apply(3, 1)
	assertPoint(t, 3, 1, x, y)
}

func TestAffine_Invert(t *testing.T) {
	m := Translate(3, -2).Mul(RotateScale(0.3, 1.5))
	inv, err := m.Invert()
	require.NoError(t, err)

	got := m.Mul(inv)
	for i := range got {
		assert.InDelta(t, Identity[i], got[i], 1e-9)
	}

	_, err = Affine{1, 2, 0, 2, 4, 0}.Invert()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestTransformSequence(t *testing.T) {
	seq := NewTransformSequence(map[int]Transform{
		5: {PntX: 1, PntY: 1, RefX: 0, RefY: 0, Scale: 1},
		2: {Scale: 1},
	})
	assert.Equal(t, []int{2, 5}, seq.Frames)

	_, ok := seq.At(3)
	assert.False(t, ok)

	x, y := seq.Matrix(3, 10, 4, 0, 0).Apply(0, 0)
	assertPoint(t, 5, 2, x, y)

	x, y = seq.Matrix(5, 0, 0, 0, 0).Apply(1, 1)
	assertPoint(t, 0, 0, x, y)
}

func TestWarp(t *testing.T) {
	img := NewImage(3, 1, 1)
	copy(img.Pix, []float32{0.1, 0.2, 0.3})

	out, mask, err := Warp(img, Translate(1, 0), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.1, 0.2}, out.Pix)
	assert.Equal(t, []float32{0, 1, 1}, mask.Pix)

	// Output canvas larger than the input.
	out, mask, err = Warp(img, Identity, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, float32(0.3), out.At(2, 0, 0))
	assert.Equal(t, float32(0), mask.At(3, 0, 0))
	assert.Equal(t, float32(0), mask.At(0, 1, 0))

	_, _, err = Warp(img, Affine{}, 3, 1)
	assert.ErrorIs(t, err, ErrSingular)
	_, _, err = Warp(img, Identity, 0, 1)
	assert.Error(t, err)
}

func TestTrackData_FramesAndSmooth(t *testing.T) {
	td := TrackData{
		3: {X: 5, Y: 1},
		1: {X: 5, Y: 1},
		2: {X: 5, Y: 1},
		7: {X: 5, Y: 1},
	}
	assert.Equal(t, []int{1, 2, 3, 7}, td.Frames())

	smoothed := td.Smooth(2)
	require.Len(t, smoothed, 4)
	for _, f := range td.Frames() {
		assert.InDelta(t, 5, smoothed[f].X, 1e-9)
		assert.InDelta(t, 1, smoothed[f].Y, 1e-9)
	}

	spike := TrackData{0: {X: 0}, 1: {X: 0}, 2: {X: 10}, 3: {X: 0}, 4: {X: 0}}
	s := spike.Smooth(1)
	assert.Less(t, s[2].X, 10.0)
	assert.Greater(t, s[1].X, 0.0)
	assert.InDelta(t, s[1].X, s[3].X, 1e-9)

	same := spike.Smooth(0)
	assert.Equal(t, spike, same)
	same[2] = TrackPoint{}
	assert.Equal(t, 10.0, spike[2].X, "Smooth returns a copy")
}

func TestGaussianKernel(t *testing.T) {
	k := GaussianKernel(1.5)
	assert.Len(t, k, 13)
	var sum float64
	for i, v := range k {
		sum += v
		assert.InDelta(t, k[len(k)-1-i], v, 1e-12)
	}
	assert.InDelta(t, 1, sum, 1e-12)
}

func TestReflect(t *testing.T) {
	got := make([]int, 0)
	for i := -3; i < 7; i++ {
		got = append(got, reflect(i, 4))
	}
	assert.Equal(t, []int{2, 1, 0, 0, 1, 2, 3, 3, 2, 1}, got)
	assert.Equal(t, 0, reflect(5, 1))
}

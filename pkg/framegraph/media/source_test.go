package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain reads every frame index from a handle.
func drain(t *testing.T, h framegraph.Handle) []int {
	t.Helper()
	var got []int
	for {
		f, err := h.Next()
		if errors.Is(err, framegraph.ErrExhausted) {
			break
		}
		require.NoError(t, err)
		got = append(got, f.Index)
	}
	require.NoError(t, h.Close())
	return got
}

func TestSliceSource(t *testing.T) {
	src := &SliceSource{Images: []*Image{Filled(2, 2, 3, 0), Filled(2, 2, 3, 1), Filled(2, 2, 3, 0.5)}, Start: 10}

	h, err := src.OpenAt(0)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, drain(t, h))

	h, err = src.OpenAt(11)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12}, drain(t, h))

	props, err := src.Properties()
	require.NoError(t, err)
	assert.Equal(t, Properties{Width: 2, Height: 2, FrameCount: 3, Source: "memory"}, props)
	assert.True(t, src.Rewindable())
}

func TestSyntheticSource(t *testing.T) {
	src := &SyntheticSource{Width: 16, Height: 8, Count: 4, X: 5, Y: 4, VelX: 1, Radius: 1, Background: 0.1}

	h, err := src.OpenAt(2)
	require.NoError(t, err)
	f, err := h.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Index)

	img := f.Data.(*Image)
	assert.Equal(t, 3, img.Channels)
	assert.Equal(t, float32(1), img.At(7, 4, 0))
	assert.Equal(t, float32(0.1), img.At(0, 0, 0))

	_, err = (&SyntheticSource{Count: 1}).OpenAt(0)
	assert.Error(t, err)
}

func TestOnce(t *testing.T) {
	src := Once(&SyntheticSource{Width: 4, Height: 4, Count: 2})
	assert.False(t, src.Rewindable())

	h, err := src.OpenAt(0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, drain(t, h))

	_, err = src.OpenAt(0)
	assert.ErrorIs(t, err, ErrAlreadyOpened)

	props, err := SourceProperties(src)
	require.NoError(t, err)
	assert.Equal(t, 2, props.FrameCount)
}

func TestRange(t *testing.T) {
	base := &SyntheticSource{Width: 4, Height: 4, Count: 6}
	assert.Same(t, base, Range(base, 0, -1))

	src := Range(base, 2, 3)
	assert.True(t, src.Rewindable())

	h, err := src.OpenAt(0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, drain(t, h))

	h, err = src.OpenAt(3)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, drain(t, h))

	props, err := SourceProperties(src)
	require.NoError(t, err)
	assert.Equal(t, 2, props.FrameCount)

	open, err := SourceProperties(Range(base, 4, -1))
	require.NoError(t, err)
	assert.Equal(t, 2, open.FrameCount)
}

func TestPNG_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		channels int
		depth    int
		delta    float64
	}{
		{"gray 8", 1, 8, 1.0 / 255},
		{"gray 16", 1, 16, 1.0 / 65535},
		{"rgb 8", 3, 8, 1.0 / 255},
		{"rgb 16", 3, 16, 1.0 / 65535},
		{"rgba 8", 4, 8, 2.0 / 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := NewImage(3, 2, tt.channels)
			for i := range img.Pix {
				img.Pix[i] = float32(i%5) / 4
			}
			if tt.channels == 4 {
				for p := 0; p < 6; p++ {
					img.Pix[p*4+3] = 1
				}
				img.Pix[3] = 0.5
			}

			path := filepath.Join(dir, tt.name+".png")
			require.NoError(t, WritePNG(path, img, tt.depth))

			got, err := ReadPNG(path)
			require.NoError(t, err)
			require.Equal(t, tt.channels, got.Channels)
			require.Len(t, got.Pix, len(img.Pix))
			for i := range img.Pix {
				assert.InDelta(t, img.Pix[i], got.Pix[i], tt.delta, "sample %d", i)
			}
		})
	}
}

func TestPNG_Errors(t *testing.T) {
	dir := t.TempDir()
	img := NewImage(2, 2, 3)

	assert.Error(t, WritePNG(filepath.Join(dir, "a.png"), img, 12))
	assert.Error(t, WritePNG(filepath.Join(dir, "b.png"), NewImage(2, 2, 2), 8))

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	_, err := ReadPNG(bad)
	assert.Error(t, err)
}

func TestDirSinkAndSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink, err := NewDirSink(dir, 16)
	require.NoError(t, err)

	synth := &SyntheticSource{Width: 6, Height: 4, Count: 3, X: 1, Y: 1, VelX: 2, Radius: 0.5}
	for i := range 3 {
		require.NoError(t, sink.Write(i, synth.Render(i)))
	}
	require.NoError(t, sink.Close())
	assert.Equal(t, 3, sink.Written())
	assert.FileExists(t, filepath.Join(dir, "frame_000002.png"))
	assert.Error(t, sink.Write(3, "not an image"))

	src, err := NewDirSource(dir, WithReadRetry(fgerrors.NoRetry))
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	props, err := src.Properties()
	require.NoError(t, err)
	assert.Equal(t, 6, props.Width)
	assert.Equal(t, 4, props.Height)
	assert.Equal(t, 3, props.FrameCount)

	h, err := src.OpenAt(1)
	require.NoError(t, err)
	f, err := h.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)
	assert.InDelta(t, 1, f.Data.(*Image).At(3, 1, 0), 1e-4)
}

func TestDirSource_Errors(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing"))
	var ioErr *fgerrors.IOError
	require.True(t, errors.As(err, &ioErr))

	empty := t.TempDir()
	_, err = NewDirSource(empty)
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_000000.png"), []byte("junk"), 0o644))
	src, err := NewDirSource(dir)
	require.NoError(t, err)

	h, err := src.OpenAt(0)
	require.NoError(t, err)
	_, err = h.Next()
	require.Error(t, err)
	assert.True(t, errors.As(err, &ioErr))
	assert.Equal(t, fgerrors.CategoryUser, fgerrors.Categorize(err), "decode failures are not retried")
}

func TestCollectSink(t *testing.T) {
	var sink CollectSink
	require.NoError(t, sink.Write(4, NewImage(1, 1, 1)))
	assert.Error(t, sink.Write(5, 3))
	require.NoError(t, sink.Close())
	assert.Equal(t, []int{4}, sink.Indices)
	assert.True(t, sink.Closed)
}

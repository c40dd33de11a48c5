package media

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// FromImage converts a decoded image. Grayscale images become single-channel,
// opaque images three-channel and everything else RGBA with straight alpha.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src.(type) {
	case *image.Gray, *image.Gray16:
		out := NewImage(w, h, 1)
		for y := range h {
			for x := range w {
				g := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				out.Pix[y*w+x] = float32(g.Y) / 0xffff
			}
		}
		return out
	}

	channels := 4
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		channels = 3
	}
	out := NewImage(w, h, channels)
	for y := range h {
		for x := range w {
			c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i := (y*w + x) * channels
			out.Pix[i] = float32(c.R) / 0xffff
			out.Pix[i+1] = float32(c.G) / 0xffff
			out.Pix[i+2] = float32(c.B) / 0xffff
			if channels == 4 {
				out.Pix[i+3] = float32(c.A) / 0xffff
			}
		}
	}
	return out
}

// ToImage converts img to an 8 or 16 bit image, clamping samples to [0, 1].
// Single-channel images become grayscale; two channels are not supported.
func ToImage(img *Image, bitDepth int) (image.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if bitDepth != 8 && bitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if img.Channels == 2 || img.Channels > 4 {
		return nil, fmt.Errorf("unsupported channel count %d", img.Channels)
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	q8 := func(v float32) uint8 { return uint8(Clamp01(v)*0xff + 0.5) }
	q16 := func(v float32) uint16 { return uint16(Clamp01(v)*0xffff + 0.5) }

	if img.Channels == 1 {
		if bitDepth == 8 {
			out := image.NewGray(rect)
			for i, v := range img.Pix {
				out.Pix[i] = q8(v)
			}
			return out, nil
		}
		out := image.NewGray16(rect)
		for y := range img.Height {
			for x := range img.Width {
				out.SetGray16(x, y, color.Gray16{Y: q16(img.Pix[y*img.Width+x])})
			}
		}
		return out, nil
	}

	alpha := func(x, y int) float32 {
		if img.Channels == 4 {
			return img.At(x, y, 3)
		}
		return 1
	}
	if bitDepth == 8 {
		out := image.NewNRGBA(rect)
		for y := range img.Height {
			for x := range img.Width {
				out.SetNRGBA(x, y, color.NRGBA{
					R: q8(img.At(x, y, 0)), G: q8(img.At(x, y, 1)), B: q8(img.At(x, y, 2)), A: q8(alpha(x, y)),
				})
			}
		}
		return out, nil
	}
	out := image.NewNRGBA64(rect)
	for y := range img.Height {
		for x := range img.Width {
			out.SetNRGBA64(x, y, color.NRGBA64{
				R: q16(img.At(x, y, 0)), G: q16(img.At(x, y, 1)), B: q16(img.At(x, y, 2)), A: q16(alpha(x, y)),
			})
		}
	}
	return out, nil
}

// ReadPNG decodes the PNG file at path.
func ReadPNG(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(src), nil
}

// WritePNG encodes img to path at the given bit depth.
func WritePNG(path string, img *Image, bitDepth int) error {
	out, err := ToImage(img, bitDepth)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

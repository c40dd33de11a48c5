package nodes

import (
	"fmt"
	"math"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

func applyTransformType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "apply_transform",
		Description: "Warp frames by per-frame transforms onto a padded canvas",
		Category:    CategoryTransform,
		Capability:  framegraph.Streaming,
		Inputs: []framegraph.PortSpec{
			reqPort("video_in", framegraph.KindFrameStream),
			reqPort("transforms", framegraph.KindTransformSequence),
		},
		Outputs: []framegraph.PortSpec{
			outPort("video_out", framegraph.KindFrameStream),
			outPort("mask", framegraph.KindFrameStream),
		},
		Options: config.Schema{
			{Name: "x_pad", Type: config.TypeInt, Default: 0, Min: config.Bound(0)},
			{Name: "y_pad", Type: config.TypeInt, Default: 0, Min: config.Bound(0)},
			{Name: "x_offset", Type: config.TypeFloat, Default: 0.0},
			{Name: "y_offset", Type: config.TypeFloat, Default: 0.0},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			xPad, yPad := cfg.Int("x_pad", 0), cfg.Int("y_pad", 0)
			xOff, yOff := cfg.Float("x_offset", 0), cfg.Float("y_offset", 0)

			return stepFunc(func(_ framegraph.Context, index int, in framegraph.Values) (framegraph.Values, error) {
				img, err := image(in, "video_in")
				if err != nil {
					return nil, err
				}
				seq, ok, err := artifact[media.TransformSequence](in, "transforms")
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, fmt.Errorf("input %q: no value", "transforms")
				}
				m := seq.Matrix(index, float64(xPad), float64(yPad), xOff, yOff)
				warped, mask, err := media.Warp(img, m, img.Width+xPad, img.Height+yPad)
				if err != nil {
					return nil, fmt.Errorf("frame %d: %w", index, err)
				}
				return framegraph.Values{"video_out": warped, "mask": mask}, nil
			}), nil
		},
	}
}

// Gamma modes.
const (
	GammaToLinear = "to_linear"
	GammaToSRGB   = "to_srgb"
)

func gammaType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "gamma",
		Description: "Convert frames between display gamma and linear light",
		Category:    CategoryColor,
		Capability:  framegraph.Streaming,
		Inputs:      []framegraph.PortSpec{reqPort("video_in", framegraph.KindFrameStream)},
		Outputs:     []framegraph.PortSpec{outPort("video_out", framegraph.KindFrameStream)},
		Options: config.Schema{
			{Name: "mode", Type: config.TypeString, Default: GammaToLinear, Choices: []any{GammaToLinear, GammaToSRGB}},
			{Name: "gamma", Type: config.TypeFloat, Default: 2.2, Min: config.Bound(1), Max: config.Bound(3)},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			exp := cfg.Float("gamma", 2.2)
			if cfg.String("mode", GammaToLinear) == GammaToSRGB {
				exp = 1 / exp
			}
			apply := func(v float32) float32 {
				return float32(math.Pow(float64(media.Clamp01(v)), exp))
			}
			return stepFunc(func(_ framegraph.Context, _ int, in framegraph.Values) (framegraph.Values, error) {
				img, err := image(in, "video_in")
				if err != nil {
					return nil, err
				}
				return framegraph.Values{"video_out": gammaImage(img, apply)}, nil
			}), nil
		},
	}
}

func claheType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "clahe",
		Description: "Local contrast enhancement by contrast limited adaptive histogram equalization",
		Category:    CategoryColor,
		Capability:  framegraph.Streaming,
		Inputs:      []framegraph.PortSpec{reqPort("video_in", framegraph.KindFrameStream)},
		Outputs:     []framegraph.PortSpec{outPort("video_out", framegraph.KindFrameStream)},
		Options: config.Schema{
			{Name: "clip_limit", Type: config.TypeFloat, Default: 40.0, Min: config.Bound(1), Max: config.Bound(100),
				Description: "histogram clip as a multiple of the mean bin count"},
			{Name: "grid_size", Type: config.TypeInt, Default: 8, Min: config.Bound(2), Max: config.Bound(32),
				Description: "tiles per side"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			clip, grid := cfg.Float("clip_limit", 40), cfg.Int("grid_size", 8)
			return stepFunc(func(_ framegraph.Context, _ int, in framegraph.Values) (framegraph.Values, error) {
				img, err := image(in, "video_in")
				if err != nil {
					return nil, err
				}
				return framegraph.Values{"video_out": media.CLAHE(img, clip, grid)}, nil
			}), nil
		},
	}
}

// gammaImage applies fn to the color channels, leaving a fourth channel as is.
func gammaImage(img *media.Image, fn func(float32) float32) *media.Image {
	res := img.Clone()
	colors := min(img.Channels, 3)
	for i := 0; i < len(res.Pix); i += img.Channels {
		for c := range colors {
			res.Pix[i+c] = fn(res.Pix[i+c])
		}
	}
	return res
}

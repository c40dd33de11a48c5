package nodes

import (
	"errors"
	"fmt"
	"math"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

// Compositing modes of frame_average.
const (
	CompOnBlack   = "on_black"
	CompOnWhite   = "on_white"
	CompUnpremult = "unpremult"
)

// ErrNoFrames is returned by frame_average when its stream was empty.
var ErrNoFrames = errors.New("no frames were averaged")

func frameAverageType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "frame_average",
		Description: "Average a frame stream into a single image and alpha",
		Category:    CategoryComposite,
		Capability:  framegraph.Streaming,
		Inputs: []framegraph.PortSpec{
			reqPort("video", framegraph.KindFrameStream),
			optPort("mask", framegraph.KindFrameStream),
		},
		Outputs: []framegraph.PortSpec{
			outPort("image", framegraph.KindImage),
			outPort("alpha", framegraph.KindMask),
		},
		Options: config.Schema{
			{Name: "comp_mode", Type: config.TypeString, Default: CompOnBlack,
				Choices: []any{CompOnBlack, CompOnWhite, CompUnpremult}},
			{Name: "brightness", Type: config.TypeFloat, Default: 1.0, Min: config.Bound(0)},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			return &averager{
				mode:       cfg.String("comp_mode", CompOnBlack),
				brightness: float32(cfg.Float("brightness", 1)),
			}, nil
		},
	}
}

// averager keeps running sums, so memory does not grow with stream length.
type averager struct {
	mode       string
	brightness float32

	sum      *media.Image
	alphaSum *media.Image
	count    int
}

func (a *averager) Step(_ framegraph.Context, index int, in framegraph.Values) (framegraph.Values, error) {
	img, err := image(in, "video")
	if err != nil {
		return nil, err
	}
	mask, err := optionalImage(in, "mask")
	if err != nil {
		return nil, err
	}
	if mask != nil && !img.SameSize(mask) {
		return nil, fmt.Errorf("frame %d: %w: mask %dx%d, frame %dx%d",
			index, media.ErrShape, mask.Width, mask.Height, img.Width, img.Height)
	}

	colors := min(img.Channels, 3)
	if a.sum == nil {
		a.sum = media.NewImage(img.Width, img.Height, colors)
		a.alphaSum = media.NewImage(img.Width, img.Height, 1)
	} else if !a.sum.SameSize(img) || a.sum.Channels != colors {
		return nil, fmt.Errorf("frame %d: %w: %dx%dx%d after %dx%dx%d", index, media.ErrShape,
			img.Width, img.Height, colors, a.sum.Width, a.sum.Height, a.sum.Channels)
	}

	for p := range img.Width * img.Height {
		for c := range colors {
			a.sum.Pix[p*colors+c] += img.Pix[p*img.Channels+c]
		}
		if mask != nil {
			a.alphaSum.Pix[p] += mask.Pix[p*mask.Channels]
		} else {
			a.alphaSum.Pix[p] += luminanceAlpha(img, p)
		}
	}
	a.count++
	return nil, nil
}

// luminanceAlpha estimates coverage from brightness: dark pixels are empty.
func luminanceAlpha(img *media.Image, p int) float32 {
	l := img.Luminance(p%img.Width, p/img.Width)
	v := media.Clamp01(l * 255 / 16)
	return float32(math.Pow(float64(v), 4))
}

func (a *averager) Finish(framegraph.Context) (framegraph.Values, error) {
	if a.count == 0 {
		return nil, ErrNoFrames
	}
	n := float32(a.count)
	result := media.NewImage(a.sum.Width, a.sum.Height, a.sum.Channels)
	alpha := media.NewImage(a.sum.Width, a.sum.Height, 1)

	for p := range alpha.Pix {
		avgAlpha := a.alphaSum.Pix[p] / n
		alpha.Pix[p] = media.Clamp01(avgAlpha)
		comp := max(0.000003, min(avgAlpha, 1))
		for c := range result.Channels {
			v := a.sum.Pix[p*result.Channels+c] / n
			switch a.mode {
			case CompOnWhite:
				v = (1 - comp) + v
			case CompUnpremult:
				v /= comp
			}
			result.Pix[p*result.Channels+c] = media.Clamp01(v * a.brightness)
		}
	}
	return framegraph.Values{"image": result, "alpha": alpha}, nil
}

func postprocessType(env Env) framegraph.NodeType {
	var names []any
	for _, info := range env.Ops.List() {
		names = append(names, info.Name)
	}
	options := config.Schema{
		{Name: "operation", Type: config.TypeString, Required: true, Choices: names, Description: "name of a registered operation"},
	}
	// Parameters of every registered operation are accepted.
	seen := map[string]bool{"operation": true}
	for _, info := range env.Ops.List() {
		for _, o := range info.Options {
			if !seen[o.Name] {
				seen[o.Name] = true
				options = append(options, o)
			}
		}
	}

	return framegraph.NodeType{
		Name:        "postprocess",
		Description: "Apply a named operation to an image and alpha",
		Category:    CategoryComposite,
		Capability:  framegraph.Batch,
		Inputs: []framegraph.PortSpec{
			reqPort("image", framegraph.KindImage),
			optPort("alpha", framegraph.KindMask),
		},
		Outputs: []framegraph.PortSpec{outPort("image", framegraph.KindImage)},
		Options: options,
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			name := cfg.String("operation", "")
			if _, err := env.Ops.Lookup(name); err != nil {
				return nil, err
			}
			return computeFunc(func(ctx framegraph.Context, in framegraph.Values) (framegraph.Values, error) {
				img, err := image(in, "image")
				if err != nil {
					return nil, err
				}
				alpha, err := optionalImage(in, "alpha")
				if err != nil {
					return nil, err
				}
				res, err := env.Ops.Apply(name, img, alpha, cfg)
				if err != nil {
					return nil, err
				}
				ctx.Logger().Debug("applied operation", "operation", name)
				return framegraph.Values{"image": res}, nil
			}), nil
		},
	}
}

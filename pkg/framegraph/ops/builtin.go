package ops

import (
	"math"

	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

// Alpha below this is treated as empty when dividing.
const minAlpha = 0.001

// RefineAlphaOptions are the parameters of refine_alpha.
var RefineAlphaOptions = config.Schema{
	{Name: "gamma", Type: config.TypeFloat, Default: 2.2, Min: config.Bound(0.01), Description: "inverse gamma applied to alpha; 1 skips"},
	{Name: "contrast", Type: config.TypeFloat, Default: 60.0, Min: config.Bound(0), Description: "sigmoid contrast; 0 skips"},
	{Name: "threshold", Type: config.TypeFloat, Default: 0.0015, Description: "sigmoid midpoint"},
	{Name: "blur_size", Type: config.TypeFloat, Default: 5.0, Min: config.Bound(0), Description: "blur size, sigma is half; 0 skips"},
	{Name: "power", Type: config.TypeFloat, Default: 8.0, Min: config.Bound(0), Description: "power curve; 1 skips"},
}

// RegisterBuiltins adds the builtin operations to r.
func RegisterBuiltins(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register("comp_on_white", "Composite image over white background using alpha", compOnWhite))
	must(r.Register("comp_on_black", "Composite image over black background using alpha", compOnBlack))
	must(r.Register("refine_alpha", "Gamma + contrast + blur + power on alpha, composite on white", refineAlpha, RefineAlphaOptions...))
	must(r.Register("divide_alpha", "Divide RGB by alpha (unpremultiply, on black)", divideAlpha))
	must(r.Register("unpremult_on_white", "Unpremultiply then add inverse alpha for white background", unpremultOnWhite))
}

// alphaAt returns channel 0 of alpha at pixel i, or 1 without a matte.
func alphaAt(alpha *media.Image, i int) float32 {
	if alpha == nil {
		return 1
	}
	return alpha.Pix[i*alpha.Channels]
}

// colorOp builds an image with the color channels of img, computing each
// sample from the input sample and the pixel's alpha.
func colorOp(img, alpha *media.Image, fn func(v, a float32) float32) *media.Image {
	ch := min(img.Channels, 3)
	out := media.NewImage(img.Width, img.Height, ch)
	for i := range img.Width * img.Height {
		a := alphaAt(alpha, i)
		for c := range ch {
			out.Pix[i*ch+c] = media.Clamp01(fn(img.Pix[i*img.Channels+c], a))
		}
	}
	return out
}

func compOnWhite(img, alpha *media.Image, _ config.Config) (*media.Image, error) {
	return colorOp(img, alpha, func(v, a float32) float32 { return v + (1 - a) }), nil
}

func compOnBlack(img, alpha *media.Image, _ config.Config) (*media.Image, error) {
	return colorOp(img, alpha, func(v, _ float32) float32 { return v }), nil
}

func divideAlpha(img, alpha *media.Image, _ config.Config) (*media.Image, error) {
	return colorOp(img, alpha, func(v, a float32) float32 {
		return v / clampAlpha(a)
	}), nil
}

func unpremultOnWhite(img, alpha *media.Image, _ config.Config) (*media.Image, error) {
	return colorOp(img, alpha, func(v, a float32) float32 {
		var covered float32
		if a > minAlpha {
			covered = 1
		}
		return v/clampAlpha(a) + (1 - covered)
	}), nil
}

func clampAlpha(a float32) float32 {
	return max(minAlpha, min(a, 1))
}

func refineAlpha(img, alpha *media.Image, cfg config.Config) (*media.Image, error) {
	gamma := cfg.Float("gamma", 2.2)
	contrast := cfg.Float("contrast", 60)
	threshold := cfg.Float("threshold", 0.0015)
	blurSize := cfg.Float("blur_size", 5)
	power := cfg.Float("power", 8)

	refined := media.NewImage(img.Width, img.Height, 1)
	for i := range refined.Pix {
		refined.Pix[i] = alphaAt(alpha, i)
	}

	if gamma != 1 && gamma > 0 {
		refined = refined.Map(func(v float32) float32 {
			return media.Clamp01(float32(math.Pow(float64(media.Clamp01(v)), 1/gamma)))
		})
	}
	if contrast > 0 {
		refined = refined.Map(func(v float32) float32 {
			exp := math.Max(-88, math.Min(88, -contrast*(float64(v)-threshold)))
			return media.Clamp01(float32(1 / (1 + math.Exp(exp))))
		})
	}
	if blurSize > 0 {
		refined = media.GaussianBlur(refined, blurSize/2).Map(media.Clamp01)
	}
	if power != 1 {
		refined = refined.Map(func(v float32) float32 {
			return media.Clamp01(float32(math.Pow(float64(v), power)))
		})
	}

	ch := min(img.Channels, 3)
	out := media.NewImage(img.Width, img.Height, ch)
	for i := range img.Width * img.Height {
		orig := clampAlpha(alphaAt(alpha, i))
		a := refined.Pix[i]
		for c := range ch {
			straight := media.Clamp01(img.Pix[i*img.Channels+c] / orig)
			out.Pix[i*ch+c] = media.Clamp01(straight*a + (1 - a))
		}
	}
	return out, nil
}

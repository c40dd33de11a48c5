package nodes

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

var bitDepthOption = config.Option{
	Name: "bit_depth", Type: config.TypeInt, Default: 16, Choices: []any{8, 16},
}

// resolveSink returns the named sink, or nil when none is named.
func resolveSink(env Env, cfg config.Config) (framegraph.Sink, error) {
	name := cfg.String("sink", "")
	if name == "" {
		return nil, nil
	}
	return env.sink(name)
}

func videoOutputType(env Env) framegraph.NodeType {
	depth := bitDepthOption
	depth.Default = 8
	return framegraph.NodeType{
		Name:        "video_output",
		Description: "Write frames to a PNG sequence directory or a named sink",
		Category:    CategoryOutput,
		Capability:  framegraph.Streaming,
		Inputs: []framegraph.PortSpec{
			reqPort("video", framegraph.KindFrameStream),
			optPort("props", framegraph.KindProperties),
		},
		Options: config.Schema{
			{Name: "path", Type: config.TypeString, Description: "output directory"},
			{Name: "sink", Type: config.TypeString, Description: "name of an injected sink"},
			depth,
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			sink, err := resolveSink(env, cfg)
			if err != nil {
				return nil, err
			}
			if sink == nil {
				path := cfg.String("path", "")
				if path == "" {
					return nil, errors.New(`one of "path" or "sink" is required`)
				}
				ds, err := media.NewDirSink(env.path(path), cfg.Int("bit_depth", 8))
				if err != nil {
					return nil, err
				}
				sink = ds
			}
			return &videoOutput{sink: sink}, nil
		},
	}
}

type videoOutput struct {
	sink framegraph.Sink
}

func (v *videoOutput) Step(_ framegraph.Context, index int, in framegraph.Values) (framegraph.Values, error) {
	return nil, v.sink.Write(index, in["video"])
}

func (v *videoOutput) Close() error { return v.sink.Close() }

func imageOutputType(env Env) framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "image_output",
		Description: "Write a single image, and its alpha when connected, as PNG",
		Category:    CategoryOutput,
		Capability:  framegraph.Batch,
		Inputs: []framegraph.PortSpec{
			reqPort("image", framegraph.KindImage),
			optPort("alpha", framegraph.KindMask),
		},
		Options: config.Schema{
			{Name: "path", Type: config.TypeString, Description: "output file; the alpha is written next to it with an _alpha suffix"},
			{Name: "sink", Type: config.TypeString, Description: "name of an injected sink; receives the image at index 0"},
			bitDepthOption,
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			sink, err := resolveSink(env, cfg)
			if err != nil {
				return nil, err
			}
			path := env.path(cfg.String("path", ""))
			if sink == nil && path == "" {
				return nil, errors.New(`one of "path" or "sink" is required`)
			}
			return &imageOutput{sink: sink, path: path, depth: cfg.Int("bit_depth", 16)}, nil
		},
	}
}

type imageOutput struct {
	sink  framegraph.Sink
	path  string
	depth int
}

func (o *imageOutput) Compute(ctx framegraph.Context, in framegraph.Values) (framegraph.Values, error) {
	img, err := image(in, "image")
	if err != nil {
		return nil, err
	}
	alpha, err := optionalImage(in, "alpha")
	if err != nil {
		return nil, err
	}

	if o.sink != nil {
		return nil, o.sink.Write(0, img)
	}

	if dir := filepath.Dir(o.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &fgerrors.IOError{Op: "create output", Path: dir, Err: err}
		}
	}
	if err := media.WritePNG(o.path, img, o.depth); err != nil {
		return nil, &fgerrors.IOError{Op: "write image", Path: o.path, Err: err}
	}
	ctx.Logger().Info("wrote image", "path", o.path, "bit_depth", o.depth)

	if alpha != nil {
		ap := AlphaPath(o.path)
		if err := media.WritePNG(ap, alpha, o.depth); err != nil {
			return nil, &fgerrors.IOError{Op: "write alpha", Path: ap, Err: err}
		}
	}
	return nil, nil
}

func (o *imageOutput) Close() error {
	if o.sink != nil {
		return o.sink.Close()
	}
	return nil
}

func trackOutputType(env Env) framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "track_output",
		Description: "Write track data to a .crv file in normalized coordinates",
		Category:    CategoryOutput,
		Capability:  framegraph.Batch,
		Inputs: []framegraph.PortSpec{
			reqPort("track_data", framegraph.KindTrackData),
			optPort("props", framegraph.KindProperties),
		},
		Options: config.Schema{
			{Name: "path", Type: config.TypeString, Default: "track.crv",
				Description: "output file; pixel points are normalized by the props frame size"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			path := env.path(cfg.String("path", "track.crv"))
			return computeFunc(func(ctx framegraph.Context, in framegraph.Values) (framegraph.Values, error) {
				td, _, err := artifact[media.TrackData](in, "track_data")
				if err != nil {
					return nil, err
				}
				props, _, err := artifact[media.Properties](in, "props")
				if err != nil {
					return nil, err
				}
				if dir := filepath.Dir(path); dir != "" {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return nil, &fgerrors.IOError{Op: "create output", Path: dir, Err: err}
					}
				}
				w, h := props.Size()
				if err := media.SaveCRV(path, td, w, h); err != nil {
					return nil, &fgerrors.IOError{Op: "write track", Path: path, Err: err}
				}
				ctx.Logger().Info("wrote track", "path", path, "frames", len(td))
				return nil, nil
			}), nil
		},
	}
}

// AlphaPath returns the file an image's alpha is written to:
// "out/avg.png" becomes "out/avg_alpha.png".
func AlphaPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_alpha" + ext
}

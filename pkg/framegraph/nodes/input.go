package nodes

import (
	"errors"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

func videoInputType(env Env) framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "video_input",
		Description: "Read frames from a PNG sequence directory or a named source",
		Category:    CategoryInput,
		Capability:  framegraph.Streaming,
		Outputs: []framegraph.PortSpec{
			outPort("video", framegraph.KindFrameStream),
			outPort("props", framegraph.KindProperties),
		},
		Options: config.Schema{
			{Name: "path", Type: config.TypeString, Description: "directory of PNG frames"},
			{Name: "source", Type: config.TypeString, Description: "name of an injected source"},
			{Name: "first_frame", Type: config.TypeInt, Default: 0, Min: config.Bound(0)},
			{Name: "last_frame", Type: config.TypeInt, Default: -1, Description: "-1 reads to the end"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			var src framegraph.Source
			switch name, path := cfg.String("source", ""), cfg.String("path", ""); {
			case name != "":
				s, err := env.source(name)
				if err != nil {
					return nil, err
				}
				src = s
			case path != "":
				s, err := media.NewDirSource(env.path(path), media.WithReadRetry(env.Retry))
				if err != nil {
					return nil, err
				}
				src = s
			default:
				return nil, errors.New(`one of "path" or "source" is required`)
			}
			return &videoInput{src: media.Range(src, cfg.Int("first_frame", 0), cfg.Int("last_frame", -1))}, nil
		},
	}
}

type videoInput struct {
	src framegraph.Source
}

func (v *videoInput) Source() framegraph.Source { return v.src }

func (v *videoInput) Prepare(framegraph.Context) (framegraph.Values, error) {
	props, err := media.SourceProperties(v.src)
	if err != nil {
		return nil, err
	}
	return framegraph.Values{"props": props}, nil
}

func roiType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "roi",
		Description: "Region of interest for tracking",
		Category:    CategoryInput,
		Capability:  framegraph.Batch,
		Outputs:     []framegraph.PortSpec{outPort("roi", framegraph.KindProperties)},
		Options: config.Schema{
			{Name: "x", Type: config.TypeInt, Default: 0, Min: config.Bound(0)},
			{Name: "y", Type: config.TypeInt, Default: 0, Min: config.Bound(0)},
			{Name: "width", Type: config.TypeInt, Default: 0, Min: config.Bound(0), Description: "0 means the full frame"},
			{Name: "height", Type: config.TypeInt, Default: 0, Min: config.Bound(0), Description: "0 means the full frame"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			roi := media.ROI{
				X:      cfg.Int("x", 0),
				Y:      cfg.Int("y", 0),
				Width:  cfg.Int("width", 0),
				Height: cfg.Int("height", 0),
			}
			return computeFunc(func(framegraph.Context, framegraph.Values) (framegraph.Values, error) {
				return framegraph.Values{"roi": roi}, nil
			}), nil
		},
	}
}

func trackInputType(env Env) framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "track_input",
		Description: "Load normalized track data from a .crv file",
		Category:    CategoryInput,
		Capability:  framegraph.Batch,
		Outputs:     []framegraph.PortSpec{outPort("track_data", framegraph.KindTrackData)},
		Options: config.Schema{
			{Name: "path", Type: config.TypeString, Required: true, Description: ".crv track file"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			path := env.path(cfg.String("path", ""))
			return computeFunc(func(ctx framegraph.Context, _ framegraph.Values) (framegraph.Values, error) {
				td, err := media.LoadCRV(path)
				if err != nil {
					return nil, &fgerrors.IOError{Op: "read track", Path: path, Err: err}
				}
				ctx.Logger().Debug("loaded track", "path", path, "frames", len(td))
				return framegraph.Values{"track_data": td}, nil
			}), nil
		},
	}
}

type computeFunc func(ctx framegraph.Context, in framegraph.Values) (framegraph.Values, error)

func (f computeFunc) Compute(ctx framegraph.Context, in framegraph.Values) (framegraph.Values, error) {
	return f(ctx, in)
}

type stepFunc func(ctx framegraph.Context, index int, in framegraph.Values) (framegraph.Values, error)

func (f stepFunc) Step(ctx framegraph.Context, index int, in framegraph.Values) (framegraph.Values, error) {
	return f(ctx, index, in)
}

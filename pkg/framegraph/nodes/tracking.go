package nodes

import (
	"errors"
	"fmt"
	"math"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	"github.com/randalmurphal/framegraph/pkg/framegraph/config"
	"github.com/randalmurphal/framegraph/pkg/framegraph/media"
)

func featureTrackerType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "feature_tracker",
		Description: "Track a bright feature through a frame stream",
		Category:    CategoryTracking,
		Capability:  framegraph.Streaming,
		Inputs: []framegraph.PortSpec{
			reqPort("video", framegraph.KindFrameStream),
			optPort("roi", framegraph.KindProperties),
		},
		Outputs: []framegraph.PortSpec{outPort("track_data", framegraph.KindTrackData)},
		Options: config.Schema{
			{Name: "threshold", Type: config.TypeFloat, Default: 0.5, Min: config.Bound(0), Max: config.Bound(1),
				Description: "minimum luminance of feature pixels"},
			{Name: "window", Type: config.TypeInt, Default: 0, Min: config.Bound(0),
				Description: "search window size around the last position; 0 searches the whole region"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			return &tracker{
				threshold: float32(cfg.Float("threshold", 0.5)),
				window:    cfg.Int("window", 0),
				track:     make(media.TrackData),
			}, nil
		},
	}
}

// tracker finds the luminance-weighted centroid of pixels at or above the
// threshold. Once found, the search follows the feature with a fixed window.
type tracker struct {
	threshold float32
	window    int

	track media.TrackData
	last  *media.TrackPoint
}

func (t *tracker) Step(ctx framegraph.Context, index int, in framegraph.Values) (framegraph.Values, error) {
	img, err := image(in, "video")
	if err != nil {
		return nil, err
	}
	roi, _, err := artifact[media.ROI](in, "roi")
	if err != nil {
		return nil, err
	}

	search := roi.Clip(img.Width, img.Height)
	if t.window > 0 && t.last != nil {
		search = media.ROI{
			X:      int(t.last.X) - t.window/2,
			Y:      int(t.last.Y) - t.window/2,
			Width:  t.window,
			Height: t.window,
		}.Clip(img.Width, img.Height)
	}

	pt, ok := centroid(img, search, t.threshold)
	if !ok {
		ctx.Logger().Debug("feature lost", "frame", index)
		t.last = nil
		return nil, nil
	}
	t.track[index] = pt
	t.last = &pt
	return nil, nil
}

func (t *tracker) Finish(framegraph.Context) (framegraph.Values, error) {
	return framegraph.Values{"track_data": t.track}, nil
}

func centroid(img *media.Image, r media.ROI, threshold float32) (media.TrackPoint, bool) {
	var sx, sy, sw float64
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			l := img.Luminance(x, y)
			if l < threshold || l <= 0 {
				continue
			}
			sx += float64(x) * float64(l)
			sy += float64(y) * float64(l)
			sw += float64(l)
		}
	}
	if sw == 0 {
		return media.TrackPoint{}, false
	}
	return media.TrackPoint{X: sx / sw, Y: sy / sw}, true
}

func gaussianFilterType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "gaussian_filter",
		Description: "Smooth track data over time",
		Category:    CategoryTracking,
		Capability:  framegraph.Batch,
		Inputs:      []framegraph.PortSpec{reqPort("track_data", framegraph.KindTrackData)},
		Outputs:     []framegraph.PortSpec{outPort("track_data", framegraph.KindTrackData)},
		Options: config.Schema{
			{Name: "sigma", Type: config.TypeFloat, Default: 2.0, Min: config.Bound(0)},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			sigma := cfg.Float("sigma", 2)
			return computeFunc(func(_ framegraph.Context, in framegraph.Values) (framegraph.Values, error) {
				td, _, err := artifact[media.TrackData](in, "track_data")
				if err != nil {
					return nil, err
				}
				return framegraph.Values{"track_data": td.Smooth(sigma)}, nil
			}), nil
		},
	}
}

// Stabilization modes.
const (
	ModeSingle   = "single"
	ModeTwoPoint = "two_point"
)

// ErrNoReferenceFrame is returned when no frame has every required track.
var ErrNoReferenceFrame = errors.New("no frame with all tracks")

func stabilizerType() framegraph.NodeType {
	return framegraph.NodeType{
		Name:        "stabilizer",
		Description: "Compute per-frame stabilizing transforms from tracks",
		Category:    CategoryTracking,
		Capability:  framegraph.Batch,
		Inputs: []framegraph.PortSpec{
			reqPort("track1", framegraph.KindTrackData),
			optPort("track2", framegraph.KindTrackData),
			optPort("props", framegraph.KindProperties),
		},
		Outputs: []framegraph.PortSpec{outPort("transforms", framegraph.KindTransformSequence)},
		Options: config.Schema{
			{Name: "mode", Type: config.TypeString, Default: ModeSingle, Choices: []any{ModeSingle, ModeTwoPoint}},
			{Name: "ref_frame", Type: config.TypeInt, Default: -1, Description: "-1 uses the first tracked frame"},
		},
		New: func(cfg config.Config) (framegraph.Behavior, error) {
			s := &stabilizer{mode: cfg.String("mode", ModeSingle), refFrame: cfg.Int("ref_frame", -1)}
			return computeFunc(s.compute), nil
		},
	}
}

type stabilizer struct {
	mode     string
	refFrame int
}

func (s *stabilizer) compute(ctx framegraph.Context, in framegraph.Values) (framegraph.Values, error) {
	track1, _, err := artifact[media.TrackData](in, "track1")
	if err != nil {
		return nil, err
	}
	track2, hasTrack2, err := artifact[media.TrackData](in, "track2")
	if err != nil {
		return nil, err
	}
	props, _, err := artifact[media.Properties](in, "props")
	if err != nil {
		return nil, err
	}
	if s.mode == ModeTwoPoint && !hasTrack2 {
		return nil, errors.New("two_point mode needs track2")
	}
	w, h := props.Size()

	// Frames usable for this mode, in order.
	var frames []int
	for _, f := range track1.Frames() {
		if s.mode == ModeTwoPoint {
			if _, ok := track2[f]; !ok {
				continue
			}
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return nil, ErrNoReferenceFrame
	}

	ref := frames[0]
	if s.refFrame >= 0 {
		ref = s.refFrame
		if _, ok := track1[ref]; !ok {
			return nil, fmt.Errorf("reference frame %d: %w", ref, ErrNoReferenceFrame)
		}
		if s.mode == ModeTwoPoint {
			if _, ok := track2[ref]; !ok {
				return nil, fmt.Errorf("reference frame %d: %w", ref, ErrNoReferenceFrame)
			}
		}
	}

	ref0 := track1[ref].Pixels(w, h)
	transforms := make(map[int]media.Transform, len(frames))
	for _, f := range frames {
		p0 := track1[f].Pixels(w, h)
		t := media.Transform{PntX: p0.X, PntY: p0.Y, RefX: ref0.X, RefY: ref0.Y, Scale: 1}
		if s.mode == ModeTwoPoint {
			t.Rotation, t.Scale = rotationScale(ref0, track2[ref].Pixels(w, h), p0, track2[f].Pixels(w, h))
		}
		transforms[f] = t
	}
	ctx.Logger().Debug("stabilized", "frames", len(transforms), "ref_frame", ref, "mode", s.mode)
	return framegraph.Values{"transforms": media.NewTransformSequence(transforms)}, nil
}

// rotationScale returns the rotation and scale taking the segment pnt0-pnt1
// onto ref0-ref1.
func rotationScale(ref0, ref1, pnt0, pnt1 media.TrackPoint) (float64, float64) {
	refAngle := math.Atan2(ref1.Y-ref0.Y, ref1.X-ref0.X)
	pntAngle := math.Atan2(pnt1.Y-pnt0.Y, pnt1.X-pnt0.X)

	scale := 1.0
	refDist := math.Hypot(ref1.X-ref0.X, ref1.Y-ref0.Y)
	pntDist := math.Hypot(pnt1.X-pnt0.X, pnt1.Y-pnt0.Y)
	if pntDist > 0 {
		scale = refDist / pntDist
	}
	return refAngle - pntAngle, scale
}

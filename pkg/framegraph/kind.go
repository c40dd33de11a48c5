package framegraph

import (
	"fmt"
	"strings"
)

// DataKind is the kind of data carried by a port.
type DataKind int

const (
	// KindFrameStream is an ordered sequence of frames addressed by index.
	KindFrameStream DataKind = iota + 1
	// KindImage is a single image.
	KindImage
	// KindMask is a single-channel image used as a matte.
	KindMask
	// KindTrackData is per-frame feature positions.
	KindTrackData
	// KindTransformSequence is a per-frame geometric transform.
	KindTransformSequence
	// KindProperties is a map of scalar properties (frame rate, size, region).
	KindProperties
)

var kindNames = map[DataKind]string{
	KindFrameStream:       "frame-stream",
	KindImage:             "single-image",
	KindMask:              "mask",
	KindTrackData:         "track-data",
	KindTransformSequence: "transform-sequence",
	KindProperties:        "scalar-properties",
}

// Accepted spellings in workflow files.
var kindAliases = map[string]DataKind{
	"frame-stream":       KindFrameStream,
	"video":              KindFrameStream,
	"image":              KindImage,
	"single-image":       KindImage,
	"mask":               KindMask,
	"track-data":         KindTrackData,
	"track_data":         KindTrackData,
	"transform-sequence": KindTransformSequence,
	"transforms":         KindTransformSequence,
	"properties":         KindProperties,
	"scalar-properties":  KindProperties,
	"props":              KindProperties,
}

// String returns the kind name.
func (k DataKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsStream reports whether k is a frame stream.
func (k DataKind) IsStream() bool { return k == KindFrameStream }

// ParseKind returns the kind named by s.
func ParseKind(s string) (DataKind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown data kind %q", s)
}

// Compatible reports whether an output of kind src may feed an input of kind dst.
// Kinds are compatible only when identical; there is no coercion.
func Compatible(src, dst DataKind) bool {
	_, known := kindNames[src]
	return known && src == dst
}

// Capability is how a node type consumes its inputs.
type Capability int

const (
	// Streaming nodes process one frame index at a time with O(1) retained state.
	Streaming Capability = iota
	// Batch nodes consume at least one input in full before emitting.
	Batch
)

// String returns "streaming" or "batch".
func (c Capability) String() string {
	switch c {
	case Streaming:
		return "streaming"
	case Batch:
		return "batch"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

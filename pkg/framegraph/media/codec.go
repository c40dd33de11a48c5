package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/randalmurphal/framegraph/pkg/framegraph/spill"
)

var imageMagic = [4]byte{'F', 'G', 'I', '1'}

// ErrCorruptImage is returned when decoding malformed image bytes.
var ErrCorruptImage = errors.New("corrupt image data")

// ImageCodec encodes *Image frame payloads for a spill store.
// The layout is the magic "FGI1", width, height and channels as
// little-endian uint32, then the samples as little-endian float32.
type ImageCodec struct{}

var _ spill.Codec = ImageCodec{}

// Encode implements spill.Codec.
func (ImageCodec) Encode(v any) ([]byte, error) {
	img, ok := v.(*Image)
	if !ok {
		return nil, fmt.Errorf("%w: %T", spill.ErrUnsupportedPayload, v)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(16 + 4*len(img.Pix))
	buf.Write(imageMagic[:])
	hdr := [3]uint32{uint32(img.Width), uint32(img.Height), uint32(img.Channels)}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, img.Pix); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements spill.Codec.
func (ImageCodec) Decode(data []byte) (any, error) {
	if len(data) < 16 || !bytes.Equal(data[:4], imageMagic[:]) {
		return nil, ErrCorruptImage
	}
	w := int(binary.LittleEndian.Uint32(data[4:]))
	h := int(binary.LittleEndian.Uint32(data[8:]))
	c := int(binary.LittleEndian.Uint32(data[12:]))
	if w <= 0 || h <= 0 || c <= 0 || len(data)-16 != 4*w*h*c {
		return nil, fmt.Errorf("%w: %dx%dx%d with %d bytes", ErrCorruptImage, w, h, c, len(data)-16)
	}

	img := NewImage(w, h, c)
	if err := binary.Read(bytes.NewReader(data[16:]), binary.LittleEndian, img.Pix); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}
	return img, nil
}

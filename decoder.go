package flare

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Register the codecs the bytes decoder understands.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Decoder errors.
var (
	// ErrNilImageBuffer is returned when an operation needs decoded pixels
	// and none are available.
	ErrNilImageBuffer = errors.New("flare: image buffer is nil")

	// ErrEmptyImageData is returned when a decoder is created without data.
	ErrEmptyImageData = errors.New("flare: empty image data")
)

// ImageBuffer holds decoded, alpha-premultiplied RGBA pixels ready for
// texture upload. Buffers are CPU-side and transient: texture creation
// drops them as soon as the pixels reach the GPU.
type ImageBuffer struct {
	rgba *image.RGBA
}

// NewImageBuffer wraps img as an upload-ready buffer.
func NewImageBuffer(img *image.RGBA) *ImageBuffer {
	if img == nil {
		return nil
	}
	return &ImageBuffer{rgba: img}
}

// Width returns the buffer width in pixels.
func (b *ImageBuffer) Width() int { return b.rgba.Bounds().Dx() }

// Height returns the buffer height in pixels.
func (b *ImageBuffer) Height() int { return b.rgba.Bounds().Dy() }

// Pixels returns the tightly-packed RGBA bytes.
func (b *ImageBuffer) Pixels() []byte { return b.rgba.Pix }

// ImageDecoder produces a decoded pixel buffer on demand. Decoding is
// deferred until a texture-create task actually needs the pixels, which
// keeps encoded bytes (cheap) in memory instead of decoded ones (expensive)
// until flush time.
type ImageDecoder interface {
	// Decode produces the pixel buffer. Called at most once per texture
	// materialization attempt; a failure is not retried.
	Decode() (*ImageBuffer, error)
}

// bytesDecoder decodes an encoded PNG or JPEG byte stream, optionally
// rescaling to target dimensions.
type bytesDecoder struct {
	data          []byte
	width, height int // 0 = keep source size
}

// NewBytesDecoder returns a decoder over encoded PNG or JPEG bytes.
func NewBytesDecoder(data []byte) (ImageDecoder, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImageData
	}
	return &bytesDecoder{data: data}, nil
}

// NewScaledBytesDecoder returns a decoder that rescales the decoded image
// to width x height before upload, bounding texture memory for thumbnails
// and rescaled derivatives.
func NewScaledBytesDecoder(data []byte, width, height int) (ImageDecoder, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImageData
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, width, height)
	}
	return &bytesDecoder{data: data, width: width, height: height}, nil
}

func (d *bytesDecoder) Decode() (*ImageBuffer, error) {
	src, _, err := image.Decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("flare: decode image: %w", err)
	}
	bounds := src.Bounds()
	w, h := d.width, d.height
	if w == 0 {
		w, h = bounds.Dx(), bounds.Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}
	return NewImageBuffer(dst), nil
}

package flare

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Texture errors.
var (
	// ErrInvalidTextureSize is returned for non-positive dimensions.
	ErrInvalidTextureSize = errors.New("flare: invalid texture size")

	// ErrNilContext is returned when a constructor is called without a context.
	ErrNilContext = errors.New("flare: context is nil")
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug name, forwarded to the backend.
	Label string

	// Width and Height are the level-0 dimensions in pixels.
	Width  int
	Height int

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Mipmapped allocates a full mip chain when true.
	Mipmapped bool
}

// formatBytesPerPixel returns the per-pixel size of the formats the core
// allocates. Unknown formats are treated as 4 bytes.
func formatBytesPerPixel(format gputypes.TextureFormat) int64 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 4
	}
}

// Texture is a GPU texture resource.
type Texture struct {
	ResourceState

	desc    TextureDescriptor
	backend BackendTexture
}

// MakeTexture allocates a texture through the context's backend and
// registers it with the resource cache. The returned texture carries one
// external reference. Returns nil and an error if allocation fails.
//
// The context must be locked.
func MakeTexture(ctx *Context, desc TextureDescriptor) (*Texture, error) {
	return makeTexture(ctx, desc, nil)
}

// MakeTextureFromBuffer allocates a texture with the decoded pixel content
// of buf uploaded as level 0.
//
// The context must be locked.
func MakeTextureFromBuffer(ctx *Context, buf *ImageBuffer, mipmapped bool) (*Texture, error) {
	if buf == nil {
		return nil, ErrNilImageBuffer
	}
	desc := TextureDescriptor{
		Width:     buf.Width(),
		Height:    buf.Height(),
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Mipmapped: mipmapped,
	}
	return makeTexture(ctx, desc, buf.Pixels())
}

func makeTexture(ctx *Context, desc TextureDescriptor, pixels []byte) (*Texture, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, desc.Width, desc.Height)
	}
	backend, err := ctx.gpu.CreateTexture(desc, pixels)
	if err != nil {
		return nil, fmt.Errorf("flare: create texture: %w", err)
	}
	tex := &Texture{desc: desc, backend: backend}
	ctx.ResourceCache().Wrap(tex)
	return tex, nil
}

// Width returns the level-0 width in pixels.
func (t *Texture) Width() int { return t.desc.Width }

// Height returns the level-0 height in pixels.
func (t *Texture) Height() int { return t.desc.Height }

// Format returns the pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// Mipmapped reports whether the texture carries a mip chain.
func (t *Texture) Mipmapped() bool { return t.desc.Mipmapped }

// Backend returns the opaque backend handle.
func (t *Texture) Backend() BackendTexture { return t.backend }

// MemoryUsage returns the GPU memory the texture occupies. A mip chain
// adds one third on top of level 0.
func (t *Texture) MemoryUsage() int64 {
	size := int64(t.desc.Width) * int64(t.desc.Height) * formatBytesPerPixel(t.desc.Format)
	if t.desc.Mipmapped {
		size += size / 3
	}
	return size
}

// computeScratchKey makes textures with equal shape, format, and mip state
// interchangeable.
func (t *Texture) computeScratchKey(key *BytesKey) {
	writeTextureScratchKey(key, t.desc)
}

// writeTextureScratchKey is shared with descriptor-based lookups so a
// proxy can probe for a reusable texture before one exists.
func writeTextureScratchKey(key *BytesKey, desc TextureDescriptor) {
	key.Write(uint32(desc.Width))
	key.Write(uint32(desc.Height))
	key.Write(uint32(desc.Format))
	if desc.Mipmapped {
		key.Write(1)
	} else {
		key.Write(0)
	}
}

func (t *Texture) onReleaseGPU(gpu Gpu) {
	if gpu != nil && t.backend != nil {
		gpu.DeleteTexture(t.backend)
	}
	t.backend = nil
}

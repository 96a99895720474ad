package flare

import (
	"errors"
	"fmt"
)

// ErrNilTexture is returned when a render target is created without a
// color texture.
var ErrNilTexture = errors.New("flare: texture is nil")

// RenderTarget is a drawable surface resource: a color texture plus an
// optional multisampled buffer that resolves into it. The target holds a
// reference on its texture for as long as it lives in the cache.
type RenderTarget struct {
	ResourceState

	texture     *Texture
	sampleCount int
}

// MakeRenderTarget wraps tex as a render target with the given sample
// count (1 = no multisampling) and registers it with the resource cache.
// The returned target carries one external reference and retains its own
// reference on tex.
//
// The context must be locked.
func MakeRenderTarget(ctx *Context, tex *Texture, sampleCount int) (*RenderTarget, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if tex == nil {
		return nil, ErrNilTexture
	}
	if sampleCount < 1 {
		return nil, fmt.Errorf("flare: invalid sample count %d", sampleCount)
	}
	Ref(tex)
	rt := &RenderTarget{texture: tex, sampleCount: sampleCount}
	ctx.ResourceCache().Wrap(rt)
	return rt, nil
}

// Texture returns the color texture the target resolves into.
func (rt *RenderTarget) Texture() *Texture { return rt.texture }

// Width returns the target width in pixels.
func (rt *RenderTarget) Width() int { return rt.texture.Width() }

// Height returns the target height in pixels.
func (rt *RenderTarget) Height() int { return rt.texture.Height() }

// SampleCount returns the number of samples per pixel, 1 when not
// multisampled.
func (rt *RenderTarget) SampleCount() int { return rt.sampleCount }

// MemoryUsage accounts for the multisampled buffer only; the color texture
// is a separate cache resident.
func (rt *RenderTarget) MemoryUsage() int64 {
	if rt.sampleCount <= 1 {
		return 0
	}
	perPixel := formatBytesPerPixel(rt.texture.Format())
	return int64(rt.Width()) * int64(rt.Height()) * perPixel * int64(rt.sampleCount)
}

// Render targets are tied to their texture and are not recycled through
// scratch keys; the texture underneath is.
func (rt *RenderTarget) computeScratchKey(*BytesKey) {}

func (rt *RenderTarget) onReleaseGPU(Gpu) {
	if rt.texture != nil {
		Unref(rt.texture)
		rt.texture = nil
	}
}

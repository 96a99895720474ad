package flare

import "image"

// RenderTargetCopyTask blits a sub-rectangle from a resolved render target
// into a texture. Both surfaces must be produced by earlier tasks; append
// order guarantees they are resolved by the time the copy runs.
type RenderTargetCopyTask struct {
	source   *RenderTargetProxy
	dest     *TextureProxy
	srcRect  image.Rectangle
	dstPoint image.Point
}

// Execute resolves both ends and issues the backend copy.
func (t *RenderTargetCopyTask) Execute(gpu Gpu) bool {
	rt := t.source.Instantiate()
	if rt == nil {
		Logger().Warn("flare: copy task source failed to resolve")
		return false
	}
	tex := t.dest.Instantiate()
	if tex == nil {
		Logger().Warn("flare: copy task dest failed to resolve")
		return false
	}
	if err := gpu.CopyRenderTargetToTexture(rt, tex, t.srcRect, t.dstPoint); err != nil {
		Logger().Warn("flare: render target copy failed", "err", err)
		return false
	}
	return true
}

package flare

// TextureResolveTask resolves multisampled content into a target's texture
// and regenerates its mipmap chain. Appended after the writers of its
// source target, so append order alone guarantees every prior draw has
// landed before the resolve runs.
type TextureResolveTask struct {
	target *RenderTargetProxy
}

// Execute performs the resolve and mip regeneration as needed.
func (t *TextureResolveTask) Execute(gpu Gpu) bool {
	rt := t.target.Instantiate()
	if rt == nil {
		Logger().Warn("flare: resolve task target failed to resolve")
		return false
	}
	if rt.SampleCount() > 1 {
		if err := gpu.ResolveRenderTarget(rt); err != nil {
			Logger().Warn("flare: multisample resolve failed", "err", err)
			return false
		}
	}
	if tex := rt.Texture(); tex != nil && tex.Mipmapped() {
		if err := gpu.RegenerateMipmapLevels(tex); err != nil {
			Logger().Warn("flare: mipmap regeneration failed", "err", err)
			return false
		}
	}
	return true
}

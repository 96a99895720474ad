package flare

// TextureProxy is a lazily-resolved handle to a texture. It carries the
// target shape and format plus either an already-resolved texture or a
// pending creation task; the GPU memory itself is not allocated until the
// first resolution need, at flush time.
//
// Resolution is idempotent: resolving twice never re-runs the creation
// task. A failed creation leaves the proxy permanently unresolved.
type TextureProxy struct {
	context   *Context
	uniqueKey UniqueKey
	desc      TextureDescriptor

	texture *Texture
	task    *TextureCreateTask
}

// Width returns the expected texture width, 0 when only known after decode.
func (p *TextureProxy) Width() int { return p.desc.Width }

// Height returns the expected texture height, 0 when only known after
// decode.
func (p *TextureProxy) Height() int { return p.desc.Height }

// UniqueKey returns the key the proxy resolves through.
func (p *TextureProxy) UniqueKey() UniqueKey { return p.uniqueKey }

// Texture returns the resolved texture, or nil while unresolved. It never
// triggers resolution.
func (p *TextureProxy) Texture() *Texture { return p.texture }

// Instantiate resolves the proxy: a cached texture for the proxy's unique
// key is returned directly, otherwise the pending creation task runs now.
// Returns nil if creation failed or was already attempted and failed; the
// failure is not retried.
//
// The context must be locked.
func (p *TextureProxy) Instantiate() *Texture {
	if p.texture != nil {
		return p.texture
	}
	cache := p.context.ResourceCache()
	if tex, ok := FindUniqueResource[*Texture](cache, p.uniqueKey); ok {
		p.texture = tex
		return tex
	}
	if p.task != nil {
		task := p.task
		p.task = nil
		if tex := task.instantiate(); tex != nil {
			p.texture = tex
			return tex
		}
	}
	return nil
}

// Release drops the proxy's reference on its resolved texture. The proxy
// can resolve again later through its unique key.
func (p *TextureProxy) Release() {
	if p.texture != nil {
		Unref(p.texture)
		p.texture = nil
	}
}

// RenderTargetProxy is a lazily-resolved handle to a render target.
// Allocation reuses an interchangeable scratch texture when one is free,
// and defers any new allocation to first use.
type RenderTargetProxy struct {
	context     *Context
	desc        TextureDescriptor
	sampleCount int

	target *RenderTarget
}

// Width returns the target width in pixels.
func (p *RenderTargetProxy) Width() int { return p.desc.Width }

// Height returns the target height in pixels.
func (p *RenderTargetProxy) Height() int { return p.desc.Height }

// SampleCount returns the multisample count the target will have.
func (p *RenderTargetProxy) SampleCount() int { return p.sampleCount }

// Target returns the resolved render target, or nil while unresolved.
func (p *RenderTargetProxy) Target() *RenderTarget { return p.target }

// Instantiate resolves the proxy, allocating the render target on first
// call. Returns nil if allocation failed.
//
// The context must be locked.
func (p *RenderTargetProxy) Instantiate() *RenderTarget {
	if p.target != nil {
		return p.target
	}
	ctx := p.context
	tex, ok := FindScratchResource[*Texture](ctx.ResourceCache(), textureScratchKey(p.desc))
	if !ok {
		var err error
		tex, err = MakeTexture(ctx, p.desc)
		if err != nil {
			Logger().Warn("flare: render target allocation failed", "err", err)
			return nil
		}
	}
	rt, err := MakeRenderTarget(ctx, tex, p.sampleCount)
	Unref(tex)
	if err != nil {
		Logger().Warn("flare: render target allocation failed", "err", err)
		return nil
	}
	p.target = rt
	return rt
}

// Release drops the proxy's reference on its resolved target.
func (p *RenderTargetProxy) Release() {
	if p.target != nil {
		Unref(p.target)
		p.target = nil
	}
}

// textureScratchKey mirrors Texture.computeScratchKey for descriptor-based
// lookups before a texture exists.
func textureScratchKey(desc TextureDescriptor) ScratchKey {
	var bytes BytesKey
	writeTextureScratchKey(&bytes, desc)
	return MakeScratchKey(&bytes)
}

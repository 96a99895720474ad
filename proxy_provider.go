package flare

// ProxyProvider creates and deduplicates proxies for a context. Two
// requests for the same unique key return the same proxy, so both observe
// the same resolution outcome and the creation task is scheduled once.
//
// All methods require the context to be locked.
type ProxyProvider struct {
	context *Context
	proxies map[string]*TextureProxy
}

func newProxyProvider(ctx *Context) *ProxyProvider {
	return &ProxyProvider{
		context: ctx,
		proxies: make(map[string]*TextureProxy),
	}
}

// CreateTextureProxy returns a proxy that resolves key to a texture of the
// given shape, scheduling an allocation task for flush time. If the cache
// already holds a texture for key the proxy starts out resolved. Returns
// nil for an invalid descriptor.
func (pp *ProxyProvider) CreateTextureProxy(key UniqueKey, desc TextureDescriptor) *TextureProxy {
	if proxy := pp.findOrWrapCached(key); proxy != nil {
		return proxy
	}
	task := newTextureCreateTask(pp.context, key, desc)
	if task == nil {
		return nil
	}
	return pp.register(key, &TextureProxy{
		context:   pp.context,
		uniqueKey: key,
		desc:      desc,
		task:      pp.schedule(task),
	})
}

// CreateDecodedTextureProxy returns a proxy whose texture materializes by
// running decoder at flush time. The decoded buffer is dropped as soon as
// the pixels reach the GPU. Returns nil when decoder is nil.
func (pp *ProxyProvider) CreateDecodedTextureProxy(key UniqueKey, decoder ImageDecoder, mipmapped bool) *TextureProxy {
	if proxy := pp.findOrWrapCached(key); proxy != nil {
		return proxy
	}
	task := newDecodedTextureCreateTask(pp.context, key, decoder, mipmapped)
	if task == nil {
		return nil
	}
	return pp.register(key, &TextureProxy{
		context:   pp.context,
		uniqueKey: key,
		desc:      TextureDescriptor{Mipmapped: mipmapped},
		task:      pp.schedule(task),
	})
}

// CreateRenderTargetProxy returns a proxy for a drawable target of the
// given shape and sample count. Render target proxies are not deduplicated;
// each caller draws to its own surface.
func (pp *ProxyProvider) CreateRenderTargetProxy(desc TextureDescriptor, sampleCount int) *RenderTargetProxy {
	if desc.Width <= 0 || desc.Height <= 0 || sampleCount < 1 {
		return nil
	}
	return &RenderTargetProxy{
		context:     pp.context,
		desc:        desc,
		sampleCount: sampleCount,
	}
}

// findOrWrapCached returns an existing proxy for key, or a pre-resolved
// proxy when the cache already holds the texture.
func (pp *ProxyProvider) findOrWrapCached(key UniqueKey) *TextureProxy {
	if key.Empty() {
		return nil
	}
	if proxy, ok := pp.proxies[key.data]; ok {
		return proxy
	}
	if tex, ok := FindUniqueResource[*Texture](pp.context.ResourceCache(), key); ok {
		proxy := &TextureProxy{
			context:   pp.context,
			uniqueKey: key,
			desc: TextureDescriptor{
				Width:     tex.Width(),
				Height:    tex.Height(),
				Format:    tex.Format(),
				Mipmapped: tex.Mipmapped(),
			},
			texture: tex,
		}
		return pp.register(key, proxy)
	}
	return nil
}

func (pp *ProxyProvider) register(key UniqueKey, proxy *TextureProxy) *TextureProxy {
	if !key.Empty() {
		pp.proxies[key.data] = proxy
	}
	return proxy
}

func (pp *ProxyProvider) schedule(task *TextureCreateTask) *TextureCreateTask {
	pp.context.DrawingManager().appendTask(task)
	return task
}

// releaseAll drops every deduplicated proxy's texture reference. Called
// during context teardown.
func (pp *ProxyProvider) releaseAll() {
	for key, proxy := range pp.proxies {
		proxy.Release()
		delete(pp.proxies, key)
	}
}

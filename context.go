package flare

// Context owns a resource cache, a drawing manager, and a proxy provider.
// Exactly one thread mutates this state at a time: every method below, and
// every method on the objects it hands out, requires the context to be held
// via Device.LockContext.
type Context struct {
	device         *Device
	gpu            Gpu
	cache          *ResourceCache
	drawingManager *DrawingManager
	proxyProvider  *ProxyProvider
}

func newContext(device *Device, gpu Gpu, cacheLimit int64) *Context {
	ctx := &Context{device: device, gpu: gpu}
	ctx.cache = newResourceCache(gpu, cacheLimit)
	ctx.drawingManager = newDrawingManager(ctx)
	ctx.proxyProvider = newProxyProvider(ctx)
	return ctx
}

// Device returns the owning device.
func (ctx *Context) Device() *Device { return ctx.device }

// Gpu returns the backend execution surface.
func (ctx *Context) Gpu() Gpu { return ctx.gpu }

// ResourceCache returns the per-context resource store.
func (ctx *Context) ResourceCache() *ResourceCache { return ctx.cache }

// DrawingManager returns the per-context task graph.
func (ctx *Context) DrawingManager() *DrawingManager { return ctx.drawingManager }

// ProxyProvider returns the per-context proxy factory.
func (ctx *Context) ProxyProvider() *ProxyProvider { return ctx.proxyProvider }

// Flush executes all pending render tasks against the backend, waits for
// the backend to finish, and trims the cache back under its budget.
func (ctx *Context) Flush() {
	ctx.drawingManager.Flush(ctx.gpu)
	if err := ctx.gpu.Finish(); err != nil {
		Logger().Warn("flare: backend finish failed", "err", err)
	}
	ctx.cache.purgeAsNeeded()
}

// release frees everything the context owns. Called by Device.Close with
// the lock held.
func (ctx *Context) release() {
	ctx.drawingManager.tasks = nil
	ctx.proxyProvider.releaseAll()
	ctx.cache.releaseAll()
}

package flare

import (
	"errors"
	"image"
	"sync/atomic"
	"testing"
)

// fakeGpu is an in-memory Gpu for tests. It records calls and can be made
// to fail texture creation.
type fakeGpu struct {
	createCount  int32
	deleteCount  int32
	drawCount    int32
	bindCount    int32
	copyCount    int32
	resolveCount int32
	mipCount     int32
	finishCount  int32

	failCreate bool
	lastPixels []byte
	lastDraw   DrawState
}

type fakeBackendTexture struct {
	desc TextureDescriptor
}

func (g *fakeGpu) CreateTexture(desc TextureDescriptor, pixels []byte) (BackendTexture, error) {
	if g.failCreate {
		return nil, errors.New("fake: create refused")
	}
	g.createCount++
	g.lastPixels = pixels
	return &fakeBackendTexture{desc: desc}, nil
}

func (g *fakeGpu) DeleteTexture(tex BackendTexture) {
	g.deleteCount++
}

func (g *fakeGpu) BindRenderTarget(rt *RenderTarget) error {
	g.bindCount++
	return nil
}

func (g *fakeGpu) Draw(state DrawState) error {
	g.drawCount++
	g.lastDraw = state
	return nil
}

func (g *fakeGpu) CopyRenderTargetToTexture(src *RenderTarget, dst *Texture, srcRect image.Rectangle, dstPoint image.Point) error {
	g.copyCount++
	return nil
}

func (g *fakeGpu) ResolveRenderTarget(rt *RenderTarget) error {
	g.resolveCount++
	return nil
}

func (g *fakeGpu) RegenerateMipmapLevels(tex *Texture) error {
	g.mipCount++
	return nil
}

func (g *fakeGpu) Finish() error {
	g.finishCount++
	return nil
}

// testResource is a minimal cacheable resource with an observable release
// hook.
type testResource struct {
	ResourceState

	size     int64
	keyWords []uint32
	releases atomic.Int32
}

func newTestResource(size int64, keyWords ...uint32) *testResource {
	return &testResource{size: size, keyWords: keyWords}
}

func (r *testResource) MemoryUsage() int64 { return r.size }

func (r *testResource) computeScratchKey(key *BytesKey) {
	for _, w := range r.keyWords {
		key.Write(w)
	}
}

func (r *testResource) onReleaseGPU(Gpu) {
	r.releases.Add(1)
}

// newTestContext returns a locked context over a fakeGpu. The cleanup
// unlocks and closes the device.
func newTestContext(t *testing.T) (*Context, *fakeGpu) {
	t.Helper()
	gpu := &fakeGpu{}
	device, err := NewDevice(gpu, DeviceConfig{})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	ctx := device.LockContext()
	if ctx == nil {
		t.Fatal("LockContext() = nil")
	}
	t.Cleanup(func() {
		device.Unlock()
		device.Close()
	})
	return ctx, gpu
}

func TestRefUnrefWithoutCache(t *testing.T) {
	r := newTestResource(64)
	r.refs.Store(1)

	Ref(r)
	if got := RefCount(r); got != 2 {
		t.Fatalf("RefCount() = %d, want 2", got)
	}
	Unref(r)
	if got := r.releases.Load(); got != 0 {
		t.Fatalf("releases = %d before last unref, want 0", got)
	}
	Unref(r)
	if got := r.releases.Load(); got != 1 {
		t.Errorf("releases = %d after last unref, want 1", got)
	}
}

func TestUnrefUnderflowRecovers(t *testing.T) {
	r := newTestResource(64)
	r.refs.Store(1)
	Unref(r)
	Unref(r) // underflow, must not go negative or re-release
	if got := RefCount(r); got != 0 {
		t.Errorf("RefCount() = %d after underflow, want 0", got)
	}
	if got := r.releases.Load(); got != 1 {
		t.Errorf("releases = %d after underflow, want 1", got)
	}
}

func TestReleaseResourceRunsOnce(t *testing.T) {
	r := newTestResource(64)
	releaseResource(r, nil)
	releaseResource(r, nil)
	if got := r.releases.Load(); got != 1 {
		t.Errorf("releases = %d, want 1", got)
	}
}

func TestCacheResidentLastUnrefLingers(t *testing.T) {
	ctx, _ := newTestContext(t)
	cache := ctx.ResourceCache()

	r := newTestResource(64, 1)
	cache.Wrap(r)
	Unref(r)

	// Unreferenced but still cache-owned: no release until a purge pass.
	if got := r.releases.Load(); got != 0 {
		t.Fatalf("releases = %d before purge, want 0", got)
	}
	cache.PurgeUntilMemoryTo(0)
	if got := r.releases.Load(); got != 1 {
		t.Errorf("releases = %d after purge, want 1", got)
	}
}

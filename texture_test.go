package flare

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMakeTextureValidation(t *testing.T) {
	ctx, _ := newTestContext(t)

	tests := []struct {
		name    string
		desc    TextureDescriptor
		wantErr error
	}{
		{"zero width", TextureDescriptor{Width: 0, Height: 4}, ErrInvalidTextureSize},
		{"zero height", TextureDescriptor{Width: 4, Height: 0}, ErrInvalidTextureSize},
		{"negative", TextureDescriptor{Width: -1, Height: -1}, ErrInvalidTextureSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MakeTexture(ctx, tt.desc); !errors.Is(err, tt.wantErr) {
				t.Errorf("MakeTexture() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := MakeTexture(nil, TextureDescriptor{Width: 4, Height: 4}); !errors.Is(err, ErrNilContext) {
		t.Errorf("MakeTexture(nil ctx) error = %v, want %v", err, ErrNilContext)
	}
}

func TestMakeTextureRegistersWithCache(t *testing.T) {
	ctx, gpu := newTestContext(t)

	desc := TextureDescriptor{Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm}
	tex, err := MakeTexture(ctx, desc)
	if err != nil {
		t.Fatalf("MakeTexture() error = %v", err)
	}
	if gpu.createCount != 1 {
		t.Errorf("backend createCount = %d, want 1", gpu.createCount)
	}
	if got := RefCount(tex); got != 1 {
		t.Errorf("RefCount() = %d, want 1", got)
	}
	if got := ctx.ResourceCache().TotalBytes(); got != tex.MemoryUsage() {
		t.Errorf("TotalBytes() = %d, want %d", got, tex.MemoryUsage())
	}
}

func TestMakeTextureBackendFailure(t *testing.T) {
	ctx, gpu := newTestContext(t)
	gpu.failCreate = true
	if _, err := MakeTexture(ctx, TextureDescriptor{Width: 4, Height: 4}); err == nil {
		t.Error("MakeTexture() succeeded with failing backend")
	}
}

func TestTextureMemoryUsage(t *testing.T) {
	tests := []struct {
		name string
		desc TextureDescriptor
		want int64
	}{
		{
			"rgba",
			TextureDescriptor{Width: 100, Height: 50, Format: gputypes.TextureFormatRGBA8Unorm},
			100 * 50 * 4,
		},
		{
			"r8",
			TextureDescriptor{Width: 64, Height: 64, Format: gputypes.TextureFormatR8Unorm},
			64 * 64,
		},
		{
			"mipmapped adds a third",
			TextureDescriptor{Width: 96, Height: 96, Format: gputypes.TextureFormatRGBA8Unorm, Mipmapped: true},
			96*96*4 + 96*96*4/3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex := &Texture{desc: tt.desc}
			if got := tex.MemoryUsage(); got != tt.want {
				t.Errorf("MemoryUsage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTextureScratchKeyByShape(t *testing.T) {
	descA := TextureDescriptor{Width: 32, Height: 32, Format: gputypes.TextureFormatRGBA8Unorm}
	descB := descA
	descC := descA
	descC.Mipmapped = true

	if !textureScratchKey(descA).Equal(textureScratchKey(descB)) {
		t.Error("equal descriptors produced different scratch keys")
	}
	if textureScratchKey(descA).Equal(textureScratchKey(descC)) {
		t.Error("mip state not part of the scratch key")
	}
	// Label is debug-only and must not affect recycling identity.
	descB.Label = "named"
	if !textureScratchKey(descA).Equal(textureScratchKey(descB)) {
		t.Error("label leaked into the scratch key")
	}
}

func TestTextureReleaseDeletesBackend(t *testing.T) {
	ctx, gpu := newTestContext(t)
	tex, err := MakeTexture(ctx, TextureDescriptor{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("MakeTexture() error = %v", err)
	}
	Unref(tex)
	ctx.ResourceCache().PurgeUntilMemoryTo(0)
	if gpu.deleteCount != 1 {
		t.Errorf("backend deleteCount = %d, want 1", gpu.deleteCount)
	}
}

func TestMakeTextureFromBufferUploadsPixels(t *testing.T) {
	ctx, gpu := newTestContext(t)

	buf := NewImageBuffer(newSolidRGBA(4, 2))
	tex, err := MakeTextureFromBuffer(ctx, buf, false)
	if err != nil {
		t.Fatalf("MakeTextureFromBuffer() error = %v", err)
	}
	if tex.Width() != 4 || tex.Height() != 2 {
		t.Errorf("texture is %dx%d, want 4x2", tex.Width(), tex.Height())
	}
	if got, want := len(gpu.lastPixels), 4*2*4; got != want {
		t.Errorf("uploaded %d bytes, want %d", got, want)
	}

	if _, err := MakeTextureFromBuffer(ctx, nil, false); !errors.Is(err, ErrNilImageBuffer) {
		t.Errorf("MakeTextureFromBuffer(nil) error = %v, want %v", err, ErrNilImageBuffer)
	}
}

func TestMakeRenderTarget(t *testing.T) {
	ctx, _ := newTestContext(t)

	tex, err := MakeTexture(ctx, TextureDescriptor{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("MakeTexture() error = %v", err)
	}

	if _, err := MakeRenderTarget(ctx, nil, 1); !errors.Is(err, ErrNilTexture) {
		t.Errorf("MakeRenderTarget(nil tex) error = %v, want %v", err, ErrNilTexture)
	}
	if _, err := MakeRenderTarget(ctx, tex, 0); err == nil {
		t.Error("MakeRenderTarget() accepted sample count 0")
	}

	rt, err := MakeRenderTarget(ctx, tex, 4)
	if err != nil {
		t.Fatalf("MakeRenderTarget() error = %v", err)
	}
	if got := RefCount(tex); got != 2 {
		t.Errorf("texture RefCount() = %d with target alive, want 2", got)
	}
	if rt.SampleCount() != 4 {
		t.Errorf("SampleCount() = %d, want 4", rt.SampleCount())
	}
}

func TestRenderTargetMemoryUsage(t *testing.T) {
	tex := &Texture{desc: TextureDescriptor{Width: 10, Height: 10, Format: gputypes.TextureFormatRGBA8Unorm}}

	single := &RenderTarget{texture: tex, sampleCount: 1}
	if got := single.MemoryUsage(); got != 0 {
		t.Errorf("single-sample MemoryUsage() = %d, want 0", got)
	}
	msaa := &RenderTarget{texture: tex, sampleCount: 4}
	if got := msaa.MemoryUsage(); got != 10*10*4*4 {
		t.Errorf("MSAA MemoryUsage() = %d, want %d", got, 10*10*4*4)
	}
}

func TestRenderTargetReleaseUnrefsTexture(t *testing.T) {
	ctx, _ := newTestContext(t)
	cache := ctx.ResourceCache()

	tex, err := MakeTexture(ctx, TextureDescriptor{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("MakeTexture() error = %v", err)
	}
	rt, err := MakeRenderTarget(ctx, tex, 1)
	if err != nil {
		t.Fatalf("MakeRenderTarget() error = %v", err)
	}

	Unref(rt)
	cache.PurgeUntilMemoryTo(0)
	// The target's reference is gone; only the caller's remains.
	if got := RefCount(tex); got != 1 {
		t.Errorf("texture RefCount() = %d after target eviction, want 1", got)
	}
}

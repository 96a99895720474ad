package wgpu

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flare"
)

// Backend errors.
var (
	// ErrNilDevice is returned when the backend is created without a device.
	ErrNilDevice = errors.New("wgpu: device is nil")

	// ErrNoRenderTarget is returned by Draw when no target is bound.
	ErrNoRenderTarget = errors.New("wgpu: no render target bound")

	// ErrNoDispatcher is returned by Draw for triangle draws when no
	// DrawDispatcher has been registered.
	ErrNoDispatcher = errors.New("wgpu: no draw dispatcher registered")

	// ErrForeignTexture is returned when a texture handle was not created by
	// this backend.
	ErrForeignTexture = errors.New("wgpu: texture not created by this backend")

	// ErrMipmapsNotSupported is returned by RegenerateMipmapLevels.
	ErrMipmapsNotSupported = errors.New("wgpu: mipmap regeneration not supported")

	// ErrScissoredClearNotSupported is returned for a clear restricted to a
	// sub-rectangle when no DrawDispatcher is registered. A partial clear is
	// a draw, not a pass-level load operation.
	ErrScissoredClearNotSupported = errors.New("wgpu: scissored clear requires a draw dispatcher")
)

// gpuWaitTimeout bounds fence waits in Finish and copy readback.
const gpuWaitTimeout = 5 * time.Second

// copyPitchAlignment is the BytesPerRow alignment required for
// texture-to-buffer copies on WebGPU and DX12.
const copyPitchAlignment = 256

// DrawDispatcher records pipeline-level draw calls into a render pass. The
// backend opens the pass, sets up attachments, and then hands the encoder to
// the dispatcher together with the draw's state; the dispatcher owns
// pipelines, bind groups, and vertex upload.
type DrawDispatcher interface {
	RecordDraw(rp hal.RenderPassEncoder, state flare.DrawState) error
}

// backendTexture is the handle this backend stores inside flare textures.
type backendTexture struct {
	tex  hal.Texture
	view hal.TextureView
}

// msaaAttachment is a lazily created multisampled color buffer, reused
// across binds while the bound target keeps the same shape.
type msaaAttachment struct {
	tex     hal.Texture
	view    hal.TextureView
	width   int
	height  int
	samples int
	format  gputypes.TextureFormat
}

// Backend implements flare.Gpu over a hal.Device and hal.Queue.
//
// Draw and copy calls encode into individual command buffers that accumulate
// until Finish submits them behind a fence. The flare context serializes all
// calls, so the backend carries no locking of its own.
type Backend struct {
	device     hal.Device
	queue      hal.Queue
	dispatcher DrawDispatcher

	bound   *flare.RenderTarget
	msaa    msaaAttachment
	pending []hal.CommandBuffer
}

var _ flare.Gpu = (*Backend)(nil)

// New creates a backend over the given device and queue.
func New(device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Backend{device: device, queue: queue}, nil
}

// SetDrawDispatcher registers the dispatcher that records triangle draws.
// Pass nil to unregister; clears, copies, and resolves keep working without
// one.
func (b *Backend) SetDrawDispatcher(d DrawDispatcher) {
	b.dispatcher = d
}

// CreateTexture allocates a texture with a full usage set so it can serve as
// sample source, render attachment, and copy endpoint interchangeably.
// Tightly-packed level-0 pixels, when given, are uploaded before return.
func (b *Backend) CreateTexture(desc flare.TextureDescriptor, pixels []byte) (flare.BackendTexture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("wgpu: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	label := desc.Label
	if label == "" {
		label = "flare_texture"
	}
	levels := uint32(1)
	if desc.Mipmapped {
		levels = mipLevelCount(desc.Width, desc.Height)
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: levels,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage: gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageCopySrc |
			gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture: %w", err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	if len(pixels) > 0 {
		bytesPerRow := uint32(desc.Width) * uint32(formatPixelSize(desc.Format))
		b.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
			pixels,
			&hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: uint32(desc.Height),
			},
			&hal.Extent3D{
				Width:              uint32(desc.Width),
				Height:             uint32(desc.Height),
				DepthOrArrayLayers: 1,
			},
		)
	}
	return &backendTexture{tex: tex, view: view}, nil
}

// DeleteTexture frees a texture created by CreateTexture. Foreign handles
// are ignored.
func (b *Backend) DeleteTexture(tex flare.BackendTexture) {
	bt, ok := tex.(*backendTexture)
	if !ok || bt == nil {
		return
	}
	if bt.view != nil {
		b.device.DestroyTextureView(bt.view)
		bt.view = nil
	}
	if bt.tex != nil {
		b.device.DestroyTexture(bt.tex)
		bt.tex = nil
	}
}

// BindRenderTarget makes rt the destination of subsequent draws. For
// multisampled targets a shared MSAA color buffer is (re)allocated to match
// the target's shape.
func (b *Backend) BindRenderTarget(rt *flare.RenderTarget) error {
	if rt == nil {
		b.bound = nil
		return nil
	}
	if _, err := b.handleOf(rt.Texture()); err != nil {
		return err
	}
	if rt.SampleCount() > 1 {
		if err := b.ensureMSAA(rt); err != nil {
			return err
		}
	}
	b.bound = rt
	return nil
}

// Draw encodes one draw against the bound target. Clears encode as a
// clear-loaded render pass; triangle draws open a pass and delegate
// recording to the registered dispatcher.
func (b *Backend) Draw(state flare.DrawState) error {
	if b.bound == nil {
		return ErrNoRenderTarget
	}
	switch state.Kind {
	case flare.DrawClear:
		if clearNeedsDraw(state.Scissor, b.bound.Width(), b.bound.Height()) {
			// Pass-level load clears always cover the whole attachment; a
			// sub-rectangle clear must rasterize through the dispatcher.
			if b.dispatcher == nil {
				return ErrScissoredClearNotSupported
			}
			return b.encodePass("flare_clear", gputypes.Color{}, gputypes.LoadOpLoad, func(rp hal.RenderPassEncoder) error {
				return b.dispatcher.RecordDraw(rp, state)
			})
		}
		return b.encodePass("flare_clear", state.ClearColor, gputypes.LoadOpClear, nil)
	case flare.DrawTriangles:
		if b.dispatcher == nil {
			return ErrNoDispatcher
		}
		return b.encodePass("flare_draw", gputypes.Color{}, gputypes.LoadOpLoad, func(rp hal.RenderPassEncoder) error {
			return b.dispatcher.RecordDraw(rp, state)
		})
	default:
		return fmt.Errorf("wgpu: unknown draw kind %d", state.Kind)
	}
}

// encodePass opens a render pass on the bound target, runs record inside it
// (when non-nil), and queues the finished command buffer for submission.
// Multisampled targets render into the shared MSAA buffer without resolving;
// ResolveRenderTarget performs the resolve explicitly.
func (b *Backend) encodePass(label string, clearValue gputypes.Color, loadOp gputypes.LoadOp, record func(hal.RenderPassEncoder) error) error {
	view, err := b.colorViewOf(b.bound)
	if err != nil {
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearValue,
		}},
	})
	if record != nil {
		if err := record(rp); err != nil {
			rp.End()
			encoder.DiscardEncoding()
			return err
		}
	}
	rp.End()
	return b.finishEncoder(encoder)
}

// CopyRenderTargetToTexture blits srcRect from the source target's texture
// into dst at dstPoint. The copy stages through a readback buffer; the hal
// surface has no direct texture-to-texture path.
func (b *Backend) CopyRenderTargetToTexture(src *flare.RenderTarget, dst *flare.Texture, srcRect image.Rectangle, dstPoint image.Point) error {
	if src == nil || dst == nil {
		return errors.New("wgpu: nil copy surface")
	}
	srcHandle, err := b.handleOf(src.Texture())
	if err != nil {
		return err
	}
	dstHandle, err := b.handleOf(dst)
	if err != nil {
		return err
	}
	srcRect = srcRect.Intersect(image.Rect(0, 0, src.Width(), src.Height()))
	if srcRect.Empty() {
		return nil
	}
	w, h := srcRect.Dx(), srcRect.Dy()
	pixelSize := formatPixelSize(src.Texture().Format())

	// WebGPU and DX12 require BytesPerRow aligned to 256 bytes.
	bytesPerRow := w * pixelSize
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flare_copy_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "flare_copy"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("flare_copy"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: srcHandle.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(srcHandle.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(alignedBytesPerRow),
			RowsPerImage: uint32(h),
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  srcHandle.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(srcRect.Min.X), Y: uint32(srcRect.Min.Y)},
		},
		Size: hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: srcHandle.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	if err := b.finishEncoder(encoder); err != nil {
		return err
	}

	// The staging buffer dies with this call, so the copy into it must land
	// before return.
	if err := b.Finish(); err != nil {
		return err
	}
	readback := make([]byte, stagingSize)
	if err := b.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("wgpu: readback: %w", err)
	}
	if alignedBytesPerRow != bytesPerRow {
		tight := make([]byte, bytesPerRow*h)
		for row := 0; row < h; row++ {
			copy(tight[row*bytesPerRow:(row+1)*bytesPerRow], readback[row*alignedBytesPerRow:])
		}
		readback = tight
	} else {
		readback = readback[:bytesPerRow*h]
	}
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  dstHandle.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(dstPoint.X), Y: uint32(dstPoint.Y)},
		},
		readback,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	return nil
}

// ResolveRenderTarget resolves the shared MSAA buffer into rt's texture via
// an empty render pass with a resolve attachment.
func (b *Backend) ResolveRenderTarget(rt *flare.RenderTarget) error {
	if rt == nil || rt.SampleCount() <= 1 {
		return nil
	}
	handle, err := b.handleOf(rt.Texture())
	if err != nil {
		return err
	}
	if err := b.ensureMSAA(rt); err != nil {
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "flare_resolve"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("flare_resolve"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "flare_resolve",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:          b.msaa.view,
			ResolveTarget: handle.view,
			LoadOp:        gputypes.LoadOpLoad,
			StoreOp:       gputypes.StoreOpStore,
		}},
	})
	rp.End()
	return b.finishEncoder(encoder)
}

// RegenerateMipmapLevels is not supported by this backend.
// TODO: blit level N-1 into level N with a dedicated downsample pipeline
// once the dispatcher surface grows per-level texture views.
func (b *Backend) RegenerateMipmapLevels(tex *flare.Texture) error {
	return ErrMipmapsNotSupported
}

// Finish submits every pending command buffer behind a fence and blocks
// until the GPU drains it.
func (b *Backend) Finish() error {
	if len(b.pending) == 0 {
		return nil
	}
	pending := b.pending
	b.pending = nil
	defer func() {
		for _, cmdBuf := range pending {
			b.device.FreeCommandBuffer(cmdBuf)
		}
	}()

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit(pending, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, gpuWaitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wgpu: wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

// Release frees backend-owned scratch state. Textures handed out through
// CreateTexture are freed by their owners via DeleteTexture.
func (b *Backend) Release() {
	b.destroyMSAA()
	b.bound = nil
}

// finishEncoder closes the encoder and queues its command buffer.
func (b *Backend) finishEncoder(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	b.pending = append(b.pending, cmdBuf)
	return nil
}

// colorViewOf returns the view draws should render into: the shared MSAA
// buffer for multisampled targets, the target's own texture otherwise.
func (b *Backend) colorViewOf(rt *flare.RenderTarget) (hal.TextureView, error) {
	if rt.SampleCount() > 1 {
		if err := b.ensureMSAA(rt); err != nil {
			return nil, err
		}
		return b.msaa.view, nil
	}
	handle, err := b.handleOf(rt.Texture())
	if err != nil {
		return nil, err
	}
	return handle.view, nil
}

// ensureMSAA (re)creates the shared multisampled color buffer to match rt.
// A no-op while the shape is unchanged.
func (b *Backend) ensureMSAA(rt *flare.RenderTarget) error {
	w, h := rt.Width(), rt.Height()
	format := rt.Texture().Format()
	samples := rt.SampleCount()
	m := &b.msaa
	if m.tex != nil && m.width == w && m.height == h && m.samples == samples && m.format == format {
		return nil
	}
	b.destroyMSAA()

	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: "flare_msaa_color",
		Size: hal.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create MSAA color texture: %w", err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "flare_msaa_color_view",
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return fmt.Errorf("wgpu: create MSAA color view: %w", err)
	}
	*m = msaaAttachment{tex: tex, view: view, width: w, height: h, samples: samples, format: format}
	return nil
}

func (b *Backend) destroyMSAA() {
	if b.msaa.view != nil {
		b.device.DestroyTextureView(b.msaa.view)
	}
	if b.msaa.tex != nil {
		b.device.DestroyTexture(b.msaa.tex)
	}
	b.msaa = msaaAttachment{}
}

// handleOf unwraps a flare texture's backend handle.
func (b *Backend) handleOf(tex *flare.Texture) (*backendTexture, error) {
	if tex == nil {
		return nil, ErrForeignTexture
	}
	handle, ok := tex.Backend().(*backendTexture)
	if !ok || handle == nil || handle.tex == nil {
		return nil, ErrForeignTexture
	}
	return handle, nil
}

// clearNeedsDraw reports whether a clear must rasterize as a scissored draw
// instead of a pass-level load clear. The empty scissor and any scissor
// covering the whole w by h target can use the load clear.
func clearNeedsDraw(scissor image.Rectangle, w, h int) bool {
	if scissor.Empty() {
		return false
	}
	return !image.Rect(0, 0, w, h).In(scissor)
}

// formatPixelSize returns bytes per pixel for the formats the core uses.
func formatPixelSize(format gputypes.TextureFormat) int {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

// mipLevelCount returns the full chain length for a w by h level 0.
func mipLevelCount(w, h int) uint32 {
	n := w
	if h > n {
		n = h
	}
	return uint32(bits.Len32(uint32(n)))
}

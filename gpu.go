package flare

import (
	"image"

	"github.com/gogpu/gputypes"
)

// BackendTexture is an opaque handle to a backend texture object. The core
// never interprets it; it is created by [Gpu.CreateTexture] and handed back
// to the same backend for draws, copies, and destruction.
type BackendTexture interface{}

// ProcessorStage is a compiled color or coverage processing stage (shader,
// color filter, mask filter). Stages are produced by higher layers and
// plumbed through to the backend without being constructed or interpreted
// here.
type ProcessorStage interface{}

// AAType selects the antialiasing mode for one draw.
type AAType uint8

const (
	// AANone disables antialiasing.
	AANone AAType = iota

	// AACoverage uses analytic coverage values from a coverage stage.
	AACoverage

	// AAMSAA relies on multisampled render target resolve.
	AAMSAA
)

// String returns a human-readable name for the AA mode.
func (a AAType) String() string {
	switch a {
	case AANone:
		return "none"
	case AACoverage:
		return "coverage"
	case AAMSAA:
		return "msaa"
	default:
		return "unknown"
	}
}

// BlendMode selects how a draw's output combines with the destination.
// Only the Porter-Duff subset the scheduler forwards is enumerated; the
// backend maps these onto its own blend state.
type BlendMode uint8

const (
	BlendSrcOver BlendMode = iota
	BlendSrc
	BlendDstOver
	BlendDstIn
	BlendDstOut
	BlendPlus
	BlendClear
)

// DrawKind distinguishes the backend action a DrawState requests.
type DrawKind uint8

const (
	// DrawTriangles rasterizes the vertex list with the attached stages.
	DrawTriangles DrawKind = iota

	// DrawClear fills the scissored region (or the whole target) with
	// ClearColor, ignoring vertices and stages.
	DrawClear
)

// DrawState is the per-draw state handed to the backend: geometry plus the
// antialiasing mode, blend mode, scissor rectangle, and attached processing
// stages of one op.
type DrawState struct {
	Kind DrawKind

	// Vertices holds triangle geometry as interleaved x,y float32 pairs.
	// Every 6 consecutive floats form one triangle.
	Vertices []float32

	AA    AAType
	Blend BlendMode

	// Scissor restricts the draw to a pixel rectangle. The empty rectangle
	// disables scissoring.
	Scissor image.Rectangle

	// ClearColor is used by DrawClear only.
	ClearColor gputypes.Color

	// ColorStages and CoverageStages are forwarded to the backend untouched.
	ColorStages    []ProcessorStage
	CoverageStages []ProcessorStage
}

// Gpu is the backend execution surface. The core drives it from render
// tasks during a flush; everything else about the underlying graphics API
// stays behind this interface.
//
// Implementations are called only with the owning context locked and need
// not be safe for concurrent use.
type Gpu interface {
	// CreateTexture allocates a backend texture. pixels, when non-nil,
	// holds tightly-packed level-0 content to upload.
	CreateTexture(desc TextureDescriptor, pixels []byte) (BackendTexture, error)

	// DeleteTexture frees a texture created by CreateTexture.
	DeleteTexture(tex BackendTexture)

	// BindRenderTarget makes rt the destination of subsequent Draw calls.
	BindRenderTarget(rt *RenderTarget) error

	// Draw issues one backend draw with the given state.
	Draw(state DrawState) error

	// CopyRenderTargetToTexture blits srcRect from src into dst at dstPoint.
	// Both surfaces must already be resolved.
	CopyRenderTargetToTexture(src *RenderTarget, dst *Texture, srcRect image.Rectangle, dstPoint image.Point) error

	// ResolveRenderTarget resolves multisampled content into the target's
	// texture. A no-op for single-sampled targets.
	ResolveRenderTarget(rt *RenderTarget) error

	// RegenerateMipmapLevels rebuilds the mip chain of tex from level 0.
	RegenerateMipmapLevels(tex *Texture) error

	// Finish submits all pending backend work and blocks until it completes.
	Finish() error
}

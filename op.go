package flare

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Op is one leaf drawing command inside an ops batch. The scheduler treats
// ops as opaque beyond their per-draw state: each op resolves to exactly one
// backend draw carrying its antialiasing mode, blend mode, scissor
// rectangle, and attached processing stages.
type Op interface {
	DrawState() DrawState
}

// OpState is the per-draw state shared by all op kinds.
type OpState struct {
	AA             AAType
	Blend          BlendMode
	Scissor        image.Rectangle
	ColorStages    []ProcessorStage
	CoverageStages []ProcessorStage
}

func (s OpState) apply(kind DrawKind, vertices []float32) DrawState {
	return DrawState{
		Kind:           kind,
		Vertices:       vertices,
		AA:             s.AA,
		Blend:          s.Blend,
		Scissor:        s.Scissor,
		ColorStages:    s.ColorStages,
		CoverageStages: s.CoverageStages,
	}
}

// ClearOp fills the scissored region, or the whole target, with a color.
type ClearOp struct {
	Color   gputypes.Color
	Scissor image.Rectangle
}

func (op *ClearOp) DrawState() DrawState {
	return DrawState{
		Kind:       DrawClear,
		Blend:      BlendSrc,
		Scissor:    op.Scissor,
		ClearColor: op.Color,
	}
}

// RectOp draws an axis-aligned filled rectangle.
type RectOp struct {
	X, Y, W, H float32
	State      OpState
}

func (op *RectOp) DrawState() DrawState {
	x0, y0 := op.X, op.Y
	x1, y1 := op.X+op.W, op.Y+op.H
	vertices := []float32{
		x0, y0, x1, y0, x1, y1,
		x0, y0, x1, y1, x0, y1,
	}
	return op.State.apply(DrawTriangles, vertices)
}

// RRectOp draws a rounded rectangle from pre-tessellated triangles.
// Tessellation happens upstream; the op only carries the result.
type RRectOp struct {
	// Vertices holds fan-tessellated triangles as x,y float32 pairs.
	Vertices []float32
	State    OpState
}

func (op *RRectOp) DrawState() DrawState {
	return op.State.apply(DrawTriangles, op.Vertices)
}

// TrianglesOp draws an arbitrary triangulated path.
type TrianglesOp struct {
	Vertices []float32
	State    OpState
}

func (op *TrianglesOp) DrawState() DrawState {
	return op.State.apply(DrawTriangles, op.Vertices)
}

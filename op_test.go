package flare

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestClearOpDrawState(t *testing.T) {
	op := &ClearOp{
		Color:   gputypes.Color{R: 0.5, A: 1},
		Scissor: image.Rect(1, 2, 3, 4),
	}
	state := op.DrawState()
	if state.Kind != DrawClear {
		t.Errorf("Kind = %v, want DrawClear", state.Kind)
	}
	if state.ClearColor != op.Color {
		t.Errorf("ClearColor = %v, want %v", state.ClearColor, op.Color)
	}
	if state.Scissor != op.Scissor {
		t.Errorf("Scissor = %v, want %v", state.Scissor, op.Scissor)
	}
	if len(state.Vertices) != 0 {
		t.Errorf("clear carries %d vertices, want 0", len(state.Vertices))
	}
}

func TestRectOpDrawState(t *testing.T) {
	op := &RectOp{
		X: 10, Y: 20, W: 30, H: 40,
		State: OpState{AA: AAMSAA, Blend: BlendSrcOver},
	}
	state := op.DrawState()
	if state.Kind != DrawTriangles {
		t.Fatalf("Kind = %v, want DrawTriangles", state.Kind)
	}
	if len(state.Vertices) != 12 {
		t.Fatalf("len(Vertices) = %d, want 12 (two triangles)", len(state.Vertices))
	}
	if state.AA != AAMSAA || state.Blend != BlendSrcOver {
		t.Errorf("state = {%v %v}, want {msaa srcover}", state.AA, state.Blend)
	}

	// All four corners appear among the vertices.
	corners := map[[2]float32]bool{
		{10, 20}: false, {40, 20}: false, {40, 60}: false, {10, 60}: false,
	}
	for i := 0; i < len(state.Vertices); i += 2 {
		p := [2]float32{state.Vertices[i], state.Vertices[i+1]}
		if _, ok := corners[p]; ok {
			corners[p] = true
		}
	}
	for corner, seen := range corners {
		if !seen {
			t.Errorf("corner %v missing from rect vertices", corner)
		}
	}
}

func TestTrianglesOpForwardsState(t *testing.T) {
	vertices := []float32{0, 0, 1, 0, 0, 1}
	stages := []ProcessorStage{struct{}{}}
	op := &TrianglesOp{
		Vertices: vertices,
		State: OpState{
			AA:          AACoverage,
			Scissor:     image.Rect(0, 0, 8, 8),
			ColorStages: stages,
		},
	}
	state := op.DrawState()
	if &state.Vertices[0] != &vertices[0] {
		t.Error("vertices copied instead of forwarded")
	}
	if len(state.ColorStages) != 1 {
		t.Errorf("len(ColorStages) = %d, want 1", len(state.ColorStages))
	}
	if state.AA != AACoverage {
		t.Errorf("AA = %v, want coverage", state.AA)
	}
}

func TestAATypeString(t *testing.T) {
	tests := []struct {
		aa   AAType
		want string
	}{
		{AANone, "none"},
		{AACoverage, "coverage"},
		{AAMSAA, "msaa"},
		{AAType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.aa.String(); got != tt.want {
			t.Errorf("AAType(%d).String() = %q, want %q", tt.aa, got, tt.want)
		}
	}
}

package flare

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
)

// recordingTask notes its execution order in a shared log.
type recordingTask struct {
	id     int
	log    *[]int
	result bool
}

func (t *recordingTask) Execute(Gpu) bool {
	*t.log = append(*t.log, t.id)
	return t.result
}

func TestFlushRunsTasksInAppendOrder(t *testing.T) {
	ctx, _ := newTestContext(t)
	dm := ctx.DrawingManager()

	var log []int
	for i := 1; i <= 5; i++ {
		dm.appendTask(&recordingTask{id: i, log: &log, result: true})
	}
	dm.Flush(ctx.Gpu())

	want := []int{1, 2, 3, 4, 5}
	if len(log) != len(want) {
		t.Fatalf("executed %d tasks, want %d", len(log), len(want))
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", log, want)
		}
	}
	if got := dm.PendingTaskCount(); got != 0 {
		t.Errorf("PendingTaskCount() = %d after flush, want 0", got)
	}
}

func TestFailedTaskIsDroppedWithoutRetry(t *testing.T) {
	ctx, _ := newTestContext(t)
	dm := ctx.DrawingManager()

	var log []int
	dm.appendTask(&recordingTask{id: 1, log: &log, result: false})
	dm.appendTask(&recordingTask{id: 2, log: &log, result: true})

	dm.Flush(ctx.Gpu())
	if len(log) != 2 {
		t.Fatalf("executed %d tasks, want 2 (failure must not abort the flush)", len(log))
	}

	// A second flush re-runs nothing.
	dm.Flush(ctx.Gpu())
	if len(log) != 2 {
		t.Errorf("executed %d tasks after second flush, want 2", len(log))
	}
}

func TestNewOpsTaskMergesConsecutiveSameTarget(t *testing.T) {
	ctx, _ := newTestContext(t)
	dm := ctx.DrawingManager()
	pp := ctx.ProxyProvider()

	target := pp.CreateRenderTargetProxy(TextureDescriptor{Width: 8, Height: 8}, 1)
	other := pp.CreateRenderTargetProxy(TextureDescriptor{Width: 8, Height: 8}, 1)

	a := dm.NewOpsTask(target)
	b := dm.NewOpsTask(target)
	if a != b {
		t.Error("consecutive same-target batches not merged")
	}
	if got := dm.PendingTaskCount(); got != 1 {
		t.Errorf("PendingTaskCount() = %d, want 1", got)
	}

	c := dm.NewOpsTask(other)
	if c == a {
		t.Error("different targets merged into one batch")
	}

	// The interleaving closed the first batch.
	d := dm.NewOpsTask(target)
	if d == a {
		t.Error("batch reopened after an interleaving task")
	}
	if got := dm.PendingTaskCount(); got != 3 {
		t.Errorf("PendingTaskCount() = %d, want 3", got)
	}
}

func TestAppendTaskClosesOpenBatch(t *testing.T) {
	ctx, _ := newTestContext(t)
	dm := ctx.DrawingManager()

	target := ctx.ProxyProvider().CreateRenderTargetProxy(TextureDescriptor{Width: 8, Height: 8}, 4)
	batch := dm.NewOpsTask(target)
	batch.AddOp(&ClearOp{Color: gputypes.Color{A: 1}})

	dm.AddTextureResolveTask(target)

	// Ops aimed at the closed batch are dropped.
	batch.AddOp(&RectOp{W: 4, H: 4})
	if got := batch.OpCount(); got != 1 {
		t.Errorf("OpCount() = %d after closed add, want 1", got)
	}
}

func TestOpsTaskExecuteDrawsEachOp(t *testing.T) {
	ctx, gpu := newTestContext(t)
	dm := ctx.DrawingManager()

	target := ctx.ProxyProvider().CreateRenderTargetProxy(TextureDescriptor{Width: 8, Height: 8}, 1)
	batch := dm.NewOpsTask(target)
	batch.AddOp(&ClearOp{Color: gputypes.Color{R: 1, A: 1}})
	batch.AddOp(&RectOp{X: 1, Y: 1, W: 2, H: 2})
	batch.AddOp(nil) // ignored

	ctx.Flush()

	if gpu.bindCount != 1 {
		t.Errorf("bindCount = %d, want 1", gpu.bindCount)
	}
	if gpu.drawCount != 2 {
		t.Errorf("drawCount = %d, want 2", gpu.drawCount)
	}
	if gpu.finishCount != 1 {
		t.Errorf("finishCount = %d, want 1", gpu.finishCount)
	}
}

func TestCopyTaskResolvesBothEnds(t *testing.T) {
	ctx, gpu := newTestContext(t)
	dm := ctx.DrawingManager()
	pp := ctx.ProxyProvider()

	source := pp.CreateRenderTargetProxy(TextureDescriptor{Width: 16, Height: 16}, 1)
	key := MakeUniqueKey()
	defer key.ReleaseReference(true)
	dest := pp.CreateTextureProxy(key, TextureDescriptor{Width: 16, Height: 16})

	if got := dm.AddRenderTargetCopyTask(nil, dest, image.Rect(0, 0, 8, 8), image.Point{}); got != nil {
		t.Error("AddRenderTargetCopyTask() accepted a nil source")
	}
	task := dm.AddRenderTargetCopyTask(source, dest, image.Rect(0, 0, 8, 8), image.Pt(2, 2))
	if task == nil {
		t.Fatal("AddRenderTargetCopyTask() = nil")
	}

	ctx.Flush()
	if gpu.copyCount != 1 {
		t.Errorf("copyCount = %d, want 1", gpu.copyCount)
	}
	if source.Target() == nil || dest.Texture() == nil {
		t.Error("copy did not resolve its surfaces")
	}
}

func TestResolveTaskSkipsSingleSampled(t *testing.T) {
	ctx, gpu := newTestContext(t)
	dm := ctx.DrawingManager()

	target := ctx.ProxyProvider().CreateRenderTargetProxy(TextureDescriptor{Width: 8, Height: 8}, 1)
	dm.AddTextureResolveTask(target)
	ctx.Flush()

	if gpu.resolveCount != 0 {
		t.Errorf("resolveCount = %d for single-sampled target, want 0", gpu.resolveCount)
	}
}

func TestResolveTaskResolvesAndRegeneratesMips(t *testing.T) {
	ctx, gpu := newTestContext(t)
	dm := ctx.DrawingManager()

	desc := TextureDescriptor{Width: 8, Height: 8, Mipmapped: true}
	target := ctx.ProxyProvider().CreateRenderTargetProxy(desc, 4)
	dm.AddTextureResolveTask(target)
	ctx.Flush()

	if gpu.resolveCount != 1 {
		t.Errorf("resolveCount = %d, want 1", gpu.resolveCount)
	}
	if gpu.mipCount != 1 {
		t.Errorf("mipCount = %d, want 1", gpu.mipCount)
	}
}

func TestTextureCreateTaskExecuteLeavesCacheOwned(t *testing.T) {
	ctx, _ := newTestContext(t)

	key := MakeUniqueKey()
	defer key.ReleaseReference(true)
	proxy := ctx.ProxyProvider().CreateTextureProxy(key, TextureDescriptor{Width: 8, Height: 8})

	ctx.Flush()

	// The flush created the texture without handing anyone a reference;
	// resolution goes through the unique key.
	tex := proxy.Instantiate()
	if tex == nil {
		t.Fatal("Instantiate() = nil after flush")
	}
	if got := RefCount(tex); got != 1 {
		t.Errorf("RefCount() = %d, want 1 (proxy only)", got)
	}
}

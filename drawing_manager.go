package flare

import "image"

// DrawingManager accumulates the deferred task graph for one context and
// executes it per flush. Tasks run in strict append order, which equals the
// order producer/consumer relationships between proxies were established;
// dependencies between tasks are implicit in that order.
//
// All methods require the context to be locked.
type DrawingManager struct {
	context *Context
	tasks   []RenderTask
}

func newDrawingManager(ctx *Context) *DrawingManager {
	return &DrawingManager{context: ctx}
}

// PendingTaskCount returns the number of tasks awaiting the next flush.
func (dm *DrawingManager) PendingTaskCount() int { return len(dm.tasks) }

// NewOpsTask returns an ops batch for target. If the most recent pending
// task is still an open batch for the same target it is returned instead of
// a new one, merging consecutive same-target draws into one submission.
// This is an optimization, not a correctness requirement: interleaving any
// other task closes the batch.
func (dm *DrawingManager) NewOpsTask(target *RenderTargetProxy) *OpsRenderTask {
	if target == nil {
		return nil
	}
	if n := len(dm.tasks); n > 0 {
		if tail, ok := dm.tasks[n-1].(*OpsRenderTask); ok && tail.target == target && !tail.closed {
			return tail
		}
	}
	task := &OpsRenderTask{target: target}
	dm.appendTask(task)
	return task
}

// AddRenderTargetCopyTask schedules a sub-rectangle blit from source into
// dest after all currently pending work.
func (dm *DrawingManager) AddRenderTargetCopyTask(source *RenderTargetProxy, dest *TextureProxy, srcRect image.Rectangle, dstPoint image.Point) *RenderTargetCopyTask {
	if source == nil || dest == nil {
		return nil
	}
	task := &RenderTargetCopyTask{source: source, dest: dest, srcRect: srcRect, dstPoint: dstPoint}
	dm.appendTask(task)
	return task
}

// AddTextureResolveTask schedules a multisample resolve and mip
// regeneration for target after all currently pending writers.
func (dm *DrawingManager) AddTextureResolveTask(target *RenderTargetProxy) *TextureResolveTask {
	if target == nil {
		return nil
	}
	task := &TextureResolveTask{target: target}
	dm.appendTask(task)
	return task
}

// appendTask adds a task to the end of the graph, closing any open ops
// batch so later same-target draws cannot be reordered past this task.
func (dm *DrawingManager) appendTask(task RenderTask) {
	if n := len(dm.tasks); n > 0 {
		if tail, ok := dm.tasks[n-1].(*OpsRenderTask); ok {
			tail.closed = true
		}
	}
	dm.tasks = append(dm.tasks, task)
}

// Flush executes every pending task in insertion order and clears the
// graph. A task returning false is logged and dropped without retry;
// downstream tasks degrade silently (a gap renders instead of aborting the
// frame).
func (dm *DrawingManager) Flush(gpu Gpu) {
	tasks := dm.tasks
	dm.tasks = nil
	for _, task := range tasks {
		if !task.Execute(gpu) {
			Logger().Warn("flare: render task failed", "task", taskName(task))
		}
	}
	if len(tasks) > 0 {
		Logger().Debug("flare: flushed task graph", "tasks", len(tasks))
	}
}

func taskName(task RenderTask) string {
	switch task.(type) {
	case *OpsRenderTask:
		return "ops"
	case *TextureCreateTask:
		return "texture-create"
	case *RenderTargetCopyTask:
		return "target-copy"
	case *TextureResolveTask:
		return "resolve"
	default:
		return "unknown"
	}
}

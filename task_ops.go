package flare

// OpsRenderTask batches leaf drawing ops against one render target. The
// DrawingManager merges consecutive same-target batches, so a run of draws
// to the same surface becomes a single bind plus one backend draw per op.
type OpsRenderTask struct {
	target *RenderTargetProxy
	ops    []Op

	// closed is set once another task is appended after this one; a closed
	// batch no longer accepts ops, preserving submission order.
	closed bool
}

// Target returns the proxy the batch draws into.
func (t *OpsRenderTask) Target() *RenderTargetProxy { return t.target }

// AddOp appends a drawing op to the batch. Ops added to a closed batch are
// dropped with a warning; the caller should have opened a new batch.
func (t *OpsRenderTask) AddOp(op Op) {
	if t.closed {
		Logger().Warn("flare: op added to closed batch")
		return
	}
	if op != nil {
		t.ops = append(t.ops, op)
	}
}

// OpCount returns the number of ops recorded so far.
func (t *OpsRenderTask) OpCount() int { return len(t.ops) }

// Execute binds the target (forcing lazy proxy resolution) and issues one
// backend draw per op. A draw error degrades that op only; the rest of the
// batch still renders.
func (t *OpsRenderTask) Execute(gpu Gpu) bool {
	rt := t.target.Instantiate()
	if rt == nil {
		Logger().Warn("flare: ops batch target failed to resolve")
		return false
	}
	if err := gpu.BindRenderTarget(rt); err != nil {
		Logger().Warn("flare: bind render target failed", "err", err)
		return false
	}
	for _, op := range t.ops {
		if err := gpu.Draw(op.DrawState()); err != nil {
			Logger().Warn("flare: draw failed", "err", err)
		}
	}
	return true
}

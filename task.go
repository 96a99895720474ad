package flare

// RenderTask is one ordered unit of deferred GPU work. Tasks are
// accumulated by the DrawingManager and executed in strict append order
// during a flush.
type RenderTask interface {
	// Execute performs the task's work against the backend. Returning false
	// marks the task failed: it is logged and dropped without retry, and
	// downstream tasks depending on its output degrade silently.
	Execute(gpu Gpu) bool
}

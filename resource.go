package flare

import (
	"container/list"
	"sync/atomic"
)

// Resource is a GPU-backed object managed by a ResourceCache. Concrete
// resources embed [ResourceState] and implement the three methods below.
//
// While a resource has external references it is shared by its holders;
// while unreferenced it is owned exclusively by the cache, which frees its
// GPU memory on eviction.
type Resource interface {
	// MemoryUsage returns the GPU memory the resource occupies, in bytes.
	MemoryUsage() int64

	// computeScratchKey writes the resource's recycling identity. Resources
	// writing equal bytes must be interchangeable. Leaving the key empty
	// makes the resource non-recyclable.
	computeScratchKey(key *BytesKey)

	// onReleaseGPU frees the backend objects. Called exactly once, with the
	// owning context locked. gpu may be nil for resources that were never
	// registered with a cache.
	onReleaseGPU(gpu Gpu)

	state() *ResourceState
}

// ResourceState is the bookkeeping embedded by every Resource
// implementation. Its zero value is ready for use; the cache fills it in
// during Wrap.
type ResourceState struct {
	refs     atomic.Int64
	released atomic.Bool

	// cache is the owning cache, nil once the resource leaves it. Stored
	// atomically because Unref may run on worker threads.
	cache atomic.Pointer[ResourceCache]

	scratchKey ScratchKey
	uniqueKey  UniqueKey

	// recency is the resource's position in the cache's recency list.
	// Owned by the cache; touched only under the context lock.
	recency *list.Element

	// memory caches MemoryUsage at wrap time so accounting stays consistent
	// even if a subtype's answer changes.
	memory int64
}

func (s *ResourceState) state() *ResourceState { return s }

// ScratchKey returns the resource's recycling key, fixed at registration.
func (s *ResourceState) ScratchKey() ScratchKey { return s.scratchKey }

// UniqueKey returns the currently assigned unique key, if any.
func (s *ResourceState) UniqueKey() UniqueKey { return s.uniqueKey }

// Ref adds an external reference to r. Safe to call from any goroutine.
func Ref(r Resource) {
	r.state().refs.Add(1)
}

// Unref drops an external reference to r. Safe to call from any goroutine:
// when the last reference dies off-thread the resource lingers as
// cache-owned until a later locked purge pass frees its GPU memory.
//
// A resource that is not cache-resident is released immediately when its
// last reference drops.
func Unref(r Resource) {
	s := r.state()
	n := s.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		Logger().Warn("flare: resource reference count underflow")
		s.refs.Add(1)
		return
	}
	if s.cache.Load() == nil {
		releaseResource(r, nil)
	}
}

// RefCount returns the number of external references held on r.
func RefCount(r Resource) int64 {
	return r.state().refs.Load()
}

// releaseResource runs the release hook exactly once.
func releaseResource(r Resource, gpu Gpu) {
	if r.state().released.CompareAndSwap(false, true) {
		r.onReleaseGPU(gpu)
	}
}

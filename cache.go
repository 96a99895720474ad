package flare

import (
	"container/list"
)

// Cache memory limits.
const (
	// DefaultCacheLimitBytes is the default GPU memory budget (256 MB).
	DefaultCacheLimitBytes int64 = 256 << 20

	// MinCacheLimitBytes is the smallest allowed budget (16 MB).
	MinCacheLimitBytes int64 = 16 << 20
)

// ResourceCache is the per-context store mapping cache keys to resources.
// It tracks GPU memory usage and evicts least-recently-used unreferenced
// resources when the budget is exceeded.
//
// All methods require the owning context to be locked; the cache has no
// internal locking. Reference counts are the one exception: they are atomic
// and may change from worker threads at any time, which is why every
// eviction decision re-reads them under the lock.
type ResourceCache struct {
	gpu      Gpu
	maxBytes int64

	totalBytes int64

	// scratchMap groups interchangeable resources by scratch key content.
	scratchMap map[string][]Resource

	// uniqueMap holds the single resource assigned each unique key.
	uniqueMap map[string]Resource

	// recency orders all cache-resident resources, front = most recently
	// used. Eviction walks from the back.
	recency *list.List
}

func newResourceCache(gpu Gpu, maxBytes int64) *ResourceCache {
	switch {
	case maxBytes <= 0:
		maxBytes = DefaultCacheLimitBytes
	case maxBytes < MinCacheLimitBytes:
		maxBytes = MinCacheLimitBytes
	}
	return &ResourceCache{
		gpu:        gpu,
		maxBytes:   maxBytes,
		scratchMap: make(map[string][]Resource),
		uniqueMap:  make(map[string]Resource),
		recency:    list.New(),
	}
}

// Wrap registers an externally-constructed resource and returns it holding
// one external reference. The resource's scratch key is computed here, once,
// and never changes.
func (c *ResourceCache) Wrap(r Resource) Resource {
	s := r.state()
	if s.cache.Load() != nil {
		Logger().Warn("flare: resource wrapped twice")
		return r
	}
	var bytes BytesKey
	r.computeScratchKey(&bytes)
	s.scratchKey = MakeScratchKey(&bytes)
	s.memory = r.MemoryUsage()
	s.refs.Store(1)
	s.cache.Store(c)

	s.recency = c.recency.PushFront(r)
	if !s.scratchKey.Empty() {
		key := s.scratchKey.data
		c.scratchMap[key] = append(c.scratchMap[key], r)
	}
	c.totalBytes += s.memory
	c.purgeAsNeeded()
	return r
}

// FindScratch returns a resource matching key that currently has zero
// external references, or nil. The returned resource carries a new
// reference. A match with a stale unique key (no strong holders left) has
// that key cleared before it is handed out, so the new user gets a clean
// scratch resource.
func (c *ResourceCache) FindScratch(key ScratchKey) Resource {
	if key.Empty() {
		return nil
	}
	for _, r := range c.scratchMap[key.data] {
		s := r.state()
		if s.refs.Load() != 0 {
			continue
		}
		if !s.uniqueKey.Empty() {
			if s.uniqueKey.StrongCount() > 0 {
				continue
			}
			c.removeUniqueKeyLocked(r)
		}
		Ref(r)
		c.touch(r)
		return r
	}
	return nil
}

// FindUnique returns the resource assigned key, or nil. Unlike scratch
// lookups this bypasses reference gating: every request for the same unique
// key observes the identical resource, referenced or not. The returned
// resource carries a new reference.
func (c *ResourceCache) FindUnique(key UniqueKey) Resource {
	if key.Empty() {
		return nil
	}
	r, ok := c.uniqueMap[key.data]
	if !ok {
		return nil
	}
	Ref(r)
	c.touch(r)
	return r
}

// AssignUniqueKey binds key exclusively to r. A previous holder of the key
// loses its assignment; a previous key on r is cleared first. The cache
// registers itself as a (non-strong) observer of the key's domain.
func (c *ResourceCache) AssignUniqueKey(r Resource, key UniqueKey) {
	if key.Empty() {
		c.RemoveUniqueKey(r)
		return
	}
	if prev, ok := c.uniqueMap[key.data]; ok {
		if prev == r {
			return
		}
		c.removeUniqueKeyLocked(prev)
	}
	s := r.state()
	if !s.uniqueKey.Empty() {
		c.removeUniqueKeyLocked(r)
	}
	key.AddReference(false)
	s.uniqueKey = key
	c.uniqueMap[key.data] = r
}

// RemoveUniqueKey clears r's unique key assignment, making it reachable
// through its scratch key again.
func (c *ResourceCache) RemoveUniqueKey(r Resource) {
	if !r.state().uniqueKey.Empty() {
		c.removeUniqueKeyLocked(r)
	}
}

func (c *ResourceCache) removeUniqueKeyLocked(r Resource) {
	s := r.state()
	delete(c.uniqueMap, s.uniqueKey.data)
	s.uniqueKey.ReleaseReference(false)
	s.uniqueKey = UniqueKey{}
}

// CacheLimit returns the memory budget in bytes.
func (c *ResourceCache) CacheLimit() int64 { return c.maxBytes }

// SetCacheLimit changes the memory budget and purges down to it.
func (c *ResourceCache) SetCacheLimit(maxBytes int64) {
	if maxBytes < MinCacheLimitBytes {
		maxBytes = MinCacheLimitBytes
	}
	c.maxBytes = maxBytes
	c.purgeAsNeeded()
}

// TotalBytes returns the memory consumed by all cache-resident resources.
func (c *ResourceCache) TotalBytes() int64 { return c.totalBytes }

// ResourceCount returns the number of cache-resident resources.
func (c *ResourceCache) ResourceCount() int { return c.recency.Len() }

// PurgeUntilMemoryTo evicts least-recently-used unreferenced resources until
// total memory usage is at most target bytes. Resources with outstanding
// references, or whose unique key still has strong holders, survive any
// target.
//
// The walk repeats while it makes progress: an eviction can drop the last
// reference on another resident (a render target releasing its texture),
// making a resource purgeable that an earlier position in the same walk
// already skipped.
func (c *ResourceCache) PurgeUntilMemoryTo(target int64) {
	if target < 0 {
		target = 0
	}
	for {
		evicted := false
		e := c.recency.Back()
		for e != nil && c.totalBytes > target {
			prev := e.Prev()
			r := e.Value.(Resource)
			if c.purgeable(r) {
				c.evict(r)
				evicted = true
			}
			e = prev
		}
		if !evicted || c.totalBytes <= target {
			return
		}
	}
}

func (c *ResourceCache) purgeable(r Resource) bool {
	s := r.state()
	if s.refs.Load() != 0 {
		return false
	}
	return s.uniqueKey.Empty() || s.uniqueKey.StrongCount() == 0
}

// purgeAsNeeded brings usage back under the budget after growth.
func (c *ResourceCache) purgeAsNeeded() {
	if c.totalBytes > c.maxBytes {
		c.PurgeUntilMemoryTo(c.maxBytes)
	}
}

// touch marks r most recently used.
func (c *ResourceCache) touch(r Resource) {
	c.recency.MoveToFront(r.state().recency)
}

// evict removes r from the cache and frees its GPU memory. The release hook
// runs exactly once.
func (c *ResourceCache) evict(r Resource) {
	s := r.state()
	c.recency.Remove(s.recency)
	s.recency = nil
	if !s.scratchKey.Empty() {
		c.removeScratchEntry(r)
	}
	if !s.uniqueKey.Empty() {
		c.removeUniqueKeyLocked(r)
	}
	c.totalBytes -= s.memory
	s.cache.Store(nil)
	releaseResource(r, c.gpu)
	Logger().Debug("flare: evicted resource",
		"bytes", s.memory, "totalBytes", c.totalBytes)
}

func (c *ResourceCache) removeScratchEntry(r Resource) {
	key := r.state().scratchKey.data
	entries := c.scratchMap[key]
	for i, candidate := range entries {
		if candidate == r {
			entries[i] = entries[len(entries)-1]
			entries = entries[:len(entries)-1]
			break
		}
	}
	if len(entries) == 0 {
		delete(c.scratchMap, key)
	} else {
		c.scratchMap[key] = entries
	}
}

// releaseAll frees every cache-resident resource. Called when the owning
// device shuts down; resources still referenced are released anyway, with a
// warning, since the backend is going away.
func (c *ResourceCache) releaseAll() {
	referenced := 0
	for e := c.recency.Front(); e != nil; {
		next := e.Next()
		r := e.Value.(Resource)
		if r.state().refs.Load() != 0 {
			referenced++
		}
		c.evict(r)
		e = next
	}
	if referenced > 0 {
		Logger().Warn("flare: released cache with referenced resources",
			"count", referenced)
	}
}

// FindUniqueResource is the typed unique-key entry point: it returns the
// resource assigned key if it is a T. The returned resource carries a new
// reference.
func FindUniqueResource[T Resource](c *ResourceCache, key UniqueKey) (T, bool) {
	r := c.FindUnique(key)
	if r == nil {
		var zero T
		return zero, false
	}
	typed, ok := r.(T)
	if !ok {
		// Key bound to a different subtype; not a match for the caller.
		Unref(r)
		var zero T
		return zero, false
	}
	return typed, true
}

// FindScratchResource is the typed scratch-key entry point.
func FindScratchResource[T Resource](c *ResourceCache, key ScratchKey) (T, bool) {
	r := c.FindScratch(key)
	if r == nil {
		var zero T
		return zero, false
	}
	typed, ok := r.(T)
	if !ok {
		Unref(r)
		var zero T
		return zero, false
	}
	return typed, true
}

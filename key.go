package flare

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// BytesKey accumulates the raw byte identity of a cache key. Values are
// appended as 32-bit words so that equal logical content always produces
// equal bytes regardless of platform.
//
// The zero value is an empty key, ready to write.
type BytesKey struct {
	data []byte
}

// Write appends a 32-bit word to the key.
func (k *BytesKey) Write(v uint32) {
	k.data = binary.LittleEndian.AppendUint32(k.data, v)
}

// WriteFloat32 appends the bit pattern of a float32 to the key.
func (k *BytesKey) WriteFloat32(v float32) {
	k.Write(math.Float32bits(v))
}

// WriteString appends the bytes of s to the key, padded to a word boundary.
func (k *BytesKey) WriteString(s string) {
	k.data = append(k.data, s...)
	for len(k.data)%4 != 0 {
		k.data = append(k.data, 0)
	}
}

// Empty reports whether nothing has been written to the key.
func (k *BytesKey) Empty() bool {
	return len(k.data) == 0
}

// hashBytes is FNV-1a over the key content. Keys are hashed once at
// construction so equality checks can reject on the hash first.
func hashBytes(data string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(data); i++ {
		h ^= uint32(data[i])
		h *= prime32
	}
	return h
}

// ScratchKey identifies a class of interchangeable resources. Multiple
// resources may share one scratch key; a resource has at most one, fixed at
// construction by the resource itself. Equality and hash are by content.
//
// The zero value is the empty key, which never matches anything.
type ScratchKey struct {
	data string
	hash uint32
}

// MakeScratchKey builds a ScratchKey from accumulated key bytes.
// An empty BytesKey yields the empty key.
func MakeScratchKey(bytes *BytesKey) ScratchKey {
	if bytes == nil || bytes.Empty() {
		return ScratchKey{}
	}
	data := string(bytes.data)
	return ScratchKey{data: data, hash: hashBytes(data)}
}

// Empty reports whether the key has no content.
func (k ScratchKey) Empty() bool { return k.data == "" }

// Hash returns the content hash of the key.
func (k ScratchKey) Hash() uint32 { return k.hash }

// Equal reports whether both keys have identical content.
func (k ScratchKey) Equal(other ScratchKey) bool {
	return k.hash == other.hash && k.data == other.data
}

// UniqueKey allows exclusive use of a resource for one use case. Three rules
// govern unique keys:
//
//  1. Only one resource can hold a given unique key at a time.
//  2. A resource has at most one unique key at a time.
//  3. Unlike scratch keys, repeated requests for a unique key return the
//     same resource even while it is referenced.
//
// Every key returned by [MakeUniqueKey] or [CombineUniqueKey] holds one
// strong reference on its domain; call [UniqueKey.ReleaseReference] with
// strong=true when the holder is done. Plain value copies share the
// original's reference rather than adding their own.
//
// The zero value is the empty key.
type UniqueKey struct {
	domain *uniqueDomain
	data   string
	hash   uint32
}

// MakeUniqueKey creates a new UniqueKey backed by a fresh domain. The caller
// becomes the domain's first strong holder.
func MakeUniqueKey() UniqueKey {
	domain := newUniqueDomain()
	domain.addReference(true)
	var bytes BytesKey
	bytes.Write(domain.id)
	data := string(bytes.data)
	return UniqueKey{domain: domain, data: data, hash: hashBytes(data)}
}

// CombineUniqueKey derives a new UniqueKey from key and extra bytes. The
// returned key shares key's domain but extends its content, so it can
// identify a variant derivative (a mipmapped or rescaled version of a base
// resource) while reference counts observed through either key agree.
// The returned key holds its own strong reference on the shared domain.
//
// Combining the empty key returns the empty key.
func CombineUniqueKey(key UniqueKey, bytes *BytesKey) UniqueKey {
	if key.Empty() {
		return UniqueKey{}
	}
	key.domain.addReference(true)
	data := key.data
	if bytes != nil {
		data += string(bytes.data)
	}
	return UniqueKey{domain: key.domain, data: data, hash: hashBytes(data)}
}

// Empty reports whether the key has no domain.
func (k UniqueKey) Empty() bool { return k.domain == nil }

// Hash returns the content hash of the key.
func (k UniqueKey) Hash() uint32 { return k.hash }

// Equal reports whether both keys have identical content.
func (k UniqueKey) Equal(other UniqueKey) bool {
	return k.hash == other.hash && k.data == other.data
}

// DomainID returns the process-wide numeric ID of the key's domain,
// or 0 for the empty key.
func (k UniqueKey) DomainID() uint32 {
	if k.domain == nil {
		return 0
	}
	return k.domain.id
}

// UseCount returns the total number of times the key's domain has been
// referenced, including cache bookkeeping.
func (k UniqueKey) UseCount() int64 {
	if k.domain == nil {
		return 0
	}
	return k.domain.useCount.Load()
}

// StrongCount returns the number of external strong holders of the key's
// domain.
func (k UniqueKey) StrongCount() int64 {
	if k.domain == nil {
		return 0
	}
	return k.domain.strongCount.Load()
}

// AddReference registers another observer of the key's domain. Safe to call
// from any goroutine.
func (k UniqueKey) AddReference(strong bool) {
	if k.domain != nil {
		k.domain.addReference(strong)
	}
}

// ReleaseReference drops a reference added by AddReference, or the strong
// reference the key was created with. Safe to call from any goroutine.
func (k UniqueKey) ReleaseReference(strong bool) {
	if k.domain != nil {
		k.domain.releaseReference(strong)
	}
}

// LazyUniqueKey defers domain creation until the key is first requested.
// Get may be called from multiple goroutines and realizes the domain exactly
// once. Reset is not safe to call concurrently with Get.
//
// The zero value is ready to use.
type LazyUniqueKey struct {
	domain atomic.Pointer[uniqueDomain]
}

// Get returns the associated UniqueKey, creating its domain on first call.
// The LazyUniqueKey itself holds the domain's strong reference; the returned
// key is a view and must not be released by the caller.
func (l *LazyUniqueKey) Get() UniqueKey {
	domain := l.domain.Load()
	if domain == nil {
		fresh := newUniqueDomain()
		fresh.addReference(true)
		if l.domain.CompareAndSwap(nil, fresh) {
			domain = fresh
		} else {
			// Another goroutine won the race; discard ours.
			fresh.releaseReference(true)
			domain = l.domain.Load()
		}
	}
	var bytes BytesKey
	bytes.Write(domain.id)
	data := string(bytes.data)
	return UniqueKey{domain: domain, data: data, hash: hashBytes(data)}
}

// Reset releases the held domain and returns the key to its empty state.
func (l *LazyUniqueKey) Reset() {
	if domain := l.domain.Swap(nil); domain != nil {
		domain.releaseReference(true)
	}
}

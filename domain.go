package flare

import "sync/atomic"

// nextDomainID issues process-wide unique domain IDs. IDs start at 1;
// zero is reserved for "no domain".
var nextDomainID atomic.Uint32

// uniqueDomain is the shared ownership record behind a family of unique
// keys. It carries two independent counters:
//
//   - useCount counts every observer of the domain, including cache
//     bookkeeping entries.
//   - strongCount counts external holders only.
//
// When strongCount reaches zero the owning resource becomes eligible for
// scratch reuse or eviction, even though its unique-key bytes remain
// assigned until explicitly cleared. When useCount reaches zero no observer
// remains and the record dies with its last reference; the numeric ID is
// never reused.
//
// Both counters are atomic so keys can be retained and released from worker
// threads without the context lock.
type uniqueDomain struct {
	id          uint32
	useCount    atomic.Int64
	strongCount atomic.Int64
}

func newUniqueDomain() *uniqueDomain {
	return &uniqueDomain{id: nextDomainID.Add(1)}
}

// addReference increments useCount, and strongCount as well when strong.
func (d *uniqueDomain) addReference(strong bool) {
	d.useCount.Add(1)
	if strong {
		d.strongCount.Add(1)
	}
}

// releaseReference decrements the counters incremented by addReference.
// Decrement-then-check keeps the race window closed between a concurrent
// last release and a lookup: a reader that observes a nonzero count did so
// before the release landed.
func (d *uniqueDomain) releaseReference(strong bool) {
	if strong {
		if n := d.strongCount.Add(-1); n < 0 {
			Logger().Warn("flare: unique domain strong count underflow", "domain", d.id)
			d.strongCount.Add(1)
		}
	}
	if n := d.useCount.Add(-1); n < 0 {
		Logger().Warn("flare: unique domain use count underflow", "domain", d.id)
		d.useCount.Add(1)
	}
}

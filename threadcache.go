// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Per-caller cache for small objects.
//
// ThreadCache is not fully present in the source this module descends
// from; spec.md spec's it as the designed collaborator completing the
// tiered pipeline. It is grounded on the teacher's mcache.go shape: a
// per-class list head, accessed without synchronization because exactly
// one caller ever touches a given ThreadCache at a time. See SPEC_FULL.md's
// Open Questions for the affinity discipline this places on callers.

package memorypool

// DefaultHighWater is the spill threshold used when ThreadCacheOptions
// leaves HighWater unset.
const DefaultHighWater = 64

// ThreadCacheOptions configures a ThreadCache.
type ThreadCacheOptions struct {
	// HighWater is the per-class block count above which Deallocate
	// spills one block back to CentralCache. Zero means DefaultHighWater.
	HighWater int
}

type tcClass struct {
	head  uintptr
	count int
}

// ThreadCache is a per-caller front end that satisfies hot allocations
// without synchronization. It must not be shared across concurrent
// callers; construct one per goroutine (or per OS thread, for callers that
// lock themselves to one) that performs allocator traffic.
type ThreadCache struct {
	central   *CentralCache
	host      HostAllocator
	highWater int
	classes   [NumClasses]tcClass
}

// NewThreadCache constructs a ThreadCache refilling from central and
// routing oversize traffic to host.
func NewThreadCache(central *CentralCache, host HostAllocator, opts ThreadCacheOptions) *ThreadCache {
	hw := opts.HighWater
	if hw <= 0 {
		hw = DefaultHighWater
	}
	return &ThreadCache{central: central, host: host, highWater: hw}
}

// Allocate maps n to a size class and returns one block, refilling from
// CentralCache on a local miss. Requests above MaxTieredSize — whether
// because n exceeds MaxSmall outright, or because n's class cannot be
// carved from a single SpanPages-page span — are forwarded to the host
// allocator untouched.
func (t *ThreadCache) Allocate(n uintptr) (uintptr, error) {
	if n == 0 {
		return 0, ErrZeroSize
	}
	if n > MaxTieredSize {
		return t.host.Alloc(n)
	}
	i := ClassOf(n)

	cl := &t.classes[i]
	if cl.head != 0 {
		addr := cl.head
		cl.head = blockNext(addr)
		cl.count--
		return addr, nil
	}

	addr, err := t.central.FetchRange(i)
	if err != nil {
		return 0, err
	}
	return addr, nil
}

// Deallocate pushes addr back onto the per-class list for the class that
// would serve an n-byte request, spilling one block to CentralCache once
// the list exceeds the configured high-water mark. Oversize frees are
// routed to the host allocator; the caller supplies n, so no header is
// needed to recover the original size.
func (t *ThreadCache) Deallocate(addr uintptr, n uintptr) {
	if n == 0 || addr == 0 {
		return
	}
	if n > MaxTieredSize {
		t.host.Free(addr, n)
		return
	}
	i := ClassOf(n)

	cl := &t.classes[i]
	setBlockNext(addr, cl.head)
	cl.head = addr
	cl.count++

	if cl.count > t.highWater {
		spill := cl.head
		cl.head = blockNext(spill)
		cl.count--
		// ReturnRange only fails on a malformed class index, which
		// ClassOf cannot produce; a failure here would mean a broken
		// invariant elsewhere, not a condition to recover from.
		_ = t.central.ReturnRange(spill, i)
	}
}

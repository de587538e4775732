// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Public facade.
//
// See doc.go for an overview. AllocateBytes and DeallocateBytes dispatch on
// n to the small-object path (a shared pool of ThreadCaches) or the
// large-object path (HostAllocator). Construction/destruction of typed
// objects is layered by the caller: this module hands back raw, suitably
// aligned byte regions only.

package memorypool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

func defaultShardCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// HostAllocator is the out-of-scope collaborator spec.md §1 calls the
// "host allocator": whatever serves requests above MaxTieredSize, whether
// because they exceed MaxSmall or because their class cannot be carved
// from a single span. The default implementation pins ordinary Go heap
// allocations in a registry so their
// address can be handed back as a uintptr and later looked up for release,
// the same shape a cgo-backed or mmap-backed host allocator would have.
type HostAllocator interface {
	Alloc(n uintptr) (uintptr, error)
	Free(addr uintptr, n uintptr)
}

type registryAllocator struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

func newRegistryAllocator() *registryAllocator {
	return &registryAllocator{regions: make(map[uintptr][]byte)}
}

func (r *registryAllocator) Alloc(n uintptr) (uintptr, error) {
	buf := make([]byte, n)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	r.mu.Lock()
	r.regions[addr] = buf
	r.mu.Unlock()
	return addr, nil
}

func (r *registryAllocator) Free(addr uintptr, _ uintptr) {
	r.mu.Lock()
	delete(r.regions, addr)
	r.mu.Unlock()
}

// Pool bundles the three tiers and the host allocator into one facade
// implementing the two operations spec.md §6 names: AllocateBytes and
// DeallocateBytes. The zero value is not usable; use NewPool.
//
// AllocateBytes/DeallocateBytes have no notion of calling context, so Pool
// shards its fast path across a fixed pool of mutex-guarded ThreadCaches
// (see SPEC_FULL.md's Open Questions). Callers who want the true
// lock-free, single-owner ThreadCache behaviour spec.md §4.4 describes
// should construct their own ThreadCache via NewThreadCache and call it
// directly instead of going through Pool.
type Pool struct {
	pages   *PageCache
	central *CentralCache
	host    HostAllocator

	shards []poolShard
	next   atomic.Uint64
}

type poolShard struct {
	mu sync.Mutex
	tc *ThreadCache
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Shards is the number of internal ThreadCache shards the facade
	// round-robins across. Zero means runtime.GOMAXPROCS(0).
	Shards int
	// ThreadCacheOptions is forwarded to every shard's ThreadCache.
	ThreadCacheOptions ThreadCacheOptions
	// Mapper overrides the OS page-mapping primitive; nil uses the
	// platform default.
	Mapper pageMapper
}

// NewPool constructs a Pool with its own PageCache, CentralCache and host
// allocator.
func NewPool(opts PoolOptions) *Pool {
	shards := opts.Shards
	if shards <= 0 {
		shards = defaultShardCount()
	}

	pages := NewPageCache(opts.Mapper)
	central := NewCentralCache(pages)
	host := newRegistryAllocator()

	p := &Pool{pages: pages, central: central, host: host, shards: make([]poolShard, shards)}
	for i := range p.shards {
		p.shards[i].tc = NewThreadCache(central, host, opts.ThreadCacheOptions)
	}
	return p
}

// AllocateBytes returns a region of at least n bytes aligned to Align, or
// an error. n == 0 is rejected with ErrZeroSize before reaching any tier.
// Requests above MaxTieredSize — which includes everything above MaxSmall,
// plus the classes between MaxTieredSize and MaxSmall that a single
// SpanPages-page span cannot carve even one block for — are routed to the
// host allocator instead of the tiered path.
func (p *Pool) AllocateBytes(n uintptr) (uintptr, error) {
	if n == 0 {
		return 0, ErrZeroSize
	}
	if n > MaxTieredSize {
		return p.host.Alloc(n)
	}
	shard := &p.shards[p.pick()]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.tc.Allocate(n)
}

// DeallocateBytes releases a region previously returned by AllocateBytes.
// The caller must pass the same n used to allocate it; there is no header
// recording the size. Double-free is undefined behaviour, per spec.md §7.
func (p *Pool) DeallocateBytes(addr uintptr, n uintptr) {
	if addr == 0 || n == 0 {
		return
	}
	if n > MaxTieredSize {
		p.host.Free(addr, n)
		return
	}
	shard := &p.shards[p.pick()]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.tc.Deallocate(addr, n)
}

// Close tears down the Pool's PageCache, releasing every mapped page run
// back to the OS. The Pool must not be used afterwards.
func (p *Pool) Close() error {
	return p.pages.Close()
}

func (p *Pool) pick() uint64 {
	return p.next.Add(1) % uint64(len(p.shards))
}

// defaultPool is the process-wide Pool backing the package-level
// AllocateBytes/DeallocateBytes functions, mirroring the teacher's
// single process-wide mheap/mcentral singletons (spec.md's Design Notes
// on global singletons).
var defaultPool = sync.OnceValue(func() *Pool { return NewPool(PoolOptions{}) })

// AllocateBytes allocates n bytes from the process-wide default Pool. See
// Pool.AllocateBytes.
func AllocateBytes(n uintptr) (uintptr, error) {
	return defaultPool().AllocateBytes(n)
}

// DeallocateBytes releases a region previously returned by AllocateBytes
// from the process-wide default Pool. See Pool.DeallocateBytes.
func DeallocateBytes(addr uintptr, n uintptr) {
	defaultPool().DeallocateBytes(addr, n)
}

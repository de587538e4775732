// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Central free lists.
//
// See doc.go for an overview. CentralCache holds one free list of
// uniformly sized blocks per size class, shared across every caller. On a
// miss it pulls a fixed-page span from PageCache and carves it into
// blocks. Each class's list is protected by an atomically-acquired spin
// flag, not a mutex: contention is higher here than at PageCache but an OS
// call is never on this path, so spinning is cheap relative to blocking.

package memorypool

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// blockNext reads the free-list link stored in the first machine word of
// the free block at addr. The block is only ever read this way while it is
// on a free list; once handed to a caller the bytes are opaque.
func blockNext(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// setBlockNext writes the free-list link into the first machine word of
// the free block at addr.
func setBlockNext(addr uintptr, next uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = next
}

type classCache struct {
	head   atomic.Uintptr
	locked atomic.Bool
}

// CentralCache is a singleton shared across every ThreadCache. It holds
// NumClasses atomic head pointers and NumClasses atomic spinlock flags.
type CentralCache struct {
	classes [NumClasses]classCache
	pages   *PageCache
}

// NewCentralCache constructs a CentralCache that pulls spans from pc.
func NewCentralCache(pc *PageCache) *CentralCache {
	return &CentralCache{pages: pc}
}

func (c *CentralCache) lock(i int) {
	for !c.classes[i].locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (c *CentralCache) unlock(i int) {
	c.classes[i].locked.Store(false)
}

// FetchRange removes and returns one free block of class i, refilling from
// PageCache on a miss. A null PageCache result propagates as an error; the
// spinlock is always released before returning.
func (c *CentralCache) FetchRange(i int) (uintptr, error) {
	if i < 0 || i >= NumClasses {
		return 0, invariantf("FetchRange", "class %d out of range", i)
	}

	c.lock(i)
	defer c.unlock(i)

	if head := c.classes[i].head.Load(); head != 0 {
		next := blockNext(head)
		c.classes[i].head.Store(next)
		return head, nil
	}

	return c.refillLocked(i)
}

// refillLocked pulls a span from PageCache and carves it into
// BlocksPerSpan(i) blocks, publishing all but the first as the new free
// list and returning the first to the caller. Called with class i's
// spinlock held.
func (c *CentralCache) refillLocked(i int) (uintptr, error) {
	addr, err := c.fetchFromPageCache(i)
	if err != nil {
		return 0, err
	}

	n := BlocksPerSpan(i)
	if n <= 0 {
		// Unreachable through ThreadCache/Pool, which divert any class above
		// MaxTieredSize to the host allocator before calling here. Kept as a
		// backstop for callers that drive CentralCache directly.
		return 0, invariantf("refillLocked", "class %d carves zero blocks per span", i)
	}
	if n == 1 {
		return addr, nil
	}

	sz := SizeOf(i)
	first := addr
	var head uintptr
	for k := n - 1; k >= 1; k-- {
		blk := addr + uintptr(k)*sz
		setBlockNext(blk, head)
		head = blk
	}
	c.classes[i].head.Store(head)
	return first, nil
}

// ReturnRange returns one free block of class i to the central list.
func (c *CentralCache) ReturnRange(addr uintptr, i int) error {
	if addr == 0 {
		return invariantf("ReturnRange", "null address")
	}
	if i < 0 || i >= NumClasses {
		return invariantf("ReturnRange", "class %d out of range", i)
	}

	c.lock(i)
	head := c.classes[i].head.Load()
	setBlockNext(addr, head)
	c.classes[i].head.Store(addr)
	c.unlock(i)
	return nil
}

// fetchFromPageCache and returnToPageCache are thin pass-throughs to
// PageCache, resolving the stubs the source left empty (spec.md's Design
// Notes: "the only interpretation consistent with the surrounding code").
func (c *CentralCache) fetchFromPageCache(i int) (uintptr, error) {
	return c.pages.AllocateSpan(uintptr(PagesForSpan(i)))
}

func (c *CentralCache) returnToPageCache(addr uintptr, i int) {
	c.pages.DeallocateSpan(addr, uintptr(PagesForSpan(i)))
}

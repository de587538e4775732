// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Span descriptors.
//
// A span is a contiguous run of Pages-many PageSize pages. It is an
// out-of-line descriptor: its lifetime is independent of the memory it
// describes, since PageCache's span map indexes every live span (both free
// and carved-out) by base address. See pagecache.go.

package memorypool

import "sync"

// Span is a contiguous run of pages. While free, next links it into the
// intrusive list for its page count in PageCache's free-span index. A span
// is owned by exactly one of: the free-span index, the CentralCache (as
// the provenance record of blocks carved from it), or is in flight during
// a transfer between the two.
type Span struct {
	Base  uintptr
	Pages uintptr

	next   *Span
	inFree bool // membership in PageCache's free-span index
}

// spanList is an intrusive singly-linked list of spans sharing a page
// count, threaded through Span.next.
type spanList struct {
	head *Span
}

func (l *spanList) push(s *Span) {
	s.next = l.head
	l.head = s
}

func (l *spanList) pop() *Span {
	s := l.head
	if s != nil {
		l.head = s.next
		s.next = nil
	}
	return s
}

func (l *spanList) empty() bool { return l.head == nil }

// remove unlinks s from the list. Reports whether s was found.
func (l *spanList) remove(s *Span) bool {
	if l.head == s {
		l.head = s.next
		s.next = nil
		return true
	}
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.next == s {
			cur.next = s.next
			s.next = nil
			return true
		}
	}
	return false
}

// spanArena is a free list of *Span descriptors, recycled rather than left
// to the garbage collector; PageCache's indexes hold the *Span pointers
// directly, not integer handles. This mirrors the teacher's
// mheap.spanalloc: a fixalloc of mspan records, reused across the
// allocate/merge/free cycle instead of allocated and collected per span.
type spanArena struct {
	mu   sync.Mutex
	free []*Span
}

func (a *spanArena) get(base, pages uintptr) *Span {
	a.mu.Lock()
	n := len(a.free)
	if n == 0 {
		a.mu.Unlock()
		return &Span{Base: base, Pages: pages}
	}
	s := a.free[n-1]
	a.free[n-1] = nil
	a.free = a.free[:n-1]
	a.mu.Unlock()
	s.Base, s.Pages, s.next, s.inFree = base, pages, nil, false
	return s
}

func (a *spanArena) put(s *Span) {
	s.next = nil
	a.mu.Lock()
	a.free = append(a.free, s)
	a.mu.Unlock()
}

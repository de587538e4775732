// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Size classes.
//
// See doc.go for an overview. A size class is an integer index i in
// [0, NumClasses) naming a block size size(i) = (i+1) * Align. Requests
// above MaxSmall bypass this module and are served by the host allocator;
// so do requests above MaxTieredSize but at or below MaxSmall, since those
// classes cannot be carved from a single SpanPages-page span (see
// MaxTieredSize below).
//
// This is a pure, stateless file: every function here is free of shared
// state and safe to call from any number of goroutines without
// synchronization.

package memorypool

const (
	// Align is the byte alignment of every size class and of every address
	// returned by AllocateBytes on the small-object path.
	Align = 8

	// PageSize is the granularity PageCache maps from and unmaps to the OS.
	PageSize = 4096

	// MaxSmall is the largest request size served by the tiered path.
	// Requests above this fall through to the host allocator.
	MaxSmall = 256 * 1024

	// NumClasses is the number of size classes, one per Align-sized step
	// up to MaxSmall.
	NumClasses = MaxSmall / Align

	// SpanPages is the fixed number of pages CentralCache requests from
	// PageCache per span, for every size class.
	SpanPages = 8

	// HashBucketSize is the v1 generation's bucket-fan-out width. Kept as a
	// documented legacy constant; NumClasses supersedes it in this design.
	HashBucketSize = 64

	// MaxTieredSize is the largest request a span can actually carve at
	// least one block for: SpanPages is fixed at 8 for every class (spec
	// §4.1), so BlocksPerSpan(i) = floor(SpanPages*PageSize / SizeOf(i))
	// reaches zero once SizeOf(i) exceeds SpanPages*PageSize. Requests
	// above MaxTieredSize (but still <= MaxSmall) cannot be served by a
	// single span and fall through to the host allocator alongside
	// requests above MaxSmall; see pool.go and threadcache.go.
	MaxTieredSize = SpanPages * PageSize
)

// LargeClass is the sentinel class_of returns for requests above MaxSmall.
const LargeClass = -1

// ClassOf returns the size class serving a request of n bytes, or
// LargeClass if n exceeds MaxSmall. n == 0 is a precondition violation: the
// public facade rejects it with ErrZeroSize before any tier is reached, so
// ClassOf itself does not special-case it: ClassOf(0) computes -1, the same
// value as LargeClass (the caller must not rely on that).
func ClassOf(n uintptr) int {
	if n > MaxSmall {
		return LargeClass
	}
	return int((n+Align-1)/Align) - 1
}

// SizeOf returns the block size, in bytes, of size class i.
func SizeOf(i int) uintptr {
	return uintptr(i+1) * Align
}

// PagesForSpan returns the number of PageSize pages CentralCache requests
// from PageCache to carve blocks of class i. Fixed at SpanPages for every
// class in this design.
func PagesForSpan(i int) int {
	return SpanPages
}

// BlocksPerSpan returns how many blocks of class i fit in a span of
// PagesForSpan(i) pages.
func BlocksPerSpan(i int) int {
	return int(uintptr(PagesForSpan(i)) * PageSize / SizeOf(i))
}

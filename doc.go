// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memorypool implements a tiered small-object allocator intended to
// be embedded in a host process as a faster alternative to the platform
// allocator for short-lived, frequently recycled objects below a small size
// ceiling.
//
// The allocator is organized as three cooperating layers, leaves first:
//
//	PageCache    owns every page run ever mapped from the OS, issuing and
//	             reclaiming spans, coalescing free neighbours.
//	CentralCache holds one spinlock-guarded free list of uniformly sized
//	             blocks per size class, shared across all callers.
//	ThreadCache  a per-caller front end that satisfies hot allocations
//	             without synchronization, spilling to and refilling from
//	             CentralCache.
//
// See sizeclass.go for the size-class partitioning scheme, span.go for the
// span abstraction that bridges size classes and raw pages, pagecache.go,
// centralcache.go and threadcache.go for the three tiers, and pool.go for
// the public two-operation facade (AllocateBytes / DeallocateBytes).
//
// Requests above MaxTieredSize — the point past which a single span can no
// longer carve even one block — bypass the tiered path entirely and are
// served by the host allocator directly; the tiered path never sees them.
package memorypool

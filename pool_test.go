// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestPoolAllocateSmallObjectS1(t *testing.T) {
	p := NewPool(PoolOptions{Shards: 1, Mapper: newFakeMapper()})
	defer p.Close()

	a, err := p.AllocateBytes(24)
	if err != nil {
		t.Fatal(err)
	}
	if a%Align != 0 {
		t.Fatalf("address %d not aligned", a)
	}
	p.DeallocateBytes(a, 24)

	b, err := p.AllocateBytes(24)
	if err != nil {
		t.Fatal(err)
	}
	if b != a {
		t.Fatalf("AllocateBytes after DeallocateBytes = %d, want reused %d", b, a)
	}
}

// TestPoolOversizePassthroughS5 reproduces spec.md §8 S5.
func TestPoolOversizePassthroughS5(t *testing.T) {
	p := NewPool(PoolOptions{Shards: 1, Mapper: newFakeMapper()})
	defer p.Close()

	before := len(p.pages.spanMap)
	a, err := p.AllocateBytes(262145)
	if err != nil {
		t.Fatal(err)
	}
	p.DeallocateBytes(a, 262145)
	after := len(p.pages.spanMap)
	if before != after {
		t.Fatalf("oversize alloc/free pair changed PageCache's span map: %d -> %d", before, after)
	}
}

// TestPoolUnfittableSmallClassGoesToHost covers the band between
// MaxTieredSize and MaxSmall: these requests are still "small" per spec.md
// §1 but their class cannot be carved from a single SpanPages-page span, so
// AllocateBytes must route them to the host allocator rather than into
// CentralCache, where they would previously fail with an InvariantError.
func TestPoolUnfittableSmallClassGoesToHost(t *testing.T) {
	p := NewPool(PoolOptions{Shards: 1, Mapper: newFakeMapper()})
	defer p.Close()

	const n = 50000
	if n <= MaxTieredSize || n > MaxSmall {
		t.Fatalf("test size %d is not in the unfittable-small band (%d, %d]", n, MaxTieredSize, MaxSmall)
	}

	a, err := p.AllocateBytes(n)
	if err != nil {
		t.Fatalf("AllocateBytes(%d) = %v, want success via host allocator", n, err)
	}
	if a%Align != 0 {
		t.Fatalf("address %d not aligned", a)
	}
	p.DeallocateBytes(a, n)
}

func TestPoolZeroSizeRejected(t *testing.T) {
	p := NewPool(PoolOptions{Shards: 1, Mapper: newFakeMapper()})
	defer p.Close()

	if _, err := p.AllocateBytes(0); err != ErrZeroSize {
		t.Fatalf("AllocateBytes(0) error = %v, want ErrZeroSize", err)
	}
}

// TestPoolConcurrentStressS6 is a scaled-down version of spec.md §8 S6:
// many goroutines allocate/free random small sizes concurrently; no
// address may be live under two goroutines at once and every address must
// stay Align-aligned.
func TestPoolConcurrentStressS6(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in -short mode")
	}

	p := NewPool(PoolOptions{Mapper: newFakeMapper()})
	defer p.Close()

	const workers = 8
	const opsPerWorker = 2000

	var live sync.Map // addr -> struct{}, guards against double-issue

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		seed := uint32(w*2654435761 + 1)
		g.Go(func() error {
			rnd := seed
			next := func() uint32 {
				rnd ^= rnd << 13
				rnd ^= rnd >> 17
				rnd ^= rnd << 5
				return rnd
			}
			for k := 0; k < opsPerWorker; k++ {
				n := uintptr(next()%4096) + 1
				a, err := p.AllocateBytes(n)
				if err != nil {
					return err
				}
				if a%Align != 0 {
					t.Errorf("address %d not aligned", a)
				}
				if _, dup := live.LoadOrStore(a, struct{}{}); dup {
					t.Errorf("address %d live under two owners simultaneously", a)
				}
				live.Delete(a)
				p.DeallocateBytes(a, n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestPoolShardingNeverIssuesLiveAddressTwice(t *testing.T) {
	p := NewPool(PoolOptions{Shards: 4, Mapper: newFakeMapper()})
	defer p.Close()

	seen := make(map[uintptr]bool)
	for k := 0; k < 200; k++ {
		a, err := p.AllocateBytes(16)
		if err != nil {
			t.Fatal(err)
		}
		if seen[a] {
			t.Fatalf("address %d issued twice across shards while live", a)
		}
		seen[a] = true
	}
}

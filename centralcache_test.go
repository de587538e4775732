// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestCentralCacheFetchReturnRoundTrip(t *testing.T) {
	pc := NewPageCache(newFakeMapper())
	cc := NewCentralCache(pc)

	i := ClassOf(24)
	a, err := cc.FetchRange(i)
	if err != nil {
		t.Fatal(err)
	}
	if a%Align != 0 {
		t.Fatalf("block address %d not aligned to %d", a, Align)
	}
	if err := cc.ReturnRange(a, i); err != nil {
		t.Fatal(err)
	}
	b, err := cc.FetchRange(i)
	if err != nil {
		t.Fatal(err)
	}
	if b != a {
		t.Fatalf("FetchRange after ReturnRange = %d, want reused block %d", b, a)
	}
}

// TestCentralCacheSpanExhaustionS3 reproduces spec.md §8 S3: class size
// 512 carves 64 blocks per span; the 65th fetch triggers a second span.
func TestCentralCacheSpanExhaustionS3(t *testing.T) {
	fm := newFakeMapper()
	pc := NewPageCache(fm)
	cc := NewCentralCache(pc)

	i := ClassOf(512)
	if got := BlocksPerSpan(i); got != 64 {
		t.Fatalf("BlocksPerSpan = %d, want 64", got)
	}

	seen := make(map[uintptr]bool)
	for k := 0; k < 65; k++ {
		a, err := cc.FetchRange(i)
		if err != nil {
			t.Fatalf("fetch %d: %v", k, err)
		}
		if seen[a] {
			t.Fatalf("fetch %d returned duplicate address %d", k, a)
		}
		seen[a] = true
	}
	if fm.calls != 2 {
		t.Fatalf("PageCache mapped %d times, want exactly 2", fm.calls)
	}
}

func TestCentralCacheRejectsOutOfRangeClass(t *testing.T) {
	pc := NewPageCache(newFakeMapper())
	cc := NewCentralCache(pc)

	if _, err := cc.FetchRange(-1); err == nil {
		t.Fatal("FetchRange(-1) did not error")
	}
	if _, err := cc.FetchRange(NumClasses); err == nil {
		t.Fatal("FetchRange(NumClasses) did not error")
	}
	if err := cc.ReturnRange(0, 0); err == nil {
		t.Fatal("ReturnRange(null, _) did not error")
	}
}

// TestCentralCacheRefillRejectsUnfittableClass documents the backstop
// left in refillLocked for classes whose size exceeds SpanPages*PageSize:
// BlocksPerSpan is zero for them, so a direct FetchRange call (bypassing
// the MaxTieredSize diversion ThreadCache/Pool perform) must still fail
// loudly rather than hand back a block it never carved. Normal callers
// never reach this path; see pool_test.go's
// TestPoolUnfittableSmallClassGoesToHost for the routed-around-it case.
func TestCentralCacheRefillRejectsUnfittableClass(t *testing.T) {
	pc := NewPageCache(newFakeMapper())
	cc := NewCentralCache(pc)

	const n = 50000
	if n <= MaxTieredSize || n > MaxSmall {
		t.Fatalf("test size %d is not in the unfittable-small band (%d, %d]", n, MaxTieredSize, MaxSmall)
	}
	i := ClassOf(n)
	if got := BlocksPerSpan(i); got != 0 {
		t.Fatalf("BlocksPerSpan(%d) = %d, want 0", i, got)
	}

	if _, err := cc.FetchRange(i); err == nil {
		t.Fatalf("FetchRange(%d) succeeded, want InvariantError for a class that carves zero blocks per span", i)
	}
}

func TestCentralCacheReturnToPageCache(t *testing.T) {
	fm := newFakeMapper()
	pc := NewPageCache(fm)
	cc := NewCentralCache(pc)

	i := ClassOf(4096)
	addr, err := pc.AllocateSpan(uintptr(PagesForSpan(i)))
	if err != nil {
		t.Fatal(err)
	}
	cc.returnToPageCache(addr, i)
	if got := pc.FreeSpanCount(); got != 1 {
		t.Fatalf("FreeSpanCount() = %d, want 1 after returnToPageCache", got)
	}
}

// TestCentralCacheConcurrentFetchesAreDisjoint is a narrow slice of
// spec.md §8 property 7: concurrent fetches from the same class never hand
// out the same block twice.
func TestCentralCacheConcurrentFetchesAreDisjoint(t *testing.T) {
	pc := NewPageCache(newFakeMapper())
	cc := NewCentralCache(pc)
	i := ClassOf(64)

	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[uintptr]bool, workers*perWorker)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for k := 0; k < perWorker; k++ {
				a, err := cc.FetchRange(i)
				if err != nil {
					return err
				}
				mu.Lock()
				dup := seen[a]
				seen[a] = true
				mu.Unlock()
				if dup {
					t.Errorf("address %d handed out twice", a)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command poolbench drives concurrent random allocate/free traffic against
// a memorypool.Pool and reports how many operations it served. It exists
// as a demo and stress harness for the library, not part of the public
// API; see SPEC_FULL.md's AMBIENT STACK section for why it uses the
// stdlib flag and log packages rather than a third-party CLI framework.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/njlookforward/memorypool"
)

func main() {
	workers := flag.Int("workers", 8, "number of concurrent goroutines issuing alloc/free pairs")
	ops := flag.Int("ops", 100000, "alloc/free pairs per worker")
	maxSize := flag.Uint64("max-size", 4096, "largest request size in bytes")
	duration := flag.Duration("timeout", 0, "abort after this long (0 disables the timeout)")
	flag.Parse()

	logger := log.New(os.Stderr, "poolbench: ", log.LstdFlags)

	if *maxSize == 0 || *maxSize > memorypool.MaxSmall {
		logger.Fatalf("max-size must be in (0, %d]", memorypool.MaxSmall)
	}

	ctx := context.Background()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	pool := memorypool.NewPool(memorypool.PoolOptions{Shards: *workers})
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Printf("close: %v", err)
		}
	}()

	var completed int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		seed := int64(w) + start.UnixNano()
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < *ops; i++ {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				n := uintptr(rnd.Int63n(int64(*maxSize))) + 1
				addr, err := pool.AllocateBytes(n)
				if err != nil {
					return err
				}
				pool.DeallocateBytes(addr, n)
				atomic.AddInt64(&completed, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}

	elapsed := time.Since(start)
	logger.Printf("completed %d alloc/free pairs across %d workers in %s (%.0f ops/sec)",
		atomic.LoadInt64(&completed), *workers, elapsed, float64(completed)/elapsed.Seconds())
}

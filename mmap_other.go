// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package memorypool

import (
	"sync"
	"unsafe"
)

// heapMapper is the non-unix fallback pageMapper. It backs "pages" with
// ordinary Go heap memory instead of an OS mapping, the same tradeoff the
// Go runtime's mem_windows.go makes relative to mem_linux.go: a different
// primitive behind the same sysAlloc/sysFree-shaped interface. Pinned via
// the live map below since nothing else keeps the backing array reachable.
type heapMapper struct {
	mu   sync.Mutex
	pins map[uintptr][]byte
}

func newHeapMapper() *heapMapper {
	return &heapMapper{pins: make(map[uintptr][]byte)}
}

func (m *heapMapper) Map(n uintptr) (uintptr, error) {
	b := make([]byte, n)
	addr := uintptr(unsafe.Pointer(&b[0]))
	m.mu.Lock()
	m.pins[addr] = b
	m.mu.Unlock()
	return addr, nil
}

func (m *heapMapper) Unmap(addr, n uintptr) error {
	m.mu.Lock()
	delete(m.pins, addr)
	m.mu.Unlock()
	return nil
}

func defaultMapper() pageMapper { return newHeapMapper() }

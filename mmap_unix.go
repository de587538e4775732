// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package memorypool

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixMapper is the production pageMapper, grounded on the Go runtime's
// mem_linux.go / mem_bsd.go sysAlloc/sysFree wrapping mmap(2)/munmap(2).
// Unlike the runtime's internal wrapper, this module cannot call the
// syscalls directly (no //go:linkname into runtime-internal symbols), so it
// goes through golang.org/x/sys/unix, the module every Go-toolchain
// checkout in the example pack already depends on.
type unixMapper struct{}

func (unixMapper) Map(n uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("%w: mmap %d bytes: %v", ErrOutOfMemory, n, err)
	}
	// b is backed by raw OS memory outside the Go heap; the garbage
	// collector neither scans nor moves it, so taking its address and
	// discarding the slice header is safe for the lifetime of the mapping.
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func (unixMapper) Unmap(addr, n uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(n))
	return unix.Munmap(b)
}

func defaultMapper() pageMapper { return unixMapper{} }

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"errors"
	"fmt"
)

// ErrZeroSize is returned when a caller requests an allocation of zero
// bytes. class_of(0) is a precondition violation; the facade rejects it
// before it ever reaches a tier.
var ErrZeroSize = errors.New("memorypool: zero-size allocation request")

// ErrOutOfMemory is returned when PageCache's OS mapping call fails. It
// propagates up through CentralCache and ThreadCache unchanged.
var ErrOutOfMemory = errors.New("memorypool: out of memory")

// InvariantError reports a broken internal invariant, e.g. an out-of-range
// size class or a carve that produced zero blocks. These conditions never
// occur in correct callers and are not meant to be recovered from; they
// exist to fail loudly instead of corrupting allocator state silently.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("memorypool: invariant violated in %s: %s", e.Op, e.Msg)
}

func invariantf(op, format string, args ...any) error {
	return &InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

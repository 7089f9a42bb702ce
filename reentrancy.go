// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
)

// reentrancyGuard is a lock-free check that no two goroutines are inside a
// driver callback at once: the one invariant §5 of this package's design
// assumes an external scheduler already provides, and that this guard can
// optionally verify from the outside. Disabled by default: it costs a stack
// walk per callback, which is worth paying in tests and CI but not on a
// production hot path.
type reentrancyGuard struct {
	holder atomic.Int64 // 0 == free, else the owning goroutine id
}

func (g *reentrancyGuard) enter() error {
	id := currentGoroutineID()
	if !g.holder.CompareAndSwap(0, id) {
		return WrapError(ErrKindReentrancy, nil, ErrReentrantEntry)
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.holder.Store(0)
}

// currentGoroutineID parses the numeric id out of the current goroutine's
// stack trace header ("goroutine 123 [running]: ..."). This is the standard
// idiom for obtaining a goroutine id without a dedicated runtime hook; it is
// intentionally only ever used for this guard's diagnostic CAS, never for
// anything load-bearing in the enumeration itself.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

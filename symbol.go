// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

// Symbol is a resolved source location for an instrumentation point.
type Symbol struct {
	File     string
	Line     int
	ILOffset int
}

// SymbolLookup resolves an instrumentation-point offset within a method
// back to a source location, for the diagnostic graph emitter (graph.go).
// The instruction-offset symbolizer itself is out of scope for this
// package (see doc.go's "Non-goals" section); this interface is the whole
// of its contract with the rest of the package.
type SymbolLookup interface {
	Lookup(method MethodIdentity, ilOffset int) (Symbol, bool)
}

// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

// flowEntry is one append to the execution-flow sequence: the method that
// began running (fresh, or resumed after its own Yield), and the
// instrumentation-index range it is known to cover. endIndex starts out
// equal to startIndex and is corrected in place by setTopEnd once this
// run-segment's actual suspension point is known (the driver only learns it
// the moment it is about to call Scheduler.Yield, which is after this entry
// was appended).
type flowEntry struct {
	method     *MethodRecord
	startIndex int
	endIndex   int
}

// executionFlow is the append-only sequence of method entries observed in
// the current run, oldest first. The branch-snapshot manager's
// short-circuit check walks it to decide whether a branch's target is still
// reachable without forking any method's schedule set, and the diagnostic
// emitter (graph.go) walks it to render the run as a graph.
type executionFlow struct {
	entries []flowEntry
}

func (f *executionFlow) append(m *MethodRecord, startIndex, endIndex int) {
	f.entries = append(f.entries, flowEntry{method: m, startIndex: startIndex, endIndex: endIndex})
}

// setTopEnd corrects the most recent entry's endIndex, called by the driver
// just before it yields that method, once the index it is suspending at is
// known.
func (f *executionFlow) setTopEnd(endIndex int) {
	if len(f.entries) == 0 {
		return
	}
	f.entries[len(f.entries)-1].endIndex = endIndex
}

// top returns the most recently entered method, or nil if the flow is
// empty.
func (f *executionFlow) top() *MethodRecord {
	if len(f.entries) == 0 {
		return nil
	}
	return f.entries[len(f.entries)-1].method
}

// below returns every entry's method except the most recent one, oldest
// first.
func (f *executionFlow) below() []*MethodRecord {
	if len(f.entries) <= 1 {
		return nil
	}
	out := make([]*MethodRecord, len(f.entries)-1)
	for i, e := range f.entries[:len(f.entries)-1] {
		out[i] = e.method
	}
	return out
}

func (f *executionFlow) reset() { f.entries = nil }

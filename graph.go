// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// GraphWriter receives a rendered diagnostic graph, for callers that want
// to route dumps somewhere other than the fixed working-directory file
// (a debugger UI's live view, an in-memory buffer for tests, etc).
type GraphWriter interface {
	WriteGraph(dot string) error
}

// GraphWriterFunc adapts a function to GraphWriter.
type GraphWriterFunc func(dot string) error

func (f GraphWriterFunc) WriteGraph(dot string) error { return f(dot) }

// DumpInterleaving renders the current run as a DOT-format directed graph
// per §4.5 and writes it to w:
//   - one same-rank column of nodes per method that appears in the
//     execution-flow sequence, one node per instrumentation index, each
//     labeled with its IL offset and (when a SymbolLookup was configured)
//     the resolved source location;
//   - a weighted, undirected edge between consecutive indices within one
//     block of that method's current schedule;
//   - a weighted, directed "yield" edge from a block's last index to the
//     next block's first, within the same method;
//   - an unweighted, directed edge for every consecutive pair in the
//     execution-flow sequence, from the suspending method's last-reached
//     index to the resuming method's first.
func (rt *Runtime) DumpInterleaving(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph interleaving {\n")

	col := make(map[MethodIdentity]int)
	var columns []*MethodRecord
	for _, e := range rt.flow.entries {
		if _, ok := col[e.method.identity]; !ok {
			col[e.method.identity] = len(columns)
			columns = append(columns, e.method)
		}
	}

	for i, m := range columns {
		rt.writeMethodColumn(&b, i, m)
	}

	for i := 0; i+1 < len(rt.flow.entries); i++ {
		from := rt.flow.entries[i]
		to := rt.flow.entries[i+1]
		fmt.Fprintf(&b, "  %s -> %s;\n",
			nodeID(col[from.method.identity], from.endIndex),
			nodeID(col[to.method.identity], to.startIndex))
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	if err != nil {
		return WrapError(ErrKindDumpFailed, nil, err)
	}
	return nil
}

// writeMethodColumn emits one method's same-rank node column plus its
// intra-method edges (consecutive-index and block-to-block yield edges),
// derived from m's current schedule at the outer yield count rt.y.
func (rt *Runtime) writeMethodColumn(b *strings.Builder, col int, m *MethodRecord) {
	fmt.Fprintf(b, "  subgraph col%d {\n", col)
	b.WriteString("    rank=same;\n")
	for idx := 0; idx < m.instrCount; idx++ {
		fmt.Fprintf(b, "    %s [label=%q];\n", nodeID(col, idx), rt.indexLabel(m, idx))
	}
	b.WriteString("  }\n")

	schedule := m.scheduleForGraph(rt.y)
	for bi, blk := range schedule {
		start, end := blockBounds(schedule, bi)
		for idx := start; idx < end; idx++ {
			fmt.Fprintf(b, "  %s -> %s [dir=none, weight=%d];\n", nodeID(col, idx), nodeID(col, idx+1), blk.InitialCount)
		}
		if bi+1 < len(schedule) {
			fmt.Fprintf(b, "  %s -> %s [weight=%d];\n", nodeID(col, end), nodeID(col, end+1), blk.InitialCount)
		}
	}
}

// scheduleForGraph returns m's current schedule at outer yield count y, or
// nil if m has no schedule to show (not live, or fewer than two
// instrumentation points).
func (m *MethodRecord) scheduleForGraph(y int) Schedule {
	if !m.live() || len(m.schedules) == 0 || y >= len(m.schedules) || len(m.schedules[y]) == 0 {
		return nil
	}
	return m.currentSchedule(y)
}

// nodeID returns the DOT node identifier for instrumentation index idx of
// the method assigned column col.
func nodeID(col, idx int) string {
	return fmt.Sprintf("m%d_%d", col, idx)
}

// indexLabel returns the label for instrumentation index idx of m: its IL
// offset, plus the resolved source location when a SymbolLookup is
// configured and resolves it.
func (rt *Runtime) indexLabel(m *MethodRecord, idx int) string {
	offset := 0
	if idx < len(m.offsets) {
		offset = m.offsets[idx]
	}
	label := fmt.Sprintf("%v off=%d", m.identity, offset)
	if rt.symbolLookup == nil {
		return label
	}
	sym, ok := rt.symbolLookup.Lookup(m.identity, offset)
	if !ok {
		return label
	}
	return fmt.Sprintf("%s\\n%s:%d", label, sym.File, sym.Line)
}

// DumpInterleavingToFile renders the current run exactly as DumpInterleaving
// does, writing it to the given path (truncating any existing file).
func (rt *Runtime) DumpInterleavingToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return WrapError(ErrKindDumpFailed, nil, err)
	}
	defer f.Close()
	return rt.DumpInterleaving(f)
}

// DumpCurrentInterleaving mirrors the native mono_hijack_dump_current_interleaving
// control hook (SPEC_FULL §6.1): it renders the current run to this
// Runtime's configured GraphWriter (or, absent one, to the fixed
// working-directory file named via WithGraphFileName), subject to whatever
// rate limit WithRateLimiter configured. A call skipped by the rate limiter
// returns nil, not an error: the caller asked for a best-effort live view,
// not a guaranteed write.
func (rt *Runtime) DumpCurrentInterleaving() error {
	if !rt.rateLimitAllow() {
		return nil
	}
	var err error
	if rt.graphWriter != nil {
		var b strings.Builder
		if err = rt.DumpInterleaving(&b); err == nil {
			err = rt.graphWriter.WriteGraph(b.String())
		}
	} else {
		err = rt.DumpInterleavingToFile(rt.graphFileName)
	}
	if err != nil {
		return err
	}
	rt.logf(LevelDebug, nil, "dumped current interleaving", nil, map[string]any{"nodes": len(rt.flow.entries)})
	return nil
}

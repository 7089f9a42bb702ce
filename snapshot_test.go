// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordSnapshot captures the live-enumeration fields compared across a
// specialize/restore round trip.
type recordSnapshot struct {
	instrCount     int
	curYieldCount  int
	curScheduleIdx int
	curBlock       int
	callNumber     int
	neighbourCount int
}

func snapshotOf(m *MethodRecord) recordSnapshot {
	return recordSnapshot{
		instrCount:     m.instrCount,
		curYieldCount:  m.curYieldCount,
		curScheduleIdx: m.curScheduleIdx,
		curBlock:       m.curBlock,
		callNumber:     m.callNumber,
		neighbourCount: m.neighbourCount,
	}
}

// S3: a backward branch whose target cannot invalidate any pending yield
// (nothing else live has further blocks) grows the current block's
// RemainingCount in place rather than forking any schedule set, by exactly
// instr_count - target_instr_index (the documented over-approximation: see
// DESIGN.md's "open question 2"). InitialCount and rec.instrCount are left
// untouched: they are the block's and method's own structural shape, not the
// run-to-run extension, and growing them would break resetSchedule's
// idempotency and corrupt sibling schedules' instrCount-derived math.
func TestHandleBranch_ShortCircuit(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	rec := rt.Registry().LookupOrCreate("solo")
	for i := 0; i < 4; i++ {
		rt.Registry().RecordInstrPoint(rec, i)
	}
	require.NoError(t, rt.FirstVisit(rec)) // point 1

	br := rt.Registry().RecordBranchSite(rec)
	br.TargetInstrIndex = 1

	schedule := rec.currentSchedule(rt.y)
	preInitial := schedule[rec.curBlock].InitialCount
	preRemaining := schedule[rec.curBlock].RemainingCount

	require.NoError(t, rt.Fast(rec)) // point 2: intercepted by the pending branch

	require.Equal(t, 4, rec.instrCount, "instr_count is the method's structural shape, not the extension")
	require.Equal(t, preInitial, schedule[rec.curBlock].InitialCount, "InitialCount must not grow either")
	require.Equal(t, preRemaining+(4-1), schedule[rec.curBlock].RemainingCount)
	require.Nil(t, rec.pendingBranch)
	require.Zero(t, sched.forceRestarts, "short-circuit must not restart the scheduler")
	require.Empty(t, rec.savedStates, "short-circuit must not push a saved-state frame")
}

// A branch whose target could not be resolved by the JIT is ignored rather
// than treated as fatal.
func TestHandleBranch_UnresolvedTarget(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	rec := rt.Registry().LookupOrCreate("solo")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(rec, i)
	}
	require.NoError(t, rt.FirstVisit(rec))

	rt.Registry().RecordBranchSite(rec) // TargetInstrIndex left at -1

	require.NoError(t, rt.Fast(rec))
	require.Zero(t, sched.forceRestarts)
	require.Equal(t, 3, rec.instrCount)
}

// General path: a branch pending in a nested method while an outer method
// still has unexecuted blocks forks every live method's schedule set and
// restarts the scheduler. A method whose branch lands before its first
// committed block (no fixed prefix) reverts to "not yet visited this run",
// exactly the state Scheduler.ForceRestart's fresh pass expects it to be
// driven through FirstVisit again from. Once every live method has gone
// through that re-entry (live again), popping the saved states restores
// every field exactly as it stood before the fork.
func TestHandleBranch_GeneralPath_RoundTrip(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	a := rt.Registry().LookupOrCreate("outer")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(a, i)
	}
	b := rt.Registry().LookupOrCreate("inner")
	for i := 0; i < 4; i++ {
		rt.Registry().RecordInstrPoint(b, i)
	}

	require.NoError(t, rt.FirstVisit(a)) // a, point 1; still on block 0
	require.NoError(t, rt.FirstVisit(b)) // b, point 1 (nested)
	require.NoError(t, rt.Fast(b))        // b, point 2: crosses a block boundary, yields

	preA := snapshotOf(a)
	preB := snapshotOf(b)

	br := rt.Registry().RecordBranchSite(b)
	br.TargetInstrIndex = 1

	require.NoError(t, rt.Fast(b)) // b, point 3: intercepted by the pending branch
	require.False(t, rt.branchIsShortCircuit(b), "a still has an unexecuted block below b in the flow")

	require.Equal(t, 1, sched.forceRestarts)
	require.Len(t, a.savedStates, 1, "the general path forks every live method, not just the branching one")
	require.Len(t, b.savedStates, 1)
	require.Equal(t, preA.instrCount, a.instrCount, "only the branching method's instr_count grows")
	require.Equal(t, 4+(4-1), b.instrCount)
	require.NotNil(t, a.schedules)
	require.NotNil(t, b.schedules)

	// a's branch-time position (block 0, nothing committed yet) has no
	// fixed prefix, so it reverts to "not yet visited" rather than a
	// resumable mid-schedule position.
	require.False(t, a.live())
	require.True(t, b.live(), "b's committed first block gives it a fixed prefix to resume from")
	require.True(t, b.resumeWithoutAdvance)

	// The scheduler's restart re-enters the program from the top: every
	// live method is driven through FirstVisit again before anything else
	// happens.
	require.NoError(t, rt.FirstVisit(a))
	require.NoError(t, rt.FirstVisit(b))
	require.False(t, b.resumeWithoutAdvance, "consumed by its own first post-restart FirstVisit call")

	require.True(t, rt.popSavedStates())
	require.Equal(t, 2, sched.forceRestarts, "restoring a saved frame restarts the scheduler again")
	require.Equal(t, preA, snapshotOf(a))
	require.Equal(t, preB, snapshotOf(b))
	require.Empty(t, a.savedStates)
	require.Empty(t, b.savedStates)

	require.False(t, rt.popSavedStates(), "nothing left to restore")
}

func TestBranchIsShortCircuit_FalseWhenOuterMethodHasMoreBlocks(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	a := rt.Registry().LookupOrCreate("outer")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(a, i)
	}
	b := rt.Registry().LookupOrCreate("inner")
	for i := 0; i < 2; i++ {
		rt.Registry().RecordInstrPoint(b, i)
	}

	require.NoError(t, rt.FirstVisit(a))
	require.NoError(t, rt.FirstVisit(b))

	require.False(t, rt.branchIsShortCircuit(b), "outer method a is not yet on its last block")
}

func TestBranchIsShortCircuit_TrueForSoleLiveMethod(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	rec := rt.Registry().LookupOrCreate("solo")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(rec, i)
	}
	require.NoError(t, rt.FirstVisit(rec))

	require.True(t, rt.branchIsShortCircuit(rec))
}

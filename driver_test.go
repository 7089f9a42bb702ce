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

func newTestRuntime(t *testing.T, sched *fakeScheduler) *Runtime {
	t.Helper()
	rt, err := NewRuntime(WithSchedulerLocator(func() (Scheduler, bool) {
		return sched, true
	}))
	require.NoError(t, err)
	return rt
}

// S1/S2: a single live method drives itself through every schedule at every
// yield count, in the generator's documented order, then stops the
// scheduler exactly once every level is exhausted. With no other live
// methods, neighbourCount is always 1, so every call rotates to the next
// schedule immediately.
func TestRuntime_SoloMethodFullEnumeration(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	rec := rt.Registry().LookupOrCreate("solo")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(rec, i)
	}

	// Pass 1: schedule [1,2] at Y=0. One internal boundary.
	require.NoError(t, rt.FirstVisit(rec)) // point 1
	require.NoError(t, rt.Fast(rec))       // point 2: crosses into block 1, yields
	require.NoError(t, rt.Fast(rec))       // point 3
	require.Equal(t, 1, sched.yields)
	require.False(t, sched.stopped)

	// Pass 2: schedule [2,1] at Y=0. One internal boundary.
	require.NoError(t, rt.FirstVisit(rec))
	require.NoError(t, rt.Fast(rec))
	require.NoError(t, rt.Fast(rec)) // crosses into block 1, yields
	require.Equal(t, 2, sched.yields)
	require.False(t, sched.stopped)

	// Pass 3: Y=0 exhausted, advances to Y=1, schedule [1,1,1]. Two
	// internal boundaries.
	require.NoError(t, rt.FirstVisit(rec))
	require.NoError(t, rt.Fast(rec)) // crosses into block 1, yields
	require.NoError(t, rt.Fast(rec)) // crosses into block 2, yields
	require.Equal(t, 1, rt.y)
	require.Equal(t, 4, sched.yields)
	require.False(t, sched.stopped)

	// Pass 4: Y=1 is the last level, and it too is now exhausted, so the
	// driver stops the scheduler instead of falling through to Fast.
	require.NoError(t, rt.FirstVisit(rec))
	require.True(t, sched.stopped)
	require.Equal(t, 4, sched.yields, "the stopping call must not itself consume an instrumentation point")
}

// Property (4): neighbourCount(m) is the product of len(schedules[Y]) over
// every live method with a higher method index than m, cached and
// invalidated whenever Y advances or a schedule set is forked.
func TestRuntime_NeighbourCountProduct(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	a := rt.Registry().LookupOrCreate("a")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(a, i)
	}
	b := rt.Registry().LookupOrCreate("b")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(b, i)
	}

	require.NoError(t, rt.FirstVisit(a))
	require.NoError(t, rt.Fast(a))
	require.NoError(t, rt.Fast(a))
	require.Equal(t, 0, a.methodIndex)

	require.NoError(t, rt.FirstVisit(b))
	require.NoError(t, rt.Fast(b))
	require.NoError(t, rt.Fast(b))
	require.Equal(t, 1, b.methodIndex)

	want := len(b.schedules[rt.y])
	require.Equal(t, 2, want, "k=3 Y=0 has 2 schedules: [1,2] and [2,1]")
	require.Equal(t, want, rt.neighbourCount(a))

	// b has no live method with a higher index, so its own product is the
	// empty product.
	require.Equal(t, 1, rt.neighbourCount(b))

	// The result is cached on the record until invalidated.
	require.Equal(t, want, a.neighbourCount)
	rt.invalidateNeighbourCounts()
	require.Equal(t, -1, a.neighbourCount)
	require.Equal(t, want, rt.neighbourCount(a), "recomputing after invalidation must yield the same product")
}

// S4: once the schedule registered for a method has fewer than two
// instrumentation points, there is nothing to enumerate and both entry
// points are no-ops.
func TestRuntime_FewerThanTwoInstrPoints(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)

	rec := rt.Registry().LookupOrCreate("trivial")
	rt.Registry().RecordInstrPoint(rec, 0)

	require.NoError(t, rt.FirstVisit(rec))
	require.NoError(t, rt.Fast(rec))
	require.Equal(t, 0, sched.yields)
	require.False(t, sched.stopped)
}

// Disabling the runtime makes every entry point a no-op, regardless of
// instrumentation shape.
func TestRuntime_Disabled(t *testing.T) {
	sched := &fakeScheduler{}
	rt := newTestRuntime(t, sched)
	rt.Disable()

	rec := rt.Registry().LookupOrCreate("m")
	for i := 0; i < 3; i++ {
		rt.Registry().RecordInstrPoint(rec, i)
	}

	require.NoError(t, rt.FirstVisit(rec))
	require.NoError(t, rt.Fast(rec))
	require.Nil(t, rec.schedules, "a disabled runtime must not even generate schedules")
}

// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

// FirstVisit drives the first instrumentation point of one activation of a
// method: lazily generating its schedule set, assigning it an enumeration
// order, and positioning it at the head of the schedule for the current
// outer yield count, or, if this is not the method's very first call of the
// run, advancing it to its next schedule once it has been entered as many
// times as its neighbour-count product (see Runtime.neighbourCount). It then
// falls through to Fast to process that instrumentation point, except when
// the method has fewer than two instrumentation points or this call stopped
// the scheduler.
//
// The JIT calls this at the first instrumentation point of every activation
// of a method, before the calls to Fast for that activation.
func (rt *Runtime) FirstVisit(rec *MethodRecord) error {
	if !rt.enabled {
		return nil
	}

	release, err := rt.guardEnter()
	if err != nil {
		return err
	}

	if _, err := rt.resolveScheduler(); err != nil {
		release()
		return err
	}

	if rec.schedules == nil {
		rec.schedules = GenerateSchedules(rec.instrCount)
	}
	if rec.methodIndex == -1 {
		rec.methodIndex = rt.nextMethodIndex
		rt.nextMethodIndex++
		rec.callNumber = 0
		rec.neighbourCount = -1
	}

	if len(rec.schedules) == 0 {
		// Fewer than two instrumentation points: nothing to enumerate.
		rt.flow.append(rec, 0, 0)
		release()
		return nil
	}

	if rec.curScheduleIdx == -1 {
		rec.curScheduleIdx = 0
	} else if rec.resumeWithoutAdvance {
		rec.resumeWithoutAdvance = false
	} else {
		resetSchedule(rec.currentSchedule(rt.y))
		rec.callNumber++
		if rec.callNumber >= rt.neighbourCount(rec) {
			rec.callNumber = 0
			rec.curScheduleIdx++
			exhausted := rec.curScheduleIdx >= len(rec.schedules[rt.y])
			if exhausted && rec.methodIndex == 0 {
				done, err := rt.advanceY(rec)
				if err != nil {
					release()
					return err
				}
				if done {
					// The driver's own schedule space is now fully
					// consumed for this run; leaving curScheduleIdx
					// pointing past the end of schedules[Y] would make it
					// "live" (and indexable) for no reason, so it no
					// longer participates in liveMethods() after a stop.
					rec.curScheduleIdx = -1
					release()
					return nil
				}
			} else if exhausted {
				rec.curScheduleIdx = 0
			}
			rt.invalidateNeighbourCounts()
		}
	}
	rec.curBlock = 0
	start, _ := blockBounds(rec.currentSchedule(rt.y), 0)
	rt.flow.append(rec, start, start)

	// Released here rather than held across the call: Fast re-acquires its
	// own guard independently (including across the blocking Yield inside
	// it), so holding this one across the fallthrough would only make a
	// legitimate re-entry on resume look like reentrancy.
	release()
	return rt.Fast(rec)
}

// guardEnter enters the reentrancy guard if enabled, returning a release
// function safe to call unconditionally and more than once (only the first
// call has any effect). With the guard disabled, release is a no-op.
func (rt *Runtime) guardEnter() (release func(), err error) {
	if !rt.guardEnabled {
		return func() {}, nil
	}
	if err := rt.guard.enter(); err != nil {
		return nil, err
	}
	held := true
	return func() {
		if held {
			held = false
			rt.guard.exit()
		}
	}, nil
}

// invalidateNeighbourCounts clears every live method's cached neighbour
// count; called whenever Y advances or a schedule set is replaced, since
// the product depends on both.
func (rt *Runtime) invalidateNeighbourCounts() {
	for _, m := range rt.registry.liveMethods() {
		m.neighbourCount = -1
	}
}

// advanceY advances the process-wide outer yield count after the driver
// method (method index 0) has exhausted every schedule at the current Y.
// Once every yield count has been exhausted it restores a saved
// branch-snapshot frame for every live method that has one and reports
// done == false; only when there is nothing left to restore does it stop
// the scheduler and report done == true.
func (rt *Runtime) advanceY(rec *MethodRecord) (done bool, err error) {
	nextY := rt.y + 1
	maxY := len(rec.schedules) - 1
	if nextY > maxY {
		s, serr := rt.resolveScheduler()
		if serr != nil {
			return false, serr
		}
		if rt.popSavedStates() {
			return false, nil
		}
		s.Stop()
		return true, nil
	}
	rt.y = nextY
	rec.curYieldCount = nextY
	rec.curScheduleIdx = 0
	return false, nil
}

// popSavedStates restores the most recent branch-snapshot frame for every
// live method that has one, reporting whether any frame was restored. See
// snapshot.go for how frames are pushed.
func (rt *Runtime) popSavedStates() bool {
	restoredAny := false
	for _, m := range rt.registry.liveMethods() {
		if len(m.savedStates) == 0 {
			continue
		}
		n := len(m.savedStates) - 1
		s := m.savedStates[n]
		m.savedStates = m.savedStates[:n]
		m.schedules = s.schedules
		m.instrCount = s.instrCount
		m.curYieldCount = s.curYieldCount
		m.curScheduleIdx = s.curScheduleIdx
		m.curBlock = s.curBlock
		m.callNumber = s.callNumber
		m.neighbourCount = s.neighbourCount
		restoredAny = true
	}
	if restoredAny {
		if driver, ok := rt.registry.methods[rt.driverIdentity()]; ok {
			rt.y = driver.curYieldCount
		}
		if s, err := rt.resolveScheduler(); err == nil {
			s.ForceRestart()
		}
	}
	return restoredAny
}

// driverIdentity returns the identity of the method currently assigned
// method index 0, if any live method holds it.
func (rt *Runtime) driverIdentity() MethodIdentity {
	for _, m := range rt.registry.liveMethods() {
		if m.methodIndex == 0 {
			return m.identity
		}
	}
	return nil
}

// Fast drives every instrumentation point after a method's first visit in
// the current run. If a branch is pending at the current block, and the
// block is not one the branch-snapshot manager synthesized (see
// Block.DisableJumpTracking), it delegates to the branch-snapshot manager
// instead of consuming the block normally.
//
// Fast enters the reentrancy guard on its own, independently of FirstVisit's
// fallthrough: the JIT also calls it directly for every instrumentation
// point after a method's first, and those calls need the same overlap check
// FirstVisit gets.
func (rt *Runtime) Fast(rec *MethodRecord) error {
	if !rt.enabled {
		return nil
	}
	if len(rec.schedules) == 0 {
		return nil
	}

	release, err := rt.guardEnter()
	if err != nil {
		return err
	}

	schedule := rec.currentSchedule(rt.y)
	block := &schedule[rec.curBlock]

	if rec.pendingBranch != nil && !block.DisableJumpTracking {
		defer release()
		return rt.handleBranch(rec)
	}

	transitioned := false
	prevBlock := rec.curBlock
	if block.RemainingCount == 0 {
		rec.curBlock++
		block = &schedule[rec.curBlock]
		transitioned = true
	}
	block.RemainingCount--
	if transitioned {
		_, end := blockBounds(schedule, prevBlock)
		rt.flow.setTopEnd(end)
		// release is handed off rather than deferred here: yieldAt owns
		// dropping it before the blocking Yield call below and
		// re-acquiring a fresh one once this task resumes.
		return rt.yieldAt(rec, release)
	}
	release()
	return nil
}

// yieldAt suspends the current logical task at a placed yield point. The
// method's live enumeration fields are saved to a stack-local value and
// reset to "uninitialized" first, so that a re-entrant call to FirstVisit
// for the same method while suspended (a recursive or re-entrant
// invocation) is treated as a fresh first visit rather than corrupting the
// in-flight enumeration state; they are restored once the scheduler resumes
// this task. This mirrors the SAVE_CONTEXT/RESTORE_CONTEXT pairing in the
// system this package reimagines.
//
// release is Fast's guard hold on entry to this instrumentation point; it is
// dropped before the blocking call to Scheduler.Yield, since Yield transfers
// control to another method whose own driver calls are a legitimate
// cooperative hand-off, not reentrancy. A fresh guard is acquired once Yield
// returns and held until this call returns.
func (rt *Runtime) yieldAt(rec *MethodRecord, release func()) error {
	s, err := rt.resolveScheduler()
	if err != nil {
		release()
		return err
	}

	saved := struct {
		curYieldCount  int
		curScheduleIdx int
		curBlock       int
		callNumber     int
		neighbourCount int
	}{rec.curYieldCount, rec.curScheduleIdx, rec.curBlock, rec.callNumber, rec.neighbourCount}

	rec.curScheduleIdx = -1

	release()
	s.Yield()

	resumed, err := rt.guardEnter()
	if err != nil {
		// The guard could not be re-acquired on resume; still restore the
		// method's enumeration state (the scheduler has already resumed
		// this task and expects it usable), but report the error rather
		// than proceed unguarded.
		rec.curYieldCount = saved.curYieldCount
		rec.curScheduleIdx = saved.curScheduleIdx
		rec.curBlock = saved.curBlock
		rec.callNumber = saved.callNumber
		rec.neighbourCount = saved.neighbourCount
		return err
	}
	defer resumed()

	rec.curYieldCount = saved.curYieldCount
	rec.curScheduleIdx = saved.curScheduleIdx
	rec.curBlock = saved.curBlock
	rec.callNumber = saved.callNumber
	rec.neighbourCount = saved.neighbourCount

	start, _ := blockBounds(rec.currentSchedule(rt.y), rec.curBlock)
	rt.flow.append(rec, start, start)
	return nil
}

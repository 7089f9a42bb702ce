// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

// handleBranch is invoked by Fast when the current block has a pending
// branch and is not itself one the branch-snapshot manager previously
// synthesized. It implements §4.4's two paths: a short-circuit extension of
// the current block when the branch's target is still reachable without
// reordering anything, and a general path that forks a fresh, finer-grained
// schedule set for every live method otherwise.
func (rt *Runtime) handleBranch(rec *MethodRecord) error {
	branch := rec.pendingBranch
	rec.pendingBranch = nil

	if branch.TargetInstrIndex < 0 {
		// Target could not be resolved; ignore the branch rather than
		// treat it as fatal (§7).
		return nil
	}

	// The extension is the full distance from the branch target to the end
	// of the method: an upper bound on the instrumentation points still to
	// run after the jump, not an exact count of them.
	extension := rec.instrCount - branch.TargetInstrIndex
	if extension <= 0 {
		return nil
	}

	if rt.branchIsShortCircuit(rec) {
		schedule := rec.currentSchedule(rt.y)
		block := &schedule[rec.curBlock]
		// Only the remaining run grows: InitialCount and rec.instrCount
		// stay put, or resetSchedule's next pass would over-count this
		// block forever, and sibling schedules' own instrCount-derived
		// math would drift out from under them.
		block.RemainingCount += extension
		rt.logf(LevelDebug, rec.identity, "branch short-circuited", nil, map[string]any{"extension": extension})
		return nil
	}

	return rt.specializeBranch(rec, extension)
}

// branchIsShortCircuit reports whether rec is the currently executing
// method (the top of the execution-flow sequence) and every method below it
// in that sequence is already on the last block of its own current
// schedule, meaning no method still has a future yield point that the
// branch's jump could invalidate.
func (rt *Runtime) branchIsShortCircuit(rec *MethodRecord) bool {
	if rt.flow.top() != rec {
		return false
	}
	for _, m := range rt.flow.below() {
		if !m.live() {
			continue
		}
		schedule := m.currentSchedule(rt.y)
		if m.curBlock < len(schedule)-1 {
			return false
		}
	}
	return true
}

// specializeBranch implements §4.4's general path: every live method has
// its current schedule collapsed into a disabled-jump-tracking prefix plus
// a single tail block covering everything from its current position
// onward, its old schedule set pushed onto its saved-state stack, and a
// fresh schedule set regenerated from that prefix to cover every finer
// yield count the (possibly now longer, for rec) method could still
// exercise. Once every live method is specialized, it invokes
// Scheduler.ForceRestart.
func (rt *Runtime) specializeBranch(rec *MethodRecord, extension int) error {
	for _, m := range rt.registry.liveMethods() {
		grow := 0
		if m == rec {
			grow = extension
		}
		rt.specializeMethod(m, grow)
	}

	rt.invalidateNeighbourCounts()

	s, err := rt.resolveScheduler()
	if err != nil {
		return err
	}
	s.ForceRestart()
	return nil
}

// specializeMethod forks m's schedule set at its current position, growing
// its instrumentation-point count by grow (non-zero only for the branching
// method itself).
func (rt *Runtime) specializeMethod(m *MethodRecord, grow int) {
	oldSchedule := m.currentSchedule(rt.y)

	prefix := make([]Block, m.curBlock)
	for i := 0; i < m.curBlock; i++ {
		prefix[i] = Block{InitialCount: oldSchedule[i].InitialCount, RemainingCount: oldSchedule[i].InitialCount, DisableJumpTracking: true}
	}

	tail := 0
	for i := m.curBlock; i < len(oldSchedule); i++ {
		tail += oldSchedule[i].RemainingCount
	}
	tail += grow

	m.savedStates = append(m.savedStates, savedState{
		schedules:      m.schedules,
		instrCount:     m.instrCount,
		curYieldCount:  m.curYieldCount,
		curScheduleIdx: m.curScheduleIdx,
		curBlock:       m.curBlock,
		callNumber:     m.callNumber,
		neighbourCount: m.neighbourCount,
	})

	m.instrCount += grow
	m.schedules = generateFromPrefix(prefix, tail)

	// The collapsed, unsplit placement (prefix + the whole tail as one
	// block) is this method's resumption point: same logical position,
	// now expressed against the new schedule set. Scheduler.ForceRestart
	// re-enters the program from the top, so the method will be driven
	// through FirstVisit again from its own instruction 0; curBlock is
	// left at 0 so that replay, not a jump into the middle of the
	// schedule.
	accY := len(prefix) - 1
	if accY >= 0 && accY < len(m.schedules) && len(m.schedules[accY]) > 0 {
		m.curYieldCount = accY
		m.curScheduleIdx = 0
		m.resumeWithoutAdvance = true
	} else {
		// No fixed prefix (the branch landed before this method's first
		// recorded yield): there is nothing to resume mid-schedule, so
		// the method re-initializes as if freshly visited.
		m.curScheduleIdx = -1
	}
	m.curBlock = 0
	m.callNumber = 0
	m.neighbourCount = -1

	if m.methodIndex == 0 && accY >= 0 {
		rt.y = accY
	}
}

// generateFromPrefix builds a fresh per-method schedule set covering every
// yield count obtainable by further splitting tail while keeping prefix's
// blocks fixed. The parts == 1 level is the method's resumption schedule: the
// exact position Scheduler.ForceRestart replays the method to, so its sole
// tail block carries DisableJumpTracking so that a backward branch firing
// again at that same replayed position doesn't re-trigger this very
// specialization. Every finer level (parts > 1) is a genuinely new,
// trackable schedule, built by repeatedly splitting that resumption schedule
// with schedule.go's SplitAt at the ascending cumulative boundaries
// compositions(tail, parts) calls for.
func generateFromPrefix(prefix []Block, tail int) [][]Schedule {
	maxParts := tail
	if maxParts < 1 {
		maxParts = 1
	}

	prefixPoints := 0
	for _, b := range prefix {
		prefixPoints += b.InitialCount
	}

	resumption := make(Schedule, len(prefix), len(prefix)+1)
	copy(resumption, prefix)
	resumption = append(resumption, Block{InitialCount: tail, RemainingCount: tail, DisableJumpTracking: true})

	out := make([][]Schedule, len(prefix)+maxParts-1)
	for parts := 1; parts <= maxParts; parts++ {
		y := len(prefix) + parts - 2
		if y < 0 {
			continue
		}
		var comps [][]int
		if parts == 1 {
			comps = [][]int{{tail}}
		} else {
			comps = compositions(tail, parts)
		}
		schedules := make([]Schedule, len(comps))
		for i, c := range comps {
			schedules[i] = scheduleFromComposition(resumption, prefixPoints, c)
		}
		out[y] = schedules
	}
	return out
}

// scheduleFromComposition derives one tail composition's schedule from the
// resumption schedule by splitting it at each of comp's ascending cumulative
// boundaries. comp's own last part never needs an explicit split, since
// nothing follows it; a single-part comp (the resumption schedule itself)
// is returned as an unsplit copy, flag and all.
func scheduleFromComposition(resumption Schedule, prefixPoints int, comp []int) Schedule {
	if len(comp) == 1 {
		out := make(Schedule, len(resumption))
		copy(out, resumption)
		return out
	}
	s := resumption
	pos := prefixPoints
	for _, part := range comp[:len(comp)-1] {
		pos += part
		s = SplitAt(s, pos)
	}
	return s
}

// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

// MethodIdentity is the JIT's opaque handle for a method. Identity equality
// is whatever the caller's comparable handle type provides: a pointer, an
// interned token, whatever the out-of-scope JIT already uses to distinguish
// methods.
type MethodIdentity any

// BranchRecord marks an instrumentation-point branch the JIT wants the
// branch-snapshot manager (snapshot.go) to watch. TargetInstrIndex is set by
// the JIT once it has resolved the branch's target offset to an
// instrumentation-point index; -1 means the target could not be resolved
// (see ErrKindUnknownBranchTarget).
type BranchRecord struct {
	TargetOffset     int
	TargetInstrIndex int
}

// savedState is one frame of a method's branch-snapshot stack: everything
// the driver needs to resume exactly where a branch's general-path
// specialization diverged from.
type savedState struct {
	schedules      [][]Schedule
	instrCount     int
	curYieldCount  int
	curScheduleIdx int
	curBlock       int
	callNumber     int
	neighbourCount int
}

// MethodRecord is the registry's per-method record: its identity, its
// instrumentation points, the generated schedule sets, and the live
// enumeration state a run walks through one instrumentation point at a
// time.
type MethodRecord struct {
	identity   MethodIdentity
	instrCount int
	offsets    []int

	// schedules is indexed by yield count; schedules[y] holds every
	// schedule with y+1 yield points. Rebuilt by GenerateSchedules on
	// first visit, and replaced (with the old value pushed to
	// savedStates) whenever the branch-snapshot manager specializes this
	// method.
	schedules [][]Schedule

	curYieldCount  int
	curScheduleIdx int // -1: not yet initialized for this run
	curBlock       int
	callNumber     int
	methodIndex    int // -1: not yet assigned an enumeration order
	neighbourCount int // -1: cache invalid, must be recomputed

	savedStates   []savedState
	pendingBranch *BranchRecord

	// resumeWithoutAdvance is set by the branch-snapshot manager when it
	// specializes a method's schedule set to a specific resumption
	// point; it tells the next FirstVisit call (after
	// Scheduler.ForceRestart re-enters the program from the top) to use
	// that position as-is instead of rotating to the next neighbour
	// schedule, since a restart is a fresh pass over the newly forked
	// schedule set rather than a repeat visit within the same pass.
	resumeWithoutAdvance bool
}

func newMethodRecord(identity MethodIdentity) *MethodRecord {
	return &MethodRecord{
		identity:       identity,
		curScheduleIdx: -1,
		methodIndex:    -1,
		neighbourCount: -1,
	}
}

// Identity returns the method's JIT-supplied handle.
func (m *MethodRecord) Identity() MethodIdentity { return m.identity }

// InstrCount returns the method's current instrumentation-point count. A
// branch's general-path specialization (snapshot.go) can grow this
// beyond the count first reported via Registry.RecordInstrPoint.
func (m *MethodRecord) InstrCount() int { return m.instrCount }

// live reports whether this method has been entered at least once in the
// current run (i.e. has an initialized enumeration position).
func (m *MethodRecord) live() bool { return m.curScheduleIdx != -1 }

func (m *MethodRecord) currentSchedule(y int) Schedule {
	return m.schedules[y][m.curScheduleIdx]
}

// Registry tracks every method seen so far in a run. It is not safe for
// concurrent use; see package doc.go's "Thread Safety" section.
type Registry struct {
	methods map[MethodIdentity]*MethodRecord
	order   []*MethodRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[MethodIdentity]*MethodRecord)}
}

// LookupOrCreate returns the record for identity, creating one on first
// lookup. The JIT calls this once per method the first time it is
// instrumented.
func (r *Registry) LookupOrCreate(identity MethodIdentity) *MethodRecord {
	if rec, ok := r.methods[identity]; ok {
		return rec
	}
	rec := newMethodRecord(identity)
	r.methods[identity] = rec
	r.order = append(r.order, rec)
	return rec
}

// RecordInstrPoint registers one more instrumentation point for rec. The
// registry trusts the emission side completely: it does not re-filter or
// deduplicate offsets, since the JIT is the sole authority on where
// instrumentation points live.
func (r *Registry) RecordInstrPoint(rec *MethodRecord, offset int) {
	rec.offsets = append(rec.offsets, offset)
	rec.instrCount++
}

// RecordBranchSite marks a branch in rec for the branch-snapshot manager to
// watch, returning the record the JIT should fill in with the branch's
// resolved target once known.
func (r *Registry) RecordBranchSite(rec *MethodRecord) *BranchRecord {
	rec.pendingBranch = &BranchRecord{TargetInstrIndex: -1}
	return rec.pendingBranch
}

// ClearBranchSite removes rec's pending branch, if any.
func (r *Registry) ClearBranchSite(rec *MethodRecord) {
	rec.pendingBranch = nil
}

// Methods returns every method the registry has ever seen, in first-seen
// order. The returned slice must not be mutated.
func (r *Registry) Methods() []*MethodRecord { return r.order }

// liveMethods returns every method with an initialized enumeration
// position, in registration order (the order LookupOrCreate first saw
// them), which is not necessarily methodIndex order.
func (r *Registry) liveMethods() []*MethodRecord {
	live := make([]*MethodRecord, 0, len(r.order))
	for _, m := range r.order {
		if m.live() {
			live = append(live, m)
		}
	}
	return live
}

// reset clears every method's live enumeration state, preparing the
// registry for a fresh run. Instrumentation-point counts, offsets, and
// identities survive a reset; only progress through the schedule space does
// not.
func (r *Registry) reset() {
	for _, m := range r.order {
		m.schedules = nil
		m.curYieldCount = 0
		m.curScheduleIdx = -1
		m.curBlock = 0
		m.callNumber = 0
		m.methodIndex = -1
		m.neighbourCount = -1
		m.savedStates = nil
		m.pendingBranch = nil
		m.resumeWithoutAdvance = false
	}
}

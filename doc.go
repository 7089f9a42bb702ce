// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package heisen turns non-deterministic concurrency bugs into deterministic
// repros by exhaustively enumerating where a cooperative yield could land
// inside an instrumented method, then driving one placement per run.
//
// # Architecture
//
// A [Registry] tracks one [MethodRecord] per instrumented method: its
// instrumentation-point count, the set of yield-placement [Schedule] values
// for every yield count the method could exercise, and where the current run
// sits inside one of them. A [Runtime] owns the registry plus the handful of
// process-wide values (the outer yield count, the next method index, the
// execution-flow sequence) that used to be file-scope globals in the system
// this package reimagines.
//
// The JIT contract (out of scope for this package, see "Non-goals" below)
// calls [Runtime.FirstVisit] at the first instrumentation point of every
// activation of a method and [Runtime.Fast] on every instrumentation point
// after that; both delegate to
// a caller-supplied [Scheduler] to actually suspend and resume execution.
// [Registry.RecordBranchSite] marks a branch the JIT wants tracked; when
// execution reaches it, the branch-snapshot manager in snapshot.go either
// extends the current block (short-circuit path) or forks a fresh,
// finer-grained schedule set for every live method (general path).
//
// # Thread Safety
//
// Runtime is not safe for concurrent use. The sole ordering guarantee it
// depends on is that the external scheduler never lets two callbacks
// overlap; see [WithReentrancyGuard] for an optional, off-by-default check
// of that exact invariant, intended for tests and CI rather than production.
//
// # Execution Model
//
// A run enumerates schedules in order of increasing yield count: first every
// two-block placement, then every three-block placement, and so on, until
// every method's instrumentation points are exhausted or the scheduler is
// stopped. See [Schedule] for the data model and [GenerateSchedules] for how
// a given yield count's schedule set is generated.
//
// # Non-goals
//
// This package is not a model checker: it replays one interleaving per run,
// it does not search for races, and it offers no isolation beyond what the
// external scheduler already provides. The JIT code generator, the managed
// scheduler's own threading implementation, the instruction-offset
// symbolizer, and debug/trace I/O transport are all modeled purely as the
// interfaces this package requires of them.
package heisen

// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

// Scheduler is the external cooperative scheduler's contract with this
// package. Yield suspends the current logical task at a placed yield point,
// handing control to whatever the scheduler decides to run next; Stop ends
// the run once every method's schedule space is exhausted; ForceRestart
// re-enters the run after the branch-snapshot manager has specialized one
// or more methods' schedule sets.
//
// Implementations are never called concurrently by this package; see
// doc.go's "Thread Safety" section.
type Scheduler interface {
	Yield()
	Stop()
	ForceRestart()
}

// SchedulerLocator resolves a Scheduler lazily, by whatever name or handle
// the host environment uses (the managed scheduler's assembly/type/method
// triple, in the system this package reimagines). Resolution is attempted
// at most once per Runtime; a locator that returns ok == false is never
// retried, and every subsequent FirstVisit call fails fast with
// ErrMissingScheduler; Fast then has no generated schedule to drive and
// returns nil.
type SchedulerLocator func() (Scheduler, bool)

// schedulerOf always succeeds, for callers that already hold a concrete
// Scheduler.
func schedulerOf(s Scheduler) SchedulerLocator {
	return func() (Scheduler, bool) { return s, s != nil }
}

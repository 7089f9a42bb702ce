// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

import (
	catrate "github.com/joeycumines/go-catrate"
)

// Runtime is the process-wide context object for one enumeration run: the
// method registry, the outer yield count, the next method index, and the
// execution-flow sequence that used to be file-scope globals in the system
// this package reimagines (see SPEC_FULL.md §3). Construct one with
// NewRuntime; it is not safe for concurrent use.
type Runtime struct {
	registry *Registry
	flow     executionFlow

	y               int
	nextMethodIndex int

	enabled      bool
	totalMethods int

	logger       Logger
	symbolLookup SymbolLookup

	schedulerLocator SchedulerLocator
	scheduler        Scheduler
	schedulerMissing bool // resolution was attempted and failed; don't retry

	guard        *reentrancyGuard
	guardEnabled bool

	graphWriter   GraphWriter
	graphFileName string
	rateLimiter   *catrate.Limiter
}

// NewRuntime constructs a Runtime from the given options. See options.go
// for the full set of available Option values.
func NewRuntime(opts ...Option) (*Runtime, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		registry:         NewRegistry(),
		enabled:          cfg.enabled,
		totalMethods:     cfg.totalMethods,
		logger:           cfg.logger,
		symbolLookup:     cfg.symbolLookup,
		schedulerLocator: cfg.schedulerLocator,
		guard:            &reentrancyGuard{},
		guardEnabled:     cfg.reentrancyGuard,
		graphWriter:      cfg.graphWriter,
		graphFileName:    cfg.graphFileName,
	}
	if len(cfg.rateLimiterRates) > 0 {
		rt.rateLimiter = catrate.NewLimiter(cfg.rateLimiterRates)
	}
	return rt, nil
}

// Registry returns this Runtime's method registry, for the JIT contract
// (LookupOrCreate, RecordInstrPoint, RecordBranchSite, ClearBranchSite).
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Enable turns on enumeration, mirroring the native
// mono_enable_hijack_code control hook (SPEC_FULL §6.1).
func (rt *Runtime) Enable() { rt.enabled = true }

// Disable turns off enumeration; FirstVisit and Fast become no-ops until
// Enable is called again.
func (rt *Runtime) Disable() { rt.enabled = false }

// SetTotalMethods updates the expected total method count, mirroring the
// native mono_hijack_set_total_method_count control hook.
func (rt *Runtime) SetTotalMethods(n int) { rt.totalMethods = n }

// Reset clears every method's live enumeration state and the execution-flow
// sequence, restarting enumeration from scratch on the next FirstVisit.
// Instrumentation-point counts and identities already registered survive a
// reset. This is what a Scheduler.Stop callback should trigger before a
// subsequent run, if the caller intends to run the same registry again.
func (rt *Runtime) Reset() {
	rt.registry.reset()
	rt.flow.reset()
	rt.y = 0
	rt.nextMethodIndex = 0
}

func (rt *Runtime) resolveScheduler() (Scheduler, error) {
	if rt.scheduler != nil {
		return rt.scheduler, nil
	}
	if rt.schedulerMissing {
		return nil, WrapError(ErrKindMissingScheduler, nil, ErrMissingScheduler)
	}
	if rt.schedulerLocator == nil {
		rt.schedulerMissing = true
		rt.logf(LevelError, nil, "no scheduler locator configured", nil, nil)
		return nil, WrapError(ErrKindMissingScheduler, nil, ErrMissingScheduler)
	}
	s, ok := rt.schedulerLocator()
	if !ok || s == nil {
		rt.schedulerMissing = true
		rt.logf(LevelError, nil, "scheduler locator failed to resolve a scheduler", nil, nil)
		return nil, WrapError(ErrKindMissingScheduler, nil, ErrMissingScheduler)
	}
	rt.scheduler = s
	return s, nil
}

func (rt *Runtime) neighbourCount(m *MethodRecord) int {
	if m.neighbourCount != -1 {
		return m.neighbourCount
	}
	product := 1
	for _, n := range rt.registry.liveMethods() {
		if n.methodIndex > m.methodIndex {
			product *= len(n.schedules[rt.y])
		}
	}
	m.neighbourCount = product
	return product
}

// rateLimitAllow reports whether a graph dump should actually be written
// right now, per WithRateLimiter. With no rate limiter configured every
// call is allowed.
func (rt *Runtime) rateLimitAllow() bool {
	if rt.rateLimiter == nil {
		return true
	}
	_, ok := rt.rateLimiter.Allow("interleaving-dump")
	return ok
}

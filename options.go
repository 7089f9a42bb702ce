// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package heisen

import "time"

// runtimeOptions holds configuration gathered from Option values before a
// Runtime is constructed.
type runtimeOptions struct {
	enabled          bool
	totalMethods     int
	logger           Logger
	graphWriter      GraphWriter
	reentrancyGuard  bool
	rateLimiterRates map[time.Duration]int
	schedulerLocator SchedulerLocator
	symbolLookup     SymbolLookup
	graphFileName    string
}

// Option configures a Runtime at construction time.
type Option interface {
	applyRuntime(*runtimeOptions) error
}

// optionImpl implements Option via a closure, the usual functional-options
// shape.
type optionImpl struct {
	fn func(*runtimeOptions) error
}

func (o *optionImpl) applyRuntime(opts *runtimeOptions) error { return o.fn(opts) }

// WithEnabled sets whether the runtime starts enabled. Corresponds to the
// native "enable hijack code" control hook (SPEC_FULL §6.1); a disabled
// runtime's FirstVisit/Fast calls are no-ops.
func WithEnabled(enabled bool) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.enabled = enabled
		return nil
	}}
}

// WithTotalMethods sets the expected total method count up front, matching
// the native "set total method count" control hook. Optional: the registry
// grows to fit however many distinct methods it actually sees regardless of
// this hint.
func WithTotalMethods(n int) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.totalMethods = n
		return nil
	}}
}

// WithLogger installs a Logger for this Runtime only, overriding the
// package-level default installed via SetLogger.
func WithLogger(logger Logger) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.logger = logger
		return nil
	}}
}

// WithGraphWriter installs the diagnostic graph emitter's output target,
// used by Runtime.DumpCurrentInterleaving in place of the fixed graph file.
func WithGraphWriter(w GraphWriter) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.graphWriter = w
		return nil
	}}
}

// WithGraphFileName overrides the fixed working-directory filename that
// Runtime.DumpCurrentInterleaving writes to when no GraphWriter is
// configured. Defaults to "heisen-interleaving.dot".
func WithGraphFileName(name string) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.graphFileName = name
		return nil
	}}
}

// WithReentrancyGuard enables the optional goroutine-overlap check
// described in reentrancy.go. Disabled by default.
func WithReentrancyGuard(enabled bool) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.reentrancyGuard = enabled
		return nil
	}}
}

// WithRateLimiter bounds how often Runtime.DumpCurrentInterleaving actually
// renders and writes a graph (to the GraphWriter or the graph file), per the
// rates map (see
// github.com/joeycumines/go-catrate's Limiter for the exact semantics of
// the window->max-count map). Without this option every call writes.
func WithRateLimiter(rates map[time.Duration]int) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.rateLimiterRates = rates
		return nil
	}}
}

// WithSchedulerLocator installs how this Runtime resolves its Scheduler.
func WithSchedulerLocator(locator SchedulerLocator) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.schedulerLocator = locator
		return nil
	}}
}

// WithScheduler is a convenience for WithSchedulerLocator wrapping a
// Scheduler that is already known.
func WithScheduler(s Scheduler) Option {
	return WithSchedulerLocator(schedulerOf(s))
}

// WithSymbolLookup installs the symbolizer the diagnostic graph emitter
// uses to annotate instrumentation points with source locations.
func WithSymbolLookup(lookup SymbolLookup) Option {
	return &optionImpl{func(o *runtimeOptions) error {
		o.symbolLookup = lookup
		return nil
	}}
}

// resolveOptions applies opts in order, skipping nil entries, starting from
// this package's defaults.
func resolveOptions(opts []Option) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		enabled:       true,
		logger:        getDefaultLogger(),
		graphFileName: "heisen-interleaving.dot",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

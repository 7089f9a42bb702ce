// Copyright 2026 The Goheisen Authors
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package logwire bridges heisen's own Logger facade to a concrete
// structured-logging backend built from github.com/joeycumines/logiface and
// github.com/joeycumines/stumpy, wired together almost exactly the way the
// logiface-stumpy example does:
//
//	logger := stumpy.L.New(
//		stumpy.L.WithStumpy(stumpy.WithTimeField(``)),
//		stumpy.L.WithWriter(writer),
//	)
//	logger.Info().Str(`field`, `value`).Log(`message`)
//
// This package imports heisen to implement its Logger interface; heisen
// itself never imports logwire, so wiring the two together (SetLogger or
// WithLogger) is left to callers. See example_test.go at the module root.
package logwire

import (
	"fmt"
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	heisen "github.com/heisenbug/goheisen"
)

// adapter implements heisen.Logger over a *logiface.Logger[*stumpy.Event].
type adapter struct {
	logger   *logiface.Logger[*stumpy.Event]
	minLevel logiface.Level
}

// New returns a heisen.Logger that writes newline-delimited JSON records to
// w via stumpy, one per LogEntry.
func New(w io.Writer) heisen.Logger {
	return newAdapter(w)
}

func newAdapter(w io.Writer) *adapter {
	return &adapter{
		logger: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithTimeField(``)),
			stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
				_, err := w.Write(append(e.Bytes(), '\n'))
				return err
			})),
		),
		minLevel: logiface.LevelDebug,
	}
}

func (a *adapter) IsEnabled(level heisen.Level) bool {
	return toLogifaceLevel(level) <= a.minLevel
}

func (a *adapter) Log(entry heisen.LogEntry) {
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Method != nil {
		b = b.Call(func(b *logiface.Builder[*stumpy.Event]) {
			b.Str("method", toString(entry.Method))
		})
	}
	if entry.Err != nil {
		b = b.Call(func(b *logiface.Builder[*stumpy.Event]) {
			b.Err(entry.Err)
		})
	}
	for k, v := range entry.Fields {
		k, v := k, v
		b = b.Call(func(b *logiface.Builder[*stumpy.Event]) {
			b.Str(k, toString(v))
		})
	}
	b.Log(entry.Message)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toLogifaceLevel(l heisen.Level) logiface.Level {
	switch l {
	case heisen.LevelDebug:
		return logiface.LevelDebug
	case heisen.LevelInfo:
		return logiface.LevelInformational
	case heisen.LevelWarn:
		return logiface.LevelWarning
	case heisen.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

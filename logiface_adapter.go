// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactivecell

import (
	"github.com/joeycumines/logiface"
)

// logifaceEvent is a minimal logiface.Event implementation: it just
// accumulates the fields and message logiface hands it, for a Writer to
// later translate into a LogEntry.
type logifaceEvent struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	err     error
	fields  map[string]any
}

func (e *logifaceEvent) Level() logiface.Level { return e.level }

func (e *logifaceEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func (e *logifaceEvent) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func (e *logifaceEvent) AddError(err error) bool {
	e.err = err
	return true
}

// newLogifaceEvent is a logiface.EventFactory for logifaceEvent.
func newLogifaceEvent(level logiface.Level) *logifaceEvent {
	return &logifaceEvent{level: level}
}

// logLevelToLogiface maps this package's LogLevel to logiface's syslog-style
// Level, per the mapping recommended by logiface.Level's own doc comment.
func logLevelToLogiface(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// logifaceToLogLevel maps a logiface.Level back to this package's LogLevel,
// for the IsEnabled side of the adapter.
func logifaceToLogLevel(level logiface.Level) LogLevel {
	switch {
	case level >= logiface.LevelDebug:
		return LevelDebug
	case level >= logiface.LevelNotice:
		return LevelInfo
	case level >= logiface.LevelWarning:
		return LevelWarn
	default:
		return LevelError
	}
}

// LogifaceLogger adapts a *logiface.Logger[E] into this package's Logger
// interface, so engines can be built on the same structured-logging facade
// as zerolog, logrus, or any other logiface-backed implementation rather
// than the built-in DefaultLogger.
type LogifaceLogger[E logiface.Event] struct {
	logger *logiface.Logger[E]
}

// NewLogifaceLogger wraps an existing *logiface.Logger[E] for use as this
// package's Logger.
func NewLogifaceLogger[E logiface.Event](logger *logiface.Logger[E]) *LogifaceLogger[E] {
	return &LogifaceLogger[E]{logger: logger}
}

func (l *LogifaceLogger[E]) IsEnabled(level LogLevel) bool {
	return l.logger.Level().Enabled() && logLevelToLogiface(level) <= l.logger.Level()
}

// Log builds and emits a logiface event for entry, carrying over its
// category, message, error and context fields as logiface fields.
func (l *LogifaceLogger[E]) Log(entry LogEntry) {
	b := l.logger.Build(logLevelToLogiface(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.EngineID != 0 {
		b = b.Int64("engine_id", entry.EngineID)
	}
	if entry.QueueID != "" {
		b = b.Str("queue_id", entry.QueueID)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}

// NewLogifaceEventLogger builds a ready-to-use logiface.Logger[*logifaceEvent]
// backed by writer, at the given minimum level, and wraps it as this
// package's Logger. This is the simplest way to exercise logiface from an
// Engine without hand-rolling an Event implementation.
func NewLogifaceEventLogger(level LogLevel, writer logiface.Writer[*logifaceEvent]) *LogifaceLogger[*logifaceEvent] {
	logger := logiface.New[*logifaceEvent](
		logiface.WithEventFactory[*logifaceEvent](logiface.EventFactoryFunc[*logifaceEvent](newLogifaceEvent)),
		logiface.WithWriter[*logifaceEvent](writer),
		logiface.WithLevel[*logifaceEvent](logLevelToLogiface(level)),
	)
	return NewLogifaceLogger[*logifaceEvent](logger)
}

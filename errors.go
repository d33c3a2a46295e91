package reactivecell

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by Cell operations. Callers should use
// [errors.Is] rather than comparing these directly, since some paths
// surface them wrapped (ClockTagError carries the offending tag around
// ErrUnknownClockTag, and callers may layer [WrapError] on top).
var (
	// ErrAlreadySubscribed is returned by Cell.Subscribe when the given
	// subscriber already holds a link (sync or async) on the cell.
	ErrAlreadySubscribed = errors.New("reactivecell: subscriber already subscribed to this cell")

	// ErrNotSubscribed is returned by Cell.Unsubscribe when the given
	// subscriber holds no link on the cell.
	ErrNotSubscribed = errors.New("reactivecell: subscriber is not subscribed to this cell")

	// ErrUnknownClockTag is returned by Cell.Subscribe when the requested
	// clock tag is not one of the closed set of supported tags.
	ErrUnknownClockTag = errors.New("reactivecell: unknown clock tag")
)

// ClockTagError wraps ErrUnknownClockTag with the offending tag, so callers
// can report it without losing errors.Is(err, ErrUnknownClockTag) matching.
type ClockTagError struct {
	Tag string
}

// Error implements the error interface.
func (e *ClockTagError) Error() string {
	return fmt.Sprintf("reactivecell: unknown clock tag %q", e.Tag)
}

// Unwrap returns ErrUnknownClockTag, for use with [errors.Is].
func (e *ClockTagError) Unwrap() error {
	return ErrUnknownClockTag
}

// PanicError wraps a value recovered from a panicking subscriber callback.
// The core never swallows a callback panic (see Cell.notify's failure
// semantics): it is re-raised, wrapped in PanicError, to whichever
// goroutine is synchronously waiting on the triggering call (Set, Update,
// Subscribe, ...). Panics triggered from a background clock firing (no
// synchronous caller to propagate to) are instead logged and contained, so
// that one faulty subscriber cannot wedge the engine for every other cell.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("reactivecell: subscriber callback panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// enabling errors.Is/errors.As through the cause chain. Returns nil if the
// panic value was not an error (e.g. a string).
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TypeError reports that a value passed to the API was not of the expected
// shape (e.g. a malformed subscribe-option grammar value).
type TypeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Message == "" {
		return "type error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TypeError) Unwrap() error {
	return e.Cause
}

// RangeError reports that a numeric argument (e.g. a negative timeout) fell
// outside its accepted range.
type RangeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// WrapError wraps an error with a message, preserving errors.Is matching
// against cause.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}

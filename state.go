package reactivecell

import (
	"sync/atomic"
)

// EngineState represents the current lifecycle state of an Engine's single
// loop goroutine.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)          [loop goroutine starts]
//	StateRunning (3) → StateSleeping (2)       [blocked on select]
//	StateRunning (3) → StateTerminating (4)    [Shutdown()]
//	StateSleeping (2) → StateRunning (3)       [woken by submitted work]
//	StateSleeping (2) → StateTerminating (4)   [Shutdown()]
//	StateTerminating (4) → StateTerminated (1) [shutdown complete]
//	StateTerminated (1) → (terminal)
//
// Every Running/Sleeping/Terminated transition is written by the engine's
// own loop goroutine alone (loop.go); Shutdown writes StateTerminating from
// whatever goroutine called it. Since the loop goroutine is the sole writer
// of every state but one, and that one (StateTerminating) only ever
// precedes loop's own terminal write, a plain Store is sufficient — nothing
// here arbitrates between competing writers the way a CAS would. FastState
// exists for lock-free, cache-line-isolated reads from arbitrary caller
// goroutines (IsRunning, CanAcceptWork), not to referee writers.
//
// NOTE: state values are intentionally ordered to match the numbering used
// by the scheduler this was adapted from (Terminated=1, Sleeping=2).
type EngineState uint64

const (
	// StateAwake indicates the engine has been created but its loop
	// goroutine has not yet started.
	StateAwake EngineState = 0
	// StateTerminated indicates the engine has been stopped and is fully
	// shut down.
	StateTerminated EngineState = 1
	// StateSleeping indicates the loop goroutine is blocked waiting for
	// submitted work or a scheduled clock firing.
	StateSleeping EngineState = 2
	// StateRunning indicates the loop goroutine is actively executing a
	// submitted task (a Cell operation, a queue drain, a checkpoint).
	StateRunning EngineState = 3
	// StateTerminating indicates Shutdown has been requested but has not
	// yet completed.
	StateTerminating EngineState = 4
)

// String returns a human-readable representation of the state.
func (s EngineState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state holder with cache-line padding.
//
// PERFORMANCE: Plain atomic load/store, no mutex. Cache-line padding
// prevents false sharing between cores, since Engine.state is read on every
// Cell operation from whichever goroutine is calling in.
type FastState struct { // betteralign:ignore
	_ [64]byte      // Cache line padding (before value) //nolint:unused
	v atomic.Uint64 // State value
	_ [56]byte      // Pad to complete cache line (64 - 8 = 56) //nolint:unused
}

// NewFastState creates a new state machine in the Awake state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() EngineState {
	return EngineState(s.v.Load())
}

// Store atomically stores a new state.
func (s *FastState) Store(state EngineState) {
	s.v.Store(uint64(state))
}

// IsTerminal returns true if the current state is terminal (Terminated).
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// IsRunning returns true if the engine's loop goroutine is alive (running
// or sleeping between tasks).
func (s *FastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}

// CanAcceptWork returns true if the engine can accept new work.
func (s *FastState) CanAcceptWork() bool {
	state := s.Load()
	return state == StateAwake || state == StateRunning || state == StateSleeping
}

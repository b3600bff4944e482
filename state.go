// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"sync/atomic"
)

// State represents the lifecycle state of a Looper.
//
// State Machine:
//
//	StateCreated → StateRunning          [worker thread started]
//	StateRunning → StateStopRequested    [Shutdown / Close]
//	StateStopRequested → StateStopped    [worker exited, queue drained]
//	StateCreated → StateStopped          [worker failed to start]
//	StateStopped → (terminal)
//
// Transitions are made while holding the looper mutex, and published
// atomically so State may be read without it.
type State uint32

const (
	// StateCreated indicates the looper is being constructed, and its worker
	// has not yet acknowledged startup.
	StateCreated State = iota
	// StateRunning indicates the looper accepts and dispatches messages.
	StateRunning
	// StateStopRequested indicates shutdown has been requested. Posts are
	// dropped, and the worker exits on its next iteration.
	StateStopRequested
	// StateStopped indicates the worker has exited and the queue is drained.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateStopRequested:
		return "StopRequested"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// stateValue is an atomically published State.
type stateValue struct {
	v atomic.Uint32
}

func (s *stateValue) Load() State {
	return State(s.v.Load())
}

func (s *stateValue) Store(state State) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *stateValue) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsRunning reports whether the looper accepts work.
func (s *stateValue) IsRunning() bool {
	return s.Load() == StateRunning
}

// IsTerminal reports whether the looper has fully stopped.
func (s *stateValue) IsTerminal() bool {
	return s.Load() == StateStopped
}

// Copyright (C) 2017 ScyllaDB

package fsm

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrTransitionRejected is the error returned when the state machine can't
// move to the requested state from the state it is in.
var ErrTransitionRejected = errors.New("transition rejected")

// State represents an extensible state type in the state machine.
type State string

// Transitions maps a state to the states that can be entered from it.
type Transitions map[State][]State

// Hook is called before each accepted transition. An error rejects the transition.
type Hook func(from, to State) error

// StateMachine validates state changes against a fixed transition table.
// It is safe for concurrent use.
type StateMachine struct {
	lock sync.RWMutex

	current     State
	transitions Transitions
	hook        Hook
}

// New returns initialized state machine.
func New(initial State, transitions Transitions, hook Hook) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: transitions,
		hook:        hook,
	}
}

func (s *StateMachine) allowed(from, to State) bool {
	for _, next := range s.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the machine to state to.
func (s *StateMachine) Transition(to State) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	from := s.current
	if !s.allowed(from, to) {
		return errors.Wrapf(ErrTransitionRejected, "%q -> %q", from, to)
	}

	if s.hook != nil {
		if err := s.hook(from, to); err != nil {
			return errors.Wrapf(err, "hook rejected %q -> %q", from, to)
		}
	}

	s.current = to

	return nil
}

// Current return current state machine state.
func (s *StateMachine) Current() State {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.current
}

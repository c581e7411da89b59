package lifecycle

import (
	"fmt"
	"sync"
)

// State is one of the ten states an instance moves through
type State string

const (
	StateCreated      State = "created"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateInUse        State = "in_use"
	StateIdle         State = "idle"
	StateMaintenance  State = "maintenance"
	StateDraining     State = "draining"
	StateCleanup      State = "cleanup"
	StateTerminated   State = "terminated"
	StateFailed       State = "failed"
)

// transitions enumerates every legal state change. Anything not listed
// is rejected with InvalidTransitionError.
var transitions = map[State][]State{
	StateCreated:      {StateInitializing, StateFailed},
	StateInitializing: {StateReady, StateFailed},
	StateReady:        {StateInUse, StateIdle, StateMaintenance, StateDraining, StateCleanup, StateFailed},
	StateInUse:        {StateReady, StateIdle, StateDraining, StateCleanup, StateFailed},
	StateIdle:         {StateReady, StateInUse, StateMaintenance, StateDraining, StateCleanup, StateFailed},
	StateMaintenance:  {StateReady, StateIdle, StateCleanup, StateFailed},
	StateDraining:     {StateCleanup, StateTerminated, StateFailed},
	StateCleanup:      {StateTerminated, StateFailed},
	// Failed is terminal for acquisition but a failed instance can
	// still be reclaimed
	StateFailed:     {StateCleanup, StateTerminated},
	StateTerminated: {},
}

// InvalidTransitionError reports a rejected state change
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition: %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is a legal state change
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Available reports whether a state is eligible for acquisition. Ready
// and Idle are the only available states.
func Available(s State) bool {
	return s == StateReady || s == StateIdle
}

// Terminal reports whether a state permits no further transitions
func Terminal(s State) bool {
	return s == StateTerminated
}

// Machine tracks the lifecycle of a single instance. Safe for
// concurrent use.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a machine in the Created state
func NewMachine() *Machine {
	return &Machine{state: StateCreated}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TransitionTo moves the machine to the target state, rejecting
// anything not in the transition table
func (m *Machine) TransitionTo(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, to) {
		return &InvalidTransitionError{From: m.state, To: to}
	}
	m.state = to
	return nil
}

// TryTransition moves from an expected state to a target state in one
// atomic step. It fails if the machine is not in the expected state.
// This is what prevents a caller from reusing an instance mid-cleanup.
func (m *Machine) TryTransition(from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != from {
		return &InvalidTransitionError{From: m.state, To: to}
	}
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	m.state = to
	return nil
}

// Available reports whether the instance may currently be handed out
func (m *Machine) Available() bool {
	return Available(m.State())
}

package mission

import (
	"fmt"
	"sync"
)

// State is the mission lifecycle. Completed, Aborted and Failed are terminal.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateArmed
	StateInFlight
	StateLanding
	StateCompleted
	StateAborted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "IDLE",
	StateConnecting: "CONNECTING",
	StateArmed:      "ARMED",
	StateInFlight:   "IN_FLIGHT",
	StateLanding:    "LANDING",
	StateCompleted:  "COMPLETED",
	StateAborted:    "ABORTED",
	StateFailed:     "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether the mission lifecycle can advance any further.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// Event is a lifecycle trigger observed by the orchestrator.
type Event int

const (
	EventSessionOpened Event = iota
	EventArmConfirmed
	EventTakeoffCompleted
	EventLandingStarted
	EventDisarmConfirmed
	EventSafetyAbort
	EventProtocolFailure
)

var eventNames = map[Event]string{
	EventSessionOpened:    "session_opened",
	EventArmConfirmed:     "arm_confirmed",
	EventTakeoffCompleted: "takeoff_completed",
	EventLandingStarted:   "landing_started",
	EventDisarmConfirmed:  "disarm_confirmed",
	EventSafetyAbort:      "safety_abort",
	EventProtocolFailure:  "protocol_failure",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown_event"
}

// transitions is the full lifecycle table. Terminal states have no entry, so
// every event out of them is illegal by construction.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventSessionOpened:   StateConnecting,
		EventSafetyAbort:     StateAborted,
		EventProtocolFailure: StateFailed,
	},
	StateConnecting: {
		EventArmConfirmed:    StateArmed,
		EventSafetyAbort:     StateAborted,
		EventProtocolFailure: StateFailed,
	},
	StateArmed: {
		EventTakeoffCompleted: StateInFlight,
		EventLandingStarted:   StateLanding,
		EventSafetyAbort:      StateAborted,
		EventProtocolFailure:  StateFailed,
	},
	StateInFlight: {
		EventLandingStarted:  StateLanding,
		EventSafetyAbort:     StateAborted,
		EventProtocolFailure: StateFailed,
	},
	StateLanding: {
		EventDisarmConfirmed: StateCompleted,
		EventSafetyAbort:     StateAborted,
		EventProtocolFailure: StateFailed,
	},
}

// IllegalTransition reports an event that has no defined transition out of
// the current state. The state is left untouched when it is returned.
type IllegalTransition struct {
	From  State
	Event Event
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition: no %s out of %s", e.Event, e.From)
}

// Machine owns the single long-lived mutable mission state. One instance per
// mission; independent missions get independent machines.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition applies an event. Illegal transitions are rejected, never
// coerced: the error is returned and the state does not change.
func (m *Machine) Transition(ev Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.state][ev]
	if !ok {
		return m.state, &IllegalTransition{From: m.state, Event: ev}
	}
	m.state = next
	return next, nil
}

package mission

import (
	"errors"
	"sync"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	testCases := []struct {
		name      string
		events    []Event
		wantState State
	}{
		{
			name:      "Session open moves Idle to Connecting",
			events:    []Event{EventSessionOpened},
			wantState: StateConnecting,
		},
		{
			name:      "Full nominal mission ends Completed",
			events:    []Event{EventSessionOpened, EventArmConfirmed, EventTakeoffCompleted, EventLandingStarted, EventDisarmConfirmed},
			wantState: StateCompleted,
		},
		{
			name:      "Land before takeoff is legal from Armed",
			events:    []Event{EventSessionOpened, EventArmConfirmed, EventLandingStarted},
			wantState: StateLanding,
		},
		{
			name:      "Safety abort from InFlight",
			events:    []Event{EventSessionOpened, EventArmConfirmed, EventTakeoffCompleted, EventSafetyAbort},
			wantState: StateAborted,
		},
		{
			name:      "Protocol failure from Connecting",
			events:    []Event{EventSessionOpened, EventProtocolFailure},
			wantState: StateFailed,
		},
		{
			name:      "Safety abort before session open",
			events:    []Event{EventSafetyAbort},
			wantState: StateAborted,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine()
			for _, ev := range tc.events {
				if _, err := m.Transition(ev); err != nil {
					t.Fatalf("Transition(%s) failed: %v", ev, err)
				}
			}
			if got := m.State(); got != tc.wantState {
				t.Errorf("Expected state %s, got %s", tc.wantState, got)
			}
		})
	}
}

func TestIllegalTransitionsDoNotMutate(t *testing.T) {
	testCases := []struct {
		name   string
		events []Event // setup, all must succeed
		try    Event
	}{
		{
			name:   "Arm before session open",
			events: nil,
			try:    EventArmConfirmed,
		},
		{
			name:   "Takeoff while Connecting",
			events: []Event{EventSessionOpened},
			try:    EventTakeoffCompleted,
		},
		{
			name:   "Completed is terminal",
			events: []Event{EventSessionOpened, EventArmConfirmed, EventTakeoffCompleted, EventLandingStarted, EventDisarmConfirmed},
			try:    EventTakeoffCompleted,
		},
		{
			name:   "Aborted is terminal",
			events: []Event{EventSafetyAbort},
			try:    EventSessionOpened,
		},
		{
			name:   "Failed is terminal even for safety abort",
			events: []Event{EventProtocolFailure},
			try:    EventSafetyAbort,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine()
			for _, ev := range tc.events {
				if _, err := m.Transition(ev); err != nil {
					t.Fatalf("setup Transition(%s) failed: %v", ev, err)
				}
			}
			before := m.State()

			_, err := m.Transition(tc.try)
			if err == nil {
				t.Fatalf("Expected illegal transition error for %s out of %s", tc.try, before)
			}
			var illegal *IllegalTransition
			if !errors.As(err, &illegal) {
				t.Fatalf("Expected *IllegalTransition, got %T", err)
			}
			if illegal.From != before || illegal.Event != tc.try {
				t.Errorf("Error carries wrong context: %v", illegal)
			}
			if got := m.State(); got != before {
				t.Errorf("Illegal transition mutated state: %s -> %s", before, got)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for s, terminal := range map[State]bool{
		StateIdle:       false,
		StateConnecting: false,
		StateArmed:      false,
		StateInFlight:   false,
		StateLanding:    false,
		StateCompleted:  true,
		StateAborted:    true,
		StateFailed:     true,
	} {
		if s.Terminal() != terminal {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), terminal)
		}
	}
}

// Independent machines must not share state, so tests (and callers) can run
// missions concurrently.
func TestMachinesAreIndependent(t *testing.T) {
	var wg sync.WaitGroup
	machines := make([]*Machine, 8)
	for i := range machines {
		machines[i] = NewMachine()
	}
	for i, m := range machines {
		wg.Add(1)
		go func(i int, m *Machine) {
			defer wg.Done()
			if _, err := m.Transition(EventSessionOpened); err != nil {
				t.Errorf("machine %d: %v", i, err)
			}
			if i%2 == 0 {
				if _, err := m.Transition(EventSafetyAbort); err != nil {
					t.Errorf("machine %d: %v", i, err)
				}
			}
		}(i, m)
	}
	wg.Wait()

	for i, m := range machines {
		want := StateConnecting
		if i%2 == 0 {
			want = StateAborted
		}
		if got := m.State(); got != want {
			t.Errorf("machine %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestParseActionKind(t *testing.T) {
	for k := ActionArm; k <= ActionDisarm; k++ {
		got, ok := ParseActionKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseActionKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseActionKind("teleport"); ok {
		t.Error("ParseActionKind accepted an unknown action name")
	}
}

package mission

import "time"

// CommandState tracks the lifecycle of one dispatched command.
type CommandState int

const (
	CommandPending CommandState = iota
	CommandAcked
	CommandCompleted
	CommandFailed
	CommandTimedOut
)

var commandStateNames = map[CommandState]string{
	CommandPending:   "PENDING",
	CommandAcked:     "ACKED",
	CommandCompleted: "COMPLETED",
	CommandFailed:    "FAILED",
	CommandTimedOut:  "TIMED_OUT",
}

func (s CommandState) String() string {
	if name, ok := commandStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether the command reached a final state.
func (s CommandState) Terminal() bool {
	return s == CommandCompleted || s == CommandFailed || s == CommandTimedOut
}

// Command is the wire-level translation of an Action. Everything but State is
// immutable after creation; State advances only along the dispatch path.
type Command struct {
	CorrelationID string
	Action        Action
	IssuedAt      time.Time
	State         CommandState
}

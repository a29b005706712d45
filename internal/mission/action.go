package mission

import "fmt"

// ActionKind enumerates every high-level action the vehicle accepts. The set
// is closed: the decision agent and the safety monitor are the only producers,
// and the orchestrator matches exhaustively over it.
type ActionKind int

const (
	ActionArm ActionKind = iota
	ActionTakeoff
	ActionGoto
	ActionLoiter
	ActionLand
	ActionReturnToLaunch
	ActionDisarm
)

var actionNames = map[ActionKind]string{
	ActionArm:            "arm",
	ActionTakeoff:        "takeoff",
	ActionGoto:           "goto",
	ActionLoiter:         "loiter",
	ActionLand:           "land",
	ActionReturnToLaunch: "return_to_launch",
	ActionDisarm:         "disarm",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// ParseActionKind maps a wire/agent action name back to its kind.
func ParseActionKind(name string) (ActionKind, bool) {
	for k, n := range actionNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Action is a single high-level directive plus its parameters. AltM is used
// by takeoff and goto; Lat/Lon only by goto.
type Action struct {
	Kind ActionKind
	Lat  float64
	Lon  float64
	AltM float64
}

func Arm() Action                 { return Action{Kind: ActionArm} }
func Takeoff(altM float64) Action { return Action{Kind: ActionTakeoff, AltM: altM} }
func Loiter() Action              { return Action{Kind: ActionLoiter} }
func Land() Action                { return Action{Kind: ActionLand} }
func ReturnToLaunch() Action      { return Action{Kind: ActionReturnToLaunch} }
func Disarm() Action              { return Action{Kind: ActionDisarm} }

func Goto(lat, lon, altM float64) Action {
	return Action{Kind: ActionGoto, Lat: lat, Lon: lon, AltM: altM}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionTakeoff:
		return fmt.Sprintf("takeoff(alt=%.1fm)", a.AltM)
	case ActionGoto:
		return fmt.Sprintf("goto(%.6f, %.6f, alt=%.1fm)", a.Lat, a.Lon, a.AltM)
	default:
		return a.Kind.String()
	}
}

// Waypoint is one point of a scripted mission plan.
type Waypoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	AltM float64 `json:"alt_m"`
}

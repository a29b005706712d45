package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"mcp-pilot/internal/mission"
)

// decision is the strict JSON shape both LLM backends must produce. Lat and
// Lon are pointers so an absent coordinate is distinguishable from 0.
type decision struct {
	Action string   `json:"action"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	AltM   float64  `json:"alt_m,omitempty"`
}

func buildPrompt(obs Observation) string {
	var sb strings.Builder

	sb.WriteString("You are the decision module of an autonomous UAV pilot. Choose exactly ONE next action.\n")
	sb.WriteString("Respond ONLY with strict JSON. No extra text.\n\n")

	sb.WriteString("OUTPUT JSON SCHEMA:\n")
	sb.WriteString("{\"action\": \"<string>\", \"lat\": <number>, \"lon\": <number>, \"alt_m\": <number>}\n\n")

	sb.WriteString("AVAILABLE ACTIONS:\n")
	sb.WriteString("- `arm`: arm the vehicle. No parameters.\n")
	sb.WriteString("- `takeoff`: take off to alt_m meters. Requires alt_m.\n")
	sb.WriteString("- `goto`: fly to lat/lon at alt_m. Requires lat, lon, alt_m.\n")
	sb.WriteString("- `loiter`: hold the current position. No parameters.\n")
	sb.WriteString("- `land`: land at the current position. No parameters.\n")
	sb.WriteString("- `return_to_launch`: fly back to the launch point and land. No parameters.\n")
	sb.WriteString("- `disarm`: disarm after landing. No parameters.\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("1) Arm only from IDLE/CONNECTING, take off only from ARMED, disarm only from LANDING.\n")
	sb.WriteString("2) When the objective is met, land and then disarm.\n")
	sb.WriteString("3) If unsure, answer `loiter`.\n\n")

	sb.WriteString(fmt.Sprintf("MISSION OBJECTIVE: %q\n", obs.Objective))
	sb.WriteString(fmt.Sprintf("MISSION STATE: %s\n", obs.State))
	if obs.HaveTelemetry {
		v := obs.Vehicle
		sb.WriteString(fmt.Sprintf("TELEMETRY: lat=%.6f lon=%.6f alt_m=%.1f battery=%.2f armed=%v mode=%s\n",
			v.Lat, v.Lon, v.AltM, v.Battery, v.Armed, v.Mode))
	} else {
		sb.WriteString("TELEMETRY: none yet\n")
	}
	if obs.LastError != "" {
		sb.WriteString(fmt.Sprintf("PREVIOUS ERROR: %s\n", obs.LastError))
	}
	sb.WriteString("Assistant JSON response: ")

	return sb.String()
}

// parseDecision validates the raw model output against the closed action set.
func parseDecision(raw string) (mission.Action, error) {
	var d decision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &d); err != nil {
		return mission.Action{}, fmt.Errorf("error parsing decision JSON: %v\nRaw Response: %s", err, raw)
	}

	kind, ok := mission.ParseActionKind(strings.ToLower(strings.TrimSpace(d.Action)))
	if !ok {
		return mission.Action{}, fmt.Errorf("decision names unknown action %q", d.Action)
	}

	switch kind {
	case mission.ActionTakeoff:
		if d.AltM <= 0 {
			return mission.Action{}, fmt.Errorf("takeoff decision missing alt_m")
		}
		return mission.Takeoff(d.AltM), nil
	case mission.ActionGoto:
		if d.Lat == nil || d.Lon == nil {
			return mission.Action{}, fmt.Errorf("goto decision missing lat/lon")
		}
		if d.AltM <= 0 {
			return mission.Action{}, fmt.Errorf("goto decision missing alt_m")
		}
		return mission.Goto(*d.Lat, *d.Lon, d.AltM), nil
	default:
		return mission.Action{Kind: kind}, nil
	}
}

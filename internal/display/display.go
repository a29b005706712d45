// Package display renders operator-facing text: telemetry status lines,
// mission plan previews and the end-of-mission report.
package display

import (
	"fmt"
	"strings"

	"mcp-pilot/internal/config"
	"mcp-pilot/internal/telemetry"
)

// FormatTelemetry is the one-line answer to the operator's status command.
func FormatTelemetry(v telemetry.Vehicle, staleness int) string {
	armed := "disarmed"
	if v.Armed {
		armed = "armed"
	}
	line := fmt.Sprintf("pos=(%.6f, %.6f) alt=%.1fm battery=%.0f%% %s mode=%s",
		v.Lat, v.Lon, v.AltM, v.Battery*100, armed, v.Mode)
	if staleness > 0 {
		line += fmt.Sprintf(" (stale, %d missed polls)", staleness)
	}
	return line
}

// FormatMissionPlan previews a loaded plan before the mission starts.
func FormatMissionPlan(plan *config.MissionPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Mission: %s\n", plan.Objective))
	sb.WriteString("--------------------------------------------------\n")
	if len(plan.Waypoints) == 0 {
		sb.WriteString("  (no scripted waypoints, agent decides freely)\n")
	}
	for i, wp := range plan.Waypoints {
		sb.WriteString(fmt.Sprintf("  %2d. (%.6f, %.6f) alt=%.1fm\n", i+1, wp.Lat, wp.Lon, wp.AltM))
	}
	if plan.CruiseAltM > 0 {
		sb.WriteString(fmt.Sprintf("  cruise altitude: %.1fm\n", plan.CruiseAltM))
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

package display

import (
	"strings"
	"testing"
	"time"

	"mcp-pilot/internal/config"
	"mcp-pilot/internal/metrics"
	"mcp-pilot/internal/mission"
	"mcp-pilot/internal/telemetry"
)

func TestFormatTelemetry(t *testing.T) {
	v := telemetry.Vehicle{Lat: 47.397742, Lon: 8.545594, AltM: 30.2, Battery: 0.82, Armed: true, Mode: "AUTO"}

	out := FormatTelemetry(v, 0)
	for _, want := range []string{"47.397742", "8.545594", "alt=30.2m", "battery=82%", "armed", "mode=AUTO"} {
		if !strings.Contains(out, want) {
			t.Errorf("status line %q is missing %q", out, want)
		}
	}
	if strings.Contains(out, "stale") {
		t.Errorf("fresh snapshot marked stale: %q", out)
	}

	out = FormatTelemetry(v, 3)
	if !strings.Contains(out, "stale, 3 missed polls") {
		t.Errorf("stale snapshot not marked: %q", out)
	}
}

func TestFormatMissionPlan(t *testing.T) {
	plan := &config.MissionPlan{
		Objective:  "survey the north field",
		CruiseAltM: 40,
		Waypoints: []mission.Waypoint{
			{Lat: 47.3977, Lon: 8.5456, AltM: 40},
			{Lat: 47.3981, Lon: 8.5462, AltM: 40},
		},
	}

	out := FormatMissionPlan(plan)
	if !strings.Contains(out, "survey the north field") {
		t.Errorf("plan preview is missing the objective: %q", out)
	}
	if !strings.Contains(out, "1. (47.397700, 8.545600)") {
		t.Errorf("plan preview is missing the first waypoint: %q", out)
	}
	if !strings.Contains(out, "cruise altitude: 40.0m") {
		t.Errorf("plan preview is missing the cruise altitude: %q", out)
	}

	empty := FormatMissionPlan(&config.MissionPlan{Objective: "free flight"})
	if !strings.Contains(empty, "agent decides freely") {
		t.Errorf("empty plan preview missing the free-flight note: %q", empty)
	}
}

func TestFormatMissionMetrics(t *testing.T) {
	start := time.Now()
	mm := &metrics.MissionMetrics{
		MissionID:  "ab12",
		Objective:  "survey",
		FinalState: "COMPLETED",
		Cause:      "mission completed",
		Cycles:     5,
		Start:      start,
		End:        start.Add(12 * time.Second),
		Commands: []metrics.CommandMetrics{
			{Action: "arm", Outcome: "COMPLETED", DurationMs: 210},
			{Action: "return_to_launch", Outcome: "COMPLETED", DurationMs: 900, Overridden: true},
			{Action: "goto(47.4, 8.5, alt=30.0m)", Outcome: "FAILED", DurationMs: 40, Err: "REJECTED: out of fence"},
		},
	}
	mm.Finalize()

	out := FormatMissionMetrics(mm)
	for _, want := range []string{
		"Mission ab12: COMPLETED",
		"Cause: mission completed",
		"5 cycles, 3 commands",
		"[agent]",
		"[safety]",
		"REJECTED: out of fence",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report is missing %q:\n%s", want, out)
		}
	}

	if FormatMissionMetrics(nil) != "No mission report available." {
		t.Error("nil metrics should render the placeholder line")
	}
}

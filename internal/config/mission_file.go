package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mcp-pilot/internal/mission"
)

// MissionPlan is the launch-time mission description: the objective handed to
// the decision agent plus an optional waypoint script.
type MissionPlan struct {
	Objective  string             `json:"objective"`
	CruiseAltM float64            `json:"cruise_alt_m"`
	Waypoints  []mission.Waypoint `json:"waypoints"`
}

// LoadMissionPlan reads a mission plan from a JSON file.
func LoadMissionPlan(path string) (*MissionPlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read mission file: %w", err)
	}
	var plan MissionPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("could not parse mission file JSON: %w", err)
	}
	if strings.TrimSpace(plan.Objective) == "" && len(plan.Waypoints) == 0 {
		return nil, fmt.Errorf("mission file %s has neither an objective nor waypoints", path)
	}
	for i, wp := range plan.Waypoints {
		if wp.Lat < -90 || wp.Lat > 90 || wp.Lon < -180 || wp.Lon > 180 {
			return nil, fmt.Errorf("waypoint %d has invalid coordinates (%.6f, %.6f)", i, wp.Lat, wp.Lon)
		}
	}
	return &plan, nil
}

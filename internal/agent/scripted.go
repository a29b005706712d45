package agent

import (
	"context"
	"math"
	"sync"

	"mcp-pilot/internal/mission"
)

const (
	defaultCruiseAltM = 30
	arrivalRadiusM    = 3
)

// scriptedAgent flies a fixed waypoint plan: arm, take off, visit each
// waypoint in order, land, disarm. Deterministic and offline; also the test
// double for the LLM backends.
type scriptedAgent struct {
	waypoints  []mission.Waypoint
	cruiseAltM float64

	mu   sync.Mutex
	next int
}

func newScripted(waypoints []mission.Waypoint, cruiseAltM float64) *scriptedAgent {
	if cruiseAltM <= 0 {
		cruiseAltM = defaultCruiseAltM
	}
	return &scriptedAgent{waypoints: waypoints, cruiseAltM: cruiseAltM}
}

func (s *scriptedAgent) NextAction(ctx context.Context, obs Observation) (mission.Action, error) {
	if err := ctx.Err(); err != nil {
		return mission.Action{}, err
	}

	switch obs.State {
	case mission.StateIdle, mission.StateConnecting:
		return mission.Arm(), nil
	case mission.StateArmed:
		return mission.Takeoff(s.cruiseAltM), nil
	case mission.StateInFlight:
		return s.cruise(obs), nil
	case mission.StateLanding:
		return mission.Disarm(), nil
	default:
		return mission.Loiter(), nil
	}
}

func (s *scriptedAgent) cruise(obs Observation) mission.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Advance past waypoints we have already reached.
	for s.next < len(s.waypoints) && obs.HaveTelemetry {
		wp := s.waypoints[s.next]
		if distanceM(obs.Vehicle.Lat, obs.Vehicle.Lon, wp.Lat, wp.Lon) > arrivalRadiusM {
			break
		}
		s.next++
	}
	if s.next >= len(s.waypoints) {
		return mission.Land()
	}
	wp := s.waypoints[s.next]
	alt := wp.AltM
	if alt <= 0 {
		alt = s.cruiseAltM
	}
	return mission.Goto(wp.Lat, wp.Lon, alt)
}

// distanceM is an equirectangular approximation, plenty for arrival checks at
// waypoint scale.
func distanceM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000
	rad := math.Pi / 180
	x := (lon2 - lon1) * rad * math.Cos((lat1+lat2)/2*rad)
	y := (lat2 - lat1) * rad
	return math.Sqrt(x*x+y*y) * earthRadiusM
}

// Package safety evaluates every telemetry snapshot against the configured
// flight limits. It is a pure check: no state, no I/O, run once per refresh.
package safety

import (
	"fmt"
	"time"

	"mcp-pilot/internal/mission"
	"mcp-pilot/internal/telemetry"
)

// ViolationKind is a normalized safety violation code.
type ViolationKind string

const (
	ViolationBattery  ViolationKind = "BATTERY_FLOOR"
	ViolationGeofence ViolationKind = "GEOFENCE"
	ViolationLinkLoss ViolationKind = "LINK_LOSS"
)

// Violation is emitted when a snapshot breaks a limit. It always causes an
// action override, independent of any pending agent decision.
type Violation struct {
	Kind       ViolationKind
	Detail     string
	DetectedAt time.Time
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}

// Point is one geofence vertex.
type Point struct {
	Lat float64
	Lon float64
}

// Limits are the configured safety thresholds. An empty geofence disables the
// fence check; MaxAltM <= 0 disables the ceiling.
type Limits struct {
	Geofence       []Point
	MaxAltM        float64
	BatteryFloor   float64 // fraction, 0..1
	MaxStaleness   int     // consecutive failed polls tolerated
	NearGroundAltM float64 // below this, the override is Land instead of RTL
}

type Monitor struct {
	limits Limits
}

func NewMonitor(limits Limits) *Monitor {
	return &Monitor{limits: limits}
}

// Evaluate checks one snapshot plus the current staleness counter. It returns
// a violation iff battery is below the floor, the position left the geofence,
// or staleness exceeded the threshold; nil otherwise.
func (m *Monitor) Evaluate(v telemetry.Vehicle, staleness int) *Violation {
	if viol := m.StaleExceeded(staleness); viol != nil {
		return viol
	}
	if v.Battery < m.limits.BatteryFloor {
		return &Violation{
			Kind:       ViolationBattery,
			Detail:     fmt.Sprintf("battery %.2f below floor %.2f", v.Battery, m.limits.BatteryFloor),
			DetectedAt: time.Now(),
		}
	}
	if len(m.limits.Geofence) >= 3 && !pointInPolygon(Point{Lat: v.Lat, Lon: v.Lon}, m.limits.Geofence) {
		return &Violation{
			Kind:       ViolationGeofence,
			Detail:     fmt.Sprintf("position (%.6f, %.6f) outside geofence", v.Lat, v.Lon),
			DetectedAt: time.Now(),
		}
	}
	if m.limits.MaxAltM > 0 && v.AltM > m.limits.MaxAltM {
		return &Violation{
			Kind:       ViolationGeofence,
			Detail:     fmt.Sprintf("altitude %.1fm above ceiling %.1fm", v.AltM, m.limits.MaxAltM),
			DetectedAt: time.Now(),
		}
	}
	return nil
}

// StaleExceeded checks only the link-staleness limit. The orchestrator uses
// it directly before the first snapshot exists.
func (m *Monitor) StaleExceeded(staleness int) *Violation {
	if staleness <= m.limits.MaxStaleness {
		return nil
	}
	return &Violation{
		Kind:       ViolationLinkLoss,
		Detail:     fmt.Sprintf("%d consecutive failed polls (max %d)", staleness, m.limits.MaxStaleness),
		DetectedAt: time.Now(),
	}
}

// Override is the failsafe action for a violated snapshot: return to launch,
// or land when the vehicle is already near the ground.
func (m *Monitor) Override(v telemetry.Vehicle, haveTelemetry bool) mission.Action {
	if haveTelemetry && v.AltM < m.limits.NearGroundAltM {
		return mission.Land()
	}
	return mission.ReturnToLaunch()
}

// pointInPolygon is a standard ray cast over the fence vertices.
func pointInPolygon(p Point, poly []Point) bool {
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Lon > p.Lon) != (pj.Lon > p.Lon) &&
			p.Lat < (pj.Lat-pi.Lat)*(p.Lon-pi.Lon)/(pj.Lon-pi.Lon)+pi.Lat {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Package agent is the decision-making collaborator: an opaque function from
// mission state to the next high-level action. Providers sit behind the Agent
// interface; the orchestrator does not care which one is active.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mcp-pilot/internal/mission"
	"mcp-pilot/internal/telemetry"
)

var ErrNotInitialized = errors.New("agent backend is not initialized")

// Observation is the read-only state snapshot handed to the agent each cycle.
type Observation struct {
	Objective     string
	State         mission.State
	Vehicle       telemetry.Vehicle
	HaveTelemetry bool
	LastError     string
}

type Agent interface {
	// NextAction maps the observation to the next action. It may be slow and
	// may fail; the orchestrator bounds it with the decision timeout.
	NextAction(ctx context.Context, obs Observation) (mission.Action, error)
}

type Config struct {
	Backend    string // scripted, ollama or gemini
	Model      string
	OllamaHost string
	GeminiKey  string

	// Scripted backend plan
	Waypoints  []mission.Waypoint
	CruiseAltM float64
}

// New builds the configured agent backend.
func New(cfg Config) (Agent, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "scripted"
	}
	switch backend {
	case "scripted":
		return newScripted(cfg.Waypoints, cfg.CruiseAltM), nil
	case "ollama":
		return newOllama(cfg)
	case "gemini":
		return newGemini(cfg)
	default:
		return nil, fmt.Errorf("unsupported agent backend: %s", cfg.Backend)
	}
}

// Package config assembles the single startup parameter set: endpoint
// address, safety thresholds and the mission objective. Everything comes from
// PILOT_* environment variables (godotenv loads .env in main) with CLI flag
// overrides applied by the cli package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mcp-pilot/internal/safety"
)

type Config struct {
	// Remote endpoint
	Endpoint   string
	EndpointWS string
	AuthSecret string

	// Decision agent
	AgentBackend string
	AgentModel   string
	OllamaHost   string

	// Mission
	Objective   string
	MissionFile string

	// Cycle timing
	PollInterval       time.Duration
	PollTimeout        time.Duration
	DecisionTimeout    time.Duration
	CommandTimeout     time.Duration
	StatusPollInterval time.Duration
	AbortTimeout       time.Duration

	// Protocol retry policy
	RetryInitial     time.Duration
	RetryBackoff     float64
	RetryMaxAttempts int

	// Failure ceilings
	MaxDecisionFailures int
	CommandRetryCeiling int

	// Safety thresholds
	BatteryFloor   float64
	MaxStaleness   int
	MaxAltM        float64
	NearGroundAltM float64
	Geofence       []safety.Point

	LogFile string
}

// Load reads the environment into a Config with defaults applied.
func Load() (*Config, error) {
	cfg := &Config{
		Endpoint:   envString("PILOT_ENDPOINT", "http://localhost:5090/mcp"),
		EndpointWS: envString("PILOT_ENDPOINT_WS", ""),
		AuthSecret: envString("PILOT_AUTH_SECRET", ""),

		AgentBackend: envString("PILOT_AGENT", "scripted"),
		AgentModel:   envString("PILOT_AGENT_MODEL", ""),
		OllamaHost:   envString("OLLAMA_HOST", ""),

		Objective:   envString("PILOT_OBJECTIVE", ""),
		MissionFile: envString("PILOT_MISSION_FILE", ""),

		LogFile: envString("PILOT_LOG_FILE", "pilot.log"),
	}

	var err error
	if cfg.PollInterval, err = envDuration("PILOT_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.PollTimeout, err = envDuration("PILOT_POLL_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.DecisionTimeout, err = envDuration("PILOT_DECISION_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CommandTimeout, err = envDuration("PILOT_COMMAND_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatusPollInterval, err = envDuration("PILOT_STATUS_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.AbortTimeout, err = envDuration("PILOT_ABORT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryInitial, err = envDuration("PILOT_RETRY_INITIAL", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = envFloat("PILOT_RETRY_BACKOFF", 2.0); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = envInt("PILOT_RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.MaxDecisionFailures, err = envInt("PILOT_MAX_DECISION_FAILURES", 3); err != nil {
		return nil, err
	}
	if cfg.CommandRetryCeiling, err = envInt("PILOT_COMMAND_RETRY_CEILING", 3); err != nil {
		return nil, err
	}
	if cfg.BatteryFloor, err = envFloat("PILOT_BATTERY_FLOOR", 0.15); err != nil {
		return nil, err
	}
	if cfg.MaxStaleness, err = envInt("PILOT_MAX_STALENESS", 5); err != nil {
		return nil, err
	}
	if cfg.MaxAltM, err = envFloat("PILOT_MAX_ALT_M", 120); err != nil {
		return nil, err
	}
	if cfg.NearGroundAltM, err = envFloat("PILOT_NEAR_GROUND_ALT_M", 2); err != nil {
		return nil, err
	}
	if cfg.Geofence, err = envGeofence("PILOT_GEOFENCE"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint URL must not be empty")
	}
	if c.BatteryFloor < 0 || c.BatteryFloor > 1 {
		return fmt.Errorf("battery floor %.2f outside [0, 1]", c.BatteryFloor)
	}
	for name, d := range map[string]time.Duration{
		"poll interval":        c.PollInterval,
		"poll timeout":         c.PollTimeout,
		"decision timeout":     c.DecisionTimeout,
		"command timeout":      c.CommandTimeout,
		"abort timeout":        c.AbortTimeout,
		"status poll interval": c.StatusPollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.MaxStaleness < 1 {
		return fmt.Errorf("max staleness must be at least 1 poll")
	}
	if c.MaxDecisionFailures < 1 {
		return fmt.Errorf("max decision failures must be at least 1")
	}
	if len(c.Geofence) > 0 && len(c.Geofence) < 3 {
		return fmt.Errorf("geofence needs at least 3 vertices, got %d", len(c.Geofence))
	}
	return nil
}

// Limits maps the config thresholds onto the safety monitor's limits.
func (c *Config) Limits() safety.Limits {
	return safety.Limits{
		Geofence:       c.Geofence,
		MaxAltM:        c.MaxAltM,
		BatteryFloor:   c.BatteryFloor,
		MaxStaleness:   c.MaxStaleness,
		NearGroundAltM: c.NearGroundAltM,
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, v, err)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return i, nil
}

// envGeofence parses "lat,lon;lat,lon;..." into fence vertices.
func envGeofence(key string) ([]safety.Point, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	var points []safety.Point
	for _, pair := range strings.Split(v, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: invalid vertex %q", key, pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid latitude in %q: %w", key, pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid longitude in %q: %w", key, pair, err)
		}
		points = append(points, safety.Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

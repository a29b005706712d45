package metrics

import "time"

type CommandMetrics struct {
	CorrelationID string    `json:"correlation_id"`
	Action        string    `json:"action"`
	Outcome       string    `json:"outcome"`
	Overridden    bool      `json:"overridden,omitempty"` // issued by the safety monitor, not the agent
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationMs    int64     `json:"duration_ms"`
	Err           string    `json:"err,omitempty"`
}

type MissionMetrics struct {
	MissionID  string           `json:"mission_id"`
	Objective  string           `json:"objective"`
	FinalState string           `json:"final_state"`
	Cause      string           `json:"cause,omitempty"`
	Cycles     int              `json:"cycles"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	DurationMs int64            `json:"duration_ms"`
	Commands   []CommandMetrics `json:"commands"`
}

// Compute derived fields for a command.
func (c *CommandMetrics) Finalize() {
	c.DurationMs = c.End.Sub(c.Start).Milliseconds()
}

// Compute derived fields for a mission.
func (m *MissionMetrics) Finalize() {
	m.DurationMs = m.End.Sub(m.Start).Milliseconds()
}

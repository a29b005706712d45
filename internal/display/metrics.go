package display

import (
	"fmt"
	"strings"

	"mcp-pilot/internal/metrics"
)

// FormatMissionMetrics is the end-of-mission report printed to the operator
// and written to the log.
func FormatMissionMetrics(mm *metrics.MissionMetrics) string {
	if mm == nil {
		return "No mission report available."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Mission %s: %s\n", mm.MissionID, mm.FinalState))
	if mm.Cause != "" {
		sb.WriteString(fmt.Sprintf("- Cause: %s\n", mm.Cause))
	}
	sb.WriteString(fmt.Sprintf("- Total: %d ms over %d cycles, %d commands\n",
		mm.DurationMs, mm.Cycles, len(mm.Commands)))
	for _, c := range mm.Commands {
		origin := "agent"
		if c.Overridden {
			origin = "safety"
		}
		line := fmt.Sprintf("  %-22s %-10s %5d ms  [%s]", c.Action, c.Outcome, c.DurationMs, origin)
		if c.Err != "" {
			line += "  " + c.Err
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

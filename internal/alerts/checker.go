package alerts

import (
	"fmt"

	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
)

// Thresholds configures the dashboard alert rules
type Thresholds struct {
	AbandonWarning  int // percent
	AbandonCritical int // percent
	AgentMissed     int
}

// DefaultThresholds returns the thresholds used by the server
func DefaultThresholds() Thresholds {
	return Thresholds{
		AbandonWarning:  20,
		AbandonCritical: 35,
		AgentMissed:     3,
	}
}

// Check evaluates the alert rules against a dashboard snapshot
func Check(dash types.Dashboard, th Thresholds) []types.Alert {
	var alerts []types.Alert

	kpi := dash.KPI
	if kpi.InboundTotal > 0 {
		rate := kpi.MissedTotal * 100 / kpi.InboundTotal
		switch {
		case rate >= th.AbandonCritical:
			alerts = append(alerts, types.Alert{
				Rule:     "abandon_rate_high",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("Abandon rate %s (%d of %d inbound)", kpi.AbandonRate, kpi.MissedTotal, kpi.InboundTotal),
			})
		case rate >= th.AbandonWarning:
			alerts = append(alerts, types.Alert{
				Rule:     "abandon_rate_high",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("Abandon rate %s (%d of %d inbound)", kpi.AbandonRate, kpi.MissedTotal, kpi.InboundTotal),
			})
		}
	}

	for _, agent := range dash.Employees {
		if th.AgentMissed > 0 && agent.Missed >= th.AgentMissed {
			alerts = append(alerts, types.Alert{
				Rule:     "agent_missed_calls",
				Severity: types.SeverityWarning,
				Agent:    agent.Name,
				Message:  fmt.Sprintf("%d missed calls", agent.Missed),
			})
		}
	}

	return alerts
}

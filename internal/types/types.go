package types

import "time"

// SnapshotState distinguishes a pass that never ran from a pass over an empty window
type SnapshotState string

const (
	StatePending SnapshotState = "pending" // no aggregation pass has run yet
	StateEmpty   SnapshotState = "empty"   // pass ran, window held no records
	StateReady   SnapshotState = "ready"
)

// TimeSlotBucket holds the call volume of one half-hour slot
type TimeSlotBucket struct {
	Index    int    `json:"index"`
	Label    string `json:"label"` // HH:MM
	Inbound  int    `json:"CDS_IN"`
	Outbound int    `json:"CDS_OUT"`
	Absys    int    `json:"ABSYS"`
}

// AgentStat holds the per-agent tallies of one aggregation pass
type AgentStat struct {
	Name                    string `json:"name"`
	Status                  string `json:"status"` // status of the agent's latest call
	Inbound                 int    `json:"inbound"`
	Missed                  int    `json:"missed"`
	Outbound                int    `json:"outbound"`
	InboundHandlingTimeSec  int    `json:"inboundHandlingTime"`
	OutboundHandlingTimeSec int    `json:"outboundHandlingTime"`
}

// KPISnapshot holds the scalar dashboard metrics
type KPISnapshot struct {
	TotalAgents      int    `json:"totalAgents"`
	InboundTotal     int    `json:"inboundCallsTotal"`
	AnsweredInbound  int    `json:"answeredInbound"`
	MissedTotal      int    `json:"missedCallsTotal"`
	MissedAbsys      int    `json:"missedAbsys"`
	OutboundTotal    int    `json:"outboundCallsTotal"`
	AvgInboundAHT    int    `json:"avgInboundAHT"`  // seconds
	AvgOutboundAHT   int    `json:"avgOutboundAHT"` // seconds
	GlobalAHT        int    `json:"globalAHT"`      // seconds
	AvgInboundClock  string `json:"avgInboundAHTClock"`
	AvgOutboundClock string `json:"avgOutboundAHTClock"`
	GlobalClock      string `json:"globalAHTClock"`
	AbandonRate      string `json:"abandonRate"`
	WeeklyCallTotal  int    `json:"weeklyCallTotal"`
}

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert represents a rule violation on the dashboard
type Alert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Agent    string        `json:"agent,omitempty"`
	Message  string        `json:"message"`
}

// Dashboard is the payload pushed to the dashboard after every aggregation pass
type Dashboard struct {
	Type        string           `json:"type"` // always "dashboard"
	State       SnapshotState    `json:"state"`
	GeneratedAt time.Time        `json:"generatedAt"`
	RecordCount int              `json:"recordCount"`
	Employees   []AgentStat      `json:"employees"`
	CallVolumes []TimeSlotBucket `json:"callVolumes"`
	KPI         KPISnapshot      `json:"kpi"`
	Alerts      []Alert          `json:"alerts,omitempty"`
}

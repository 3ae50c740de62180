package types

import "time"

// CallRecord is a single classified call detail record.
// Times are wall-clock values carried in UTC.
type CallRecord struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Status      string     `json:"status"`
	Caller      string     `json:"caller"`
	Queue       Queue      `json:"queue"`
	AgentName   string     `json:"agentName"`
	DurationSec int        `json:"durationSec"`
	CallType    CallType   `json:"callType"`
}

// RecordDelta is a decoded JSON record pushed by the feed instead of a raw line.
// Field values use the same textual formats as the raw line.
type RecordDelta struct {
	ID         string   `json:"id"`
	Direction  string   `json:"direction"`
	Duration   string   `json:"duration"`  // HH:MM:SS, MM:SS or seconds
	StartTime  string   `json:"startTime"` // YYYY/MM/DD HH:MM:SS
	AnswerTime string   `json:"answerTime"`
	EndTime    string   `json:"endTime"`
	Status     string   `json:"status"`
	Caller     string   `json:"caller"`
	Extra      []string `json:"extra"` // trailing free fields (queue, agent, ...)
}

// WeeklyCounter is the persisted business-week call counter
type WeeklyCounter struct {
	Count      int       `json:"count"`
	LastReset  time.Time `json:"lastReset"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// DailyTally holds one business day of persisted inbound/outbound totals
type DailyTally struct {
	Inbound  int       `json:"inbound"`
	Outbound int       `json:"outbound"`
	SavedAt  time.Time `json:"savedAt"`
}

// WeekTallies maps a day (YYYY-MM-DD) to its tally within one week
type WeekTallies map[string]DailyTally

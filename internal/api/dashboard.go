package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/aggregator"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DashboardSource exposes the latest aggregation results
type DashboardSource interface {
	Latest() types.Dashboard
	Agent(name string) (types.AgentStat, bool)
	AgentCalls(name string) []types.CallRecord
	Now() time.Time
}

// DashboardHandler provides REST endpoints for the dashboard data
type DashboardHandler struct {
	source DashboardSource
	weekly *weekly.Store
	logger zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(source DashboardSource, store *weekly.Store, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		source: source,
		weekly: store,
		logger: logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetDashboard returns the latest snapshot
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Latest())
}

type agentResponse struct {
	Date  string             `json:"date,omitempty"`
	Stats types.AgentStat    `json:"stats"`
	Calls []types.CallRecord `json:"calls"`
}

// GetAgent returns one agent's stats and windowed calls. With a date, both
// stats and calls cover that day only.
// GET /api/agents/{name}?date=YYYY-MM-DD
func (h *DashboardHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "agent name is required")
		return
	}

	stats, ok := h.source.Agent(name)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found in the current window")
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(cdrtime.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	calls := []types.CallRecord{}
	for _, rec := range h.source.AgentCalls(name) {
		if date != "" && cdrtime.DayKey(rec.StartTime) != date {
			continue
		}
		calls = append(calls, rec)
	}

	if date != "" {
		stats = types.AgentStat{Name: stats.Name}
		if daily := aggregator.AgentStats(calls); len(daily) == 1 {
			stats = daily[0]
		}
	}

	writeJSON(w, http.StatusOK, agentResponse{Date: date, Stats: stats, Calls: calls})
}

type weeklyResponse struct {
	Week            string              `json:"week"`
	WeeklyCallTotal int                 `json:"weeklyCallTotal"`
	Counter         types.WeeklyCounter `json:"counter"`
	Days            types.WeekTallies   `json:"days"`
	InboundTotal    int                 `json:"inboundTotal"`
	OutboundTotal   int                 `json:"outboundTotal"`
	StoredWeeks     []string            `json:"storedWeeks"`
}

// GetWeekly returns the weekly counter and the persisted daily tallies
// GET /api/weekly?date=YYYY-MM-DD
func (h *DashboardHandler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	now := h.source.Now()
	day := now
	if date := r.URL.Query().Get("date"); date != "" {
		parsed, err := time.Parse(cdrtime.DateLayout, date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	ctx := r.Context()
	resp := weeklyResponse{
		Week:            cdrtime.WeekKey(day),
		WeeklyCallTotal: h.weekly.WeeklyCallCount(ctx, now),
		Counter:         h.weekly.Counter(ctx),
		Days:            h.weekly.WeekData(ctx, day),
		StoredWeeks:     h.weekly.Weeks(ctx),
	}
	for _, tally := range resp.Days {
		resp.InboundTotal += tally.Inbound
		resp.OutboundTotal += tally.Outbound
	}
	if resp.StoredWeeks == nil {
		resp.StoredWeeks = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

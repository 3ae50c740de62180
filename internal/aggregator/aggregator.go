package aggregator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/alerts"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cache"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/rs/zerolog"
)

// Broadcaster pushes serialized snapshots to connected dashboards
type Broadcaster interface {
	Broadcast(message []byte)
}

// Options tunes the aggregation loop
type Options struct {
	Interval   time.Duration
	Span       time.Duration
	Slots      []string
	Location   *time.Location
	Thresholds alerts.Thresholds
}

// Service periodically folds the record window into a dashboard snapshot
type Service struct {
	cache  *cache.RecordCache
	weekly *weekly.Store
	hub    Broadcaster
	opts   Options
	logger zerolog.Logger

	// now returns the current instant; replaced in tests
	now func() time.Time

	mu     sync.RWMutex
	latest types.Dashboard
}

// NewService creates a new aggregation service. hub may be nil.
func NewService(cache *cache.RecordCache, store *weekly.Store, hub Broadcaster, opts Options, logger zerolog.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Span <= 0 {
		opts.Span = WindowSpan
	}
	if len(opts.Slots) == 0 {
		opts.Slots = DefaultSlots()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Thresholds == (alerts.Thresholds{}) {
		opts.Thresholds = alerts.DefaultThresholds()
	}
	return &Service{
		cache:  cache,
		weekly: store,
		hub:    hub,
		opts:   opts,
		logger: logger.With().Str("component", "aggregator").Logger(),
		now:    time.Now,
		latest: types.Dashboard{
			Type:        "dashboard",
			State:       types.StatePending,
			Employees:   []types.AgentStat{},
			CallVolumes: []types.TimeSlotBucket{},
		},
	}
}

// Start runs an aggregation pass on every tick until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.opts.Interval).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Now returns the current wall-clock instant in the comparison frame of
// parsed record timestamps
func (s *Service) Now() time.Time {
	return cdrtime.WallClock(s.now(), s.opts.Location)
}

// RunOnce executes a single pass, stores and broadcasts its snapshot
func (s *Service) RunOnce(ctx context.Context) types.Dashboard {
	m := metrics.Get()
	cycleStart := time.Now()
	now := s.Now()

	if pruned := s.cache.Prune(now.Add(-s.opts.Span)); pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("records left the window")
	}

	window := s.cache.Window(now, s.opts.Span)
	dash := AggregateSpan(window, s.opts.Slots, now, s.opts.Span)

	if s.weekly != nil {
		dash.KPI.WeeklyCallTotal = s.weekly.WeeklyCallCount(ctx, now)
		inbound, outbound := DailyTotals(window, now)
		s.weekly.SaveDailyData(ctx, inbound, outbound, now)
	}
	dash.Alerts = alerts.Check(dash, s.opts.Thresholds)

	s.mu.Lock()
	s.latest = dash
	s.mu.Unlock()

	if s.hub != nil {
		data, err := json.Marshal(dash)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to marshal dashboard")
			m.RecordAggregationError()
		} else {
			s.hub.Broadcast(data)
		}
	}

	m.RecordAggregationCycle(time.Since(cycleStart), len(window), len(dash.Employees))

	s.logger.Debug().
		Str("state", string(dash.State)).
		Int("records", dash.RecordCount).
		Int("agents", len(dash.Employees)).
		Int("alerts", len(dash.Alerts)).
		Msg("dashboard aggregated")

	return dash
}

// Latest returns the snapshot of the last pass, in state pending before the first one
func (s *Service) Latest() types.Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Agent returns the latest stats of one agent
func (s *Service) Agent(name string) (types.AgentStat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.latest.Employees {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return types.AgentStat{}, false
}

// AgentCalls returns the windowed records attributed to one agent, oldest first
func (s *Service) AgentCalls(name string) []types.CallRecord {
	var calls []types.CallRecord
	for _, rec := range s.cache.Window(s.Now(), s.opts.Span) {
		if rec.AgentName != "" && strings.EqualFold(rec.AgentName, name) {
			calls = append(calls, rec)
		}
	}
	return calls
}

// ResetWindow drops every cached record and runs a fresh pass
func (s *Service) ResetWindow(ctx context.Context) types.Dashboard {
	s.cache.Clear()
	s.logger.Warn().Msg("record window cleared")
	return s.RunOnce(ctx)
}

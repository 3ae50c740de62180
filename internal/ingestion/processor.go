package ingestion

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/cache"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/rs/zerolog"
)

// Stats summarizes what the processor has seen
type Stats struct {
	Received     int64            `json:"received"`
	Accepted     int64            `json:"accepted"`
	Duplicates   int64            `json:"duplicates"`
	Rejected     map[string]int64 `json:"rejected"`
	LastAccepted time.Time        `json:"lastAccepted"`
	CacheSize    int              `json:"cacheSize"`
}

// DefaultProcessor parses feed input into the record cache and counts new
// calls into the weekly counter
type DefaultProcessor struct {
	parser   *cdr.Parser
	cache    *cache.RecordCache
	weekly   *weekly.Store
	location *time.Location
	logger   zerolog.Logger

	// now returns the current instant; replaced in tests
	now func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewDefaultProcessor creates a new DefaultProcessor. store may be nil.
func NewDefaultProcessor(parser *cdr.Parser, cache *cache.RecordCache, store *weekly.Store, loc *time.Location, logger zerolog.Logger) *DefaultProcessor {
	if loc == nil {
		loc = time.Local
	}
	return &DefaultProcessor{
		parser:   parser,
		cache:    cache,
		weekly:   store,
		location: loc,
		logger:   logger.With().Str("component", "ingestion").Logger(),
		now:      time.Now,
		stats:    Stats{Rejected: make(map[string]int64)},
	}
}

// ProcessLine handles one raw feed line. Blank lines are ignored.
func (p *DefaultProcessor) ProcessLine(ctx context.Context, line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return false
	}

	metrics.Get().RecordLineReceived()
	rec, err := p.parser.ParseLine(line)
	return p.accept(ctx, rec, err)
}

// ProcessDelta handles one decoded JSON record
func (p *DefaultProcessor) ProcessDelta(ctx context.Context, delta types.RecordDelta) bool {
	metrics.Get().RecordDeltaReceived()
	rec, err := p.parser.ParseDelta(delta)
	return p.accept(ctx, rec, err)
}

func (p *DefaultProcessor) accept(ctx context.Context, rec types.CallRecord, err error) bool {
	m := metrics.Get()

	p.mu.Lock()
	p.stats.Received++
	p.mu.Unlock()

	if err != nil {
		reason := cdr.Reason(err)
		m.RecordLineRejected(reason)
		p.mu.Lock()
		p.stats.Rejected[reason]++
		p.mu.Unlock()

		p.logger.Debug().Err(err).Str("reason", reason).Msg("line rejected")
		return false
	}

	if !p.cache.Add(rec) {
		m.RecordDuplicate()
		p.mu.Lock()
		p.stats.Duplicates++
		p.mu.Unlock()

		p.logger.Debug().Str("call_id", rec.ID).Msg("duplicate record ignored")
		return false
	}

	m.RecordLineAccepted()
	now := cdrtime.WallClock(p.now(), p.location)

	p.mu.Lock()
	p.stats.Accepted++
	p.stats.LastAccepted = now
	p.mu.Unlock()

	if p.weekly != nil && rec.CallType.Counted() && cdrtime.SameWeek(rec.StartTime, now) {
		p.weekly.IncrementWeeklyCallCount(ctx, now, 1)
	}

	p.logger.Debug().
		Str("call_id", rec.ID).
		Str("call_type", string(rec.CallType)).
		Str("agent", rec.AgentName).
		Int("duration", rec.DurationSec).
		Msg("record accepted")
	return true
}

// Stats returns a copy of the processor counters
func (p *DefaultProcessor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Rejected = make(map[string]int64, len(p.stats.Rejected))
	for k, v := range p.stats.Rejected {
		s.Rejected[k] = v
	}
	s.CacheSize = p.cache.Size()
	return s
}

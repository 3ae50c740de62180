package ingestion

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/dennisdiepolder/monti/frontdesk/internal/aggregator"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cache"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/storage"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/rs/zerolog"
)

const (
	inboundLine  = "CDR:1001;IN;00:03:25;2025/03/03 09:12:45;2025/03/03 09:12:50;2025/03/03 09:16:10;ANSWERED;0612345678;Front Office;Jane Doe (Ext. 204)"
	absysLine    = "CDR:1002;IN;0;2025/03/03 10:00:00;;;NO ANSWER;0612345678;Front Office"
	otherLine    = "CDR:1003;IN;40;2025/03/03 10:05:00;;;ANSWERED;0612345678;Sales;Jane Doe"
	lastWeekLine = "CDR:0999;IN;40;2025/02/27 10:05:00;;;ANSWERED;0612345678;Front Office;Jane Doe"
)

func newTestProcessor(t *testing.T) (*DefaultProcessor, *cache.RecordCache, *weekly.Store) {
	t.Helper()
	logger := zerolog.New(&bytes.Buffer{})
	resolver := agentname.NewResolver([]string{"Jane Doe"}, agentname.DefaultDenylist)
	parser := cdr.NewParser(resolver, cdr.DefaultOutboundMarker, logger)
	c := cache.NewRecordCache()
	store := weekly.NewStore(storage.NewMemoryStore(), weekly.DefaultKeepWeeks, logger)

	p := NewDefaultProcessor(parser, c, store, time.UTC, logger)
	p.now = func() time.Time { return time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC) }
	return p, c, store
}

func TestProcessLine(t *testing.T) {
	ctx := context.Background()
	p, c, store := newTestProcessor(t)

	if !p.ProcessLine(ctx, inboundLine) {
		t.Fatal("expected inbound line to be accepted")
	}
	if !p.ProcessLine(ctx, absysLine+"\r\n") {
		t.Fatal("expected ABSYS line to be accepted")
	}
	if !p.ProcessLine(ctx, otherLine) {
		t.Fatal("expected OTHER line to be accepted")
	}

	if c.Size() != 3 {
		t.Errorf("cache size = %d, want 3", c.Size())
	}

	// OTHER does not count toward the weekly total
	now := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)
	if got := store.WeeklyCallCount(ctx, now); got != 2 {
		t.Errorf("weekly count = %d, want 2", got)
	}
}

func TestProcessLineDuplicate(t *testing.T) {
	ctx := context.Background()
	p, c, store := newTestProcessor(t)

	p.ProcessLine(ctx, inboundLine)
	if p.ProcessLine(ctx, inboundLine) {
		t.Fatal("duplicate line must not be accepted")
	}

	if c.Size() != 1 {
		t.Errorf("cache size = %d, want 1", c.Size())
	}
	if got := store.Counter(ctx).Count; got != 1 {
		t.Errorf("weekly count = %d, want 1", got)
	}

	stats := p.Stats()
	if stats.Duplicates != 1 || stats.Accepted != 1 || stats.Received != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestProcessLineRejected(t *testing.T) {
	ctx := context.Background()
	p, c, _ := newTestProcessor(t)

	tests := []struct {
		line   string
		reason string
	}{
		{"HELLO;1;2;3", "not_cdr"},
		{"CDR:1;IN;0", "too_few_fields"},
		{"CDR:1;IN;0;2025/02/30 10:00:00;;;ANSWERED;061234", "bad_start_time"},
	}
	for _, tt := range tests {
		if p.ProcessLine(ctx, tt.line) {
			t.Errorf("line %q accepted", tt.line)
		}
	}
	if p.ProcessLine(ctx, "   ") {
		t.Error("blank line accepted")
	}

	if c.Size() != 0 {
		t.Errorf("cache size = %d, want 0", c.Size())
	}
	stats := p.Stats()
	for _, tt := range tests {
		if stats.Rejected[tt.reason] != 1 {
			t.Errorf("rejected[%s] = %d, want 1", tt.reason, stats.Rejected[tt.reason])
		}
	}
	if stats.Received != 3 {
		t.Errorf("received = %d, want 3 (blank lines are not counted)", stats.Received)
	}
}

func TestProcessLineOlderWeekNotCounted(t *testing.T) {
	ctx := context.Background()
	p, c, store := newTestProcessor(t)

	if !p.ProcessLine(ctx, lastWeekLine) {
		t.Fatal("expected line to be accepted")
	}
	if c.Size() != 1 {
		t.Errorf("cache size = %d, want 1", c.Size())
	}
	if got := store.Counter(ctx).Count; got != 0 {
		t.Errorf("weekly count = %d, want 0", got)
	}
}

func TestProcessDelta(t *testing.T) {
	ctx := context.Background()
	p, c, _ := newTestProcessor(t)

	delta := types.RecordDelta{
		ID:        "2001",
		Direction: "IN",
		Duration:  "01:10",
		StartTime: "2025/03/03 09:30:00",
		Status:    "ANSWERED",
		Caller:    "0612345678",
		Extra:     []string{"Front Office", "Jane Doe"},
	}
	if !p.ProcessDelta(ctx, delta) {
		t.Fatal("expected delta to be accepted")
	}

	delta.ID = "2002"
	delta.StartTime = "not a date"
	if p.ProcessDelta(ctx, delta) {
		t.Fatal("expected invalid delta to be rejected")
	}

	records := c.All()
	if len(records) != 1 {
		t.Fatalf("cache size = %d, want 1", len(records))
	}
	if records[0].CallType != types.CallTypeInbound || records[0].DurationSec != 70 {
		t.Errorf("unexpected record %+v", records[0])
	}
}

func TestReaderSource(t *testing.T) {
	p, c, _ := newTestProcessor(t)

	feed := strings.Join([]string{inboundLine, "", "garbage", absysLine}, "\n")
	src := NewReaderSource(strings.NewReader(feed), zerolog.New(&bytes.Buffer{}))

	if err := src.Start(context.Background(), p); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.Size() != 2 {
		t.Errorf("cache size = %d, want 2", c.Size())
	}
}

func TestReaderSourceCancelled(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewReaderSource(strings.NewReader(inboundLine), zerolog.New(&bytes.Buffer{}))
	if err := src.Start(ctx, p); err == nil {
		t.Fatal("expected context error")
	}
}

func TestProcessLineAgentSpellings(t *testing.T) {
	ctx := context.Background()
	p, c, _ := newTestProcessor(t)

	for _, line := range []string{
		"CDR:2001;IN;00:01:00;2025/03/03 09:00:00;;;ANSWERED;0612345678;Front Office;Jane Doe",
		"CDR:2002;IN;00:01:00;2025/03/03 09:10:00;;;ANSWERED;0612345678;Front Office;JANE DOE",
		"CDR:2003;IN;0;2025/03/03 09:20:00;;;NO ANSWER;0612345678;Front Office;jane  doe (Ext. 204)",
	} {
		if !p.ProcessLine(ctx, line) {
			t.Fatalf("expected %q to be accepted", line)
		}
	}

	dash := aggregator.Aggregate(c.All(), aggregator.DefaultSlots(), time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC))
	if len(dash.Employees) != 1 {
		t.Fatalf("expected one agent, got %+v", dash.Employees)
	}
	agent := dash.Employees[0]
	if agent.Name != "Jane Doe" || agent.Inbound != 2 || agent.Missed != 1 {
		t.Errorf("unexpected agent stats %+v", agent)
	}
	if dash.KPI.TotalAgents != 1 {
		t.Errorf("total agents = %d, want 1", dash.KPI.TotalAgents)
	}
}

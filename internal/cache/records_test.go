package cache

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
)

func record(id string, start time.Time) types.CallRecord {
	return types.CallRecord{ID: id, StartTime: start, CallType: types.CallTypeInbound}
}

func TestRecordCacheAddDeduplicates(t *testing.T) {
	c := NewRecordCache()
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	if !c.Add(record("a", now)) {
		t.Error("expected first add to succeed")
	}
	if c.Add(record("a", now)) {
		t.Error("expected duplicate id to be rejected")
	}
	if !c.Add(record("", now)) || !c.Add(record("", now)) {
		t.Error("expected records without id to always be added")
	}

	if c.Size() != 3 {
		t.Errorf("expected 3 records, got %d", c.Size())
	}
}

func TestRecordCacheKeepsLegsSharingID(t *testing.T) {
	c := NewRecordCache()
	start := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

	queueLeg := types.CallRecord{ID: "1001", StartTime: start, Caller: "0612345678", Queue: types.QueueFrontOffice}
	agentLeg := types.CallRecord{ID: "1001", StartTime: start.Add(20 * time.Second), Caller: "0612345678", AgentName: "Jane Doe"}
	transferLeg := types.CallRecord{ID: "1001", StartTime: start, Caller: "Ext 204"}

	for name, rec := range map[string]types.CallRecord{"queue": queueLeg, "agent": agentLeg, "transfer": transferLeg} {
		if !c.Add(rec) {
			t.Errorf("expected %s leg to be added", name)
		}
	}

	redelivered := agentLeg
	redelivered.Status = "ANSWERED"
	if c.Add(redelivered) {
		t.Error("expected re-delivered leg to be rejected")
	}
	if c.Size() != 3 {
		t.Errorf("expected 3 legs, got %d", c.Size())
	}
}

func TestRecordCacheWindow(t *testing.T) {
	c := NewRecordCache()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	c.Add(record("old", now.Add(-8*24*time.Hour)))
	c.Add(record("late", now.Add(-1*time.Hour)))
	c.Add(record("early", now.Add(-6*24*time.Hour)))
	c.Add(record("future", now.Add(time.Hour)))

	window := c.Window(now, 7*24*time.Hour)
	if len(window) != 2 {
		t.Fatalf("expected 2 records in window, got %d", len(window))
	}
	if window[0].ID != "early" || window[1].ID != "late" {
		t.Errorf("expected window ordered by start time, got %s, %s", window[0].ID, window[1].ID)
	}
}

func TestRecordCachePrune(t *testing.T) {
	c := NewRecordCache()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	c.Add(record("old", now.Add(-8*24*time.Hour)))
	c.Add(record("new", now))

	removed := c.Prune(now.Add(-7 * 24 * time.Hour))
	if removed != 1 {
		t.Errorf("expected 1 record removed, got %d", removed)
	}
	if c.Size() != 1 {
		t.Errorf("expected 1 record left, got %d", c.Size())
	}

	// a pruned id may come back
	if !c.Add(record("old", now)) {
		t.Error("expected pruned id to be accepted again")
	}
}

func TestRecordCacheClear(t *testing.T) {
	c := NewRecordCache()
	c.Add(record("a", time.Now()))
	c.Clear()

	if c.Size() != 0 {
		t.Errorf("expected empty cache, got %d", c.Size())
	}
	if !c.Add(record("a", time.Now())) {
		t.Error("expected id to be accepted after clear")
	}
	if len(c.All()) != 1 {
		t.Errorf("expected 1 record, got %d", len(c.All()))
	}
}

package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
)

// RecordCache stores classified call records in memory.
// Records carrying an id are kept once per call leg: id, start time and caller.
type RecordCache struct {
	records []types.CallRecord
	seen    map[string]struct{}
	mu      sync.RWMutex
}

// NewRecordCache creates a new record cache
func NewRecordCache() *RecordCache {
	return &RecordCache{
		records: make([]types.CallRecord, 0, 2000),
		seen:    make(map[string]struct{}),
	}
}

func legKey(rec types.CallRecord) string {
	return rec.ID + "|" + rec.StartTime.Format(time.RFC3339) + "|" + rec.Caller
}

// Add appends a record. It returns false when the same call leg is already
// cached. Legs sharing a provider id but not start or caller are distinct.
func (c *RecordCache) Add(rec types.CallRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.ID != "" {
		key := legKey(rec)
		if _, dup := c.seen[key]; dup {
			return false
		}
		c.seen[key] = struct{}{}
	}
	c.records = append(c.records, rec)
	return true
}

// Window returns a copy of the records started within span before now,
// ordered by start time.
func (c *RecordCache) Window(now time.Time, span time.Duration) []types.CallRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	from := now.Add(-span)
	window := make([]types.CallRecord, 0, len(c.records))
	for _, rec := range c.records {
		if rec.StartTime.Before(from) || rec.StartTime.After(now) {
			continue
		}
		window = append(window, rec)
	}

	sort.SliceStable(window, func(i, j int) bool {
		return window[i].StartTime.Before(window[j].StartTime)
	})
	return window
}

// All returns a copy of every cached record
func (c *RecordCache) All() []types.CallRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]types.CallRecord, len(c.records))
	copy(all, c.records)
	return all
}

// Prune drops records started before the cutoff and returns how many were removed
func (c *RecordCache) Prune(before time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.records[:0]
	removed := 0
	for _, rec := range c.records {
		if rec.StartTime.Before(before) {
			if rec.ID != "" {
				delete(c.seen, legKey(rec))
			}
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	c.records = kept
	return removed
}

// Clear removes every record
func (c *RecordCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make([]types.CallRecord, 0, 2000)
	c.seen = make(map[string]struct{})
}

// Size returns the current number of cached records
func (c *RecordCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

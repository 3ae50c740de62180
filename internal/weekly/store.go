// Package weekly keeps the business-week call counter and the per-day
// inbound/outbound tallies in a durable key-value store.
//
// Every operation logs and swallows storage and encoding failures: the live
// dashboard keeps running and the stored value stays at its last good write.
package weekly

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/frontdesk/internal/storage"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/rs/zerolog"
)

const (
	// CounterKey holds the WeeklyCounter document
	CounterKey = "weekly_call_count"
	// DailyPrefix namespaces the per-week tally documents: daily_calls_<week key>
	DailyPrefix = "daily_calls_"
	// DefaultKeepWeeks is how many week documents survive retention
	DefaultKeepWeeks = 4
)

// Store owns the persisted weekly counters
type Store struct {
	kv        storage.KV
	keepWeeks int
	logger    zerolog.Logger
}

// NewStore creates a weekly store on top of kv
func NewStore(kv storage.KV, keepWeeks int, logger zerolog.Logger) *Store {
	if keepWeeks <= 0 {
		keepWeeks = DefaultKeepWeeks
	}
	return &Store{
		kv:        kv,
		keepWeeks: keepWeeks,
		logger:    logger.With().Str("component", "weekly_store").Logger(),
	}
}

// DailyKey returns the storage key of the week holding date
func DailyKey(date time.Time) string {
	return DailyPrefix + cdrtime.WeekKey(date)
}

func (s *Store) fail(err error, op, key string) {
	metrics.Get().RecordStoreError()
	s.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("weekly store operation failed")
}

func (s *Store) loadCounter(ctx context.Context) (types.WeeklyCounter, bool) {
	var c types.WeeklyCounter
	raw, err := s.kv.Get(ctx, CounterKey)
	if errors.Is(err, storage.ErrNotFound) {
		return c, true
	}
	if err != nil {
		s.fail(err, "get", CounterKey)
		return c, false
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		s.fail(err, "decode", CounterKey)
		return types.WeeklyCounter{}, false
	}
	return c, true
}

// Counter returns the raw persisted counter
func (s *Store) Counter(ctx context.Context) types.WeeklyCounter {
	c, _ := s.loadCounter(ctx)
	return c
}

// WeeklyCallCount returns the calls counted so far this business week.
// On weekends the last stored value is returned unchanged; on a business day
// of a week the counter has not been reset for yet, the count is 0.
func (s *Store) WeeklyCallCount(ctx context.Context, now time.Time) int {
	c, ok := s.loadCounter(ctx)
	if !ok {
		return 0
	}
	if cdrtime.IsBusinessDay(now) && needsReset(c, now) {
		return 0
	}
	return c.Count
}

func needsReset(c types.WeeklyCounter, now time.Time) bool {
	return c.LastReset.IsZero() || !cdrtime.SameWeek(now, c.LastReset)
}

// IncrementWeeklyCallCount adds n calls to the counter and returns the new
// count. Outside Monday-Friday it is a no-op. The first increment of a new
// week resets the counter before adding.
func (s *Store) IncrementWeeklyCallCount(ctx context.Context, now time.Time, n int) int {
	if !cdrtime.IsBusinessDay(now) || n <= 0 {
		return s.WeeklyCallCount(ctx, now)
	}

	c, ok := s.loadCounter(ctx)
	if !ok {
		return 0
	}

	if needsReset(c, now) {
		s.logger.Info().
			Int("previous_count", c.Count).
			Time("last_reset", c.LastReset).
			Msg("new business week, resetting call counter")
		c.Count = 0
		c.LastReset = now
	}
	c.Count += n
	c.LastUpdate = now

	raw, err := json.Marshal(c)
	if err != nil {
		s.fail(err, "encode", CounterKey)
		return c.Count - n
	}
	if err := s.kv.Set(ctx, CounterKey, raw); err != nil {
		s.fail(err, "set", CounterKey)
		return c.Count - n
	}
	return c.Count
}

func (s *Store) loadWeek(ctx context.Context, key string) (types.WeekTallies, bool) {
	week := make(types.WeekTallies)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return week, true
	}
	if err != nil {
		s.fail(err, "get", key)
		return nil, false
	}
	if err := json.Unmarshal(raw, &week); err != nil {
		s.fail(err, "decode", key)
		return nil, false
	}
	if week == nil {
		week = make(types.WeekTallies)
	}
	return week, true
}

// SaveDailyData merges the day's totals into its week document, keeping the
// larger of the stored and new value for each counter, then applies
// retention. Non-business days are ignored.
func (s *Store) SaveDailyData(ctx context.Context, inbound, outbound int, date time.Time) {
	if !cdrtime.IsBusinessDay(date) {
		return
	}

	key := DailyKey(date)
	week, ok := s.loadWeek(ctx, key)
	if !ok {
		return
	}

	day := cdrtime.DayKey(date)
	prev := week[day]
	week[day] = types.DailyTally{
		Inbound:  max(prev.Inbound, inbound),
		Outbound: max(prev.Outbound, outbound),
		SavedAt:  date,
	}

	raw, err := json.Marshal(week)
	if err != nil {
		s.fail(err, "encode", key)
		return
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.fail(err, "set", key)
		return
	}

	s.Cleanup(ctx, key)
}

// WeekData returns the persisted tallies of the week holding date
func (s *Store) WeekData(ctx context.Context, date time.Time) types.WeekTallies {
	week, ok := s.loadWeek(ctx, DailyKey(date))
	if !ok {
		return types.WeekTallies{}
	}
	return week
}

// WeekTotal sums the persisted tallies of the week holding date
func (s *Store) WeekTotal(ctx context.Context, date time.Time) (inbound, outbound int) {
	for _, tally := range s.WeekData(ctx, date) {
		inbound += tally.Inbound
		outbound += tally.Outbound
	}
	return inbound, outbound
}

// Cleanup deletes all but the keepWeeks most recent week documents.
// current is never deleted.
func (s *Store) Cleanup(ctx context.Context, current string) int {
	keys, err := s.kv.ListKeys(ctx, DailyPrefix)
	if err != nil {
		s.fail(err, "list", DailyPrefix)
		return 0
	}

	excess := len(keys) - s.keepWeeks
	if excess <= 0 {
		return 0
	}

	sort.Strings(keys)
	removed := 0
	for _, key := range keys {
		if removed == excess {
			break
		}
		if key == current {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			s.fail(err, "delete", key)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Int("keep_weeks", s.keepWeeks).Msg("old weekly tallies removed")
	}
	return removed
}

// Weeks lists the persisted week keys, oldest first
func (s *Store) Weeks(ctx context.Context) []string {
	keys, err := s.kv.ListKeys(ctx, DailyPrefix)
	if err != nil {
		s.fail(err, "list", DailyPrefix)
		return nil
	}
	weeks := make([]string, 0, len(keys))
	for _, k := range keys {
		weeks = append(weeks, strings.TrimPrefix(k, DailyPrefix))
	}
	sort.Strings(weeks)
	return weeks
}

// Reset deletes the counter and every week document
func (s *Store) Reset(ctx context.Context) error {
	keys, err := s.kv.ListKeys(ctx, DailyPrefix)
	if err != nil {
		return err
	}
	for _, key := range append(keys, CounterKey) {
		if err := s.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	s.logger.Warn().Int("weeks", len(keys)).Msg("weekly store reset")
	return nil
}

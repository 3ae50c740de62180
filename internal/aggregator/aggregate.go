package aggregator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
)

// WindowSpan is the trailing period a pass looks at
const WindowSpan = 7 * 24 * time.Hour

// View selects how ABSYS records are counted
type View int

const (
	// ViewChart counts every ABSYS record, lunch break included
	ViewChart View = iota
	// ViewKPI leaves out ABSYS records started during the lunch break
	ViewKPI
)

// Includes reports whether rec counts in the view
func (v View) Includes(rec types.CallRecord) bool {
	if !rec.CallType.Counted() {
		return false
	}
	if rec.CallType == types.CallTypeAbsys && v == ViewKPI {
		return !inLunchBreak(cdrtime.MinuteOfDay(rec.StartTime))
	}
	return true
}

// Aggregate folds the records started within WindowSpan before now into
// volume buckets, per-agent stats and KPIs. It holds no state.
func Aggregate(records []types.CallRecord, slots []string, now time.Time) types.Dashboard {
	return AggregateSpan(records, slots, now, WindowSpan)
}

// AggregateSpan is Aggregate with an explicit window length
func AggregateSpan(records []types.CallRecord, slots []string, now time.Time, span time.Duration) types.Dashboard {
	window := filterWindow(records, now, span)

	dash := types.Dashboard{
		Type:        "dashboard",
		State:       types.StateReady,
		GeneratedAt: now,
		RecordCount: len(window),
		CallVolumes: buildBuckets(window, newSlotIndex(slots)),
		Employees:   buildAgentStats(window),
	}
	if len(window) == 0 {
		dash.State = types.StateEmpty
	}
	dash.KPI = buildKPI(window, dash.Employees)
	return dash
}

func filterWindow(records []types.CallRecord, now time.Time, span time.Duration) []types.CallRecord {
	from := now.Add(-span)
	window := make([]types.CallRecord, 0, len(records))
	for _, rec := range records {
		if rec.StartTime.Before(from) || rec.StartTime.After(now) {
			continue
		}
		window = append(window, rec)
	}
	return window
}

func buildBuckets(window []types.CallRecord, idx slotIndex) []types.TimeSlotBucket {
	buckets := make([]types.TimeSlotBucket, len(idx.labels))
	for i, label := range idx.labels {
		buckets[i] = types.TimeSlotBucket{Index: i, Label: label}
	}

	for _, rec := range window {
		if !ViewChart.Includes(rec) {
			continue
		}
		slot := idx.find(cdrtime.MinuteOfDay(rec.StartTime))
		if slot < 0 {
			continue
		}
		switch rec.CallType {
		case types.CallTypeInbound:
			buckets[slot].Inbound++
		case types.CallTypeOutbound:
			buckets[slot].Outbound++
		case types.CallTypeAbsys:
			buckets[slot].Absys++
		}
	}
	return buckets
}

// AgentStats tallies the per-agent counters of records, sorted by name
func AgentStats(records []types.CallRecord) []types.AgentStat {
	return buildAgentStats(records)
}

func buildAgentStats(window []types.CallRecord) []types.AgentStat {
	stats := make(map[string]*types.AgentStat)
	latest := make(map[string]time.Time)

	for _, rec := range window {
		if rec.AgentName == "" {
			continue
		}
		if rec.CallType != types.CallTypeInbound && rec.CallType != types.CallTypeOutbound {
			continue
		}

		stat, ok := stats[rec.AgentName]
		if !ok {
			stat = &types.AgentStat{Name: rec.AgentName}
			stats[rec.AgentName] = stat
		}
		if last, seen := latest[rec.AgentName]; !seen || !rec.StartTime.Before(last) {
			latest[rec.AgentName] = rec.StartTime
			stat.Status = rec.Status
		}

		switch rec.CallType {
		case types.CallTypeInbound:
			if rec.DurationSec == 0 {
				stat.Missed++
			} else {
				stat.Inbound++
				stat.InboundHandlingTimeSec += rec.DurationSec
			}
		case types.CallTypeOutbound:
			stat.Outbound++
			stat.OutboundHandlingTimeSec += rec.DurationSec
		}
	}

	result := make([]types.AgentStat, 0, len(stats))
	for _, stat := range stats {
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func buildKPI(window []types.CallRecord, agents []types.AgentStat) types.KPISnapshot {
	var answeredIn, missedAgents, answeredOut, inTime, outTime int
	for _, a := range agents {
		answeredIn += a.Inbound
		missedAgents += a.Missed
		answeredOut += a.Outbound
		inTime += a.InboundHandlingTimeSec
		outTime += a.OutboundHandlingTimeSec
	}

	missedAbsys := 0
	for _, rec := range window {
		if rec.CallType == types.CallTypeAbsys && ViewKPI.Includes(rec) {
			missedAbsys++
		}
	}

	kpi := types.KPISnapshot{
		TotalAgents:     len(agents),
		AnsweredInbound: answeredIn,
		MissedAbsys:     missedAbsys,
		MissedTotal:     missedAgents + missedAbsys,
		InboundTotal:    answeredIn + missedAgents + missedAbsys,
		OutboundTotal:   answeredOut,
		AvgInboundAHT:   floorDiv(inTime, answeredIn),
		AvgOutboundAHT:  floorDiv(outTime, answeredOut),
		GlobalAHT:       floorDiv(inTime+outTime, answeredIn+answeredOut),
		AbandonRate:     AbandonRate(missedAgents+missedAbsys, answeredIn+missedAgents+missedAbsys),
	}
	kpi.AvgInboundClock = cdrtime.FormatClock(float64(kpi.AvgInboundAHT))
	kpi.AvgOutboundClock = cdrtime.FormatClock(float64(kpi.AvgOutboundAHT))
	kpi.GlobalClock = cdrtime.FormatClock(float64(kpi.GlobalAHT))
	return kpi
}

func floorDiv(total, count int) int {
	if count <= 0 {
		return 0
	}
	return total / count
}

// AbandonRate renders missed/total as a rounded percentage, "0%" when total is zero
func AbandonRate(missed, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(missed)/float64(total)*100)))
}

// DailyTotals counts the inbound (CDS_IN plus KPI-view ABSYS) and outbound
// records started on day's calendar date.
func DailyTotals(records []types.CallRecord, day time.Time) (inbound, outbound int) {
	key := cdrtime.DayKey(day)
	for _, rec := range records {
		if cdrtime.DayKey(rec.StartTime) != key || !ViewKPI.Includes(rec) {
			continue
		}
		switch rec.CallType {
		case types.CallTypeInbound, types.CallTypeAbsys:
			inbound++
		case types.CallTypeOutbound:
			outbound++
		}
	}
	return inbound, outbound
}

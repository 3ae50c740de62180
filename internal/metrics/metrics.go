package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Feed metrics
	LinesReceivedTotal  int64
	LinesAcceptedTotal  int64
	DuplicatesTotal     int64
	DeltasReceivedTotal int64
	linesRejected       map[string]int64 // reason -> count

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Aggregation metrics
	AggregationCyclesTotal  int64
	AggregationErrorsTotal  int64
	lastAggregationDuration time.Duration
	cachedRecords           int
	dashboardAgents         int

	// Storage metrics
	StoreErrorsTotal int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an unshared metrics instance
func New() *Metrics {
	return &Metrics{
		linesRejected:        make(map[string]int64),
		httpRequestsTotal:    make(map[string]map[int]int64),
		httpRequestDurations: make(map[string][]float64),
		startTime:            time.Now(),
	}
}

// RecordLineReceived increments the raw lines counter
func (m *Metrics) RecordLineReceived() {
	m.mu.Lock()
	m.LinesReceivedTotal++
	m.mu.Unlock()
}

// RecordLineAccepted increments the parsed lines counter
func (m *Metrics) RecordLineAccepted() {
	m.mu.Lock()
	m.LinesAcceptedTotal++
	m.mu.Unlock()
}

// RecordLineRejected counts a dropped line under its reason
func (m *Metrics) RecordLineRejected(reason string) {
	m.mu.Lock()
	m.linesRejected[reason]++
	m.mu.Unlock()
}

// RecordDuplicate counts a record whose id was already cached
func (m *Metrics) RecordDuplicate() {
	m.mu.Lock()
	m.DuplicatesTotal++
	m.mu.Unlock()
}

// RecordDeltaReceived counts a structured delta from the feed
func (m *Metrics) RecordDeltaReceived() {
	m.mu.Lock()
	m.DeltasReceivedTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordAggregationCycle records an aggregation cycle
func (m *Metrics) RecordAggregationCycle(duration time.Duration, records, agents int) {
	m.mu.Lock()
	m.AggregationCyclesTotal++
	m.lastAggregationDuration = duration
	m.cachedRecords = records
	m.dashboardAgents = agents
	m.mu.Unlock()
}

// RecordAggregationError increments aggregation error counter
func (m *Metrics) RecordAggregationError() {
	m.mu.Lock()
	m.AggregationErrorsTotal++
	m.mu.Unlock()
}

// RecordStoreError counts a failed weekly store operation
func (m *Metrics) RecordStoreError() {
	m.mu.Lock()
	m.StoreErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Rejected returns the rejected line count for a reason
func (m *Metrics) Rejected(reason string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linesRejected[reason]
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(m.exposition()))
	}
}

func (m *Metrics) exposition() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	gauge := func(name string, value float64, labels ...string) {
		b.WriteString(name)
		if len(labels) > 0 {
			pairs := make([]string, 0, len(labels)/2)
			for i := 0; i+1 < len(labels); i += 2 {
				pairs = append(pairs, fmt.Sprintf("%s=%q", labels[i], labels[i+1]))
			}
			b.WriteString("{" + strings.Join(pairs, ",") + "}")
		}
		b.WriteString(" " + strconv.FormatFloat(value, 'f', -1, 64) + "\n")
	}
	counter := func(name string, value int64, labels ...string) {
		gauge(name, float64(value), labels...)
	}

	gauge("frontdesk_uptime_seconds", time.Since(m.startTime).Seconds())

	counter("frontdesk_lines_received_total", m.LinesReceivedTotal)
	counter("frontdesk_lines_accepted_total", m.LinesAcceptedTotal)
	counter("frontdesk_duplicates_total", m.DuplicatesTotal)
	counter("frontdesk_deltas_received_total", m.DeltasReceivedTotal)
	for _, reason := range sortedKeys(m.linesRejected) {
		counter("frontdesk_lines_rejected_total", m.linesRejected[reason], "reason", reason)
	}

	counter("frontdesk_websocket_connections_total", m.WebSocketConnectionsTotal)
	counter("frontdesk_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
	counter("frontdesk_websocket_active_connections", m.activeConnections)
	counter("frontdesk_websocket_messages_total", m.WebSocketMessagesTotal)
	counter("frontdesk_websocket_errors_total", m.WebSocketErrorsTotal)

	counter("frontdesk_aggregation_cycles_total", m.AggregationCyclesTotal)
	counter("frontdesk_aggregation_errors_total", m.AggregationErrorsTotal)
	gauge("frontdesk_aggregation_duration_seconds", m.lastAggregationDuration.Seconds())
	counter("frontdesk_cached_records", int64(m.cachedRecords))
	counter("frontdesk_dashboard_agents", int64(m.dashboardAgents))

	counter("frontdesk_store_errors_total", m.StoreErrorsTotal)

	for _, endpoint := range sortedKeys(m.httpRequestsTotal) {
		byStatus := m.httpRequestsTotal[endpoint]
		statuses := make([]int, 0, len(byStatus))
		for status := range byStatus {
			statuses = append(statuses, status)
		}
		sort.Ints(statuses)
		for _, status := range statuses {
			counter("frontdesk_http_requests_total", byStatus[status], "endpoint", endpoint, "status", strconv.Itoa(status))
		}
		if durations := m.httpRequestDurations[endpoint]; len(durations) > 0 {
			var sum float64
			for _, d := range durations {
				sum += d
			}
			gauge("frontdesk_http_request_duration_avg_seconds", sum/float64(len(durations)), "endpoint", endpoint)
		}
	}

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

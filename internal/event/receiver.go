package event

import (
	"bufio"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/dennisdiepolder/monti/frontdesk/internal/ingestion"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 8 << 20

// StatsProvider exposes the processor counters
type StatsProvider interface {
	Stats() ingestion.Stats
}

// Receiver handles CDR batches pushed by the telephony feed
type Receiver struct {
	processor ingestion.RecordProcessor
	stats     StatsProvider
	logger    zerolog.Logger
	batches   int64
}

// NewReceiver creates a new feed receiver. stats may be nil.
func NewReceiver(processor ingestion.RecordProcessor, stats StatsProvider, logger zerolog.Logger) *Receiver {
	return &Receiver{
		processor: processor,
		stats:     stats,
		logger:    logger.With().Str("component", "feed_receiver").Logger(),
	}
}

type batchResult struct {
	Received int `json:"received"`
	Accepted int `json:"accepted"`
}

// HandleLines receives a text body holding one CDR line per row
func (r *Receiver) HandleLines(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scanner := bufio.NewScanner(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var result batchResult
	for scanner.Scan() {
		result.Received++
		if r.processor.ProcessLine(req.Context(), scanner.Text()) {
			result.Accepted++
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Error().Err(err).Int("received", result.Received).Msg("failed to read feed batch")
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	r.logBatch(result)
	writeJSON(w, result)
}

// HandleDeltas receives a JSON array of decoded records, or a single record
func (r *Receiver) HandleDeltas(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&raw); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode deltas")
		http.Error(w, "invalid deltas", http.StatusBadRequest)
		return
	}

	var deltas []types.RecordDelta
	if len(raw) > 0 && raw[0] == '{' {
		var single types.RecordDelta
		if err := json.Unmarshal(raw, &single); err != nil {
			http.Error(w, "invalid deltas", http.StatusBadRequest)
			return
		}
		deltas = append(deltas, single)
	} else if err := json.Unmarshal(raw, &deltas); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode deltas")
		http.Error(w, "invalid deltas", http.StatusBadRequest)
		return
	}

	var result batchResult
	for _, d := range deltas {
		result.Received++
		if r.processor.ProcessDelta(req.Context(), d) {
			result.Accepted++
		}
	}

	r.logBatch(result)
	writeJSON(w, result)
}

func (r *Receiver) logBatch(result batchResult) {
	count := atomic.AddInt64(&r.batches, 1)
	if count%100 == 0 {
		r.logger.Info().
			Int64("batches", count).
			Int("received", result.Received).
			Int("accepted", result.Accepted).
			Msg("feed batches received")
	}
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	stats := map[string]interface{}{
		"batches_received": atomic.LoadInt64(&r.batches),
	}
	if r.stats != nil {
		stats["processor"] = r.stats.Stats()
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

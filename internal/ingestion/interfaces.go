package ingestion

import (
	"context"

	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
)

// RecordProcessor consumes feed input from any source (HTTP push, websocket, replay files)
type RecordProcessor interface {
	ProcessLine(ctx context.Context, line string) bool
	ProcessDelta(ctx context.Context, delta types.RecordDelta) bool
}

// LineSource represents a source of raw feed lines
type LineSource interface {
	// Start reads lines and forwards them to the processor until the source
	// is exhausted or ctx is cancelled
	Start(ctx context.Context, processor RecordProcessor) error
}

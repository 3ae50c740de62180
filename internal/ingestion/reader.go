package ingestion

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// ReaderSource feeds lines from any io.Reader: stdin, a replay file or a pipe
type ReaderSource struct {
	r      io.Reader
	logger zerolog.Logger
}

// NewReaderSource creates a line source over r
func NewReaderSource(r io.Reader, logger zerolog.Logger) *ReaderSource {
	return &ReaderSource{
		r:      r,
		logger: logger.With().Str("component", "reader_source").Logger(),
	}
}

// Start forwards every line of the reader to the processor
func (s *ReaderSource) Start(ctx context.Context, processor RecordProcessor) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines, accepted := 0, 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lines++
		if processor.ProcessLine(ctx, scanner.Text()) {
			accepted++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read feed: %w", err)
	}

	s.logger.Info().Int("lines", lines).Int("accepted", accepted).Msg("feed source drained")
	return nil
}

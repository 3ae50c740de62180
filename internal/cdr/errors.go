package cdr

import (
	"errors"
	"fmt"
)

// Rejection reasons. A rejected line is skipped, never fatal.
var (
	ErrNotCDR       = errors.New("not a cdr line")
	ErrTooFewFields = errors.New("too few fields")
	ErrBadStartTime = errors.New("invalid start time")
)

// LineError wraps a rejection reason with the offending line
type LineError struct {
	Line string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("rejected line: %v (line: %q)", e.Err, e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for metrics and logs
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotCDR):
		return "not_cdr"
	case errors.Is(err, ErrTooFewFields):
		return "too_few_fields"
	case errors.Is(err, ErrBadStartTime):
		return "bad_start_time"
	default:
		return "unknown"
	}
}

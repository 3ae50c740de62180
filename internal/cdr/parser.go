// Package cdr turns raw call-event lines into classified call records.
package cdr

import (
	"strings"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/rs/zerolog"
)

const (
	// Prefix marks the lines this parser understands
	Prefix = "CDR:"
	// Delimiter separates fields; it cannot be escaped inside a field
	Delimiter = ";"
	// MinFields is the smallest accepted field count after the prefix
	MinFields = 8
)

// Field positions after the prefix
const (
	FieldID = iota
	FieldDirection
	FieldDuration
	FieldStart
	FieldAnswer
	FieldEnd
	FieldStatus
	FieldCaller
)

// Fields is the tokenized form of one line
type Fields struct {
	ID        string
	Direction string
	Duration  string
	Start     string
	Answer    string
	End       string
	Status    string
	Caller    string
	All       []string
}

// Tokenize splits a line into named fields. It validates the prefix and the
// field count before anything else reads a position.
func Tokenize(line string) (Fields, error) {
	if !strings.HasPrefix(line, Prefix) {
		return Fields{}, ErrNotCDR
	}
	raw := strings.Split(strings.TrimRight(strings.TrimPrefix(line, Prefix), "\r\n"), Delimiter)
	if len(raw) < MinFields {
		return Fields{}, ErrTooFewFields
	}
	return fieldsFrom(raw), nil
}

func fieldsFrom(raw []string) Fields {
	at := func(i int) string {
		if i < len(raw) {
			return strings.TrimSpace(raw[i])
		}
		return ""
	}
	return Fields{
		ID:        at(FieldID),
		Direction: at(FieldDirection),
		Duration:  at(FieldDuration),
		Start:     at(FieldStart),
		Answer:    at(FieldAnswer),
		End:       at(FieldEnd),
		Status:    at(FieldStatus),
		Caller:    at(FieldCaller),
		All:       raw,
	}
}

// Parser validates and classifies call records
type Parser struct {
	resolver       *agentname.Resolver
	outboundMarker string
	logger         zerolog.Logger
}

// NewParser creates a new parser
func NewParser(resolver *agentname.Resolver, outboundMarker string, logger zerolog.Logger) *Parser {
	return &Parser{
		resolver:       resolver,
		outboundMarker: outboundMarker,
		logger:         logger.With().Str("component", "cdr_parser").Logger(),
	}
}

// Parse returns the classified record of line, or false when the line is
// not a valid call record.
func (p *Parser) Parse(line string) (types.CallRecord, bool) {
	rec, err := p.ParseLine(line)
	if err != nil {
		p.logger.Debug().Str("reason", Reason(err)).Str("line", line).Msg("line rejected")
		return types.CallRecord{}, false
	}
	return rec, true
}

// ParseLine is Parse with the rejection reason as a *LineError
func (p *Parser) ParseLine(line string) (types.CallRecord, error) {
	fields, err := Tokenize(line)
	if err != nil {
		return types.CallRecord{}, &LineError{Line: line, Err: err}
	}
	rec, err := p.build(fields)
	if err != nil {
		return types.CallRecord{}, &LineError{Line: line, Err: err}
	}
	return rec, nil
}

// ParseDelta validates a decoded JSON record through the same rules as a line
func (p *Parser) ParseDelta(d types.RecordDelta) (types.CallRecord, error) {
	raw := []string{d.ID, d.Direction, d.Duration, d.StartTime, d.AnswerTime, d.EndTime, d.Status, d.Caller}
	raw = append(raw, d.Extra...)
	rec, err := p.build(fieldsFrom(raw))
	if err != nil {
		return types.CallRecord{}, &LineError{Line: FormatDelta(d), Err: err}
	}
	return rec, nil
}

func (p *Parser) build(f Fields) (types.CallRecord, error) {
	start, ok := cdrtime.ParseTimestamp(f.Start)
	if !ok {
		return types.CallRecord{}, ErrBadStartTime
	}

	rec := types.CallRecord{
		ID:          f.ID,
		StartTime:   start,
		Status:      f.Status,
		Caller:      f.Caller,
		Queue:       DetectQueue(f.All),
		DurationSec: cdrtime.ParseDurationToSeconds(f.Duration),
	}
	if end, ok := cdrtime.ParseTimestamp(f.End); ok {
		rec.EndTime = &end
	}

	rec.AgentName = p.resolver.Resolve(f.All)
	rec.CallType = Classify(rec.Queue, rec.AgentName, rec.Caller, p.outboundMarker)
	return rec, nil
}

// FormatDelta renders a delta as the equivalent raw line
func FormatDelta(d types.RecordDelta) string {
	parts := []string{d.ID, d.Direction, d.Duration, d.StartTime, d.AnswerTime, d.EndTime, d.Status, d.Caller}
	parts = append(parts, d.Extra...)
	return Prefix + strings.Join(parts, Delimiter)
}

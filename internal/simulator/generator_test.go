package simulator

import (
	"bytes"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simStart = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func newSimParser() *cdr.Parser {
	resolver := agentname.NewResolver([]string{"Jane Doe", "John Smith"}, agentname.DefaultDenylist)
	return cdr.NewParser(resolver, cdr.DefaultOutboundMarker, zerolog.New(&bytes.Buffer{}))
}

func TestGeneratorScenarios(t *testing.T) {
	parser := newSimParser()

	tests := map[Scenario]types.CallType{
		ScenarioAnswered: types.CallTypeInbound,
		ScenarioMissed:   types.CallTypeAbsys,
		ScenarioOutbound: types.CallTypeOutbound,
		ScenarioOther:    types.CallTypeOther,
	}

	for scenario, want := range tests {
		t.Run(string(scenario), func(t *testing.T) {
			g := NewGenerator(42, []string{"Jane Doe", "John Smith"}, "")
			g.SetScenarios([]ScenarioWeight{{Scenario: scenario, Weight: 1}})

			for i := 0; i < 20; i++ {
				rec, err := parser.ParseLine(g.Line(simStart))
				require.NoError(t, err)
				assert.Equal(t, want, rec.CallType)
				assert.Equal(t, simStart, rec.StartTime)
			}
		})
	}
}

func TestGeneratorJunkIsRejected(t *testing.T) {
	g := NewGenerator(1, []string{"Jane Doe"}, "")
	g.SetScenarios([]ScenarioWeight{{Scenario: ScenarioJunk, Weight: 1}})

	_, err := newSimParser().ParseLine(g.Line(simStart))
	assert.ErrorIs(t, err, cdr.ErrTooFewFields)
}

func TestGeneratorUniqueIDs(t *testing.T) {
	g := NewGenerator(7, []string{"Jane Doe"}, "")
	g.SetScenarios([]ScenarioWeight{{Scenario: ScenarioAnswered, Weight: 1}})

	seen := make(map[string]bool)
	for _, line := range g.Batch(simStart, 50) {
		fields, err := cdr.Tokenize(line)
		require.NoError(t, err)
		assert.False(t, seen[fields.ID], "duplicate id %s", fields.ID)
		seen[fields.ID] = true
	}
	assert.Len(t, seen, 50)
}

func TestGeneratorDeterministic(t *testing.T) {
	a := NewGenerator(99, []string{"Jane Doe", "John Smith"}, "")
	b := NewGenerator(99, []string{"Jane Doe", "John Smith"}, "")

	assert.Equal(t, a.Batch(simStart, 10), b.Batch(simStart, 10))
}

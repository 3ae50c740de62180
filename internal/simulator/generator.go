// Package simulator produces a synthetic telephony feed for demos and load tests.
package simulator

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdrtime"
)

// Scenario is one kind of call the generator can emit
type Scenario string

const (
	ScenarioAnswered Scenario = "answered" // front office, answered by a roster agent
	ScenarioMissed   Scenario = "missed"   // front office, nobody picked up
	ScenarioOutbound Scenario = "outbound" // placed from an agent extension
	ScenarioOther    Scenario = "other"    // another queue
	ScenarioJunk     Scenario = "junk"     // malformed line, rejected by the parser
)

// ScenarioWeight pairs a scenario with a relative weight
type ScenarioWeight struct {
	Scenario Scenario
	Weight   float64
}

// DefaultScenarios returns the call mix used when none is configured
func DefaultScenarios() []ScenarioWeight {
	return []ScenarioWeight{
		{Scenario: ScenarioAnswered, Weight: 6},
		{Scenario: ScenarioMissed, Weight: 2},
		{Scenario: ScenarioOutbound, Weight: 3},
		{Scenario: ScenarioOther, Weight: 1},
		{Scenario: ScenarioJunk, Weight: 0.2},
	}
}

// Generator builds CDR lines for the configured roster
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	agents    []string
	scenarios []ScenarioWeight
	marker    string
	nextID    int64
}

// NewGenerator creates a generator seeded with seed
func NewGenerator(seed int64, agents []string, marker string) *Generator {
	if marker == "" {
		marker = cdr.DefaultOutboundMarker
	}
	return &Generator{
		rng:       rand.New(rand.NewSource(seed)),
		agents:    agents,
		scenarios: DefaultScenarios(),
		marker:    marker,
		nextID:    seed%100000 + 1,
	}
}

// SetScenarios replaces the call mix
func (g *Generator) SetScenarios(scenarios []ScenarioWeight) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scenarios = scenarios
}

// Line returns a single CDR line for a call that started at start
func (g *Generator) Line(start time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := strconv.FormatInt(g.nextID, 10)
	g.nextID++

	return g.lineFor(g.pick(), id, start)
}

// Batch returns n lines starting at consecutive seconds from start
func (g *Generator) Batch(start time.Time, n int) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, g.Line(start.Add(time.Duration(i)*time.Second)))
	}
	return lines
}

func (g *Generator) lineFor(scenario Scenario, id string, start time.Time) string {
	duration := 20 + g.rng.Intn(400)
	end := start.Add(time.Duration(duration) * time.Second)
	caller := fmt.Sprintf("06%08d", g.rng.Intn(100000000))

	fields := []string{id, "IN", cdrtime.FormatHMS(duration), cdrtime.FormatTimestamp(start), "", cdrtime.FormatTimestamp(end), "ANSWERED", caller}

	switch scenario {
	case ScenarioAnswered:
		fields[4] = cdrtime.FormatTimestamp(start.Add(5 * time.Second))
		fields = append(fields, "Front Office", g.agent())
	case ScenarioMissed:
		fields[2] = "0"
		fields[6] = "NO ANSWER"
		fields = append(fields, "Front Office")
	case ScenarioOutbound:
		fields[1] = "OUT"
		fields[7] = fmt.Sprintf("%s %d", g.marker, 200+g.rng.Intn(40))
		fields = append(fields, fmt.Sprintf("01%08d", g.rng.Intn(100000000)), g.agent())
	case ScenarioOther:
		fields = append(fields, "Sales", g.agent())
	case ScenarioJunk:
		return cdr.Prefix + strings.Join(fields[:4], cdr.Delimiter)
	}

	return cdr.Prefix + strings.Join(fields, cdr.Delimiter)
}

func (g *Generator) agent() string {
	if len(g.agents) == 0 {
		return ""
	}
	return g.agents[g.rng.Intn(len(g.agents))]
}

// pick selects a scenario based on the configured weights
func (g *Generator) pick() Scenario {
	if len(g.scenarios) == 0 {
		return ScenarioAnswered
	}

	var total float64
	for _, s := range g.scenarios {
		total += s.Weight
	}

	r := g.rng.Float64() * total
	for _, s := range g.scenarios {
		r -= s.Weight
		if r <= 0 {
			return s.Scenario
		}
	}
	return g.scenarios[len(g.scenarios)-1].Scenario
}

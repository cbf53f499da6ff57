package simulation

import (
	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/interaction"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name  string
	Nodes []NodeSpec
	Edges []EdgeSpec

	// Prompts are added through the session service after the seeded
	// graph, each with zero engine passes. Interpreter interprets them;
	// nil uses the keyword rules.
	Prompts     []string
	Interpreter interpret.Interpreter

	// Rounds is the number of Simulate calls; Iterations the passes per
	// call. Zero Iterations means one pass per round.
	Rounds     int
	Iterations int

	// Engine overrides the rule constants.
	Engine *interaction.Config

	// BeforeRound, when non-nil, is called before each round. Use it to
	// manipulate the store between rounds.
	BeforeRound func(round int, s *store.SQLiteGraphStore)
}

// NodeSpec is a flat builder for seeded nodes. A zero Maturity takes the
// domain default.
type NodeSpec struct {
	ID            string
	Name          string
	Maturity      float64
	EgoState      graph.EgoState
	Role          graph.Role
	Metacognition bool
}

// ToRecord converts s into a node record.
func (s NodeSpec) ToRecord() graph.NodeRecord {
	name := s.Name
	if name == "" {
		name = "Pole " + s.ID
	}
	r := graph.NodeRecord{
		ID:            graph.ID(s.ID),
		Name:          name,
		Role:          string(s.Role),
		Metacognition: s.Metacognition,
	}
	if s.EgoState.Valid() {
		r.EgoState = s.EgoState.String()
	}
	if s.Maturity != 0 {
		r.Maturity = graph.Float64(s.Maturity)
	}
	return r
}

// EdgeSpec defines a seeded edge. An empty LightShadow is derived from the
// sign of Polarity.
type EdgeSpec struct {
	Source      string
	Target      string
	Polarity    float64
	LightShadow graph.LightShadow
	Role        string
	Consent     bool
}

// ToRecord converts e into an edge record.
func (e EdgeSpec) ToRecord() graph.EdgeRecord {
	ls := e.LightShadow
	if ls == "" {
		ls = graph.Light
		if e.Polarity < 0 {
			ls = graph.Shadow
		}
	}
	return graph.EdgeRecord{
		SourceID:    graph.ID(e.Source),
		TargetID:    graph.ID(e.Target),
		Polarity:    e.Polarity,
		LightShadow: string(ls),
		Role:        e.Role,
		Consent:     e.Consent,
	}
}

// RoundResult captures the stored graph after one round.
type RoundResult struct {
	Index int
	Nodes []graph.NodeRecord
	Edges []graph.EdgeRecord

	// Transitions counts rule firings during this round, keyed by rule
	// name.
	Transitions map[string]int
}

// Node returns the snapshot of node id in this round.
func (r RoundResult) Node(id string) (graph.NodeRecord, bool) {
	for _, n := range r.Nodes {
		if string(n.ID) == id {
			return n, true
		}
	}
	return graph.NodeRecord{}, false
}

// SimulationResult captures the initial state, every round and the final
// store.
type SimulationResult struct {
	// Initial is the stored graph before the first round, with Index -1.
	Initial RoundResult
	Rounds  []RoundResult
	Store   *store.SQLiteGraphStore
}

// Final returns the last round, or the initial state when no round ran.
func (r SimulationResult) Final() RoundResult {
	if len(r.Rounds) == 0 {
		return r.Initial
	}
	return r.Rounds[len(r.Rounds)-1]
}

package simulation

import (
	"testing"

	"github.com/nvandessel/tango/internal/graph"
)

// allStates returns the initial state followed by every round.
func allStates(result SimulationResult) []RoundResult {
	return append([]RoundResult{result.Initial}, result.Rounds...)
}

// AssertMaturityBounded asserts that every stored maturity stays within
// [MinMaturity, MaxMaturity] in every round.
func AssertMaturityBounded(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Rounds {
		for _, n := range rr.Nodes {
			if n.Maturity == nil {
				t.Errorf("AssertMaturityBounded: round %d: node %s has no maturity", rr.Index, n.ID)
				continue
			}
			if m := *n.Maturity; m < graph.MinMaturity || m > graph.MaxMaturity {
				t.Errorf("AssertMaturityBounded: round %d: node %s maturity %.6f not in [%.0f, %.0f]", rr.Index, n.ID, m, graph.MinMaturity, graph.MaxMaturity)
			}
		}
	}
}

// AssertPolarityBounded asserts that every edge polarity stays within
// [-1, 1] and that its light/shadow tag is one of the two values.
func AssertPolarityBounded(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Rounds {
		for _, e := range rr.Edges {
			if e.Polarity < graph.MinPolarity || e.Polarity > graph.MaxPolarity {
				t.Errorf("AssertPolarityBounded: round %d: edge %s->%s polarity %.6f out of range", rr.Index, e.SourceID, e.TargetID, e.Polarity)
			}
			if ls := graph.LightShadow(e.LightShadow); ls != graph.Light && ls != graph.Shadow {
				t.Errorf("AssertPolarityBounded: round %d: edge %s->%s light_shadow %q", rr.Index, e.SourceID, e.TargetID, e.LightShadow)
			}
		}
	}
}

// AssertValidLabels asserts that every stored role and ego state parses.
func AssertValidLabels(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Rounds {
		for _, n := range rr.Nodes {
			if _, err := graph.ParseRole(n.Role); err != nil {
				t.Errorf("AssertValidLabels: round %d: node %s: %v", rr.Index, n.ID, err)
			}
			if _, err := graph.ParseEgoState(n.EgoState); err != nil || n.EgoState == "" {
				t.Errorf("AssertValidLabels: round %d: node %s ego state %q", rr.Index, n.ID, n.EgoState)
			}
		}
	}
}

// AssertShapeStable asserts that no round adds or removes nodes or edges.
func AssertShapeStable(t *testing.T, result SimulationResult) {
	t.Helper()
	wantNodes, wantEdges := len(result.Initial.Nodes), len(result.Initial.Edges)
	for _, rr := range result.Rounds {
		if len(rr.Nodes) != wantNodes || len(rr.Edges) != wantEdges {
			t.Errorf("AssertShapeStable: round %d: %d nodes / %d edges, want %d / %d", rr.Index, len(rr.Nodes), len(rr.Edges), wantNodes, wantEdges)
		}
	}
}

// AssertFinalRole asserts that node id ends the run in one of roles.
func AssertFinalRole(t *testing.T, result SimulationResult, id string, roles ...graph.Role) {
	t.Helper()
	n, ok := result.Final().Node(id)
	if !ok {
		t.Errorf("AssertFinalRole: node %s not found", id)
		return
	}
	for _, r := range roles {
		if graph.Role(n.Role) == r {
			return
		}
	}
	t.Errorf("AssertFinalRole: node %s ended as %q, want one of %v", id, n.Role, roles)
}

// AssertMaturityNonDecreasing asserts that node id never loses maturity
// between consecutive snapshots.
func AssertMaturityNonDecreasing(t *testing.T, result SimulationResult, id string) {
	t.Helper()
	prev := -1.0
	for _, rr := range allStates(result) {
		n, ok := rr.Node(id)
		if !ok || n.Maturity == nil {
			continue
		}
		if *n.Maturity < prev {
			t.Errorf("AssertMaturityNonDecreasing: round %d: node %s fell from %.6f to %.6f", rr.Index, id, prev, *n.Maturity)
		}
		prev = *n.Maturity
	}
}

// AssertMaturityConverges asserts that node id's maturity settles within
// [min, max] from round afterRound on.
func AssertMaturityConverges(t *testing.T, result SimulationResult, id string, min, max float64, afterRound int) {
	t.Helper()
	for i := afterRound; i < len(result.Rounds); i++ {
		n, ok := result.Rounds[i].Node(id)
		if !ok || n.Maturity == nil {
			t.Errorf("AssertMaturityConverges: round %d: node %s not found", i, id)
			continue
		}
		if m := *n.Maturity; m < min || m > max {
			t.Errorf("AssertMaturityConverges: round %d: node %s maturity %.6f not in [%.4f, %.4f]", i, id, m, min, max)
		}
	}
}

// AssertRuleFired asserts that rule fired at least once during the run.
func AssertRuleFired(t *testing.T, result SimulationResult, rule string) {
	t.Helper()
	for _, rr := range result.Rounds {
		if rr.Transitions[rule] > 0 {
			return
		}
	}
	t.Errorf("AssertRuleFired: rule %s never fired", rule)
}

// AssertRuleNeverFired asserts that rule did not fire in any round.
func AssertRuleNeverFired(t *testing.T, result SimulationResult, rule string) {
	t.Helper()
	for _, rr := range result.Rounds {
		if n := rr.Transitions[rule]; n > 0 {
			t.Errorf("AssertRuleNeverFired: rule %s fired %d times in round %d", rule, n, rr.Index)
		}
	}
}

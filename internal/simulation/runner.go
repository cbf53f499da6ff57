package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/interaction"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/metrics"
	"github.com/nvandessel/tango/internal/session"
	"github.com/nvandessel/tango/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ruleNames are the rules whose firings are counted per round.
var ruleNames = []string{
	interaction.RuleInversion,
	interaction.RuleDamage,
	interaction.RuleBoost,
	interaction.RulePromotion,
	interaction.RuleRipple,
}

// Runner orchestrates multi-round experiments against a real SQLite store
// and session service.
type Runner struct {
	t     *testing.T
	store *store.SQLiteGraphStore
}

// NewRunner creates a runner with an isolated SQLite store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	s, err := store.NewSQLiteGraphStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Runner{t: t, store: s}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	// Phase 1: seed the graph directly.
	r.seedGraph(ctx, scenario)

	// Phase 2: build the service.
	cfg := session.DefaultConfig()
	if scenario.Engine != nil {
		cfg.Engine = *scenario.Engine
	}
	iterations := scenario.Iterations
	if iterations == 0 {
		iterations = 1
	}
	interp := scenario.Interpreter
	if interp == nil {
		interp = interpret.NewRulesInterpreter()
	}
	collector := metrics.NewCollector()
	svc := session.NewService(r.store, interp, session.WithConfig(cfg), session.WithMetrics(collector))

	// Phase 3: add prompts without simulating them.
	for _, p := range scenario.Prompts {
		if _, err := svc.Add(ctx, scenario.Name, p, 0); err != nil {
			r.t.Fatalf("%s: Add(%q): %v", scenario.Name, p, err)
		}
	}

	result := SimulationResult{Store: r.store}
	result.Initial = r.snapshot(ctx, -1)

	// Phase 4: run rounds.
	counts := transitionCounts(collector)
	for i := 0; i < scenario.Rounds; i++ {
		if scenario.BeforeRound != nil {
			scenario.BeforeRound(i, r.store)
		}
		if _, err := svc.Simulate(ctx, iterations); err != nil {
			r.t.Fatalf("%s: round %d: Simulate: %v", scenario.Name, i, err)
		}

		round := r.snapshot(ctx, i)
		after := transitionCounts(collector)
		for rule, n := range after {
			round.Transitions[rule] = n - counts[rule]
		}
		counts = after
		result.Rounds = append(result.Rounds, round)
	}
	return result
}

// seedGraph stores the scenario's nodes and edges. Node ids are reserved
// first so later prompts never collide with them.
func (r *Runner) seedGraph(ctx context.Context, scenario Scenario) {
	r.t.Helper()
	if len(scenario.Nodes) == 0 && len(scenario.Edges) == 0 {
		return
	}

	nodes := make([]graph.NodeRecord, 0, len(scenario.Nodes))
	for _, ns := range scenario.Nodes {
		nodes = append(nodes, ns.ToRecord())
	}
	edges := make([]graph.EdgeRecord, 0, len(scenario.Edges))
	for _, es := range scenario.Edges {
		edges = append(edges, es.ToRecord())
	}
	if _, err := graph.Assemble(nodes, edges); err != nil {
		r.t.Fatalf("%s: seeded graph is invalid: %v", scenario.Name, err)
	}
	if err := r.store.SaveGraph(ctx, nodes, edges); err != nil {
		r.t.Fatalf("%s: SaveGraph: %v", scenario.Name, err)
	}
}

func (r *Runner) snapshot(ctx context.Context, index int) RoundResult {
	r.t.Helper()
	nodes, edges, err := r.store.LoadGraph(ctx)
	if err != nil {
		r.t.Fatalf("snapshot %d: LoadGraph: %v", index, err)
	}
	return RoundResult{
		Index:       index,
		Nodes:       nodes,
		Edges:       edges,
		Transitions: make(map[string]int),
	}
}

func transitionCounts(c *metrics.Collector) map[string]int {
	counts := make(map[string]int, len(ruleNames))
	for _, rule := range ruleNames {
		counts[rule] = int(testutil.ToFloat64(c.Transitions.WithLabelValues(rule)))
	}
	return counts
}

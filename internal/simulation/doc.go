// Package simulation provides a multi-round test harness for validating
// the long-run dynamics of the interaction engine.
//
// The harness exercises the real session.Service, interaction engine,
// SQLiteGraphStore and Prometheus collector. Nothing is mocked. Scenarios
// seed a graph (directly, or through prompts and an interpreter), run a
// number of rounds of engine passes, and capture a snapshot of the stored
// graph plus the rule firings after each round for property assertions.
//
// Each runner gets an isolated SQLite database via t.TempDir().
//
// Usage:
//
//	func TestTensionSpiral(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:       "tension-spiral",
//	        Nodes:      []simulation.NodeSpec{...},
//	        Edges:      []simulation.EdgeSpec{...},
//	        Rounds:     5,
//	        Iterations: 2,
//	    })
//	    simulation.AssertMaturityBounded(t, result)
//	    simulation.AssertFinalRole(t, result, "1", graph.RoleVictim)
//	}
package simulation

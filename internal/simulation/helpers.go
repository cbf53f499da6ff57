package simulation

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/nvandessel/tango/internal/graph"
)

// Chain builds n nodes "1".."n" connected in a line by edges with the given
// polarity. Every node starts at maturity and ego state Adult.
func Chain(n int, maturity, polarity float64, consent bool) ([]NodeSpec, []EdgeSpec) {
	nodes := make([]NodeSpec, n)
	for i := range nodes {
		nodes[i] = NodeSpec{ID: strconv.Itoa(i + 1), Maturity: maturity, EgoState: graph.EgoAdult}
	}
	var edges []EdgeSpec
	for i := 1; i < n; i++ {
		edges = append(edges, EdgeSpec{
			Source:   strconv.Itoa(i),
			Target:   strconv.Itoa(i + 1),
			Polarity: polarity,
			Consent:  consent,
		})
	}
	return nodes, edges
}

// RandomGraph builds a reproducible graph of n nodes and up to m distinct
// undirected edges from seed. Roles, ego states, maturities, polarities
// and flags are drawn uniformly; self-loops are never generated.
func RandomGraph(seed int64, n, m int) ([]NodeSpec, []EdgeSpec) {
	rng := rand.New(rand.NewSource(seed))
	roles := append([]graph.Role{graph.RoleNone}, graph.Roles()...)
	states := graph.EgoStates()

	nodes := make([]NodeSpec, n)
	for i := range nodes {
		nodes[i] = NodeSpec{
			ID:            strconv.Itoa(i + 1),
			Maturity:      round2(graph.MinMaturity + rng.Float64()*(graph.MaxMaturity-graph.MinMaturity)),
			EgoState:      states[rng.Intn(len(states))],
			Role:          roles[rng.Intn(len(roles))],
			Metacognition: rng.Intn(4) == 0,
		}
	}

	seen := make(map[[2]int]bool)
	var edges []EdgeSpec
	for attempts := 0; len(edges) < m && attempts < m*10; attempts++ {
		a, b := rng.Intn(n), rng.Intn(n)
		if a == b {
			continue
		}
		key := [2]int{min(a, b), max(a, b)}
		if seen[key] {
			continue
		}
		seen[key] = true

		polarity := round2(rng.Float64()*2 - 1)
		src, dst := nodes[a].Role, nodes[b].Role
		label := ""
		if src != graph.RoleNone && dst != graph.RoleNone {
			label = graph.EdgeRoleLabel(src, dst)
		}
		edges = append(edges, EdgeSpec{
			Source:   nodes[a].ID,
			Target:   nodes[b].ID,
			Polarity: polarity,
			Role:     label,
			Consent:  rng.Intn(3) == 0,
		})
	}
	return nodes, edges
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Package interaction implements the interaction engine: a fixed-length
// simulation that evolves node and edge attributes of a relationship graph
// by applying the tension-triangle, role-flip and maturity-boost rules to
// every edge on every iteration.
//
// The engine is synchronous and does no I/O. Distinct graphs may be run
// concurrently; a single graph must not be.
package interaction

import (
	"fmt"

	"github.com/nvandessel/tango/internal/graph"
)

// Config holds the rule constants. DefaultConfig reproduces the reference
// behavior; other values exist for experiments and tests.
type Config struct {
	// InversionThreshold is the |polarity| above which an edge flips. Default: 0.7.
	InversionThreshold float64

	// DamageDampening scales damage when either pole is metacognitive or the
	// edge has consent. Default: 0.3.
	DamageDampening float64

	// EmpowermentThreshold is the average maturity at or above which damage
	// flips roles to their empowered form instead of forcing Victim. Default: 3.
	EmpowermentThreshold float64

	// BaseBoost and ConsentBoost multiply the boost without and with consent.
	// Defaults: 1.2 and 1.5.
	BaseBoost    float64
	ConsentBoost float64

	// PromotionThreshold is the boost above which ego states are promoted. Default: 0.5.
	PromotionThreshold float64

	// RippleFactor is the share of a boost passed to the source's neighbors. Default: 0.4.
	RippleFactor float64

	// RippleCeiling is the maturity above which neighbors ignore ripples. Default: 4.
	RippleCeiling float64
}

// DefaultConfig returns the reference rule constants.
func DefaultConfig() Config {
	return Config{
		InversionThreshold:   0.7,
		DamageDampening:      0.3,
		EmpowermentThreshold: 3,
		BaseBoost:            1.2,
		ConsentBoost:         1.5,
		PromotionThreshold:   0.5,
		RippleFactor:         0.4,
		RippleCeiling:        4,
	}
}

// MissingNodeError reports an edge endpoint that is absent from the graph
// when the engine reads it. It signals a caller bug; the graph is left in
// whatever state it reached.
type MissingNodeError struct {
	Iteration int
	SourceID  graph.ID
	TargetID  graph.ID
	Missing   graph.ID
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("iteration %d: edge %s -> %s references missing node %s", e.Iteration, e.SourceID, e.TargetID, e.Missing)
}

// Step is a snapshot of the graph after an iteration. Step 0 is the initial
// state.
type Step struct {
	Iteration int                `json:"iteration"`
	Nodes     []graph.NodeRecord `json:"nodes"`
	Edges     []graph.EdgeRecord `json:"edges"`
}

// Engine applies the interaction rules. It keeps no graph state between
// calls.
type Engine struct {
	config Config
	tracer Tracer
}

// NewEngine creates an engine with the given rule constants.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// WithTracer attaches a tracer that observes every rule firing.
func (e *Engine) WithTracer(t Tracer) *Engine {
	e.tracer = t
	return e
}

// Run mutates g in place for exactly iterations passes and returns it.
// Zero iterations leave g untouched.
func (e *Engine) Run(g *graph.Graph, iterations int) (*graph.Graph, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("iterations must be non-negative, got %d", iterations)
	}
	for i := 0; i < iterations; i++ {
		if err := e.iterate(g, i); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// RunWithSteps behaves like Run and additionally returns iterations+1
// snapshots: the initial state followed by the state after each pass.
func (e *Engine) RunWithSteps(g *graph.Graph, iterations int) ([]Step, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("iterations must be non-negative, got %d", iterations)
	}
	steps := make([]Step, 0, iterations+1)
	steps = append(steps, snapshot(g, 0))
	for i := 0; i < iterations; i++ {
		if err := e.iterate(g, i); err != nil {
			return steps, err
		}
		steps = append(steps, snapshot(g, i+1))
	}
	return steps, nil
}

// iterate runs one pass. The edge order is frozen before the pass starts,
// so an edge is visited exactly once per iteration. Node state is read and
// written live: ripples from earlier edges are visible to later ones, which
// makes the outcome depend on edge order.
func (e *Engine) iterate(g *graph.Graph, iteration int) error {
	for _, edge := range g.Edges() {
		if err := e.applyInteraction(g, edge, iteration); err != nil {
			return err
		}
	}
	return nil
}

func snapshot(g *graph.Graph, iteration int) Step {
	nodes, edges := g.Records()
	return Step{Iteration: iteration, Nodes: nodes, Edges: edges}
}

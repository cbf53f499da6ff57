package interaction

import "github.com/nvandessel/tango/internal/graph"

// Rule names reported in transitions.
const (
	RuleInversion = "inversion"
	RuleDamage    = "damage"
	RuleBoost     = "boost"
	RulePromotion = "promotion"
	RuleRipple    = "ripple"
)

// Transition describes one rule firing.
type Transition struct {
	Iteration int
	Rule      string
	NodeID    graph.ID // empty for edge-level rules
	SourceID  graph.ID
	TargetID  graph.ID
	From      string
	To        string

	// Value is the new polarity for inversions, the boost for boosts and
	// the maturity change for damage and ripples.
	Value float64
}

// Fields returns the transition as a flat map for structured logs.
func (t Transition) Fields() map[string]any {
	fields := map[string]any{
		"event":     "interaction",
		"iteration": t.Iteration,
		"rule":      t.Rule,
		"source_id": string(t.SourceID),
		"target_id": string(t.TargetID),
		"value":     t.Value,
	}
	if t.NodeID != "" {
		fields["node_id"] = string(t.NodeID)
	}
	if t.From != "" || t.To != "" {
		fields["from"] = t.From
		fields["to"] = t.To
	}
	return fields
}

// Tracer observes rule firings.
type Tracer interface {
	Trace(Transition)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(Transition)

// Trace calls f(t).
func (f TracerFunc) Trace(t Transition) { f(t) }

func (e *Engine) trace(t Transition) {
	if e.tracer != nil {
		e.tracer.Trace(t)
	}
}

package interaction

import (
	"fmt"
	"math"

	"github.com/nvandessel/tango/internal/graph"
)

// applyInteraction runs the rule for a single edge.
func (e *Engine) applyInteraction(g *graph.Graph, edge *graph.Edge, iteration int) error {
	u, ok := g.Node(edge.SourceID)
	if !ok {
		return &MissingNodeError{Iteration: iteration, SourceID: edge.SourceID, TargetID: edge.TargetID, Missing: edge.SourceID}
	}
	v, ok := g.Node(edge.TargetID)
	if !ok {
		return &MissingNodeError{Iteration: iteration, SourceID: edge.SourceID, TargetID: edge.TargetID, Missing: edge.TargetID}
	}

	e.invert(edge, iteration)

	avg := (u.Maturity + v.Maturity) / 2

	if edge.Polarity < 0 && edge.LightShadow == graph.Shadow && graph.IsTensionRole(edge.Role) {
		e.damage(edge, u, v, avg, iteration)
		return nil
	}
	return e.boost(g, edge, u, v, avg, iteration)
}

// invert flips strong or shadowed edges before the branch is chosen.
func (e *Engine) invert(edge *graph.Edge, iteration int) {
	if math.Abs(edge.Polarity) <= e.config.InversionThreshold && edge.LightShadow != graph.Shadow {
		return
	}
	from := edge.LightShadow
	edge.Polarity = -edge.Polarity
	edge.LightShadow = edge.LightShadow.Toggle()
	edge.Description += fmt.Sprintf(" (flipped to %s—tango spin!)", edge.LightShadow)

	e.trace(Transition{
		Iteration: iteration,
		Rule:      RuleInversion,
		SourceID:  edge.SourceID,
		TargetID:  edge.TargetID,
		From:      string(from),
		To:        string(edge.LightShadow),
		Value:     edge.Polarity,
	})
}

// damage applies the tension-triangle branch.
func (e *Engine) damage(edge *graph.Edge, u, v *graph.Node, avg float64, iteration int) {
	reduction := 1.0
	if u.Metacognition || v.Metacognition || edge.Consent {
		reduction = e.config.DamageDampening
	}
	loss := math.Abs(edge.Polarity) * reduction
	newU := math.Max(graph.MinMaturity, u.Maturity-loss)
	newV := math.Max(graph.MinMaturity, v.Maturity-loss)

	if avg < e.config.EmpowermentThreshold {
		for _, n := range []*graph.Node{u, v} {
			if n.Role.Weight() <= 0 {
				n.Role = graph.RoleVictim
			}
		}
	} else {
		u.Role = u.Role.Empowered()
		v.Role = v.Role.Empowered()
		edge.Role = graph.EdgeRoleLabel(u.Role, v.Role)
	}

	for _, p := range []struct {
		n        *graph.Node
		maturity float64
	}{{u, newU}, {v, newV}} {
		delta := p.maturity - p.n.Maturity
		p.n.Maturity = p.maturity
		p.n.AppendHistory(p.n.EgoState.String(), string(p.n.Role))

		e.trace(Transition{
			Iteration: iteration,
			Rule:      RuleDamage,
			NodeID:    p.n.ID,
			SourceID:  edge.SourceID,
			TargetID:  edge.TargetID,
			From:      p.n.EgoState.String(),
			To:        string(p.n.Role),
			Value:     delta,
		})
	}
}

// boost applies the growth branch, including ego promotion and the ripple
// to the source's neighbors.
func (e *Engine) boost(g *graph.Graph, edge *graph.Edge, u, v *graph.Node, avg float64, iteration int) error {
	factor := e.config.BaseBoost
	if edge.Consent {
		factor = e.config.ConsentBoost
	}
	boost := edge.Polarity * (avg / graph.MaxMaturity) * factor

	candidate := candidateEgoState(u.EgoState)
	for _, n := range []*graph.Node{u, v} {
		if boost > e.config.PromotionThreshold || n.Metacognition {
			from := n.EgoState
			n.EgoState = candidate
			n.AppendHistory(from.String(), candidate.String())

			e.trace(Transition{
				Iteration: iteration,
				Rule:      RulePromotion,
				NodeID:    n.ID,
				SourceID:  edge.SourceID,
				TargetID:  edge.TargetID,
				From:      from.String(),
				To:        candidate.String(),
			})
		}
	}

	u.Maturity = graph.ClampMaturity(u.Maturity + boost)
	v.Maturity = graph.ClampMaturity(v.Maturity + boost)

	e.trace(Transition{
		Iteration: iteration,
		Rule:      RuleBoost,
		SourceID:  edge.SourceID,
		TargetID:  edge.TargetID,
		Value:     boost,
	})

	// Ripple reaches every neighbor of u, v included, but not v's neighbors.
	for _, id := range g.Neighbors(u.ID) {
		w, ok := g.Node(id)
		if !ok {
			return &MissingNodeError{Iteration: iteration, SourceID: edge.SourceID, TargetID: edge.TargetID, Missing: id}
		}
		if w.Maturity > e.config.RippleCeiling {
			continue
		}
		before := w.Maturity
		w.Maturity = graph.ClampMaturity(w.Maturity + boost*e.config.RippleFactor)

		e.trace(Transition{
			Iteration: iteration,
			Rule:      RuleRipple,
			NodeID:    w.ID,
			SourceID:  edge.SourceID,
			TargetID:  edge.TargetID,
			Value:     w.Maturity - before,
		})
	}
	return nil
}

// candidateEgoState returns the highest-ranked state above current. When no
// state ranks above current the search falls back to the highest-ranked
// state overall, so a candidate always exists.
func candidateEgoState(current graph.EgoState) graph.EgoState {
	states := graph.EgoStates()

	var best graph.EgoState
	found := false
	for _, s := range states {
		if s.Rank() <= current.Rank() {
			continue
		}
		if !found || s.Rank() > best.Rank() {
			best = s
			found = true
		}
	}
	if found {
		return best
	}

	best = states[0]
	for _, s := range states[1:] {
		if s.Rank() > best.Rank() {
			best = s
		}
	}
	return best
}

package interpret

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/sanitize"
)

// InterpretPrompt builds the instruction sent to hosted models.
func InterpretPrompt(prompt string) string {
	return fmt.Sprintf(`You map statements about relationships onto a graph of two poles.

A pole is a person, a part of a person, or a force in their life. Describe each pole with:
- name: a short label (max 8 words)
- maturity: a number from 1 (least developed) to 5 (most developed)
- ego_state: one of "Free Child", "Adapted Child", "Adult", "Nurturing Parent", "Controlling Parent"
- role: one of "Victim", "Rescuer", "Persecutor", "Creator", "Coach", "Challenger", or "" if none fits
- metacognition: true if the pole shows awareness of its own patterns

Describe the relation from source to target with:
- polarity: a number from -1 (hostile, draining) to 1 (warm, nourishing)
- light_shadow: "light" or "shadow"
- role: "<source role>-<target role>", for example "Victim-Persecutor"
- consent: true if both sides freely chose the dynamic
- description: one sentence

Statement:
%s

Respond with JSON only, in exactly this format:
{
  "source": {"name": "...", "maturity": 3, "ego_state": "Adult", "role": "", "metacognition": false},
  "target": {"name": "...", "maturity": 3, "ego_state": "Adult", "role": "", "metacognition": false},
  "relation": {"polarity": 0.0, "light_shadow": "light", "role": "", "consent": false, "description": "..."},
  "reasoning": "..."
}`, prompt)
}

// ParseInterpretation parses a model response into a normalized
// Interpretation.
func ParseInterpretation(response string) (*Interpretation, error) {
	jsonStr := ExtractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var in Interpretation
	if err := json.Unmarshal([]byte(jsonStr), &in); err != nil {
		return nil, fmt.Errorf("parsing interpretation: %w", err)
	}
	if in.Source.Name == "" && in.Target.Name == "" {
		return nil, fmt.Errorf("interpretation names no poles")
	}

	Normalize(&in)
	return &in, nil
}

// Normalize coerces an interpretation into values the assembler accepts:
// names and descriptions are sanitized, unknown enum labels become unset,
// numbers are clamped, and a missing edge role or light/shadow tag is
// derived from the poles and polarity.
func Normalize(in *Interpretation) {
	normalizePole(&in.Source)
	normalizePole(&in.Target)

	rel := &in.Relation
	rel.Polarity = graph.ClampPolarity(rel.Polarity)
	rel.Description = sanitize.SanitizeDescription(rel.Description)

	if ls, err := graph.ParseLightShadow(rel.LightShadow); err == nil && strings.TrimSpace(rel.LightShadow) != "" {
		rel.LightShadow = string(ls)
	} else if rel.Polarity < 0 {
		rel.LightShadow = string(graph.Shadow)
	} else {
		rel.LightShadow = string(graph.Light)
	}

	rel.Role = canonicalRelationRole(sanitize.SanitizeDescription(rel.Role))
	if rel.Role == "" {
		rel.Role = RelationRole(graph.Role(in.Source.Role), graph.Role(in.Target.Role))
	}
}

func normalizePole(p *Pole) {
	p.Name = sanitize.SanitizeName(p.Name)

	if p.Maturity != nil {
		if math.IsNaN(*p.Maturity) {
			p.Maturity = nil
		} else {
			p.Maturity = graph.Float64(graph.ClampMaturity(*p.Maturity))
		}
	}

	if state, err := graph.ParseEgoState(p.EgoState); err == nil {
		if strings.TrimSpace(p.EgoState) == "" {
			p.EgoState = ""
		} else {
			p.EgoState = state.String()
		}
	} else {
		p.EgoState = ""
	}

	if role, err := graph.ParseRole(p.Role); err == nil {
		p.Role = string(role)
	} else {
		p.Role = ""
	}
}

// RelationRole labels an edge from its poles' roles. The two tension pairs
// get their canonical label regardless of direction; otherwise the label is
// "<source>-<target>", or "" when either role is unset.
func RelationRole(source, target graph.Role) string {
	if source == graph.RoleNone || target == graph.RoleNone {
		return ""
	}
	pair := map[graph.Role]bool{source: true, target: true}
	switch {
	case pair[graph.RoleVictim] && pair[graph.RoleRescuer] && len(pair) == 2:
		return graph.EdgeRoleVictimRescuer
	case pair[graph.RoleVictim] && pair[graph.RolePersecutor] && len(pair) == 2:
		return graph.EdgeRoleVictimPersecutor
	}
	return graph.EdgeRoleLabel(source, target)
}

// tensionLabels maps loosely written tension pairs, in either order, to
// their canonical edge role.
var tensionLabels = map[string]string{
	"victim rescuer":    graph.EdgeRoleVictimRescuer,
	"rescuer victim":    graph.EdgeRoleVictimRescuer,
	"victim persecutor": graph.EdgeRoleVictimPersecutor,
	"persecutor victim": graph.EdgeRoleVictimPersecutor,
}

// canonicalRelationRole rewrites "victim-persecutor", "Victim - Rescuer"
// and similar spellings of the tension pairs to the canonical labels.
// Other labels are returned unchanged.
func canonicalRelationRole(label string) string {
	key := strings.ToLower(label)
	key = strings.NewReplacer("-", " ", "_", " ", "/", " ", "–", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	if canonical, ok := tensionLabels[key]; ok {
		return canonical
	}
	return label
}

var (
	jsonBlockRe    = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\s*```")
	genericBlockRe = regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\s*```")
)

// ExtractJSON extracts a JSON object from a model response that may wrap it
// in markdown code fences or surrounding prose.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if matches := jsonBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	if matches := genericBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	// Prose around a bare object.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return ""
}

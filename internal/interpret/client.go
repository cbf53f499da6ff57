// Package interpret turns a free-text statement about a relationship into
// two poles and the relation between them. It supports hosted LLM backends
// (Anthropic, OpenAI, xAI Grok), a local embedding model, and a keyword
// rule set used as a fallback.
package interpret

import (
	"context"
	"time"

	"github.com/nvandessel/tango/internal/graph"
)

// Pole describes one side of the relationship.
type Pole struct {
	Name string `json:"name" yaml:"name"`

	// Maturity is nil when the interpreter has no opinion.
	Maturity      *float64 `json:"maturity,omitempty" yaml:"maturity,omitempty"`
	EgoState      string   `json:"ego_state,omitempty" yaml:"ego_state,omitempty"`
	Role          string   `json:"role,omitempty" yaml:"role,omitempty"`
	Metacognition bool     `json:"metacognition,omitempty" yaml:"metacognition,omitempty"`
}

// Relation describes how the source pole relates to the target pole.
type Relation struct {
	Polarity    float64 `json:"polarity" yaml:"polarity"`
	LightShadow string  `json:"light_shadow,omitempty" yaml:"light_shadow,omitempty"`
	Role        string  `json:"role,omitempty" yaml:"role,omitempty"`
	Consent     bool    `json:"consent,omitempty" yaml:"consent,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Interpretation is the result of interpreting one prompt.
type Interpretation struct {
	Source   Pole     `json:"source" yaml:"source"`
	Target   Pole     `json:"target" yaml:"target"`
	Relation Relation `json:"relation" yaml:"relation"`

	// Interpreter names the backend that produced the result.
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`

	// Reasoning is the backend's explanation, when it gives one.
	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// Interpreter converts a prompt into an Interpretation.
type Interpreter interface {
	// Interpret analyzes prompt. The prompt is expected to be sanitized.
	Interpret(ctx context.Context, prompt string) (*Interpretation, error)

	// Available reports whether the backend is configured and usable.
	Available() bool
}

// ClientConfig configures a hosted interpreter.
type ClientConfig struct {
	// Provider identifies the backend: "anthropic", "openai", "xai", "local", "rules".
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the provider key (not used by local or rules).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the model identifier to use for requests.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout is the maximum duration to wait for a response.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultTimeout applies when ClientConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ToRecords converts an interpretation into two node records and the edge
// record between them, using the given ids for the source and target poles.
// An empty pole name falls back to "Pole <id>".
func ToRecords(in *Interpretation, sourceID, targetID graph.ID) ([]graph.NodeRecord, []graph.EdgeRecord) {
	source := poleRecord(in.Source, sourceID)
	target := poleRecord(in.Target, targetID)

	edge := graph.EdgeRecord{
		SourceID:    sourceID,
		TargetID:    targetID,
		Polarity:    in.Relation.Polarity,
		LightShadow: in.Relation.LightShadow,
		Role:        in.Relation.Role,
		Consent:     in.Relation.Consent,
		Description: in.Relation.Description,
	}
	return []graph.NodeRecord{source, target}, []graph.EdgeRecord{edge}
}

func poleRecord(p Pole, id graph.ID) graph.NodeRecord {
	name := p.Name
	if name == "" {
		name = "Pole " + string(id)
	}
	r := graph.NodeRecord{
		ID:            id,
		Name:          name,
		EgoState:      p.EgoState,
		Role:          p.Role,
		Metacognition: p.Metacognition,
	}
	if p.Maturity != nil {
		r.Maturity = graph.Float64(*p.Maturity)
	}
	return r
}

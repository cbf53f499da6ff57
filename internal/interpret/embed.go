package interpret

import (
	"context"
	"fmt"
	"sync"

	"github.com/nvandessel/tango/internal/graph"
)

// DefaultRoleThreshold is the minimum cosine similarity for a pole to take
// a prototype's role.
const DefaultRoleThreshold = 0.35

// LocalConfig configures the local embedding model.
type LocalConfig struct {
	// LibPath is the directory containing the llama.cpp shared libraries.
	// Falls back to YZMA_LIB env var at runtime.
	LibPath string

	// ModelPath is the path to the GGUF embedding model.
	ModelPath string

	// GPULayers is the number of layers to offload to GPU (0 = CPU only).
	GPULayers int

	// ContextSize is the context window size in tokens.
	ContextSize int
}

// EmbeddingInterpreter splits prompts with the keyword rules, then assigns
// each pole the role whose prototype phrase is nearest in embedding space.
type EmbeddingInterpreter struct {
	embedder  Embedder
	rules     *RulesInterpreter
	threshold float64

	mu         sync.Mutex
	prototypes map[string][]float32
}

// NewEmbeddingInterpreter creates an EmbeddingInterpreter over embedder.
func NewEmbeddingInterpreter(embedder Embedder) *EmbeddingInterpreter {
	return &EmbeddingInterpreter{
		embedder:  embedder,
		rules:     NewRulesInterpreter(),
		threshold: DefaultRoleThreshold,
	}
}

// NewLocalInterpreter creates an EmbeddingInterpreter backed by a local GGUF
// model. Without the llamacpp build tag it is never available.
func NewLocalInterpreter(cfg LocalConfig) *EmbeddingInterpreter {
	return NewEmbeddingInterpreter(NewLocalEmbedder(cfg))
}

// Available reports whether the embedder is usable.
func (e *EmbeddingInterpreter) Available() bool {
	return e.embedder.Available()
}

// Interpret classifies both poles by embedding similarity. Poles whose best
// match is below the threshold keep the keyword role.
func (e *EmbeddingInterpreter) Interpret(ctx context.Context, prompt string) (*Interpretation, error) {
	if !e.Available() {
		return nil, fmt.Errorf("local interpreter not available")
	}

	in, err := e.rules.Interpret(ctx, prompt)
	if err != nil {
		return nil, err
	}

	prototypes, err := e.loadPrototypes(ctx)
	if err != nil {
		return nil, err
	}

	for _, pole := range []*Pole{&in.Source, &in.Target} {
		vec, err := e.embedder.Embed(ctx, fmt.Sprintf("%s, in: %s", pole.Name, prompt))
		if err != nil {
			return nil, fmt.Errorf("embedding pole %q: %w", pole.Name, err)
		}
		role, score := nearestRole(vec, prototypes)
		if score < e.threshold {
			continue
		}
		pole.Role = role
		pole.EgoState = egoStateForRole(graph.Role(role))
		pole.Maturity = maturityForRole(graph.Role(role))
	}

	in.Relation.Role = ""
	in.Interpreter = "local"
	in.Reasoning = "nearest role prototype by embedding similarity"
	Normalize(in)
	return in, nil
}

// loadPrototypes embeds the role prototype phrases once.
func (e *EmbeddingInterpreter) loadPrototypes(ctx context.Context) (map[string][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prototypes != nil {
		return e.prototypes, nil
	}

	prototypes := make(map[string][]float32, len(rolePrototypes))
	for role, phrase := range rolePrototypes {
		vec, err := e.embedder.Embed(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("embedding %s prototype: %w", role, err)
		}
		prototypes[role] = vec
	}
	e.prototypes = prototypes
	return prototypes, nil
}

// Package session is the application service shared by the CLI, the HTTP
// server and the MCP server. It turns prompts into graph records, runs the
// interaction engine over the stored graph and persists the result.
//
// All public methods are safe for concurrent use. Operations that read,
// simulate and write the stored graph are serialized.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/interaction"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/logging"
	"github.com/nvandessel/tango/internal/metrics"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/sanitize"
	"github.com/nvandessel/tango/internal/store"
)

var (
	// ErrEmptyPrompt is returned when a prompt is blank after sanitization.
	ErrEmptyPrompt = errors.New("prompt is required")

	// ErrNegativeIterations is returned for a negative iteration count.
	ErrNegativeIterations = errors.New("iterations must be non-negative")

	// ErrInterpret wraps every failure of the interpreter in Add.
	ErrInterpret = errors.New("interpreting prompt")
)

// DefaultIterations is the number of engine passes when none is configured.
const DefaultIterations = 5

// Config holds service configuration.
type Config struct {
	// Iterations is the default number of engine passes. Default: 5.
	Iterations int

	// Engine holds the interaction rule constants.
	Engine interaction.Config
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Iterations: DefaultIterations,
		Engine:     interaction.DefaultConfig(),
	}
}

// Service coordinates the interpreter, the store and the engine.
type Service struct {
	mu sync.Mutex

	store       store.GraphStore
	interpreter interpret.Interpreter
	config      Config

	limiter   *ratelimit.Limiter
	metrics   *metrics.Collector
	decisions *logging.DecisionLogger
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConfig overrides the default configuration.
func WithConfig(c Config) Option {
	return func(s *Service) { s.config = c }
}

// WithLimiter throttles Add per client key.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics records operation metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithDecisionLogger writes every engine rule firing to dl.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(s *Service) { s.decisions = dl }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service over st, interpreting prompts with interp.
func NewService(st store.GraphStore, interp interpret.Interpreter, opts ...Option) *Service {
	s := &Service{
		store:       st,
		interpreter: interp,
		config:      DefaultConfig(),
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Iterations returns the configured default number of engine passes.
func (s *Service) Iterations() int {
	return s.config.Iterations
}

// AddResult is the outcome of adding one prompt.
type AddResult struct {
	PromptID       string                    `json:"prompt_id"`
	Interpretation *interpret.Interpretation `json:"interpretation"`

	// SourceID and TargetID are the ids allocated to the new poles.
	SourceID graph.ID `json:"source_id"`
	TargetID graph.ID `json:"target_id"`

	// Nodes and Edges are the whole stored graph after simulation.
	Nodes []graph.NodeRecord `json:"nodes"`
	Edges []graph.EdgeRecord `json:"edges"`

	// Graph is the simulated graph the records were taken from.
	Graph *graph.Graph `json:"-"`
}

// Add interprets prompt into two new poles and the edge between them,
// appends them to the stored graph, runs iterations engine passes over the
// whole graph and saves it. client keys the rate limiter.
func (s *Service) Add(ctx context.Context, client, prompt string, iterations int) (*AddResult, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNegativeIterations, iterations)
	}
	clean := sanitize.SanitizePrompt(prompt)
	if strings.TrimSpace(clean) == "" {
		return nil, ErrEmptyPrompt
	}
	if s.limiter != nil {
		if err := s.limiter.Check(client); err != nil {
			s.metrics.Limited()
			return nil, err
		}
	}

	start := time.Now()
	in, err := s.interpreter.Interpret(ctx, clean)
	if err != nil {
		s.metrics.InterpretFailed()
		return nil, fmt.Errorf("%w: %w", ErrInterpret, err)
	}
	interpreted := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	sourceID, err := s.store.NextNodeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocating node id: %w", err)
	}
	targetID, err := s.store.NextNodeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocating node id: %w", err)
	}

	nodes, edges, err := s.store.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	newNodes, newEdges := interpret.ToRecords(in, sourceID, targetID)
	nodes = append(nodes, newNodes...)
	edges = append(edges, newEdges...)

	g, err := s.simulate(nodes, edges, iterations)
	if err != nil {
		return nil, err
	}
	outNodes, outEdges := g.Records()
	if err := s.store.SaveGraph(ctx, outNodes, outEdges); err != nil {
		return nil, fmt.Errorf("saving graph: %w", err)
	}

	promptID, err := s.store.AddPrompt(ctx, store.Prompt{Text: clean, Nodes: newNodes, Edges: newEdges})
	if err != nil {
		return nil, fmt.Errorf("recording prompt: %w", err)
	}

	s.metrics.PromptAdded(in.Interpreter, interpreted)
	s.logger.Info("prompt added",
		"prompt_id", promptID,
		"interpreter", in.Interpreter,
		"source", in.Source.Name,
		"target", in.Target.Name,
		"nodes", len(outNodes),
		"edges", len(outEdges),
	)

	return &AddResult{
		PromptID:       promptID,
		Interpretation: in,
		SourceID:       sourceID,
		TargetID:       targetID,
		Nodes:          outNodes,
		Edges:          outEdges,
		Graph:          g,
	}, nil
}

// Simulate runs iterations engine passes over the stored graph and saves
// the result.
func (s *Service) Simulate(ctx context.Context, iterations int) (*graph.Graph, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNegativeIterations, iterations)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, edges, err := s.store.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	g, err := s.simulate(nodes, edges, iterations)
	if err != nil {
		return nil, err
	}
	outNodes, outEdges := g.Records()
	if err := s.store.SaveGraph(ctx, outNodes, outEdges); err != nil {
		return nil, fmt.Errorf("saving graph: %w", err)
	}

	s.logger.Info("graph simulated", "iterations", iterations, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

// Steps previews iterations engine passes over the stored graph and returns
// a snapshot per pass. The stored graph is not changed.
func (s *Service) Steps(ctx context.Context, iterations int) ([]interaction.Step, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNegativeIterations, iterations)
	}
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	steps, err := interaction.NewEngine(s.config.Engine).RunWithSteps(g, iterations)
	if err != nil {
		return nil, fmt.Errorf("running engine: %w", err)
	}
	return steps, nil
}

// Graph assembles the stored graph without simulating it.
func (s *Service) Graph(ctx context.Context) (*graph.Graph, error) {
	s.mu.Lock()
	nodes, edges, err := s.store.LoadGraph(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	g, err := graph.Assemble(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("assembling graph: %w", err)
	}
	s.metrics.GraphSize(g.NodeCount(), g.EdgeCount())
	return g, nil
}

// Prompts returns up to limit recorded prompts, newest first.
func (s *Service) Prompts(ctx context.Context, limit int) ([]store.Prompt, error) {
	return s.store.ListPrompts(ctx, limit)
}

// Reset deletes every prompt, node and edge.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	s.metrics.GraphSize(0, 0)
	s.logger.Info("graph reset")
	return nil
}

// simulate assembles records and runs the engine. Callers hold s.mu.
func (s *Service) simulate(nodes []graph.NodeRecord, edges []graph.EdgeRecord, iterations int) (*graph.Graph, error) {
	g, err := graph.Assemble(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("assembling graph: %w", err)
	}

	start := time.Now()
	engine := interaction.NewEngine(s.config.Engine).WithTracer(s.tracer())
	if _, err := engine.Run(g, iterations); err != nil {
		return nil, fmt.Errorf("running engine: %w", err)
	}
	s.metrics.Simulated(g.NodeCount(), g.EdgeCount(), time.Since(start))
	return g, nil
}

// tracer fans rule firings out to the decision log and the metrics.
func (s *Service) tracer() interaction.Tracer {
	decisions := s.decisions.Tracer()
	if decisions == nil && s.metrics == nil {
		return nil
	}
	return interaction.TracerFunc(func(t interaction.Transition) {
		if decisions != nil {
			decisions.Trace(t)
		}
		s.metrics.Transition(t.Rule)
	})
}

package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/tango/internal/graph"
)

// InMemoryGraphStore implements GraphStore for testing and development.
type InMemoryGraphStore struct {
	mu      sync.RWMutex
	nodes   []graph.NodeRecord
	edges   []graph.EdgeRecord
	prompts []Prompt
	counter int64
	closed  bool
}

// NewInMemoryGraphStore creates a new in-memory store.
func NewInMemoryGraphStore() *InMemoryGraphStore {
	return &InMemoryGraphStore{}
}

// LoadGraph returns copies of the stored records.
func (s *InMemoryGraphStore) LoadGraph(ctx context.Context) ([]graph.NodeRecord, []graph.EdgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, ErrClosed
	}
	return copyNodes(s.nodes), append([]graph.EdgeRecord(nil), s.edges...), nil
}

// SaveGraph replaces the stored graph, keeping the position of nodes that
// were already stored.
func (s *InMemoryGraphStore) SaveGraph(ctx context.Context, nodes []graph.NodeRecord, edges []graph.EdgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	incoming := make(map[graph.ID]graph.NodeRecord, len(nodes))
	for _, n := range nodes {
		incoming[n.ID] = n
	}
	for i, e := range edges {
		for _, id := range []graph.ID{e.SourceID, e.TargetID} {
			if _, ok := incoming[id]; !ok {
				return fmt.Errorf("failed to save edge %d (%s-%s): node %s not stored", i, e.SourceID, e.TargetID, id)
			}
		}
	}

	merged := make([]graph.NodeRecord, 0, len(nodes))
	seen := make(map[graph.ID]bool, len(nodes))
	for _, existing := range s.nodes {
		if n, ok := incoming[existing.ID]; ok {
			merged = append(merged, n)
			seen[n.ID] = true
		}
	}
	for _, n := range nodes {
		if !seen[n.ID] {
			merged = append(merged, incoming[n.ID])
			seen[n.ID] = true
		}
	}

	s.nodes = copyNodes(merged)
	s.edges = append([]graph.EdgeRecord(nil), edges...)
	return nil
}

// NextNodeID allocates the next integer id, skipping any id already taken.
func (s *InMemoryGraphStore) NextNodeID(ctx context.Context) (graph.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	taken := make(map[graph.ID]bool, len(s.nodes))
	for _, n := range s.nodes {
		taken[n.ID] = true
	}
	for {
		s.counter++
		id := graph.ID(strconv.FormatInt(s.counter, 10))
		if !taken[id] {
			return id, nil
		}
	}
}

// AddPrompt records a prompt.
func (s *InMemoryGraphStore) AddPrompt(ctx context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range s.prompts {
		if existing.ID == p.ID {
			return "", fmt.Errorf("failed to insert prompt: duplicate id %s", p.ID)
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Nodes = copyNodes(p.Nodes)
	p.Edges = append([]graph.EdgeRecord(nil), p.Edges...)
	s.prompts = append(s.prompts, p)
	return p.ID, nil
}

// ListPrompts returns up to limit prompts, newest first.
func (s *InMemoryGraphStore) ListPrompts(ctx context.Context, limit int) ([]Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]Prompt, len(s.prompts))
	for i, p := range s.prompts {
		out[len(s.prompts)-1-i] = p
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reset deletes all prompts, nodes and edges. The id counter survives.
func (s *InMemoryGraphStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.nodes = nil
	s.edges = nil
	s.prompts = nil
	return nil
}

// Close marks the store closed.
func (s *InMemoryGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// copyNodes copies records including the Maturity pointee.
func copyNodes(in []graph.NodeRecord) []graph.NodeRecord {
	if in == nil {
		return nil
	}
	out := make([]graph.NodeRecord, len(in))
	for i, n := range in {
		if n.Maturity != nil {
			n.Maturity = graph.Float64(*n.Maturity)
		}
		out[i] = n
	}
	return out
}

// Package store persists the relationship graph between requests, along with
// an audit of the prompts that built it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/tango/internal/graph"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Prompt is one interpreted statement and the records it produced.
type Prompt struct {
	ID        string             `json:"id"`
	Text      string             `json:"prompt"`
	Nodes     []graph.NodeRecord `json:"nodes"`
	Edges     []graph.EdgeRecord `json:"edges"`
	CreatedAt time.Time          `json:"created_at"`
}

// GraphStore stores the graph as flat records. Load order is insertion
// order for both nodes and edges, which is the order the interaction engine
// walks them.
type GraphStore interface {
	// LoadGraph returns every stored node and edge record.
	LoadGraph(ctx context.Context) ([]graph.NodeRecord, []graph.EdgeRecord, error)

	// SaveGraph replaces the stored graph with the given records in one
	// transaction. Existing nodes keep their position; nodes absent from
	// the input are removed; edges are replaced wholesale.
	SaveGraph(ctx context.Context, nodes []graph.NodeRecord, edges []graph.EdgeRecord) error

	// NextNodeID allocates a fresh integer node id. IDs are never reused,
	// not even after Reset.
	NextNodeID(ctx context.Context) (graph.ID, error)

	// AddPrompt records a prompt. An empty ID is replaced by a new UUID.
	AddPrompt(ctx context.Context, p Prompt) (string, error)

	// ListPrompts returns up to limit prompts, newest first. A limit <= 0
	// returns all of them.
	ListPrompts(ctx context.Context, limit int) ([]Prompt, error)

	// Reset deletes all prompts, nodes and edges.
	Reset(ctx context.Context) error

	Close() error
}

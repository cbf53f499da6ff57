// Package graph holds the attributed relationship graph: poles as nodes,
// relationships as edges, and the assembler that builds a graph from flat
// node and edge records.
//
// A Graph is request-scoped. Topology is fixed once assembled; only node and
// edge attributes change afterwards.
package graph

import "math"

// Maturity and polarity domains.
const (
	MinMaturity     = 1.0
	MaxMaturity     = 5.0
	DefaultMaturity = 3.0
	MinPolarity     = -1.0
	MaxPolarity     = 1.0
)

// Node is one pole of a relationship.
type Node struct {
	ID            ID
	Name          string
	Maturity      float64
	EgoState      EgoState
	Role          Role
	Metacognition bool

	// History is an append-only log of "<from>→<to>" transitions.
	History []string
}

// AppendHistory records a transition from one label to another.
func (n *Node) AppendHistory(from, to string) {
	n.History = append(n.History, from+"→"+to)
}

// Record converts the node back to its flat record shape.
func (n *Node) Record() NodeRecord {
	return NodeRecord{
		ID:            n.ID,
		Name:          n.Name,
		Maturity:      Float64(n.Maturity),
		EgoState:      n.EgoState.String(),
		Role:          string(n.Role),
		Metacognition: n.Metacognition,
		History:       formatHistory(n.History),
	}
}

// Edge is one relationship between two nodes. Storage is undirected but the
// (SourceID, TargetID) order is significant to the interaction rules.
type Edge struct {
	SourceID    ID
	TargetID    ID
	Polarity    float64
	LightShadow LightShadow

	// Role is a free-form label such as "Victim-Persecutor".
	Role    string
	Consent bool

	// Description is append-only.
	Description string
}

// Record converts the edge back to its flat record shape.
func (e *Edge) Record() EdgeRecord {
	return EdgeRecord{
		SourceID:    e.SourceID,
		TargetID:    e.TargetID,
		Polarity:    e.Polarity,
		LightShadow: string(e.LightShadow),
		Role:        e.Role,
		Consent:     e.Consent,
		Description: e.Description,
	}
}

// Graph is a set of nodes plus a set of edges whose endpoints are all in the
// node set. Node and edge enumeration orders are the assembly order.
type Graph struct {
	nodes map[ID]*Node
	order []ID
	edges []*Edge
	adj   map[ID][]ID
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[ID]*Node),
		adj:   make(map[ID][]ID),
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id ID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in assembly order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns a snapshot of the edge list in assembly order. The slice is
// freshly allocated; the edges themselves are shared with the graph.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Neighbors returns the distinct nodes adjacent to id, in the order their
// first connecting edge was assembled.
func (g *Graph) Neighbors(id ID) []ID {
	out := make([]ID, len(g.adj[id]))
	copy(out, g.adj[id])
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Records serializes the graph to the flat node and edge record shapes.
func (g *Graph) Records() ([]NodeRecord, []EdgeRecord) {
	nodes := make([]NodeRecord, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id].Record())
	}
	edges := make([]EdgeRecord, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e.Record())
	}
	return nodes, edges
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := newGraph()
	for _, id := range g.order {
		n := *g.nodes[id]
		n.History = append([]string(nil), n.History...)
		c.nodes[id] = &n
		c.order = append(c.order, id)
	}
	for _, e := range g.edges {
		ec := *e
		c.edges = append(c.edges, &ec)
	}
	for id, ns := range g.adj {
		c.adj[id] = append([]ID(nil), ns...)
	}
	return c
}

func (g *Graph) connect(a, b ID) {
	for _, n := range g.adj[a] {
		if n == b {
			return
		}
	}
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

// ClampMaturity bounds m to [MinMaturity, MaxMaturity].
func ClampMaturity(m float64) float64 {
	if math.IsNaN(m) {
		return DefaultMaturity
	}
	return math.Max(MinMaturity, math.Min(MaxMaturity, m))
}

// ClampPolarity bounds p to [MinPolarity, MaxPolarity].
func ClampPolarity(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(MinPolarity, math.Min(MaxPolarity, p))
}

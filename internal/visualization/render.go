// Package visualization renders relationship graphs as vis.js JSON, Graphviz
// DOT and a self-contained HTML page, and serves them over HTTP together
// with the prompt and simulation API.
package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/nvandessel/tango/internal/graph"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat parses a format name; the empty string yields FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatDOT, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, dot or html)", s)
	}
}

// roleColors maps node roles to fill colors. Tension roles are warm,
// empowered roles cool.
var roleColors = map[graph.Role]string{
	graph.RoleVictim:     "#e8a0a0",
	graph.RoleRescuer:    "#f0c674",
	graph.RolePersecutor: "#d46a6a",
	graph.RoleCreator:    "#8fc9a3",
	graph.RoleCoach:      "#81a2be",
	graph.RoleChallenger: "#b294bb",
}

const (
	defaultNodeColor = "#d0d0d0"
	lightEdgeColor   = "#4a90d9"
	shadowEdgeColor  = "#555555"
)

func nodeColor(r graph.Role) string {
	if c, ok := roleColors[r]; ok {
		return c
	}
	return defaultNodeColor
}

// VisNode is a node in the vis.js network format.
type VisNode struct {
	ID    graph.ID `json:"id"`
	Label string   `json:"label"`
	Title string   `json:"title"`
	Group string   `json:"group,omitempty"`
	Color string   `json:"color"`

	// Value sizes the node; it is the maturity.
	Value float64 `json:"value"`

	Maturity      float64  `json:"maturity"`
	EgoState      string   `json:"ego_state"`
	Role          string   `json:"role,omitempty"`
	Metacognition bool     `json:"metacognition"`
	History       []string `json:"history,omitempty"`
}

// VisEdge is an edge in the vis.js network format.
type VisEdge struct {
	From   graph.ID `json:"from"`
	To     graph.ID `json:"to"`
	Label  string   `json:"label,omitempty"`
	Title  string   `json:"title,omitempty"`
	Arrows string   `json:"arrows"`
	Dashes bool     `json:"dashes"`
	Color  string   `json:"color"`

	Polarity    float64 `json:"polarity"`
	LightShadow string  `json:"light_shadow"`
	Role        string  `json:"role,omitempty"`
	Consent     bool    `json:"consent"`
}

// VisGraph is the JSON document served for a graph.
type VisGraph struct {
	Nodes     []VisNode `json:"nodes"`
	Edges     []VisEdge `json:"edges"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// RenderJSON converts g to the vis.js network format. Shadow edges are
// dashed; node size follows maturity.
func RenderJSON(g *graph.Graph) VisGraph {
	out := VisGraph{
		Nodes: make([]VisNode, 0, g.NodeCount()),
		Edges: make([]VisEdge, 0, g.EdgeCount()),
	}

	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, VisNode{
			ID:            n.ID,
			Label:         n.Name,
			Title:         nodeTooltip(n),
			Group:         string(n.Role),
			Color:         nodeColor(n.Role),
			Value:         n.Maturity,
			Maturity:      n.Maturity,
			EgoState:      n.EgoState.String(),
			Role:          string(n.Role),
			Metacognition: n.Metacognition,
			History:       append([]string(nil), n.History...),
		})
	}

	for _, e := range g.Edges() {
		color := lightEdgeColor
		if e.LightShadow == graph.Shadow {
			color = shadowEdgeColor
		}
		out.Edges = append(out.Edges, VisEdge{
			From:        e.SourceID,
			To:          e.TargetID,
			Label:       e.Role,
			Title:       e.Description,
			Arrows:      "to",
			Dashes:      e.LightShadow == graph.Shadow,
			Color:       color,
			Polarity:    e.Polarity,
			LightShadow: string(e.LightShadow),
			Role:        e.Role,
			Consent:     e.Consent,
		})
	}

	out.NodeCount = len(out.Nodes)
	out.EdgeCount = len(out.Edges)
	return out
}

func nodeTooltip(n *graph.Node) string {
	parts := []string{
		fmt.Sprintf("maturity %.2f", n.Maturity),
		n.EgoState.String(),
	}
	if n.Role != graph.RoleNone {
		parts = append(parts, string(n.Role))
	}
	if n.Metacognition {
		parts = append(parts, "aware")
	}
	return strings.Join(parts, " · ")
}

// RenderDOT produces a Graphviz DOT representation of g.
func RenderDOT(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("digraph tango {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=ellipse, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, n := range g.Nodes() {
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q, tooltip=%q];\n",
			string(n.ID), truncate(n.Name, 40), nodeColor(n.Role), nodeTooltip(n)))
	}
	b.WriteString("\n")

	for _, e := range g.Edges() {
		style := "solid"
		color := lightEdgeColor
		if e.LightShadow == graph.Shadow {
			style = "dashed"
			color = shadowEdgeColor
		}
		label := fmt.Sprintf("%+.2f", e.Polarity)
		if e.Role != "" {
			label = e.Role + " " + label
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [label=%q, style=%s, color=%q, penwidth=\"%.1f\"];\n",
			string(e.SourceID), string(e.TargetID), label, style, color, 1+2*absf(e.Polarity)))
	}

	b.WriteString("}\n")
	return b.String()
}

// htmlTemplateData holds data passed to the HTML template.
// GraphJSON is pre-sanitized JSON (via json.HTMLEscape) safe for inline <script>.
type htmlTemplateData struct {
	GraphJSON template.JS
	APIBase   string
}

var pageTemplate = template.Must(template.ParseFS(templates, "templates/graph.html.tmpl"))

// RenderHTML produces an HTML page that draws g with vis-network. When
// apiBase is not empty the page also offers a prompt form posting to
// apiBase + "/add".
func RenderHTML(g *graph.Graph, apiBase string) ([]byte, error) {
	graphJSON, err := json.Marshal(RenderJSON(g))
	if err != nil {
		return nil, fmt.Errorf("marshal graph data: %w", err)
	}

	// json.HTMLEscape turns <, > and & into unicode escapes, so user
	// supplied names cannot close the inline <script>.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, graphJSON)

	var buf bytes.Buffer
	data := htmlTemplateData{
		GraphJSON: template.JS(escaped.String()), // #nosec G203
		APIBase:   apiBase,
	}
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

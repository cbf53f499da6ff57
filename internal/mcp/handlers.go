package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/visualization"
)

// GraphResourceURI is the resource that summarizes the stored graph.
const GraphResourceURI = "tango://graph"

// defaultPromptLimit applies when tango_prompts is called without a limit.
const defaultPromptLimit = 20

// mcpClientKey keys the session rate limiter for every MCP caller; the
// stdio transport serves exactly one client.
const mcpClientKey = "mcp"

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tango_add",
		Description: "Interpret a statement about a relationship into two poles and an edge, add them to the graph and run the interaction rules",
	}, s.handleTangoAdd)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tango_simulate",
		Description: "Run interaction passes over the whole graph (inversion, damage, boost, promotion, ripple)",
	}, s.handleTangoSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tango_graph",
		Description: "Render the stored graph as vis.js JSON, Graphviz DOT or a standalone HTML page",
	}, s.handleTangoGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tango_prompts",
		Description: "List recorded prompts, newest first",
	}, s.handleTangoPrompts)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tango_reset",
		Description: "Delete every prompt, node and edge",
	}, s.handleTangoReset)
}

func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         GraphResourceURI,
		Name:        "tango-graph",
		Description: "The poles and relations currently in the graph, with their roles and maturity.",
		MIMEType:    "text/markdown",
	}, s.handleGraphResource)
}

func (s *Server) iterations(n *int) int {
	if n == nil {
		return s.svc.Iterations()
	}
	return *n
}

func (s *Server) handleTangoAdd(ctx context.Context, req *sdk.CallToolRequest, args TangoAddInput) (_ *sdk.CallToolResult, _ TangoAddOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]interface{}{"prompt": args.Prompt}
		if args.Iterations != nil {
			params["iterations"] = *args.Iterations
		}
		s.auditTool("tango_add", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tango_add"); err != nil {
		return nil, TangoAddOutput{}, err
	}

	res, err := s.svc.Add(ctx, mcpClientKey, args.Prompt, s.iterations(args.Iterations))
	if err != nil {
		return nil, TangoAddOutput{}, fmt.Errorf("add prompt: %w", err)
	}

	in := res.Interpretation
	out := TangoAddOutput{
		PromptID:    res.PromptID,
		Interpreter: in.Interpreter,
		Source:      poleSummary(res.Graph, res.SourceID),
		Target:      poleSummary(res.Graph, res.TargetID),
		Polarity:    in.Relation.Polarity,
		LightShadow: in.Relation.LightShadow,
		NodeCount:   len(res.Nodes),
		EdgeCount:   len(res.Edges),
	}
	out.Message = fmt.Sprintf("Added %q and %q (%s), graph has %d nodes and %d edges",
		out.Source.Name, out.Target.Name, out.LightShadow, out.NodeCount, out.EdgeCount)
	return nil, out, nil
}

func (s *Server) handleTangoSimulate(ctx context.Context, req *sdk.CallToolRequest, args TangoSimulateInput) (_ *sdk.CallToolResult, _ TangoSimulateOutput, retErr error) {
	start := time.Now()
	iterations := s.iterations(args.Iterations)
	defer func() {
		s.auditTool("tango_simulate", start, retErr, sanitizeToolParams(map[string]interface{}{
			"iterations": iterations,
			"dry_run":    args.DryRun,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tango_simulate"); err != nil {
		return nil, TangoSimulateOutput{}, err
	}

	if args.DryRun {
		steps, err := s.svc.Steps(ctx, iterations)
		if err != nil {
			return nil, TangoSimulateOutput{}, fmt.Errorf("preview simulation: %w", err)
		}
		out := TangoSimulateOutput{Iterations: iterations}
		for _, step := range steps {
			g, err := graph.Assemble(step.Nodes, step.Edges)
			if err != nil {
				return nil, TangoSimulateOutput{}, fmt.Errorf("assemble step %d: %w", step.Iteration, err)
			}
			out.Steps = append(out.Steps, StepSummary{Iteration: step.Iteration, Nodes: nodeStates(g)})
			out.Nodes = nodeStates(g)
			out.EdgeCount = g.EdgeCount()
		}
		return nil, out, nil
	}

	g, err := s.svc.Simulate(ctx, iterations)
	if err != nil {
		return nil, TangoSimulateOutput{}, fmt.Errorf("simulate: %w", err)
	}
	return nil, TangoSimulateOutput{
		Iterations: iterations,
		Saved:      true,
		Nodes:      nodeStates(g),
		EdgeCount:  g.EdgeCount(),
	}, nil
}

func (s *Server) handleTangoGraph(ctx context.Context, req *sdk.CallToolRequest, args TangoGraphInput) (_ *sdk.CallToolResult, _ TangoGraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tango_graph", start, retErr, sanitizeToolParams(map[string]interface{}{
			"format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tango_graph"); err != nil {
		return nil, TangoGraphOutput{}, err
	}

	format, err := visualization.ParseFormat(args.Format)
	if err != nil {
		return nil, TangoGraphOutput{}, err
	}
	g, err := s.svc.Graph(ctx)
	if err != nil {
		return nil, TangoGraphOutput{}, fmt.Errorf("load graph: %w", err)
	}

	out := TangoGraphOutput{
		Format:    string(format),
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
	}
	switch format {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(g)
	case visualization.FormatHTML:
		page, err := visualization.RenderHTML(g, "")
		if err != nil {
			return nil, TangoGraphOutput{}, fmt.Errorf("render HTML: %w", err)
		}
		out.Graph = string(page)
	default:
		out.Graph = visualization.RenderJSON(g)
	}
	return nil, out, nil
}

func (s *Server) handleTangoPrompts(ctx context.Context, req *sdk.CallToolRequest, args TangoPromptsInput) (_ *sdk.CallToolResult, _ TangoPromptsOutput, retErr error) {
	start := time.Now()
	limit := args.Limit
	if limit <= 0 {
		limit = defaultPromptLimit
	}
	defer func() {
		s.auditTool("tango_prompts", start, retErr, sanitizeToolParams(map[string]interface{}{
			"limit": limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tango_prompts"); err != nil {
		return nil, TangoPromptsOutput{}, err
	}

	prompts, err := s.svc.Prompts(ctx, limit)
	if err != nil {
		return nil, TangoPromptsOutput{}, fmt.Errorf("list prompts: %w", err)
	}

	out := TangoPromptsOutput{Prompts: make([]PromptSummary, 0, len(prompts))}
	for _, p := range prompts {
		poles := make([]string, 0, len(p.Nodes))
		for _, n := range p.Nodes {
			poles = append(poles, n.Name)
		}
		out.Prompts = append(out.Prompts, PromptSummary{
			ID:        p.ID,
			Prompt:    p.Text,
			Poles:     poles,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	out.Count = len(out.Prompts)
	return nil, out, nil
}

func (s *Server) handleTangoReset(ctx context.Context, req *sdk.CallToolRequest, args TangoResetInput) (_ *sdk.CallToolResult, _ TangoResetOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tango_reset", start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "tango_reset"); err != nil {
		return nil, TangoResetOutput{}, err
	}
	if err := s.svc.Reset(ctx); err != nil {
		return nil, TangoResetOutput{}, fmt.Errorf("reset: %w", err)
	}
	return nil, TangoResetOutput{Status: "Database reset"}, nil
}

// handleGraphResource renders the graph as markdown for context injection.
func (s *Server) handleGraphResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	g, err := s.svc.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      GraphResourceURI,
			MIMEType: "text/markdown",
			Text:     graphMarkdown(g),
		}},
	}, nil
}

func graphMarkdown(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("# Tango Graph\n\n")
	if g.NodeCount() == 0 {
		b.WriteString("The graph is empty. Add a relationship with `tango_add`.\n")
		return b.String()
	}

	b.WriteString("## Poles\n\n")
	for _, n := range g.Nodes() {
		role := string(n.Role)
		if role == "" {
			role = "no role"
		}
		fmt.Fprintf(&b, "- **%s** (#%s): %s, %s, maturity %.2f", n.Name, n.ID, role, n.EgoState, n.Maturity)
		if n.Metacognition {
			b.WriteString(", aware")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Relations\n\n")
	for _, e := range g.Edges() {
		src, _ := g.Node(e.SourceID)
		dst, _ := g.Node(e.TargetID)
		fmt.Fprintf(&b, "- %s → %s: %s %+.2f", src.Name, dst.Name, e.LightShadow, e.Polarity)
		if e.Role != "" {
			fmt.Fprintf(&b, " (%s)", e.Role)
		}
		if e.Consent {
			b.WriteString(", consented")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func poleSummary(g *graph.Graph, id graph.ID) PoleSummary {
	n, ok := g.Node(id)
	if !ok {
		return PoleSummary{ID: string(id)}
	}
	return PoleSummary{
		ID:       string(n.ID),
		Name:     n.Name,
		Role:     string(n.Role),
		EgoState: n.EgoState.String(),
		Maturity: graph.Float64(n.Maturity),
	}
}

func nodeStates(g *graph.Graph) []NodeState {
	out := make([]NodeState, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		out = append(out, NodeState{
			ID:            string(n.ID),
			Name:          n.Name,
			Maturity:      n.Maturity,
			EgoState:      n.EgoState.String(),
			Role:          string(n.Role),
			Metacognition: n.Metacognition,
			History:       n.History,
		})
	}
	return out
}


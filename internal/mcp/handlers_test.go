package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/session"
	"github.com/nvandessel/tango/internal/store"
	"github.com/nvandessel/tango/internal/visualization"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	st := store.NewInMemoryGraphStore()
	svc := session.NewService(st, interpret.NewRulesInterpreter())

	server, err := NewServer(&Config{Name: "tango-test", Version: "v0.0.0", Root: root, Closer: st}, svc)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func intPtr(n int) *int { return &n }

func TestNewServer_RequiresService(t *testing.T) {
	if _, err := NewServer(&Config{Name: "tango"}, nil); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestHandleTangoAdd(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleTangoAdd(ctx, nil, TangoAddInput{
		Prompt:     "My inner critic attacks my creative side",
		Iterations: intPtr(0),
	})
	if err != nil {
		t.Fatalf("handleTangoAdd: %v", err)
	}

	if out.PromptID == "" {
		t.Error("prompt id is empty")
	}
	if out.Interpreter != "rules" {
		t.Errorf("interpreter = %q, want rules", out.Interpreter)
	}
	if out.Source.ID != "1" || out.Source.Name != "inner critic" || out.Source.Role != "Persecutor" {
		t.Errorf("source = %+v", out.Source)
	}
	if out.Target.ID != "2" || out.Target.Name != "creative side" || out.Target.Role != "Victim" {
		t.Errorf("target = %+v", out.Target)
	}
	if out.LightShadow != "shadow" {
		t.Errorf("light_shadow = %q, want shadow", out.LightShadow)
	}
	if out.NodeCount != 2 || out.EdgeCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", out.NodeCount, out.EdgeCount)
	}
	if !strings.Contains(out.Message, "inner critic") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestHandleTangoAdd_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input TangoAddInput
		want  error
	}{
		{"empty prompt", TangoAddInput{Prompt: "   "}, session.ErrEmptyPrompt},
		{"markup only", TangoAddInput{Prompt: "<b></b>"}, session.ErrEmptyPrompt},
		{"negative iterations", TangoAddInput{Prompt: "a and b", Iterations: intPtr(-1)}, session.ErrNegativeIterations},
	}

	server := setupTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleTangoAdd(context.Background(), nil, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHandleTangoAdd_RateLimited(t *testing.T) {
	server := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{"tango_add": ratelimit.NewLimiter(0.001, 1)}
	ctx := context.Background()

	if _, _, err := server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: "a and b"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, _, err := server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: "c and d"})
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded for tango_add") {
		t.Errorf("expected rate limit error, got %v", err)
	}
}

func TestHandleTangoSimulate(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: "My boss criticizes me", Iterations: intPtr(0)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	t.Run("dry run does not save", func(t *testing.T) {
		_, out, err := server.handleTangoSimulate(ctx, nil, TangoSimulateInput{Iterations: intPtr(3), DryRun: true})
		if err != nil {
			t.Fatalf("handleTangoSimulate: %v", err)
		}
		if out.Saved {
			t.Error("dry run reported saved")
		}
		// The initial state plus one snapshot per pass.
		if len(out.Steps) != 4 {
			t.Fatalf("steps = %d, want 4", len(out.Steps))
		}
		for i, step := range out.Steps {
			if step.Iteration != i {
				t.Errorf("step %d iteration = %d", i, step.Iteration)
			}
			if len(step.Nodes) != 2 {
				t.Errorf("step %d nodes = %d", i, len(step.Nodes))
			}
		}

		g, err := server.svc.Graph(ctx)
		if err != nil {
			t.Fatal(err)
		}
		n, _ := g.Node("1")
		if n.Maturity != 2 {
			t.Errorf("stored maturity changed to %v by a dry run", n.Maturity)
		}
	})

	t.Run("saves", func(t *testing.T) {
		_, out, err := server.handleTangoSimulate(ctx, nil, TangoSimulateInput{Iterations: intPtr(1)})
		if err != nil {
			t.Fatalf("handleTangoSimulate: %v", err)
		}
		if !out.Saved || out.Iterations != 1 || out.EdgeCount != 1 || len(out.Nodes) != 2 {
			t.Errorf("output = %+v", out)
		}
		for _, n := range out.Nodes {
			if n.Maturity < 1 || n.Maturity > 5 {
				t.Errorf("node %s maturity %v out of range", n.ID, n.Maturity)
			}
		}
	})

	t.Run("negative iterations", func(t *testing.T) {
		_, _, err := server.handleTangoSimulate(ctx, nil, TangoSimulateInput{Iterations: intPtr(-2)})
		if !errors.Is(err, session.ErrNegativeIterations) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestHandleTangoGraph(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()
	if _, _, err := server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: "the bully vs the dreamer", Iterations: intPtr(0)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	tests := []struct {
		format     string
		wantFormat string
		contains   string
	}{
		{"", "json", `"label":"bully"`},
		{"json", "json", `"from":1`},
		{"dot", "dot", "digraph tango"},
		{"html", "html", "vis-network"},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			_, out, err := server.handleTangoGraph(ctx, nil, TangoGraphInput{Format: tt.format})
			if err != nil {
				t.Fatalf("handleTangoGraph: %v", err)
			}
			if out.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", out.Format, tt.wantFormat)
			}
			if out.NodeCount != 2 || out.EdgeCount != 1 {
				t.Errorf("counts = %d/%d", out.NodeCount, out.EdgeCount)
			}

			var text string
			switch g := out.Graph.(type) {
			case string:
				text = g
			case visualization.VisGraph:
				data, err := json.Marshal(g)
				if err != nil {
					t.Fatal(err)
				}
				text = string(data)
			default:
				t.Fatalf("unexpected graph type %T", out.Graph)
			}
			if !strings.Contains(text, tt.contains) {
				t.Errorf("graph does not contain %q", tt.contains)
			}
		})
	}

	if _, _, err := server.handleTangoGraph(ctx, nil, TangoGraphInput{Format: "svg"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestHandleTangoPromptsAndReset(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	for _, p := range []string{"a and b", "c and d", "e and f"} {
		if _, _, err := server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: p, Iterations: intPtr(0)}); err != nil {
			t.Fatalf("add %q: %v", p, err)
		}
	}

	_, out, err := server.handleTangoPrompts(ctx, nil, TangoPromptsInput{Limit: 2})
	if err != nil {
		t.Fatalf("handleTangoPrompts: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("count = %d, want 2", out.Count)
	}
	if out.Prompts[0].Prompt != "e and f" {
		t.Errorf("newest prompt = %q, want %q", out.Prompts[0].Prompt, "e and f")
	}
	if len(out.Prompts[0].Poles) != 2 || out.Prompts[0].Poles[0] != "e" {
		t.Errorf("poles = %v", out.Prompts[0].Poles)
	}

	_, reset, err := server.handleTangoReset(ctx, nil, TangoResetInput{})
	if err != nil {
		t.Fatalf("handleTangoReset: %v", err)
	}
	if reset.Status != "Database reset" {
		t.Errorf("status = %q", reset.Status)
	}

	_, out, err = server.handleTangoPrompts(ctx, nil, TangoPromptsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != 0 {
		t.Errorf("prompts after reset = %d", out.Count)
	}
}

func TestHandleGraphResource(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	res, err := server.handleGraphResource(ctx, nil)
	if err != nil {
		t.Fatalf("handleGraphResource: %v", err)
	}
	if len(res.Contents) != 1 || !strings.Contains(res.Contents[0].Text, "graph is empty") {
		t.Errorf("empty resource = %+v", res.Contents)
	}

	if _, _, err := server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: "I keep rescuing my brother", Iterations: intPtr(0)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err = server.handleGraphResource(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	text := res.Contents[0].Text
	for _, want := range []string{"**Self** (#1): Rescuer", "**brother** (#2): Victim", "Self → brother: light", "(Victim-Rescuer)"} {
		if !strings.Contains(text, want) {
			t.Errorf("resource missing %q:\n%s", want, text)
		}
	}
	if res.Contents[0].URI != GraphResourceURI || res.Contents[0].MIMEType != "text/markdown" {
		t.Errorf("resource metadata = %q %q", res.Contents[0].URI, res.Contents[0].MIMEType)
	}
}

func TestHandlers_WriteAuditLog(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	server.handleTangoAdd(ctx, nil, TangoAddInput{Prompt: "my secret relationship and me"})
	server.handleTangoGraph(ctx, nil, TangoGraphInput{Format: "svg"})
	server.Close()

	data, err := os.ReadFile(filepath.Join(server.root, ".tango", AuditFile))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("audit log leaked prompt text")
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2", len(lines))
	}

	var add, graphEntry AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &add); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &graphEntry); err != nil {
		t.Fatal(err)
	}
	if add.Tool != "tango_add" || add.Status != "success" || add.Params["prompt"] != "(set)" {
		t.Errorf("add entry = %+v", add)
	}
	if graphEntry.Tool != "tango_graph" || graphEntry.Status != "error" || graphEntry.Params["format"] != "svg" {
		t.Errorf("graph entry = %+v", graphEntry)
	}
}

func TestServer_ListToolsOverTransport(t *testing.T) {
	server := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer clientSession.Close()

	tools, err := clientSession.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"tango_add", "tango_simulate", "tango_graph", "tango_prompts", "tango_reset"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

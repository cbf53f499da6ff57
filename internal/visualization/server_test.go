package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/metrics"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/session"
	"github.com/nvandessel/tango/internal/store"
)

func newTestServer(t *testing.T, opts ...session.Option) (*httptest.Server, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector()
	opts = append(opts, session.WithMetrics(collector))
	svc := session.NewService(store.NewInMemoryGraphStore(), interpret.NewRulesInterpreter(), opts...)
	srv := NewServer(svc, ServerOptions{Metrics: collector})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, collector
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestServer_AddAndGraph(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := post(t, ts.URL+"/add", `{"prompt": "My inner critic attacks my creative side", "iterations": 0}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /add status = %d", resp.StatusCode)
	}
	var added addResponse
	decode(t, resp, &added)
	if added.NodeCount != 2 || added.EdgeCount != 1 || added.PromptID == "" {
		t.Errorf("add response = %+v", added)
	}
	if added.Interpretation == nil || added.Interpretation.Source.Name != "inner critic" {
		t.Errorf("interpretation = %+v", added.Interpretation)
	}

	var g VisGraph
	decode(t, get(t, ts.URL+"/graph"), &g)
	if g.NodeCount != 2 || g.Edges[0].From != "1" || g.Edges[0].To != "2" {
		t.Errorf("GET /graph = %+v", g)
	}

	dot := get(t, ts.URL+"/graph?format=dot")
	if ct := dot.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("DOT Content-Type = %q", ct)
	}

	html := get(t, ts.URL+"/graph?format=html")
	if ct := html.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("HTML Content-Type = %q", ct)
	}

	if bad := get(t, ts.URL+"/graph?format=svg"); bad.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", bad.StatusCode)
	}
}

func TestServer_AddRejectsEmptyPrompt(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"blank prompt", `{"prompt": "   "}`, http.StatusBadRequest},
		{"missing prompt", `{}`, http.StatusBadRequest},
		{"malformed body", `{"prompt": `, http.StatusBadRequest},
		{"negative iterations", `{"prompt": "a and b", "iterations": -2}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/add", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body map[string]string
			decode(t, resp, &body)
			if body["error"] == "" {
				t.Error("error body missing")
			}
		})
	}

	resp := post(t, ts.URL+"/add", `{"prompt": ""}`)
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "Prompt is required" {
		t.Errorf("error = %q", body["error"])
	}
}

// fixedStore serves a fixed stored graph regardless of what was saved.
type fixedStore struct {
	*store.InMemoryGraphStore
	nodes []graph.NodeRecord
	edges []graph.EdgeRecord
}

func (s *fixedStore) LoadGraph(ctx context.Context) ([]graph.NodeRecord, []graph.EdgeRecord, error) {
	return s.nodes, s.edges, nil
}

func newServerWith(t *testing.T, st store.GraphStore, interp interpret.Interpreter) *httptest.Server {
	t.Helper()
	svc := session.NewService(st, interp)
	ts := httptest.NewServer(NewServer(svc, ServerOptions{}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_AddInterpreterFailure(t *testing.T) {
	mock := interpret.NewMockInterpreter().WithError(errors.New("provider offline"))
	ts := newServerWith(t, store.NewInMemoryGraphStore(), mock)

	resp := post(t, ts.URL+"/add", `{"prompt": "a and b"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if !strings.Contains(body["error"], "provider offline") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestServer_RejectedStoredGraph(t *testing.T) {
	tests := []struct {
		name  string
		nodes []graph.NodeRecord
		edges []graph.EdgeRecord
	}{
		{
			name:  "dangling edge",
			nodes: []graph.NodeRecord{{ID: "1"}},
			edges: []graph.EdgeRecord{{SourceID: "1", TargetID: "9", Polarity: 0.3}},
		},
		{
			name:  "unknown ego state",
			nodes: []graph.NodeRecord{{ID: "1", EgoState: "Parent"}, {ID: "2"}},
			edges: []graph.EdgeRecord{{SourceID: "1", TargetID: "2", Polarity: 0.3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fixedStore{InMemoryGraphStore: store.NewInMemoryGraphStore(), nodes: tt.nodes, edges: tt.edges}
			ts := newServerWith(t, st, interpret.NewRulesInterpreter())

			requests := []struct {
				method, path, body string
			}{
				{http.MethodPost, "/add", `{"prompt": "a and b"}`},
				{http.MethodPost, "/simulate", `{"iterations": 1}`},
				{http.MethodGet, "/graph", ""},
				{http.MethodGet, "/steps?iterations=1", ""},
			}
			for _, req := range requests {
				var resp *http.Response
				if req.method == http.MethodPost {
					resp = post(t, ts.URL+req.path, req.body)
				} else {
					resp = get(t, ts.URL+req.path)
				}
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("%s %s status = %d, want 400", req.method, req.path, resp.StatusCode)
				}
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty prompt", session.ErrEmptyPrompt, http.StatusBadRequest},
		{"dangling edge", &graph.DanglingEdgeError{SourceID: "1", TargetID: "2", Missing: "2"}, http.StatusBadRequest},
		{"invalid record", &graph.InvalidRecordError{}, http.StatusBadRequest},
		{"rate limited", ratelimit.ErrLimited, http.StatusTooManyRequests},
		{"interpreter", errors.Join(session.ErrInterpret, errors.New("timeout")), http.StatusBadGateway},
		{"store", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServer_AddRateLimited(t *testing.T) {
	ts, _ := newTestServer(t, session.WithLimiter(ratelimit.NewLimiter(0.001, 1)))

	if resp := post(t, ts.URL+"/add", `{"prompt": "a and b"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first add status = %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/add", `{"prompt": "c and d"}`); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second add status = %d, want 429", resp.StatusCode)
	}
}

func TestServer_SimulateStepsReset(t *testing.T) {
	ts, _ := newTestServer(t)

	post(t, ts.URL+"/add", `{"prompt": "Between my mother and me there is love and trust", "iterations": 0}`)

	var steps []map[string]any
	decode(t, get(t, ts.URL+"/steps?iterations=2"), &steps)
	if len(steps) != 3 {
		t.Errorf("got %d steps, want 3", len(steps))
	}
	if bad := get(t, ts.URL+"/steps?iterations=-1"); bad.StatusCode != http.StatusBadRequest {
		t.Errorf("negative steps status = %d", bad.StatusCode)
	}

	resp := post(t, ts.URL+"/simulate", `{"iterations": 1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("simulate status = %d", resp.StatusCode)
	}
	var g VisGraph
	decode(t, resp, &g)
	if g.NodeCount != 2 {
		t.Errorf("simulate returned %d nodes", g.NodeCount)
	}

	// An empty body uses the default iterations.
	if resp := post(t, ts.URL+"/simulate", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("simulate without body status = %d", resp.StatusCode)
	}

	var prompts []store.Prompt
	decode(t, get(t, ts.URL+"/prompts?limit=5"), &prompts)
	if len(prompts) != 1 {
		t.Errorf("got %d prompts", len(prompts))
	}

	resp = post(t, ts.URL+"/reset", "")
	var status map[string]string
	decode(t, resp, &status)
	if status["status"] != "Database reset" {
		t.Errorf("reset response = %v", status)
	}

	decode(t, get(t, ts.URL+"/graph"), &g)
	if g.NodeCount != 0 {
		t.Errorf("graph has %d nodes after reset", g.NodeCount)
	}
}

func TestServer_HealthMetricsAndCORS(t *testing.T) {
	ts, _ := newTestServer(t)

	var health map[string]string
	decode(t, get(t, ts.URL+"/health"), &health)
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/add", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	body, err := io.ReadAll(get(t, ts.URL+"/metrics").Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `tango_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("metrics missing health request:\n%s", body)
	}
}

func TestServer_ListenAndServe(t *testing.T) {
	svc := session.NewService(store.NewInMemoryGraphStore(), interpret.NewRulesInterpreter())
	srv := NewServer(svc, ServerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "localhost:0") }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == "" {
		t.Fatal("server did not start")
	}

	resp := get(t, "http://"+srv.Addr()+"/")
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("GET / Content-Type = %q", ct)
	}

	// /metrics is not mounted without a collector.
	if r := get(t, "http://"+srv.Addr()+"/metrics"); r.StatusCode == http.StatusOK {
		t.Error("/metrics served without a collector")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector()

	c.PromptAdded("rules", 10*time.Millisecond)
	c.PromptAdded("rules", 10*time.Millisecond)
	c.PromptAdded("anthropic", time.Second)
	c.InterpretFailed()
	c.Limited()
	c.Simulated(4, 3, time.Millisecond)
	c.Transition("damage")
	c.Transition("damage")
	c.ObserveHTTP("POST", "/add", 200, time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"rules prompts", testutil.ToFloat64(c.PromptsAdded.WithLabelValues("rules")), 2},
		{"anthropic prompts", testutil.ToFloat64(c.PromptsAdded.WithLabelValues("anthropic")), 1},
		{"failures", testutil.ToFloat64(c.InterpretFailures), 1},
		{"rate limited", testutil.ToFloat64(c.RateLimited), 1},
		{"simulations", testutil.ToFloat64(c.Simulations), 1},
		{"nodes", testutil.ToFloat64(c.GraphNodes), 4},
		{"edges", testutil.ToFloat64(c.GraphEdges), 3},
		{"damage transitions", testutil.ToFloat64(c.Transitions.WithLabelValues("damage")), 2},
		{"http requests", testutil.ToFloat64(c.HTTPRequests.WithLabelValues("POST", "/add", "200")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.Limited()
	if got := testutil.ToFloat64(b.RateLimited); got != 0 {
		t.Errorf("collectors share state: %v", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.PromptAdded("rules", time.Second)
	c.InterpretFailed()
	c.Limited()
	c.Simulated(1, 1, time.Second)
	c.Transition("boost")
	c.GraphSize(1, 1)
	c.ObserveHTTP("GET", "/", 200, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.GraphSize(7, 2)

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "tango_graph_nodes 7") {
		t.Errorf("exposition missing graph_nodes:\n%s", body)
	}
}

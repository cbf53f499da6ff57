// Package metrics exposes Prometheus metrics for prompts, simulations and
// the HTTP API. Each Collector owns its registry, so tests and multiple
// servers in one process never collide on registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "tango"

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Prompt metrics
	PromptsAdded      *prometheus.CounterVec
	InterpretFailures prometheus.Counter
	RateLimited       prometheus.Counter
	InterpretDuration prometheus.Histogram

	// Simulation metrics
	Simulations        prometheus.Counter
	SimulationDuration prometheus.Histogram
	Transitions        *prometheus.CounterVec
	GraphNodes         prometheus.Gauge
	GraphEdges         prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PromptsAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "prompts_added_total",
				Help:      "Prompts turned into graph records, by interpreter",
			},
			[]string{"interpreter"},
		),
		InterpretFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "interpret_failures_total",
			Help:      "Prompts the interpreter could not turn into poles",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Prompts rejected by the rate limiter",
		}),
		InterpretDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "interpret_duration_seconds",
			Help:      "Time spent interpreting one prompt",
			Buckets:   prometheus.DefBuckets,
		}),
		Simulations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "simulations_total",
			Help:      "Completed simulation runs",
		}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transitions_total",
				Help:      "State changes applied by the interaction engine, by kind",
			},
			[]string{"kind"},
		),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the stored graph after the last operation",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "graph_edges",
			Help:      "Edges in the stored graph after the last operation",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.PromptsAdded,
		c.InterpretFailures,
		c.RateLimited,
		c.InterpretDuration,
		c.Simulations,
		c.SimulationDuration,
		c.Transitions,
		c.GraphNodes,
		c.GraphEdges,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// PromptAdded records a prompt interpreted by the named backend.
func (c *Collector) PromptAdded(interpreter string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.PromptsAdded.WithLabelValues(interpreter).Inc()
	c.InterpretDuration.Observe(elapsed.Seconds())
}

// InterpretFailed records a failed interpretation.
func (c *Collector) InterpretFailed() {
	if c == nil {
		return
	}
	c.InterpretFailures.Inc()
}

// Limited records a prompt rejected by the rate limiter.
func (c *Collector) Limited() {
	if c == nil {
		return
	}
	c.RateLimited.Inc()
}

// Simulated records a completed simulation over a graph of the given size.
func (c *Collector) Simulated(nodes, edges int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Simulations.Inc()
	c.SimulationDuration.Observe(elapsed.Seconds())
	c.GraphNodes.Set(float64(nodes))
	c.GraphEdges.Set(float64(edges))
}

// Transition records one engine state change.
func (c *Collector) Transition(kind string) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(kind).Inc()
}

// GraphSize records the stored graph size without a simulation.
func (c *Collector) GraphSize(nodes, edges int) {
	if c == nil {
		return
	}
	c.GraphNodes.Set(float64(nodes))
	c.GraphEdges.Set(float64(edges))
}

package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/logging"
	"github.com/nvandessel/tango/internal/metrics"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/session"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// ServerOptions configures a Server.
type ServerOptions struct {
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string

	// Metrics, when set, is served on /metrics and records every request.
	Metrics *metrics.Collector

	Logger *slog.Logger
}

// Server serves the graph page and the prompt and simulation API.
type Server struct {
	svc     *session.Service
	metrics *metrics.Collector
	logger  *slog.Logger
	router  chi.Router

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// NewServer creates a Server backed by svc.
func NewServer(svc *session.Service, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{svc: svc, metrics: opts.Metrics, logger: logger}
	s.router = s.routes(opts.AllowedOrigins)
	return s
}

func (s *Server) routes(origins []string) chi.Router {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/graph", s.handleGraph)
	r.Get("/steps", s.handleSteps)
	r.Get("/prompts", s.handlePrompts)
	r.Post("/add", s.handleAdd)
	r.Post("/simulate", s.handleSimulate)
	r.Post("/reset", s.handleReset)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens on addr ("localhost:0" picks a free port) and
// blocks until the context is cancelled. A clean shutdown returns nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// observe records request metrics under the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
		s.logger.Debug("http request", "method", r.Method, "route", route, "status", status, "elapsed", time.Since(start))
	})
}

type addRequest struct {
	Prompt     string `json:"prompt"`
	Iterations *int   `json:"iterations,omitempty"`
}

type addResponse struct {
	VisGraph
	PromptID       string                    `json:"prompt_id"`
	Interpretation *interpret.Interpretation `json:"interpretation"`
}

type simulateRequest struct {
	Iterations *int `json:"iterations,omitempty"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	iterations := s.svc.Iterations()
	if req.Iterations != nil {
		iterations = *req.Iterations
	}

	res, err := s.svc.Add(r.Context(), clientKey(r), req.Prompt, iterations)
	switch {
	case errors.Is(err, session.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	case errors.Is(err, session.ErrNegativeIterations):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ratelimit.ErrLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case err != nil:
		s.logger.Error("add prompt failed", "error", err)
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, addResponse{
		VisGraph:       RenderJSON(res.Graph),
		PromptID:       res.PromptID,
		Interpretation: res.Interpretation,
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	iterations := s.svc.Iterations()
	if req.Iterations != nil {
		iterations = *req.Iterations
	}
	g, err := s.svc.Simulate(r.Context(), iterations)
	if err != nil {
		s.logger.Error("simulate failed", "error", err)
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RenderJSON(g))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Database reset"})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.svc.Graph(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	switch format {
	case FormatDOT:
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.Write([]byte(RenderDOT(g)))
	case FormatHTML:
		s.writeHTML(w, r)
	default:
		writeJSON(w, http.StatusOK, RenderJSON(g))
	}
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	iterations, err := intParam(r, "iterations", s.svc.Iterations())
	if err != nil || iterations < 0 {
		writeError(w, http.StatusBadRequest, "iterations must be a non-negative integer")
		return
	}
	steps, err := s.svc.Steps(r.Context(), iterations)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	prompts, err := s.svc.Prompts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIndex serves the graph page with the API base URL configured.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeHTML(w, r)
}

func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Graph(r.Context())
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	html, err := RenderHTML(g, "http://"+r.Host)
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// decodeJSON decodes an optional JSON body; an empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// clientKey identifies the caller for rate limiting. RealIP has already
// replaced RemoteAddr with the forwarded address when present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorStatus maps service errors onto response codes. Records the
// assembler rejects are the caller's fault; a failing interpreter is an
// upstream one.
func errorStatus(err error) int {
	var dangling *graph.DanglingEdgeError
	var invalid *graph.InvalidRecordError
	switch {
	case errors.Is(err, session.ErrEmptyPrompt), errors.Is(err, session.ErrNegativeIterations):
		return http.StatusBadRequest
	case errors.As(err, &dangling), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrInterpret):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// OpenBrowser opens the specified URL in the user's default browser.
// It supports Linux (xdg-open), macOS (open), and Windows (cmd start).
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

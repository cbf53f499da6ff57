// Package mcp exposes the tango graph to agents as an MCP (Model Context
// Protocol) server over stdio.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/session"
)

// Server wraps the MCP SDK server around a session.Service.
type Server struct {
	server       *sdk.Server
	svc          *session.Service
	root         string
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger

	// closer releases the store behind svc when the server stops.
	closer io.Closer
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name, e.g. "tango"
	Version string // Server version
	Root    string // Project root; the audit log lives under Root/.tango

	// Closer, when set, is closed together with the server. The CLI passes
	// the store here.
	Closer io.Closer

	// Logger receives server lifecycle messages. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates an MCP server with the tango tools and resources
// registered against svc.
func NewServer(cfg *Config, svc *session.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("mcp server needs a session service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		svc:          svc,
		root:         cfg.Root,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
		closer:       cfg.Closer,
	}
	if cfg.Root != "" {
		s.auditLogger = NewAuditLogger(cfg.Root)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio. It blocks until the client disconnects, the
// context is cancelled or the process is interrupted.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			s.logger.Info("mcp server interrupted")
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "root", s.root)
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the audit log and the configured closer.
func (s *Server) Close() error {
	var firstErr error
	if err := s.auditLogger.Close(); err != nil {
		firstErr = err
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.closer = nil
	}
	return firstErr
}

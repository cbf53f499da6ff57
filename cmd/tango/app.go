package main

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/tango/internal/config"
	"github.com/nvandessel/tango/internal/interpret"
	"github.com/nvandessel/tango/internal/logging"
	"github.com/nvandessel/tango/internal/metrics"
	"github.com/nvandessel/tango/internal/ratelimit"
	"github.com/nvandessel/tango/internal/session"
	"github.com/nvandessel/tango/internal/store"
	"github.com/spf13/cobra"
)

// app bundles what every graph command needs. Close releases it.
type app struct {
	root      string
	cfg       *config.TangoConfig
	logger    *slog.Logger
	store     *store.SQLiteGraphStore
	metrics   *metrics.Collector
	decisions *logging.DecisionLogger
	svc       *session.Service
}

// loadConfig reads --config (or the default file), applies --log-level and
// validates the result.
func loadConfig(cmd *cobra.Command) (*config.TangoConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp opens the project store and builds the session service from the
// loaded configuration.
func openApp(cmd *cobra.Command) (*app, error) {
	root, _ := cmd.Flags().GetString("root")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	interp, err := interpret.NewFromConfig(cfg.Interpreter, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteGraphStore(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{
		root:      root,
		cfg:       cfg,
		logger:    logger,
		store:     st,
		metrics:   metrics.NewCollector(),
		decisions: logging.NewDecisionLogger(store.LocalTangoPath(root), cfg.Logging.Level),
	}

	svcCfg := session.DefaultConfig()
	if cfg.Simulation.Iterations > 0 {
		svcCfg.Iterations = cfg.Simulation.Iterations
	}
	opts := []session.Option{
		session.WithConfig(svcCfg),
		session.WithMetrics(a.metrics),
		session.WithDecisionLogger(a.decisions),
		session.WithLogger(logger),
	}
	if cfg.Server.RatePerSecond > 0 && cfg.Interpreter.Enabled {
		opts = append(opts, session.WithLimiter(ratelimit.NewLimiter(cfg.Server.RatePerSecond, cfg.Server.Burst)))
	}
	a.svc = session.NewService(st, interp, opts...)

	logger.Debug("opened project", "root", root, "db", st.Path(), "interpreter", cfg.Interpreter.String())
	return a, nil
}

// iterationsFlag returns --iterations when set, else the configured default.
func (a *app) iterationsFlag(cmd *cobra.Command) int {
	if cmd.Flags().Changed("iterations") {
		n, _ := cmd.Flags().GetInt("iterations")
		return n
	}
	return a.svc.Iterations()
}

// Close flushes the decision log and closes the store. It implements
// io.Closer so the MCP server can own the app.
func (a *app) Close() error {
	a.decisions.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"time"

	"github.com/nvandessel/tango/internal/mcp"
	"github.com/nvandessel/tango/internal/visualization"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph page and the HTTP API",
		Long: `Start the HTTP server: an interactive graph page on /, the prompt and
simulation API (/add, /simulate, /reset, /graph, /steps, /prompts),
/health and Prometheus metrics on /metrics.

Examples:
  tango serve
  tango serve --addr localhost:0 --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			open, _ := cmd.Flags().GetBool("open")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.Server.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}

			srv := visualization.NewServer(a.svc, visualization.ServerOptions{
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Metrics:        a.metrics,
				Logger:         a.logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

			// Wait for the listener so the URL has the real port.
			deadline := time.Now().Add(3 * time.Second)
			for srv.Addr() == "" && time.Now().Before(deadline) {
				select {
				case err := <-errCh:
					return fmt.Errorf("server error: %w", err)
				case <-time.After(10 * time.Millisecond):
				}
			}
			if srv.Addr() == "" {
				return fmt.Errorf("server failed to start")
			}

			url := "http://" + srv.Addr()
			fmt.Fprintf(cmd.OutOrStdout(), "tango server running at %s\n", url)
			fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

			if open {
				if err := visualization.OpenBrowser(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
				}
			}

			if err := <-errCh; err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().Bool("open", false, "Open the graph page in a browser")
	return cmd
}

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Expose tango to AI agents as Model Context Protocol tools
(tango_add, tango_simulate, tango_graph, tango_prompts, tango_reset) and the
tango://graph resource. The server speaks JSON-RPC on stdin/stdout; logs go
to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "tango",
				Version: version,
				Root:    a.root,
				Closer:  a,
				Logger:  a.logger,
			}, a.svc)
			if err != nil {
				a.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(context.Background())
		},
	}
}

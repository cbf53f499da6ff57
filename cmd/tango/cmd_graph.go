package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/tango/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the stored graph",
		Long: `Output the stored graph as vis.js JSON, DOT (Graphviz) or a
self-contained HTML page. The graph is not simulated.

Examples:
  tango graph --format dot | dot -Tsvg > graph.svg
  tango graph --format html --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			open, _ := cmd.Flags().GetBool("open")

			f, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := a.svc.Graph(context.Background())
			if err != nil {
				return fmt.Errorf("load graph: %w", err)
			}

			switch f {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(g))

			case visualization.FormatJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(visualization.RenderJSON(g)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}

			case visualization.FormatHTML:
				htmlBytes, err := visualization.RenderHTML(g, "")
				if err != nil {
					return fmt.Errorf("render HTML: %w", err)
				}
				outPath := output
				if outPath == "" {
					outPath = filepath.Join(os.TempDir(), "tango-graph.html")
				}
				if err := os.WriteFile(outPath, htmlBytes, 0644); err != nil {
					return fmt.Errorf("write HTML file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", outPath)

				if open {
					if err := visualization.OpenBrowser(outPath); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().String("format", "json", "Output format: json, dot or html")
	cmd.Flags().StringP("output", "o", "", "Output file path (html format only)")
	cmd.Flags().Bool("open", false, "Open the HTML page in a browser")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <statement>",
		Short: "Interpret a statement and add its relationship to the graph",
		Long: `Interpret a free-text statement into two poles and the relationship
between them, add them to the stored graph and simulate the whole graph.

The interpreter is chosen by the interpreter.* config keys; without a
provider the keyword rules are used.

Examples:
  tango add "My inner critic attacks my creative side"
  tango add "I keep rescuing my brother" --iterations 0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			prompt := strings.Join(args, " ")
			result, err := a.svc.Add(context.Background(), "cli", prompt, a.iterationsFlag(cmd))
			if err != nil {
				return fmt.Errorf("add failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}

			in := result.Interpretation
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added %s (#%s) → %s (#%s) via %s\n",
				in.Source.Name, result.SourceID, in.Target.Name, result.TargetID, in.Interpreter)
			fmt.Fprintf(out, "  Relation: %+.2f %s", in.Relation.Polarity, in.Relation.LightShadow)
			if in.Relation.Role != "" {
				fmt.Fprintf(out, " (%s)", in.Relation.Role)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out)
			printGraph(out, result.Graph)
			return nil
		},
	}

	cmd.Flags().Int("iterations", 0, "Engine passes after adding (default: simulation.iterations)")
	return cmd
}

// printGraph writes a plain-text listing of g's poles and relationships.
func printGraph(w io.Writer, g *graph.Graph) {
	if g == nil || g.NodeCount() == 0 {
		fmt.Fprintln(w, "The graph is empty.")
		return
	}

	fmt.Fprintf(w, "Poles (%d):\n", g.NodeCount())
	for _, n := range g.Nodes() {
		role := string(n.Role)
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(w, "  #%-4s %-24s maturity %.2f  %-18s %s", n.ID, n.Name, n.Maturity, n.EgoState, role)
		if n.Metacognition {
			fmt.Fprint(w, "  (aware)")
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Relationships (%d):\n", g.EdgeCount())
	for _, e := range g.Edges() {
		fmt.Fprintf(w, "  #%s → #%s  %+.2f %-6s", e.SourceID, e.TargetID, e.Polarity, e.LightShadow)
		if e.Role != "" {
			fmt.Fprintf(w, "  %s", e.Role)
		}
		if e.Consent {
			fmt.Fprint(w, "  consented")
		}
		fmt.Fprintln(w)
	}
}

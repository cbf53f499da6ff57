package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the interaction engine over the stored graph",
		Long: `Run engine passes over the stored graph and save the result.

With --dry-run every pass is printed and nothing is saved.

Examples:
  tango simulate
  tango simulate --iterations 20
  tango simulate --iterations 3 --dry-run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := context.Background()
			iterations := a.iterationsFlag(cmd)
			out := cmd.OutOrStdout()

			if dryRun {
				steps, err := a.svc.Steps(ctx, iterations)
				if err != nil {
					return fmt.Errorf("simulate failed: %w", err)
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"iterations": iterations,
						"steps":      steps,
					})
				}
				for _, step := range steps {
					fmt.Fprintf(out, "Step %d:\n", step.Iteration)
					for _, n := range step.Nodes {
						fmt.Fprintf(out, "  #%-4s %-24s maturity %.2f  %-18s %s\n", n.ID, n.Name, *n.Maturity, n.EgoState, n.Role)
					}
				}
				return nil
			}

			g, err := a.svc.Simulate(ctx, iterations)
			if err != nil {
				return fmt.Errorf("simulate failed: %w", err)
			}
			if jsonOut {
				nodes, edges := g.Records()
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"iterations": iterations,
					"nodes":      nodes,
					"edges":      edges,
				})
			}
			fmt.Fprintf(out, "Simulated %d iteration(s)\n\n", iterations)
			printGraph(out, g)
			return nil
		},
	}

	cmd.Flags().Int("iterations", 0, "Engine passes (default: simulation.iterations)")
	cmd.Flags().Bool("dry-run", false, "Print every pass without saving")
	return cmd
}

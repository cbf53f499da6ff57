package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newPromptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "List recorded prompts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			prompts, err := a.svc.Prompts(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("list prompts: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"prompts": prompts,
					"count":   len(prompts),
				})
			}

			out := cmd.OutOrStdout()
			if len(prompts) == 0 {
				fmt.Fprintln(out, "No prompts recorded.")
				return nil
			}
			for _, p := range prompts {
				fmt.Fprintf(out, "%s  %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"), p.Text)
				for _, n := range p.Nodes {
					fmt.Fprintf(out, "    #%s %s\n", n.ID, n.Name)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum prompts to list (0 for all)")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every pole, relationship and prompt",
		Long: `Delete the stored graph and the prompt history. Node ids are not reused
afterwards. Take a backup first if you may want the graph back:

  tango backup && tango reset --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("reset deletes the whole graph; rerun with --yes to confirm")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Reset(context.Background()); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"status": "Database reset"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database reset")
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm the reset")
	return cmd
}

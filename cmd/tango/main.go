package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/tango/internal/store"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tango",
		Short: "Relationship graph simulator",
		Long: `tango turns statements about relationships into a graph of poles and
simulates how the poles mature, take roles and flip between light and
shadow as the relationships play out.

Examples:
  tango add "My inner critic attacks my creative side"
  tango simulate --iterations 10
  tango graph --format html --open`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.tango/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newAddCmd(),
		newSimulateCmd(),
		newGraphCmd(),
		newPromptsCmd(),
		newResetCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
		newBackupCmd(),
		newRestoreCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tango version %s\n", version)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tango state in the project directory",
		Long: `Create .tango/ with an empty graph database and a manifest.

Running init again is safe: existing state is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := store.EnsureLocalTangoDir(root)
			if err != nil {
				return err
			}

			manifestPath := filepath.Join(dir, "manifest.yaml")
			if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
				manifest := `# tango state
version: "1"
created: %s

# Run 'tango add "<statement>"' to add a relationship
# Run 'tango graph' to see the graph
`
				content := fmt.Sprintf(manifest, time.Now().Format(time.RFC3339))
				if err := os.WriteFile(manifestPath, []byte(content), 0644); err != nil {
					return fmt.Errorf("failed to create manifest.yaml: %w", err)
				}
			}

			st, err := store.NewSQLiteGraphStore(root)
			if err != nil {
				return fmt.Errorf("failed to create database: %w", err)
			}
			if err := st.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status":   "initialized",
					"path":     dir,
					"database": st.Path(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s/ in %s\n", store.StateDirName, root)
			return nil
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/tango/internal/backup"
	"github.com/nvandessel/tango/internal/store"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the graph and prompt history to a file",
		Long: `Write the whole graph (poles, relationships and prompts) to a
checksummed, compressed snapshot file.

Default location: .tango/backups/tango-backup-YYYYMMDD-HHMMSS.snapshot
Older snapshots in the same directory are pruned by --keep and --max-age.

Examples:
  tango backup                          # Snapshot to the default location
  tango backup --output graph.snapshot  # Snapshot to a specific file
  tango backup --keep 5 --max-age 30d   # Keep the newest 5 plus anything from the last 30 days
  tango backup list                     # List snapshots
  tango backup verify <file>            # Verify a snapshot's checksum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			retention, err := retentionFromFlags(cmd)
			if err != nil {
				return err
			}

			now := time.Now()
			if outputPath == "" {
				outputPath = backup.GeneratePath(backup.DefaultBackupDir(root), now)
			} else if err := backup.CheckOutputPath(outputPath, backup.AllowedDirs(root)); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			st, err := store.NewSQLiteGraphStore(root)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			header, err := backup.Backup(context.Background(), st, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			pruned, err := backup.Prune(filepath.Dir(outputPath), retention, now)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				var sizeBytes int64
				if info, err := os.Stat(outputPath); err == nil {
					sizeBytes = info.Size()
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":         outputPath,
					"node_count":   header.NodeCount,
					"edge_count":   header.EdgeCount,
					"prompt_count": header.PromptCount,
					"checksum":     header.Checksum,
					"size_bytes":   sizeBytes,
					"pruned":       pruned,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %d poles, %d relationships, %d prompts\n",
				header.NodeCount, header.EdgeCount, header.PromptCount)
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(out, "  Pruned %d old snapshot(s)\n", len(pruned))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path inside .tango/backups or ~/.tango/backups (default: auto-generated)")
	cmd.Flags().Int("keep", 10, "Keep the newest N snapshots (0 disables the count rule)")
	cmd.Flags().String("max-age", "", "Also keep snapshots younger than this, e.g. 30d or 2w")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)
	return cmd
}

// retentionFromFlags builds the prune policy from --keep and --max-age.
func retentionFromFlags(cmd *cobra.Command) (backup.Retention, error) {
	keep, _ := cmd.Flags().GetInt("keep")
	maxAge, _ := cmd.Flags().GetString("max-age")

	r := backup.Retention{MaxCount: keep}
	if maxAge != "" {
		d, err := backup.ParseAge(maxAge)
		if err != nil {
			return r, err
		}
		r.MaxAge = d
	}
	return r, nil
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots in the backup directory, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			backups, err := backup.List(backup.DefaultBackupDir(root))
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"backups": backups,
					"count":   len(backups),
				})
			}

			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintf(out, "%s  %s  %d poles, %d relationships, %d prompts  %s\n",
					b.CreatedAt.Local().Format("2006-01-02 15:04:05"), filepath.Base(b.Path),
					b.Nodes, b.Edges, b.Prompts, formatSize(b.Size))
			}
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a snapshot's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			verr := backup.VerifyChecksum(path)
			if jsonOut {
				result := map[string]interface{}{"path": path, "valid": verr == nil}
				if verr != nil {
					result["error"] = verr.Error()
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
					return err
				}
				return verr
			}
			if verr != nil {
				return fmt.Errorf("verification failed: %w", verr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the graph with a snapshot",
		Long: `Replace the stored graph and prompt history with the contents of a
snapshot file. The snapshot is verified and validated before anything is
written.

Example:
  tango restore .tango/backups/tango-backup-20260102-030405.snapshot --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("restore replaces the whole graph; rerun with --yes to confirm")
			}

			st, err := store.NewSQLiteGraphStore(root)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			result, err := backup.Restore(context.Background(), st, args[0])
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d poles, %d relationships, %d prompts\n",
				result.Nodes, result.Edges, result.Prompts)
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm replacing the current graph")
	return cmd
}

// formatSize renders a byte count for listings.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Package backup snapshots the tango graph and its prompt log to a single
// checksummed file and restores it.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/store"
)

// BackupDirName is the directory inside .tango that holds snapshots.
const BackupDirName = "backups"

// filePrefix and fileExt name snapshot files; the timestamp between them
// sorts lexically.
const (
	filePrefix = "tango-backup-"
	fileExt    = ".snapshot"
	timeLayout = "20060102-150405"
)

// Snapshot is the payload of a snapshot file.
type Snapshot struct {
	CreatedAt time.Time          `json:"created_at"`
	Nodes     []graph.NodeRecord `json:"nodes"`
	Edges     []graph.EdgeRecord `json:"edges"`
	Prompts   []store.Prompt     `json:"prompts"`
}

// RestoreResult reports what a restore wrote.
type RestoreResult struct {
	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
	Prompts int `json:"prompts"`
}

// DefaultBackupDir returns projectRoot/.tango/backups.
func DefaultBackupDir(projectRoot string) string {
	return filepath.Join(store.LocalTangoPath(projectRoot), BackupDirName)
}

// GeneratePath returns a timestamped snapshot path in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format(timeLayout)+fileExt)
}

// Take reads the whole graph and prompt log from st.
func Take(ctx context.Context, st store.GraphStore) (*Snapshot, error) {
	nodes, edges, err := st.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	prompts, err := st.ListPrompts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return &Snapshot{
		CreatedAt: time.Now().UTC(),
		Nodes:     nodes,
		Edges:     edges,
		Prompts:   prompts,
	}, nil
}

// Backup snapshots st to outputPath.
func Backup(ctx context.Context, st store.GraphStore, outputPath string) (*Header, error) {
	snap, err := Take(ctx, st)
	if err != nil {
		return nil, err
	}
	return WriteFile(outputPath, snap)
}

// Apply replaces everything in st with the snapshot. The records are
// validated by assembling them first, so a damaged snapshot leaves st
// untouched.
func Apply(ctx context.Context, st store.GraphStore, snap *Snapshot) (*RestoreResult, error) {
	if _, err := graph.Assemble(snap.Nodes, snap.Edges); err != nil {
		return nil, fmt.Errorf("snapshot graph is invalid: %w", err)
	}

	if err := st.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset store: %w", err)
	}
	if err := st.SaveGraph(ctx, snap.Nodes, snap.Edges); err != nil {
		return nil, fmt.Errorf("failed to restore graph: %w", err)
	}

	// ListPrompts is newest first; re-add oldest first.
	for i := len(snap.Prompts) - 1; i >= 0; i-- {
		if _, err := st.AddPrompt(ctx, snap.Prompts[i]); err != nil {
			return nil, fmt.Errorf("failed to restore prompt %s: %w", snap.Prompts[i].ID, err)
		}
	}

	return &RestoreResult{
		Nodes:   len(snap.Nodes),
		Edges:   len(snap.Edges),
		Prompts: len(snap.Prompts),
	}, nil
}

// Restore reads the snapshot at inputPath and applies it to st.
func Restore(ctx context.Context, st store.GraphStore, inputPath string) (*RestoreResult, error) {
	snap, _, err := ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Apply(ctx, st, snap)
}

package backup

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/tango/internal/graph"
	"github.com/nvandessel/tango/internal/store"
)

func seedStore(t *testing.T, st store.GraphStore) {
	t.Helper()
	ctx := context.Background()
	snap := testSnapshot()
	for range snap.Nodes {
		if _, err := st.NextNodeID(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.SaveGraph(ctx, snap.Nodes, snap.Edges); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	for _, p := range []string{"first", "second"} {
		if _, err := st.AddPrompt(ctx, store.Prompt{Text: p, CreatedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("AddPrompt: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBackupRestore_SQLite(t *testing.T) {
	ctx := context.Background()
	src, err := store.NewSQLiteGraphStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteGraphStore: %v", err)
	}
	defer src.Close()
	seedStore(t, src)

	path := GeneratePath(t.TempDir(), time.Now())
	header, err := Backup(ctx, src, path)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if header.NodeCount != 2 || header.EdgeCount != 1 || header.PromptCount != 2 {
		t.Errorf("header = %+v", header)
	}

	dst, err := store.NewSQLiteGraphStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()
	// Pre-existing data is replaced.
	if _, err := dst.AddPrompt(ctx, store.Prompt{Text: "stale"}); err != nil {
		t.Fatal(err)
	}

	result, err := Restore(ctx, dst, path)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if *result != (RestoreResult{Nodes: 2, Edges: 1, Prompts: 2}) {
		t.Errorf("result = %+v", result)
	}

	nodes, edges, err := dst.LoadGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || nodes[0].Name != "Inner Critic" || nodes[1].History != "Victim→Creator" {
		t.Errorf("nodes = %+v", nodes)
	}
	if len(edges) != 1 || edges[0].Role != "Victim-Persecutor" {
		t.Errorf("edges = %+v", edges)
	}

	prompts, err := dst.ListPrompts(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(prompts) != 2 || prompts[0].Text != "second" || prompts[1].Text != "first" {
		t.Errorf("prompts = %+v", prompts)
	}

	// Restored ids are never handed out again.
	id, err := dst.NextNodeID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id == "1" || id == "2" {
		t.Errorf("NextNodeID reused restored id %s", id)
	}
}

func TestApply_RejectsInvalidGraph(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryGraphStore()
	seedStore(t, st)

	bad := testSnapshot()
	bad.Edges = append(bad.Edges, graph.EdgeRecord{SourceID: "1", TargetID: "99"})

	if _, err := Apply(ctx, st, bad); err == nil || !strings.Contains(err.Error(), "snapshot graph is invalid") {
		t.Fatalf("expected invalid graph error, got %v", err)
	}

	// The store is untouched.
	nodes, _, err := st.LoadGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Errorf("nodes after rejected restore = %d, want 2", len(nodes))
	}
}

func TestDefaultBackupDirAndPath(t *testing.T) {
	dir := DefaultBackupDir("/project")
	if dir != filepath.Join("/project", ".tango", "backups") {
		t.Errorf("DefaultBackupDir = %q", dir)
	}

	got := GeneratePath(dir, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	want := filepath.Join(dir, "tango-backup-20260102-030405.snapshot")
	if got != want {
		t.Errorf("GeneratePath = %q, want %q", got, want)
	}
}

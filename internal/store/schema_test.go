package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/tango/internal/graph"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"nodes", "edges", "prompts", "counters", "schema_version"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i := 0; i < 2; i++ {
		if err := InitSchema(ctx, db); err != nil {
			t.Fatalf("InitSchema run %d: %v", i+1, err)
		}
	}

	var rows int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("schema_version rows = %d, want 1", rows)
	}
}

func TestInitSchema_NewerVersionRejected(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("expected newer-version error, got %v", err)
	}
}

func TestValidateIntegrity(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		t.Errorf("fresh database should pass: %v", err)
	}

	// Sneak in a dangling edge with enforcement off.
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO edges (source_id, target_id) VALUES ('a', 'b')`); err != nil {
		t.Fatal(err)
	}

	if err := ValidateIntegrity(ctx, db); err == nil {
		t.Error("expected foreign_key_check failure")
	}
}

func TestResetSchema(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteGraphStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.SaveGraph(ctx, []graph.NodeRecord{{ID: "1", Name: "A"}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := ResetSchema(ctx, s.db); err != nil {
		t.Fatalf("ResetSchema: %v", err)
	}

	nodes, _, err := s.LoadGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected empty graph after ResetSchema, got %d nodes", len(nodes))
	}
}

func TestSQLiteGraphStore_Reopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	s, err := NewSQLiteGraphStore(root)
	if err != nil {
		t.Fatal(err)
	}
	nodes, edges := sampleRecords()
	if err := s.SaveGraph(ctx, nodes, edges); err != nil {
		t.Fatal(err)
	}
	if _, err := s.NextNodeID(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteGraphStore(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Path() != DatabasePath(root) {
		t.Errorf("Path() = %s, want %s", reopened.Path(), DatabasePath(root))
	}

	got, gotEdges, err := reopened.LoadGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || len(gotEdges) != 2 {
		t.Errorf("reopened graph: %d nodes, %d edges", len(got), len(gotEdges))
	}

	// Counter persisted: 1..3 are taken by nodes, 4 went to the earlier call.
	id, err := reopened.NextNodeID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id != "5" {
		t.Errorf("NextNodeID after reopen = %s, want 5", id)
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/tango/internal/graph"
)

// promptTimeLayout is fixed-width so created_at sorts lexically.
const promptTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteGraphStore implements GraphStore on a SQLite database at
// <projectRoot>/.tango/tango.db.
type SQLiteGraphStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	closed bool
}

// NewSQLiteGraphStore opens (creating if needed) the database under
// projectRoot/.tango.
func NewSQLiteGraphStore(projectRoot string) (*SQLiteGraphStore, error) {
	dir, err := EnsureLocalTangoDir(projectRoot)
	if err != nil {
		return nil, err
	}
	return OpenSQLiteGraphStore(filepath.Join(dir, DatabaseFile))
}

// OpenSQLiteGraphStore opens the database at dbPath directly.
func OpenSQLiteGraphStore(dbPath string) (*SQLiteGraphStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteGraphStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteGraphStore) Path() string { return s.dbPath }

// LoadGraph returns every stored node and edge in insertion order.
func (s *SQLiteGraphStore) LoadGraph(ctx context.Context) ([]graph.NodeRecord, []graph.EdgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, ErrClosed
	}

	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func (s *SQLiteGraphStore) loadNodes(ctx context.Context) ([]graph.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, maturity, ego_state, role, metacognition, history
		FROM nodes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []graph.NodeRecord
	for rows.Next() {
		var (
			r        graph.NodeRecord
			id       string
			maturity sql.NullFloat64
			meta     int
		)
		if err := rows.Scan(&id, &r.Name, &maturity, &r.EgoState, &r.Role, &meta, &r.History); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		r.ID = graph.ID(id)
		if maturity.Valid {
			r.Maturity = graph.Float64(maturity.Float64)
		}
		r.Metacognition = meta != 0
		nodes = append(nodes, r)
	}
	return nodes, rows.Err()
}

func (s *SQLiteGraphStore) loadEdges(ctx context.Context) ([]graph.EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, polarity, light_shadow, role, consent, description
		FROM edges ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []graph.EdgeRecord
	for rows.Next() {
		var (
			r              graph.EdgeRecord
			source, target string
			consent        int
		)
		if err := rows.Scan(&source, &target, &r.Polarity, &r.LightShadow, &r.Role, &consent, &r.Description); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		r.SourceID = graph.ID(source)
		r.TargetID = graph.ID(target)
		r.Consent = consent != 0
		edges = append(edges, r)
	}
	return edges, rows.Err()
}

// SaveGraph replaces the stored graph in one transaction.
func (s *SQLiteGraphStore) SaveGraph(ctx context.Context, nodes []graph.NodeRecord, edges []graph.EdgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, name, maturity, ego_state, role, metacognition, history, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			maturity = excluded.maturity,
			ego_state = excluded.ego_state,
			role = excluded.role,
			metacognition = excluded.metacognition,
			history = excluded.history,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare node upsert: %w", err)
	}
	defer upsert.Close()

	keep := make([]any, 0, len(nodes))
	for _, n := range nodes {
		var maturity any
		if n.Maturity != nil {
			maturity = *n.Maturity
		}
		if _, err := upsert.ExecContext(ctx, string(n.ID), n.Name, maturity, n.EgoState, n.Role,
			boolToInt(n.Metacognition), n.History, now); err != nil {
			return fmt.Errorf("failed to save node %s: %w", n.ID, err)
		}
		keep = append(keep, string(n.ID))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (source_id, target_id, polarity, light_shadow, role, consent, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer insert.Close()

	for i, e := range edges {
		if _, err := insert.ExecContext(ctx, string(e.SourceID), string(e.TargetID), e.Polarity,
			e.LightShadow, e.Role, boolToInt(e.Consent), e.Description); err != nil {
			return fmt.Errorf("failed to save edge %d (%s-%s): %w", i, e.SourceID, e.TargetID, err)
		}
	}

	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
			return fmt.Errorf("failed to prune nodes: %w", err)
		}
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id NOT IN (`+placeholders+`)`, keep...); err != nil {
			return fmt.Errorf("failed to prune nodes: %w", err)
		}
	}

	return tx.Commit()
}

// NextNodeID allocates the next integer id, skipping any id already taken.
func (s *SQLiteGraphStore) NextNodeID(ctx context.Context) (graph.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var value int64
	err = tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = 'node_id'`).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to read node counter: %w", err)
	}

	for {
		value++
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, strconv.FormatInt(value, 10)).Scan(&exists); err != nil {
			return "", fmt.Errorf("failed to check node id: %w", err)
		}
		if exists == 0 {
			break
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES ('node_id', ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, value); err != nil {
		return "", fmt.Errorf("failed to update node counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit node counter: %w", err)
	}
	return graph.ID(strconv.FormatInt(value, 10)), nil
}

// AddPrompt records a prompt and the records it produced.
func (s *SQLiteGraphStore) AddPrompt(ctx context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	nodeJSON, err := json.Marshal(nonNilNodes(p.Nodes))
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt nodes: %w", err)
	}
	edgeJSON, err := json.Marshal(nonNilEdges(p.Edges))
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt edges: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (id, prompt, node_json, edge_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Text, string(nodeJSON), string(edgeJSON), p.CreatedAt.UTC().Format(promptTimeLayout)); err != nil {
		return "", fmt.Errorf("failed to insert prompt: %w", err)
	}
	return p.ID, nil
}

// ListPrompts returns up to limit prompts, newest first.
func (s *SQLiteGraphStore) ListPrompts(ctx context.Context, limit int) ([]Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := `SELECT id, prompt, node_json, edge_json, created_at FROM prompts ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		var (
			p                  Prompt
			nodeJSON, edgeJSON string
			createdAt          string
		)
		if err := rows.Scan(&p.ID, &p.Text, &nodeJSON, &edgeJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		if err := json.Unmarshal([]byte(nodeJSON), &p.Nodes); err != nil {
			return nil, fmt.Errorf("failed to decode nodes of prompt %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(edgeJSON), &p.Edges); err != nil {
			return nil, fmt.Errorf("failed to decode edges of prompt %s: %w", p.ID, err)
		}
		p.CreatedAt, _ = time.Parse(promptTimeLayout, createdAt)
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// Reset deletes all prompts, nodes and edges. The node id counter survives.
func (s *SQLiteGraphStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"prompts", "edges", "nodes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the database. Closing twice is a no-op.
func (s *SQLiteGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNilNodes(n []graph.NodeRecord) []graph.NodeRecord {
	if n == nil {
		return []graph.NodeRecord{}
	}
	return n
}

func nonNilEdges(e []graph.EdgeRecord) []graph.EdgeRecord {
	if e == nil {
		return []graph.EdgeRecord{}
	}
	return e
}

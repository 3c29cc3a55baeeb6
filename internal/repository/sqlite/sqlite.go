package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"graphsketch/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository persists graph nodes and edges in SQLite.
// Rows keep their insertion sequence so a reload restores creation order.
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// Close releases the database handle
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS nodes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'plain',
		color TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS edges (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		above_id TEXT NOT NULL,
		below_id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'plain',
		weight INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (above_id) REFERENCES nodes(id),
		FOREIGN KEY (below_id) REFERENCES nodes(id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_above ON edges(above_id);
	CREATE INDEX IF NOT EXISTS idx_edges_below ON edges(below_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SaveNode inserts a new node
func (r *Repository) SaveNode(ctx context.Context, node *domain.Node) error {
	return insertNode(ctx, r.db, node)
}

func insertNode(ctx context.Context, ex execer, node *domain.Node) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?)`,
		nodeInsertArgs(node)...)
	if err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

// UpdateNode writes a node's name and color
func (r *Repository) UpdateNode(ctx context.Context, node *domain.Node) error {
	color, _ := node.Color()
	result, err := r.db.ExecContext(ctx, `
		UPDATE nodes SET name = ?, color = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, node.Name(), stringToNull(color), node.ID())
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Kind: "node", ID: node.ID()}
	}
	return nil
}

// SaveEdge inserts a new edge. Both endpoints must already be stored.
func (r *Repository) SaveEdge(ctx context.Context, edge *domain.Edge) error {
	return insertEdge(ctx, r.db, edge)
}

func insertEdge(ctx context.Context, ex execer, edge *domain.Edge) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO edges (`+edgeColumns+`) VALUES (?, ?, ?, ?, ?)`,
		edgeInsertArgs(edge)...)
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

// ListNodes returns all stored nodes in insertion order
func (r *Repository) ListNodes(ctx context.Context) ([]*domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.Node
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// Load fills store with every stored node and edge, in insertion order
func (r *Repository) Load(ctx context.Context, store *domain.Store) error {
	nodes, err := r.ListNodes(ctx)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := store.AddNode(node); err != nil {
			return fmt.Errorf("failed to restore node %s: %w", node.ID(), err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+edgeColumns+` FROM edges ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row edgeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}
		kind, err := row.kind()
		if err != nil {
			return err
		}
		if _, err := store.RestoreEdge(row.ID, row.AboveID, row.BelowID, kind); err != nil {
			return fmt.Errorf("failed to restore edge %s: %w", row.ID, err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating edges: %w", err)
	}
	return nil
}

// Import writes nodes then edges in one transaction. With replace set,
// existing rows are deleted first.
func (r *Repository) Import(ctx context.Context, nodes []*domain.Node, edges []*domain.Edge, replace bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if err := clearAll(ctx, tx); err != nil {
			return err
		}
	}
	for _, node := range nodes {
		if err := insertNode(ctx, tx, node); err != nil {
			return err
		}
	}
	for _, edge := range edges {
		if err := insertEdge(ctx, tx, edge); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Clear removes every node and edge
func (r *Repository) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearAll(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

func clearAll(ctx context.Context, ex execer) error {
	// Edges reference nodes, so they go first.
	if _, err := ex.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	return nil
}

// Counts returns the number of stored nodes and edges
func (r *Repository) Counts(ctx context.Context) (nodes, edges int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM nodes), (SELECT COUNT(*) FROM edges)`).Scan(&nodes, &edges)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return nodes, edges, nil
}

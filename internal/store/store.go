package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/facecmp/internal/types"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("comparison run not found")

// Store persists comparison reports in PostgreSQL. Embeddings are never stored.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the report tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS comparison_runs (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			image_count INT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS comparison_results (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES comparison_runs(id) ON DELETE CASCADE,
			position INT NOT NULL,
			path_a TEXT NOT NULL,
			path_b TEXT NOT NULL,
			distance DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS comparison_results_run_id_idx ON comparison_results (run_id, position);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveRun writes one complete report in a single transaction and returns its id.
func (s *Store) SaveRun(ctx context.Context, imageCount int, results []types.ComparisonResult) (string, error) {
	id := uuid.NewString()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "INSERT INTO comparison_runs (id, image_count) VALUES ($1, $2)", id, imageCount); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, r := range results {
		batch.Queue(`
			INSERT INTO comparison_results (run_id, position, path_a, path_b, distance)
			VALUES ($1, $2, $3, $4, $5)
		`, id, i, r.A, r.B, r.Distance)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", fmt.Errorf("failed to insert results: %w", err)
	}

	return id, tx.Commit(ctx)
}

// GetRun returns the results of a run in their original order.
func (s *Store) GetRun(ctx context.Context, id string) ([]types.ComparisonResult, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM comparison_runs WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT path_a, path_b, distance FROM comparison_results
		WHERE run_id = $1 ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.ComparisonResult
	for rows.Next() {
		var r types.ComparisonResult
		if err := rows.Scan(&r.A, &r.B, &r.Distance); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListRuns returns every stored run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]types.RunSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT r.id, r.label, r.image_count, COUNT(c.id), r.created_at
		FROM comparison_runs r
		LEFT JOIN comparison_results c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []types.RunSummary
	for rows.Next() {
		var r types.RunSummary
		if err := rows.Scan(&r.ID, &r.Label, &r.ImageCount, &r.PairCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LabelRun attaches a human readable label to a stored run.
func (s *Store) LabelRun(ctx context.Context, id, label string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE comparison_runs SET label = $1 WHERE id = $2", label, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Reset drops all application tables to clear the database state.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS comparison_results CASCADE;
		DROP TABLE IF EXISTS comparison_runs CASCADE;
	`)
	return err
}

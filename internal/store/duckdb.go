package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/askdb/askdb/internal/logging"
)

// DuckDBRepository implements the Repository interface using DuckDB
type DuckDBRepository struct {
	db     *sql.DB
	path   string
	logger *logging.Logger
}

// NewDuckDBRepository creates a new DuckDB repository with connection pooling
func NewDuckDBRepository(dbPath string, logger *logging.Logger) (*DuckDBRepository, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DuckDBRepository{
		db:     db,
		path:   dbPath,
		logger: logger,
	}, nil
}

// Initialize creates the database schema using migrations
func (r *DuckDBRepository) Initialize(ctx context.Context) error {
	return NewMigrationManager(r.db).MigrateUp(ctx)
}

// InsertQuery stores a new cache entry. The single INSERT makes the entry
// visible to readers atomically.
func (r *DuckDBRepository) InsertQuery(ctx context.Context, entry CachedQuery) error {
	embeddingJSON, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	insertSQL := `
	INSERT INTO query_cache (id, question, embedding, generated_sql, schema_fingerprint, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, insertSQL,
		entry.ID, entry.Question, string(embeddingJSON),
		entry.SQL, entry.Fingerprint, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// ListQueriesByFingerprint returns all live entries recorded under the
// given schema fingerprint, oldest first. Rows whose embedding cannot be
// decoded are skipped and logged; a corrupt row must never take down the
// request flow.
func (r *DuckDBRepository) ListQueriesByFingerprint(
	ctx context.Context,
	fingerprint string,
) ([]CachedQuery, error) {
	query := `
	SELECT id, question, embedding, generated_sql, schema_fingerprint, created_at
	FROM query_cache
	WHERE schema_fingerprint = ?
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}

	defer rows.Close()

	var entries []CachedQuery

	for rows.Next() {
		var entry CachedQuery

		var embeddingJSON string

		err := rows.Scan(&entry.ID, &entry.Question, &embeddingJSON,
			&entry.SQL, &entry.Fingerprint, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}

		if err := json.Unmarshal([]byte(embeddingJSON), &entry.Embedding); err != nil {
			r.logger.Warnf("skipping cache entry %s with corrupt embedding: %v", entry.ID, err)
			continue
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// DeleteQuery removes a single cache entry
func (r *DuckDBRepository) DeleteQuery(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM query_cache WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// DeleteQueriesByFingerprint removes every entry recorded under the given
// fingerprint and returns how many were deleted
func (r *DuckDBRepository) DeleteQueriesByFingerprint(
	ctx context.Context,
	fingerprint string,
) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM query_cache WHERE schema_fingerprint = ?", fingerprint)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // count is advisory
	}

	return n, nil
}

// Clear removes all cache entries
func (r *DuckDBRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM query_cache")
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	return nil
}

// ListHints returns hints, optionally filtered by category and enablement
func (r *DuckDBRepository) ListHints(
	ctx context.Context,
	category string,
	enabledOnly bool,
) ([]Hint, error) {
	query := "SELECT id, category, hint, enabled, created_at FROM hints"

	var args []interface{}

	var where []string

	if category != "" {
		where = append(where, "category = ?")
		args = append(args, category)
	}

	if enabledOnly {
		where = append(where, "enabled")
	}

	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hints: %w", err)
	}

	defer rows.Close()

	var hints []Hint

	for rows.Next() {
		var h Hint
		if err := rows.Scan(&h.ID, &h.Category, &h.Text, &h.Enabled, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}

		hints = append(hints, h)
	}

	return hints, rows.Err()
}

// InsertHint stores a new hint
func (r *DuckDBRepository) InsertHint(ctx context.Context, hint Hint) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO hints (id, category, hint, enabled, created_at) VALUES (?, ?, ?, ?, ?)",
		hint.ID, hint.Category, hint.Text, hint.Enabled, hint.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert hint: %w", err)
	}

	return nil
}

// SetHintEnabled toggles a hint without deleting it
func (r *DuckDBRepository) SetHintEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE hints SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update hint: %w", err)
	}

	return nil
}

// DeleteHint removes a hint
func (r *DuckDBRepository) DeleteHint(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM hints WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete hint: %w", err)
	}

	return nil
}

// GetStats returns cache statistics
func (r *DuckDBRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_cache").Scan(&stats.CachedQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT schema_fingerprint) FROM query_cache").Scan(&stats.Fingerprints)
	if err != nil {
		return nil, fmt.Errorf("failed to count fingerprints: %w", err)
	}

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hints").Scan(&stats.Hints)
	if err != nil {
		return nil, fmt.Errorf("failed to count hints: %w", err)
	}

	if info, err := os.Stat(r.path); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}

// Close closes the underlying database
func (r *DuckDBRepository) Close() error {
	return r.db.Close()
}

package sqlexec

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdb/askdb/internal/errors"
)

// PostgresExecutor runs statements against a PostgreSQL database
type PostgresExecutor struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	maxRows      int
}

// NewPostgresExecutor creates an executor connected to the given DSN
func NewPostgresExecutor(
	ctx context.Context,
	dsn string,
	queryTimeout time.Duration,
	maxRows int,
) (*PostgresExecutor, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConnection, "invalid connection string")
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.NewConnectionError(err, config.ConnConfig.Host)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewConnectionError(err, config.ConnConfig.Host)
	}

	return NewPostgresExecutorFromPool(pool, queryTimeout, maxRows), nil
}

// NewPostgresExecutorFromPool creates an executor over an existing pool
func NewPostgresExecutorFromPool(
	pool *pgxpool.Pool,
	queryTimeout time.Duration,
	maxRows int,
) *PostgresExecutor {
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}

	if maxRows <= 0 {
		maxRows = 100
	}

	return &PostgresExecutor{
		pool:         pool,
		queryTimeout: queryTimeout,
		maxRows:      maxRows,
	}
}

// Validate plans the statement without running it. The planner catches
// missing tables, missing columns, and type errors, which covers the
// ways a cached statement goes stale.
func (e *PostgresExecutor) Validate(ctx context.Context, statement string) error {
	if err := EnsureReadOnly(statement); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, "EXPLAIN "+statement)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeExecution, "statement failed validation")
	}

	rows.Close()

	return rows.Err()
}

// Execute runs the statement and returns up to maxRows rows. The raw
// database error text is preserved in the wrapped cause so it can be fed
// back to the generator on a correction attempt.
func (e *PostgresExecutor) Execute(ctx context.Context, statement string) (*Result, error) {
	if err := EnsureReadOnly(statement); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, statement)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "statement execution failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))

	for i, field := range fields {
		columns[i] = field.Name
	}

	result := &Result{Columns: columns}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to read result row")
		}

		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "statement execution failed")
	}

	return result, nil
}

// Close releases the connection pool
func (e *PostgresExecutor) Close() {
	e.pool.Close()
}

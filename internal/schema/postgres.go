package schema

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdb/askdb/internal/errors"
)

// PostgresExtractor implements Extractor for PostgreSQL using catalog
// metadata. Extraction is read-only.
type PostgresExtractor struct {
	pool   *pgxpool.Pool
	schema string // pg schema to introspect, defaults to "public"
}

// NewPostgresExtractor connects to the database and verifies the connection
func NewPostgresExtractor(ctx context.Context, dsn, pgSchema string) (*PostgresExtractor, error) {
	if pgSchema == "" {
		pgSchema = "public"
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConnection, "invalid connection string")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.NewConnectionError(err, poolCfg.ConnConfig.Host)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewConnectionError(err, poolCfg.ConnConfig.Host)
	}

	return &PostgresExtractor{pool: pool, schema: pgSchema}, nil
}

// NewPostgresExtractorFromPool wraps an existing pool without reconnecting
func NewPostgresExtractorFromPool(pool *pgxpool.Pool, pgSchema string) *PostgresExtractor {
	if pgSchema == "" {
		pgSchema = "public"
	}

	return &PostgresExtractor{pool: pool, schema: pgSchema}
}

// Extract introspects tables, columns, foreign keys, indexes, and comments
func (p *PostgresExtractor) Extract(ctx context.Context) (*Description, error) {
	tables, err := p.extractTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeIntrospection, "failed to list tables")
	}

	tableMap := make(map[string]*Table, len(tables))
	for i := range tables {
		tableMap[tables[i].Name] = &tables[i]
	}

	if err := p.extractColumns(ctx, tableMap); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeIntrospection, "failed to read columns")
	}

	if err := p.extractForeignKeys(ctx, tableMap); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeIntrospection, "failed to read foreign keys")
	}

	if err := p.extractIndexes(ctx, tableMap); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeIntrospection, "failed to read indexes")
	}

	return &Description{Tables: tables}, nil
}

// Close releases the underlying connection pool
func (p *PostgresExtractor) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// extractTables lists all user tables in the target schema with comments
func (p *PostgresExtractor) extractTables(ctx context.Context) ([]Table, error) {
	query := `
		SELECT
			c.relname AS table_name,
			COALESCE(obj_description(c.oid, 'pg_class'), '') AS comment
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind = 'r'
		ORDER BY c.relname`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table

	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.Comment); err != nil {
			return nil, err
		}

		tables = append(tables, t)
	}

	return tables, rows.Err()
}

// extractColumns reads column names, types, nullability, and comments
func (p *PostgresExtractor) extractColumns(ctx context.Context, tableMap map[string]*Table) error {
	query := `
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS nullable,
			COALESCE(col_description(pc.oid, c.ordinal_position), '') AS comment
		FROM information_schema.columns c
		JOIN pg_class pc ON pc.relname = c.table_name
		JOIN pg_namespace pn ON pn.oid = pc.relnamespace AND pn.nspname = c.table_schema
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string

		var col Column

		if err := rows.Scan(&tableName, &col.Name, &col.Type, &col.Nullable, &col.Comment); err != nil {
			return err
		}

		if t, ok := tableMap[tableName]; ok {
			t.Columns = append(t.Columns, col)
		}
	}

	return rows.Err()
}

// extractForeignKeys reads single-column foreign key relationships
func (p *PostgresExtractor) extractForeignKeys(ctx context.Context, tableMap map[string]*Table) error {
	query := `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.column_name`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string

		var fk ForeignKey

		if err := rows.Scan(&tableName, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return err
		}

		if t, ok := tableMap[tableName]; ok {
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}

	return rows.Err()
}

// extractIndexes reads index names, column lists, and uniqueness
func (p *PostgresExtractor) extractIndexes(ctx context.Context, tableMap map[string]*Table) error {
	query := `
		SELECT
			t.relname AS table_name,
			i.relname AS index_name,
			ix.indisunique,
			a.attname
		FROM pg_index ix
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relkind = 'r'
		ORDER BY t.relname, i.relname, k.ord`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	// Index rows arrive one column at a time in ordinal order; fold them
	// into the table's index list keyed by index name.
	type indexKey struct {
		table string
		name  string
	}

	positions := make(map[indexKey]int)

	for rows.Next() {
		var tableName, indexName, columnName string

		var unique bool

		if err := rows.Scan(&tableName, &indexName, &unique, &columnName); err != nil {
			return err
		}

		t, ok := tableMap[tableName]
		if !ok {
			continue
		}

		key := indexKey{table: tableName, name: indexName}
		if pos, seen := positions[key]; seen {
			t.Indexes[pos].Columns = append(t.Indexes[pos].Columns, columnName)
			continue
		}

		positions[key] = len(t.Indexes)
		t.Indexes = append(t.Indexes, Index{
			Name:    indexName,
			Columns: []string{columnName},
			Unique:  unique,
		})
	}

	return rows.Err()
}

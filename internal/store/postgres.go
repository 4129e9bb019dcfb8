package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store on PostgreSQL via the pgx stdlib driver.
type PostgresStore struct {
	cfg    Config
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres store. Connect must be called before use.
func NewPostgresStore(cfg Config, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{cfg: cfg, logger: logger}
}

// Connect opens a connection pool against the configured DSN.
func (s *PostgresStore) Connect(ctx context.Context) error {
	if s.cfg.DSN == "" {
		return fmt.Errorf("postgres store requires a dsn")
	}

	s.logger.Debug("connecting to postgres")

	db, err := sql.Open("pgx", s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}
	return s.db.PingContext(ctx)
}

// ExecuteQuery runs a SELECT with the row cap enforced by a subselect.
func (s *PostgresStore) ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) ([]map[string]any, error) {
	return queryRows(ctx, s.db, sqlQuery, maxRows)
}

// ListTables enumerates tables in the public schema.
func (s *PostgresStore) ListTables(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// SchemaInfo reads column metadata from information_schema plus a few
// sample rows per table.
func (s *PostgresStore) SchemaInfo(ctx context.Context, tables []string) (map[string]TableSchema, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	if tables == nil {
		var err error
		tables, err = s.ListTables(ctx)
		if err != nil {
			return nil, err
		}
	}

	info := make(map[string]TableSchema, len(tables))
	for _, table := range tables {
		schema, err := s.tableSchema(ctx, table)
		if err != nil {
			s.logger.Warn("failed to read table schema", "table", table, "error", err)
			continue
		}
		info[table] = schema
	}
	return info, nil
}

func (s *PostgresStore) tableSchema(ctx context.Context, table string) (TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return TableSchema{}, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var name, typ, nullable, defaultVal string
		if err := rows.Scan(&name, &typ, &nullable, &defaultVal); err != nil {
			return TableSchema{}, err
		}
		columns = append(columns, ColumnInfo{
			Name:     name,
			Type:     typ,
			Nullable: nullable == "YES",
			Default:  defaultVal,
		})
	}
	if err := rows.Err(); err != nil {
		return TableSchema{}, err
	}

	samples, err := queryRows(ctx, s.db, fmt.Sprintf("SELECT * FROM %q", table), 3)
	if err != nil {
		return TableSchema{}, err
	}

	return TableSchema{Columns: columns, SampleRows: samples}, nil
}

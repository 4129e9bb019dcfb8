package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

//go:embed sample.sql
var sampleSQL string

// SQLiteStore implements Store on SQLite via the modernc driver.
type SQLiteStore struct {
	cfg    Config
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite store. Connect must be called before use.
func NewSQLiteStore(cfg Config, logger *slog.Logger) *SQLiteStore {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	return &SQLiteStore{cfg: cfg, logger: logger}
}

// Connect opens the SQLite database.
func (s *SQLiteStore) Connect(ctx context.Context) error {
	s.logger.Debug("connecting to sqlite", "path", s.cfg.Path)

	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	// The modernc driver serializes access per connection; a single
	// connection also keeps :memory: databases from evaporating.
	db.SetMaxOpenConns(1)

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}
	return s.db.PingContext(ctx)
}

// ExecuteQuery runs a SELECT with the row cap enforced by a subselect.
func (s *SQLiteStore) ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) ([]map[string]any, error) {
	return queryRows(ctx, s.db, sqlQuery, maxRows)
}

// ListTables enumerates user tables, excluding SQLite internals.
func (s *SQLiteStore) ListTables(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
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

// SchemaInfo reads column metadata via PRAGMA table_info plus a few sample
// rows per table.
func (s *SQLiteStore) SchemaInfo(ctx context.Context, tables []string) (map[string]TableSchema, error) {
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

func (s *SQLiteStore) tableSchema(ctx context.Context, table string) (TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return TableSchema{}, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return TableSchema{}, err
		}
		columns = append(columns, ColumnInfo{
			Name:     name,
			Type:     typ,
			Nullable: notNull == 0,
			Default:  defaultVal.String,
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

// LoadSampleData creates and populates the demo dataset (employees,
// departments, projects, employee_projects, sales). Loading is idempotent.
func (s *SQLiteStore) LoadSampleData(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}

	s.logger.Debug("loading sample dataset")
	if _, err := s.db.ExecContext(ctx, sampleSQL); err != nil {
		return fmt.Errorf("failed to load sample data: %w", err)
	}
	return nil
}

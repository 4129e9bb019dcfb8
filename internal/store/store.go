// Package store wraps the relational database the pipeline queries. It
// provides a small adapter interface with SQLite and Postgres
// implementations, row-capped query execution, and schema introspection
// for the retrieval layer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type specifies the database type ("sqlite" or "postgres").
	Type string `koanf:"type"`

	// Path is the file path for SQLite. Use ":memory:" for in-memory.
	Path string `koanf:"path"`

	// DSN is the connection string for network databases.
	DSN string `koanf:"dsn"`

	// MaxRows caps the rows any single query may return.
	MaxRows int `koanf:"max_rows"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
}

// TableSchema holds column metadata plus a few sample rows, the raw
// material for schema context documents.
type TableSchema struct {
	Columns    []ColumnInfo     `json:"columns"`
	SampleRows []map[string]any `json:"sample_data"`
}

// Store is the adapter interface all database backends implement.
type Store interface {
	// Connect establishes the database connection.
	Connect(ctx context.Context) error

	// Close closes the connection and releases resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// ExecuteQuery runs a SELECT and returns at most maxRows rows.
	ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) ([]map[string]any, error)

	// ListTables enumerates the user tables the store exposes.
	ListTables(ctx context.Context) ([]string, error)

	// SchemaInfo returns column metadata and sample rows for the given
	// tables, or for every table when tables is nil.
	SchemaInfo(ctx context.Context, tables []string) (map[string]TableSchema, error)
}

// New creates a store adapter for the configured database type.
func New(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		return NewSQLiteStore(cfg, logger), nil
	case "postgres":
		return NewPostgresStore(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown store type %q (available: sqlite, postgres)", cfg.Type)
	}
}

// queryRows executes sqlQuery wrapped in a row-capping subselect and scans
// the result generically. Wrapping rather than trusting a client-side break
// keeps the cap enforced by the database itself.
func queryRows(ctx context.Context, db *sql.DB, sqlQuery string, maxRows int) ([]map[string]any, error) {
	if db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	if maxRows <= 0 {
		maxRows = 100
	}

	capped := fmt.Sprintf("SELECT * FROM (%s) AS sub LIMIT %d", strings.TrimRight(strings.TrimSpace(sqlQuery), ";"), maxRows)

	rows, err := db.QueryContext(ctx, capped)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows converts sql.Rows into generic maps keyed by column name.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return results, nil
}

// normalizeValue makes driver-specific values JSON-friendly.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

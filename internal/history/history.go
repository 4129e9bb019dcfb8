// Package history persists run history for completed and failed pipeline
// attempts. It is a write-mostly SQLite store; the pipeline records every
// execution attempt here and the API exposes the recent entries.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/askdb/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// Record is one persisted history entry.
type Record struct {
	ID            string         `json:"id"`
	Question      string         `json:"question"`
	SQLQuery      string         `json:"sql_query"`
	RowCount      int            `json:"row_count"`
	ExecutionTime float64        `json:"execution_time"`
	Confidence    float64        `json:"confidence_score"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Store implements run-history persistence on SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a history store instance.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens the history database. Use ":memory:" for an in-memory store.
func (s *Store) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping history database: %w", err)
	}

	db.SetMaxOpenConns(1)

	s.db = db
	s.path = path
	return nil
}

// Close closes the history database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema initializes the history schema.
func (s *Store) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// RecordQuery persists one pipeline execution attempt. It satisfies
// pipeline.Recorder.
func (s *Store) RecordQuery(ctx context.Context, entry pipeline.Entry) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	id := uuid.New().String()
	s.logger.Debug("recording query history", "id", id, "success", entry.Success)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_history
			(id, question, sql_query, row_count, execution_time,
			 confidence_score, success, error_message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entry.Question, entry.SQLQuery, entry.RowCount, entry.ExecutionTime,
		entry.Confidence, entry.Success, nullable(entry.ErrorMessage),
		string(metadata), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record query history: %w", err)
	}
	return nil
}

// ListRecent returns the most recent entries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, sql_query, row_count, execution_time,
		       confidence_score, success, error_message, metadata, created_at
		FROM query_history
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			errMsg   sql.NullString
			metadata string
		)
		if err := rows.Scan(&r.ID, &r.Question, &r.SQLQuery, &r.RowCount,
			&r.ExecutionTime, &r.Confidence, &r.Success, &errMsg,
			&metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.ErrorMessage = errMsg.String
		if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			r.Metadata = map[string]any{}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

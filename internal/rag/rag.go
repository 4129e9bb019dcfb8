// Package rag retrieves schema and example context for a question and
// prompts a language model to produce candidate SQL.
//
// Retrieval is lexical: indexed documents are ranked by term overlap with
// the question. That keeps the service dependency-free and deterministic,
// which matters more here than recall since the corpus is one database
// schema plus a handful of curated examples.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/askdb/internal/llm"
	"github.com/leapstack-labs/askdb/internal/store"
)

// DefaultContextSize is how many context snippets a retrieval targets
// across both collections.
const DefaultContextSize = 5

type document struct {
	text  string
	terms map[string]struct{}
}

// Service indexes context documents and generates SQL through a provider.
type Service struct {
	provider llm.Provider
	logger   *slog.Logger

	mu          sync.RWMutex
	schemaDocs  []document
	exampleDocs []document
}

// NewService creates a Service with the builtin example queries indexed.
func NewService(provider llm.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		provider: provider,
		logger:   logger,
	}
	for _, ex := range exampleQueries {
		text := fmt.Sprintf("Question: %s\nSQL: %s\nExplanation: %s", ex.question, ex.sql, ex.explanation)
		s.exampleDocs = append(s.exampleDocs, newDocument(text))
	}
	return s
}

// IndexSchema replaces the schema collection with documents built from the
// given table schemas: one document per table plus one per column.
func (s *Service) IndexSchema(schemas map[string]store.TableSchema) {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]document, 0, len(schemas))
	for _, name := range names {
		schema := schemas[name]
		docs = append(docs, newDocument(tableDocument(name, schema)))
		for _, col := range schema.Columns {
			text := fmt.Sprintf("Column %s in table %s: %s data type", col.Name, name, col.Type)
			docs = append(docs, newDocument(text))
		}
	}

	s.mu.Lock()
	s.schemaDocs = docs
	s.mu.Unlock()

	s.logger.Info("indexed database schema", "tables", len(schemas), "documents", len(docs))
}

// RetrieveContext returns the schema and example documents most relevant
// to the question. Both slices may be empty; retrieval itself never fails.
func (s *Service) RetrieveContext(_ context.Context, question string) ([]string, []string, error) {
	terms := termSet(question)
	perCollection := DefaultContextSize/2 + 1

	s.mu.RLock()
	defer s.mu.RUnlock()

	schema := rank(s.schemaDocs, terms, perCollection)
	examples := rank(s.exampleDocs, terms, perCollection)
	return schema, examples, nil
}

func tableDocument(name string, schema store.TableSchema) string {
	parts := []string{fmt.Sprintf("Table: %s", name)}

	if len(schema.Columns) > 0 {
		parts = append(parts, "Columns:")
		for _, col := range schema.Columns {
			nullable := "not null"
			if col.Nullable {
				nullable = "nullable"
			}
			line := fmt.Sprintf("  - %s: %s %s", col.Name, col.Type, nullable)
			if col.Default != "" {
				line += fmt.Sprintf(" (default: %s)", col.Default)
			}
			parts = append(parts, line)
		}
	}

	if len(schema.SampleRows) > 0 {
		parts = append(parts, "Sample data:")
		for i, row := range schema.SampleRows {
			if i >= 2 {
				break
			}
			encoded, err := json.Marshal(row)
			if err != nil {
				continue
			}
			parts = append(parts, fmt.Sprintf("  Row %d: %s", i+1, encoded))
		}
	}

	return strings.Join(parts, "\n")
}

func newDocument(text string) document {
	return document{text: text, terms: termSet(text)}
}

// termSet tokenizes on non-alphanumeric runes and drops short tokens,
// which filters most stopwords without a list.
func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
	})
	terms := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		terms[f] = struct{}{}
	}
	return terms
}

// rank returns the text of the top-k documents by term overlap. Documents
// sharing no terms with the question are excluded; ties keep index order.
func rank(docs []document, terms map[string]struct{}, k int) []string {
	type scored struct {
		index int
		score int
	}

	var hits []scored
	for i, doc := range docs {
		score := 0
		for term := range terms {
			if _, ok := doc.terms[term]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{index: i, score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, docs[h.index].text)
	}
	return out
}

package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/askdb/internal/llm"
	"github.com/leapstack-labs/askdb/internal/pipeline"
	"github.com/leapstack-labs/askdb/internal/store"
)

func testSchemas() map[string]store.TableSchema {
	return map[string]store.TableSchema{
		"employees": {
			Columns: []store.ColumnInfo{
				{Name: "id", Type: "INTEGER"},
				{Name: "first_name", Type: "TEXT"},
				{Name: "salary", Type: "REAL", Nullable: true},
				{Name: "department", Type: "TEXT"},
			},
			SampleRows: []map[string]any{
				{"id": int64(1), "first_name": "John", "salary": 95000.0, "department": "Engineering"},
			},
		},
		"sales": {
			Columns: []store.ColumnInfo{
				{Name: "id", Type: "INTEGER"},
				{Name: "region", Type: "TEXT"},
				{Name: "sale_amount", Type: "REAL"},
			},
		},
	}
}

func TestRetrieveContextRanksByOverlap(t *testing.T) {
	s := NewService(&llm.Mock{}, nil)
	s.IndexSchema(testSchemas())

	schema, examples, err := s.RetrieveContext(context.Background(), "What is the average salary of employees by department?")
	require.NoError(t, err)

	require.NotEmpty(t, schema)
	assert.Contains(t, schema[0], "employees")

	require.NotEmpty(t, examples)
	assert.Contains(t, examples[0], "avg_salary")
}

func TestRetrieveContextLimitsResults(t *testing.T) {
	s := NewService(&llm.Mock{}, nil)
	s.IndexSchema(testSchemas())

	schema, examples, err := s.RetrieveContext(context.Background(), "employees departments projects sales salary region")
	require.NoError(t, err)

	perCollection := DefaultContextSize/2 + 1
	assert.LessOrEqual(t, len(schema), perCollection)
	assert.LessOrEqual(t, len(examples), perCollection)
}

func TestRetrieveContextNoMatches(t *testing.T) {
	s := NewService(&llm.Mock{}, nil)

	schema, examples, err := s.RetrieveContext(context.Background(), "xyzzy plugh")
	require.NoError(t, err)
	assert.Empty(t, schema)
	assert.Empty(t, examples)
}

func TestTableDocumentFormat(t *testing.T) {
	doc := tableDocument("employees", testSchemas()["employees"])

	assert.True(t, strings.HasPrefix(doc, "Table: employees"))
	assert.Contains(t, doc, "Columns:")
	assert.Contains(t, doc, "- salary: REAL nullable")
	assert.Contains(t, doc, "- id: INTEGER not null")
	assert.Contains(t, doc, "Sample data:")
	assert.Contains(t, doc, "Row 1:")
}

func TestGenerateSQLParsesSections(t *testing.T) {
	mock := &llm.Mock{Response: `SQL_QUERY: SELECT department, AVG(salary) AS avg_salary
FROM employees
GROUP BY department
EXPLANATION: Groups employees by department and averages salary.
CONFIDENCE: 0.85
COMPLEXITY: medium`}
	s := NewService(mock, nil)

	gen, err := s.GenerateSQL(context.Background(), "average salary by department", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "SELECT department, AVG(salary) AS avg_salary\nFROM employees\nGROUP BY department", gen.SQL)
	assert.Equal(t, "Groups employees by department and averages salary.", gen.Explanation)
	assert.InDelta(t, 0.85, gen.Confidence, 1e-9)
	assert.Equal(t, "medium", gen.Complexity)
}

func TestGenerateSQLPromptIncludesContext(t *testing.T) {
	mock := &llm.Mock{}
	s := NewService(mock, nil)

	_, err := s.GenerateSQL(context.Background(), "show employees",
		[]string{"Table: employees"}, []string{"Question: example"})
	require.NoError(t, err)

	require.Len(t, mock.Calls, 1)
	prompt := mock.Calls[0]
	assert.Contains(t, prompt, "Table: employees")
	assert.Contains(t, prompt, "Question: example")
	assert.Contains(t, prompt, "Question: show employees")
	assert.Contains(t, prompt, "SQL_QUERY:")
}

func TestGenerateSQLProviderError(t *testing.T) {
	s := NewService(&llm.Mock{Err: errors.New("connection refused")}, nil)

	_, err := s.GenerateSQL(context.Background(), "show employees", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider mock")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseResponseFallbacks(t *testing.T) {
	t.Run("missing sql", func(t *testing.T) {
		gen := parseResponse("EXPLANATION: no query here\nCONFIDENCE: 0.9")
		assert.Equal(t, pipeline.PlaceholderQuery, gen.SQL)
		assert.Equal(t, "Failed to parse SQL query from response", gen.Explanation)
	})

	t.Run("bad confidence", func(t *testing.T) {
		gen := parseResponse("SQL_QUERY: SELECT 1\nCONFIDENCE: very high")
		assert.InDelta(t, 0.5, gen.Confidence, 1e-9)
	})

	t.Run("confidence above one clamped", func(t *testing.T) {
		gen := parseResponse("SQL_QUERY: SELECT 1\nCONFIDENCE: 1.7")
		assert.InDelta(t, 1.0, gen.Confidence, 1e-9)
	})

	t.Run("negative confidence clamped", func(t *testing.T) {
		gen := parseResponse("SQL_QUERY: SELECT 1\nCONFIDENCE: -0.3")
		assert.InDelta(t, 0.0, gen.Confidence, 1e-9)
	})

	t.Run("unknown complexity", func(t *testing.T) {
		gen := parseResponse("SQL_QUERY: SELECT 1\nCOMPLEXITY: galactic")
		assert.Equal(t, "medium", gen.Complexity)
	})

	t.Run("empty response", func(t *testing.T) {
		gen := parseResponse("")
		assert.Equal(t, pipeline.PlaceholderQuery, gen.SQL)
	})
}

func TestServiceSatisfiesPipelineInterfaces(t *testing.T) {
	var _ pipeline.Retriever = (*Service)(nil)
	var _ pipeline.Generator = (*Service)(nil)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/askdb/internal/history"
	"github.com/leapstack-labs/askdb/internal/pipeline"
	"github.com/leapstack-labs/askdb/internal/store"
	"github.com/leapstack-labs/askdb/internal/testutil"
)

type fakeStore struct {
	rows   []map[string]any
	tables []string
}

func (f *fakeStore) Connect(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }

func (f *fakeStore) ExecuteQuery(_ context.Context, _ string, _ int) ([]map[string]any, error) {
	return f.rows, nil
}

func (f *fakeStore) ListTables(context.Context) ([]string, error) {
	return f.tables, nil
}

func (f *fakeStore) SchemaInfo(_ context.Context, tables []string) (map[string]store.TableSchema, error) {
	out := map[string]store.TableSchema{
		"employees": {Columns: []store.ColumnInfo{{Name: "id", Type: "INTEGER"}}},
	}
	if len(tables) > 0 {
		filtered := map[string]store.TableSchema{}
		for _, name := range tables {
			if schema, ok := out[name]; ok {
				filtered[name] = schema
			}
		}
		return filtered, nil
	}
	return out, nil
}

type fakeRetriever struct{}

func (fakeRetriever) RetrieveContext(context.Context, string) ([]string, []string, error) {
	return []string{"Table: employees"}, []string{"Question: example"}, nil
}

type fakeGenerator struct{ sql string }

func (g fakeGenerator) GenerateSQL(context.Context, string, []string, []string) (pipeline.Generation, error) {
	return pipeline.Generation{SQL: g.sql, Explanation: "test query", Confidence: 0.9, Complexity: "simple"}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st := &fakeStore{
		rows:   []map[string]any{{"id": int64(1), "name": "John"}},
		tables: []string{"employees"},
	}

	logger := testutil.NewTestLogger(t)

	hist := history.NewStore(logger)
	require.NoError(t, hist.Open(filepath.Join(t.TempDir(), "history.db")))
	require.NoError(t, hist.InitSchema())
	t.Cleanup(func() { _ = hist.Close() })

	p := pipeline.New(pipeline.Config{
		Retriever: fakeRetriever{},
		Generator: fakeGenerator{sql: "SELECT * FROM employees"},
		Executor:  st,
		Recorder:  hist,
		Logger:    logger,
	})

	return New(Config{
		Pipeline: p,
		Store:    st,
		History:  hist,
		Addr:     ":0",
		Logger:   logger,
	})
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleQuery(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"question":"show all employees"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/query", body)
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "SELECT * FROM employees LIMIT 1000", result.SQLQuery)
	assert.Len(t, result.Results, 1)
	assert.True(t, result.Metadata.ValidationPassed)

	// The run is recorded in history.
	histRec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, histRec.Code)
	var page struct {
		History []history.Record `json:"history"`
	}
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &page))
	require.Len(t, page.History, 1)
	assert.Equal(t, "show all employees", page.History[0].Question)
}

func TestHandleQueryBadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question is required")
}

func TestHandleQueryStream(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/query/stream?question=show+all+employees", nil)
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, stage := range []string{
		"retrieve_context", "generate_sql", "validate_sql",
		"optimize_query", "execute_query", "finalize_result",
	} {
		assert.Contains(t, body, stage)
	}
	assert.Contains(t, body, `"done":true`)

	// Stages arrive in pipeline order.
	assert.Less(t, strings.Index(body, "retrieve_context"), strings.Index(body, "generate_sql"))
	assert.Less(t, strings.Index(body, "execute_query"), strings.Index(body, "finalize_result"))
}

func TestHandleQueryStreamMissingQuestion(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/query/stream", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTables(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tables":["employees"]}`, rec.Body.String())
}

func TestHandleSchema(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"employees"`)

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/api/schema?table=missing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schema":{}}`, rec.Body.String())
}

func TestHandleHistoryStreamSendsInitialPage(t *testing.T) {
	s := newTestServer(t)

	// Seed one run.
	doRequest(s, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"show all employees"}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/history/stream", nil).WithContext(ctx)
	rec := doRequest(s, req)

	assert.Contains(t, rec.Body.String(), "show all employees")
}

package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/askdb/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := NewStore(nil)
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema())
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordQuery(ctx, pipeline.Entry{
		Question:      "how many employees",
		SQLQuery:      "SELECT COUNT(*) FROM employees",
		RowCount:      1,
		ExecutionTime: 0.012,
		Confidence:    0.95,
		Success:       true,
		Metadata:      map[string]any{"complexity": "simple", "retry_count": 0},
	}))

	records, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "how many employees", r.Question)
	assert.Equal(t, "SELECT COUNT(*) FROM employees", r.SQLQuery)
	assert.Equal(t, 1, r.RowCount)
	assert.True(t, r.Success)
	assert.Empty(t, r.ErrorMessage)
	assert.Equal(t, "simple", r.Metadata["complexity"])
	assert.False(t, r.CreatedAt.IsZero())
}

func TestStore_RecordFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordQuery(ctx, pipeline.Entry{
		Question:     "bad question",
		SQLQuery:     "SELECT 1",
		Success:      false,
		ErrorMessage: "query execution failed: timeout",
	}))

	records, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "query execution failed: timeout", records[0].ErrorMessage)
}

func TestStore_ListRecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordQuery(ctx, pipeline.Entry{
			Question: "q", SQLQuery: "SELECT 1", Success: true,
		}))
	}

	records, err := s.ListRecent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestStore_ListRecentDefaultLimit(t *testing.T) {
	s := newTestStore(t)

	records, err := s.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_NotOpened(t *testing.T) {
	s := NewStore(nil)

	assert.Error(t, s.InitSchema())
	assert.Error(t, s.RecordQuery(context.Background(), pipeline.Entry{}))

	_, err := s.ListRecent(context.Background(), 10)
	assert.Error(t, err)
}

func TestStore_OnDiskPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s := NewStore(nil)
	require.NoError(t, s.Open(path))
	require.NoError(t, s.InitSchema())
	require.NoError(t, s.RecordQuery(ctx, pipeline.Entry{
		Question: "persistent", SQLQuery: "SELECT 1", Success: true,
	}))
	require.NoError(t, s.Close())

	reopened := NewStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()

	records, err := reopened.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persistent", records[0].Question)
}

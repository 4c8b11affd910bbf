package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var _ Store = (*SQLiteStore)(nil)

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "/mail/inbox")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "/mail/inbox", got.Source)
	assert.Nil(t, got.Summary)

	summary := &model.BatchSummary{Total: 3, Processed: 2, Failed: 1}
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, *summary, *got.Summary)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_FinishRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FinishRun(context.Background(), "missing", model.RunStatusFailed, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "/a")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	b, err := st.CreateRun(ctx, "/b")
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, a.ID, model.RunStatusComplete, &model.BatchSummary{}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	bySource, err := st.ListRuns(ctx, RunFilter{Source: "/b"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)

	paged, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, a.ID, paged[0].ID)
}

func TestSQLite_Items(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "/mail")
	require.NoError(t, err)

	now := time.Now().UTC()
	items := []*model.ItemResult{
		{RunID: run.ID, File: "/mail/a.eml", Hash: "aaaa1111", Status: model.ItemProcessed, Route: model.RouteBill,
			ArtifactPath: "/out/bills/a.md", DurationMs: 12, CreatedAt: now},
		{RunID: run.ID, File: "/mail/b.eml", Status: model.ItemInvalid, Reason: "verification failed at bill",
			Messages: []string{"bills is required"}, CreatedAt: now.Add(time.Millisecond)},
	}
	for _, it := range items {
		require.NoError(t, st.RecordItem(ctx, it))
		assert.NotEmpty(t, it.ID)
	}

	got, err := st.ListItems(ctx, run.ID, ItemFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/mail/a.eml", got[0].File)
	assert.Equal(t, model.RouteBill, got[0].Route)
	assert.Equal(t, int64(12), got[0].DurationMs)
	assert.Nil(t, got[0].Messages)
	assert.Equal(t, []string{"bills is required"}, got[1].Messages)

	invalid, err := st.ListItems(ctx, run.ID, ItemFilter{Status: model.ItemInvalid})
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, "/mail/b.eml", invalid[0].File)

	other, err := st.ListItems(ctx, "other-run", ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

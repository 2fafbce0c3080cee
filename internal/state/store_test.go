package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/workbench/internal/testutil"
	"github.com/leapstack-labs/workbench/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createExecution(t *testing.T, store *SQLiteStore, id string) *Execution {
	t.Helper()
	e := &Execution{
		ID:        id,
		TabID:     "tab-1",
		SQL:       "SELECT 1; SELECT 2",
		Status:    core.ExecutionStatusRunning,
		Source:    "duckdb",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateExecution(context.Background(), e))
	return e
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running is a no-op once the schema is current.
	require.NoError(t, store.Migrate(context.Background()))

	for _, table := range []string{"executions", "result_sets", "result_rows"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_ExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	e := createExecution(t, store, "exec-1")

	got, err := store.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, "duckdb", got.Session().Source)

	finished := e.StartedAt.Add(1500 * time.Millisecond)
	e.Status = core.ExecutionStatusSuccess
	e.FinishedAt = &finished
	e.ScannedRows = 10
	e.ScannedBytes = 200
	require.NoError(t, store.FinishExecution(ctx, e))

	got, err = store.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	session := got.Session()
	assert.Equal(t, int64(1500), session.DurationMs)
	assert.Equal(t, int64(10), session.ScannedRows)
	assert.Equal(t, core.ExecutionStatusSuccess, session.Status)
}

func TestSQLiteStore_GetExecutionNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetExecution(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_ResultSets(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	e := createExecution(t, store, "exec-1")

	for i := 0; i < 2; i++ {
		require.NoError(t, store.RegisterResultSet(ctx, &ResultSet{
			ExecutionID: e.ID,
			SetIndex:    i,
			SQL:         "SELECT 1",
			Columns:     []string{"x"},
			StartedAt:   e.StartedAt,
		}))
	}

	indices, err := store.ListResultSetIndices(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indices)

	finished, err := store.ListResultSets(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Empty(t, finished, "no metadata is final yet")

	done := e.StartedAt.Add(time.Second)
	require.NoError(t, store.FinishResultSet(ctx, &ResultSet{
		ExecutionID: e.ID,
		SetIndex:    0,
		Status:      core.ResultSetStatusSuccess,
		Columns:     []string{"x"},
		FinishedAt:  &done,
		RowCount:    1_000_002,
		Limited:     true,
		LimitValue:  1_000_001,
	}))

	finished, err = store.ListResultSets(ctx, e.ID, true)
	require.NoError(t, err)
	require.Len(t, finished, 1)

	meta := finished[0].Meta()
	assert.Equal(t, 0, meta.SetIndex)
	assert.Equal(t, "SELECT 1", meta.SQLText)
	assert.Equal(t, int64(1000), meta.DurationMs)
	assert.True(t, meta.Limited)
	assert.Equal(t, int64(1_000_001), meta.LimitValue)

	all, err := store.ListResultSets(ctx, e.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.False(t, all[1].Finished())
}

func TestSQLiteStore_AppendAndReadRows(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	e := createExecution(t, store, "exec-1")
	require.NoError(t, store.RegisterResultSet(ctx, &ResultSet{ExecutionID: e.ID, SetIndex: 0, StartedAt: e.StartedAt}))

	batch := make([]core.Row, 5)
	for i := range batch {
		batch[i] = core.Row{"n": i, "label": "row"}
	}
	written, err := store.AppendRows(ctx, e.ID, 0, 1, batch)
	require.NoError(t, err)
	assert.Positive(t, written)

	rows, last, err := store.ReadRows(ctx, e.ID, 0, 0, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), last)
	assert.Equal(t, "row", rows[0]["label"])

	rows, last, err = store.ReadRows(ctx, e.ID, 0, last, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(5), last)

	rows, last, err = store.ReadRows(ctx, e.ID, 0, last, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int64(5), last)
}

func TestSQLiteStore_PurgeExecution(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	e := createExecution(t, store, "exec-1")
	require.NoError(t, store.RegisterResultSet(ctx, &ResultSet{ExecutionID: e.ID, SetIndex: 0, StartedAt: e.StartedAt}))
	_, err := store.AppendRows(ctx, e.ID, 0, 1, []core.Row{{"a": 1}})
	require.NoError(t, err)

	require.NoError(t, store.PurgeExecution(ctx, e.ID))

	_, err = store.GetExecution(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	indices, err := store.ListResultSetIndices(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, indices)
}

func TestSQLiteStore_ListExecutions(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	createExecution(t, store, "a")
	time.Sleep(time.Millisecond)
	createExecution(t, store, "b")

	list, err := store.ListExecutions(ctx, "tab-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
}

func TestSQLiteStore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		call    func(s *SQLiteStore) error
		wantErr string
	}{
		{
			name: "create execution fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO executions").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.CreateExecution(context.Background(), &Execution{ID: "x", StartedAt: time.Now()})
			},
			wantErr: "failed to create execution",
		},
		{
			name: "finish unknown execution",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE executions").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			call: func(s *SQLiteStore) error {
				now := time.Now()
				return s.FinishExecution(context.Background(), &Execution{ID: "x", FinishedAt: &now})
			},
			wantErr: "not found",
		},
		{
			name: "append rolls back on insert failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare("INSERT INTO result_rows").
					ExpectExec().WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			call: func(s *SQLiteStore) error {
				_, err := s.AppendRows(context.Background(), "x", 0, 1, []core.Row{{"a": 1}})
				return err
			},
			wantErr: "failed to spool row",
		},
		{
			name: "read rows query fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT seq, data FROM result_rows").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, _, err := s.ReadRows(context.Background(), "x", 0, 0, 10)
				return err
			},
			wantErr: "failed to read rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			tt.setup(mock)
			err = tt.call(NewWithDB(db, nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	_, err := store.GetExecution(context.Background(), "x")
	assert.EqualError(t, err, "database not opened")
}

package console

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/activeset"
	"github.com/leapstack-labs/workbench/internal/executor"
	"github.com/leapstack-labs/workbench/internal/state"
	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/internal/testutil"
	"github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func series(n int) string {
	return fmt.Sprintf(`WITH RECURSIVE s(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM s WHERE x < %d) SELECT x FROM s`, n)
}

func setupWorkbench(t *testing.T) (*Workbench, *executor.Engine) {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	store := state.NewSQLiteStore(logger)
	require.NoError(t, store.Open(ctx, ":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	db := sqlite.New(logger)
	require.NoError(t, db.Connect(ctx, core.AdapterConfig{Type: "sqlite"}))
	t.Cleanup(func() { _ = db.Close() })

	eng, err := executor.New(executor.Config{Adapter: db, Store: store, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	wb := New(Config{
		Engine:       eng,
		Logger:       logger,
		RowBudget:    streaming.MinRowBudget,
		ChunkRows:    1000,
		PollInterval: 10 * time.Millisecond,
		Frames:       streaming.ImmediateFrames{},
	})
	t.Cleanup(wb.Close)
	return wb, eng
}

func runAndWait(t *testing.T, c *Controller, script string) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := c.Run(ctx, script)
	require.NoError(t, err)
	require.NoError(t, c.Wait(ctx))
	return c.View()
}

func TestController_AutoJumpToLastResult(t *testing.T) {
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	v := runAndWait(t, c, "SELECT 1 AS a; SELECT 2 AS b; SELECT 3 AS c")

	assert.Equal(t, core.ExecutionStatusSuccess, v.Session.Status)
	assert.Equal(t, activeset.State{ActiveSet: 2}, v.Active)
	require.Len(t, v.Overview, 3)
	assert.Equal(t, "SELECT 3 AS c", v.Overview[2].SQL)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, []string{"c"}, v.Columns)
	assert.True(t, v.FullyLoaded)
	assert.False(t, v.Truncated)
	require.NotNil(t, v.Meta)
	assert.Equal(t, int64(1), v.Meta.RowCount)
}

func TestController_ErrorShowsInOverview(t *testing.T) {
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	v := runAndWait(t, c, "SELECT 1; SELECT * FROM nowhere; SELECT 3")

	assert.Equal(t, core.ExecutionStatusError, v.Session.Status)
	assert.NotEmpty(t, v.Error)
	require.Len(t, v.Overview, 2)
	assert.Equal(t, core.ResultSetStatusError, v.Overview[1].Status)
	assert.Contains(t, v.Overview[1].ErrorMessage, "nowhere")
	assert.Equal(t, 1, v.Active.ActiveSet)
}

func TestController_UserSelection(t *testing.T) {
	ctx := context.Background()
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	runAndWait(t, c, "SELECT 'first' AS v; SELECT 'second' AS v")

	require.NoError(t, c.SelectResultSet(ctx, 0))
	require.Eventually(t, func() bool { return c.View().FullyLoaded }, 5*time.Second, 5*time.Millisecond)
	v := c.View()
	assert.Equal(t, activeset.State{ActiveSet: 0, UserPicked: true}, v.Active)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "first", v.Rows[0].Data["v"])

	c.Refresh(ctx)
	assert.Equal(t, 0, c.View().Active.ActiveSet, "a refresh keeps the user's choice")

	require.NoError(t, c.SelectOverview(ctx))
	v = c.View()
	assert.True(t, v.Active.IsOverview())
	assert.Empty(t, v.Rows)

	err := c.SelectResultSet(ctx, 7)
	assert.ErrorIs(t, err, ErrUnknownResultSet)
}

func TestController_NewRunResetsSelection(t *testing.T) {
	ctx := context.Background()
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	runAndWait(t, c, "SELECT 1; SELECT 2")
	require.NoError(t, c.SelectResultSet(ctx, 0))

	v := runAndWait(t, c, "SELECT 1; SELECT 2; SELECT 3")
	assert.Equal(t, activeset.State{ActiveSet: 2}, v.Active)

	first := c.ExecutionID()
	id, err := c.Rerun(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, id)
	require.NoError(t, c.Wait(ctx))
}

func TestController_NoExecution(t *testing.T) {
	ctx := context.Background()
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	assert.ErrorIs(t, c.SelectResultSet(ctx, 0), ErrNoExecution)
	assert.ErrorIs(t, c.SelectOverview(ctx), ErrNoExecution)
	_, err := c.Rerun(ctx)
	assert.ErrorIs(t, err, ErrNothingToRerun)
	assert.False(t, c.Cancel())
	assert.ErrorIs(t, c.Wait(ctx), ErrNoExecution)
}

func TestController_RowBudget(t *testing.T) {
	ctx := context.Background()
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	v := runAndWait(t, c, series(7000))
	assert.Len(t, v.Rows, streaming.MinRowBudget)
	assert.True(t, v.Truncated)

	assert.Equal(t, 8000, c.SetRowBudget(ctx, 8000))
	require.Eventually(t, func() bool {
		v := c.View()
		return !v.Loading && len(v.Rows) == 7000
	}, 5*time.Second, 5*time.Millisecond)
	assert.False(t, c.View().Truncated)

	assert.Equal(t, streaming.MinRowBudget, c.SetRowBudget(ctx, 10))
	v = c.View()
	assert.Len(t, v.Rows, streaming.MinRowBudget)
	assert.True(t, v.Truncated)
	assert.Equal(t, streaming.MinRowBudget, c.RowBudget())

	assert.Equal(t, streaming.MaxRowBudget, wb.SetRowBudget(ctx, 50_000_000))
	assert.Equal(t, streaming.MaxRowBudget, c.RowBudget())
}

func TestWorkbench_FocusKeepsCache(t *testing.T) {
	ctx := context.Background()
	wb, _ := setupWorkbench(t)

	t1 := wb.Focus(ctx, "T1")
	runAndWait(t, t1, "SELECT 1 AS one")
	t2 := wb.Focus(ctx, "T2")
	assert.Empty(t, wb.Loader().View("T1").Rows, "leaving a tab drops its buffer")
	runAndWait(t, t2, "SELECT 2 AS two")

	assert.Equal(t, 2, wb.Cache().Len())

	back := wb.Focus(ctx, "T1")
	v := back.View()
	assert.True(t, v.FromCache)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, []string{"T1", "T2"}, wb.Tabs())
	assert.Equal(t, "T1", wb.Focused())
}

func TestWorkbench_DataChangeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	wb, _ := setupWorkbench(t)

	t1 := wb.Focus(ctx, "T1")
	runAndWait(t, t1, "CREATE TABLE t (x INT); INSERT INTO t VALUES (1); SELECT x FROM t")

	t2 := wb.Focus(ctx, "T2")
	runAndWait(t, t2, "INSERT INTO t VALUES (2)")

	v := wb.Focus(ctx, "T1").View()
	assert.False(t, v.FromCache, "a newer data version forces a fresh read")
}

func TestWorkbench_DebugBundle(t *testing.T) {
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	assert.Nil(t, runAndWait(t, c, "SELECT 1").Debug)

	wb.SetDebug(true)
	v := c.View()
	require.NotNil(t, v.Debug)
	assert.Equal(t, fmt.Sprintf("T1:%s#0", v.ExecutionID), v.Debug.CacheKey)
	assert.Equal(t, 1, v.Debug.Buffered)
	assert.Equal(t, 1, v.Debug.Visible)
	assert.Equal(t, 1, v.Debug.CacheEntries)
	assert.False(t, v.Debug.UserPicked)
}

func TestWorkbench_History(t *testing.T) {
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")
	runAndWait(t, c, "SELECT 1")
	runAndWait(t, c, "SELECT 2")

	sessions, err := wb.History(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "SELECT 2", sessions[0].SQL)
}

func TestController_Changes(t *testing.T) {
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	ctx, cancel := context.WithCancel(context.Background())
	changes := c.Changes(ctx)

	_, err := c.Run(context.Background(), "SELECT 1")
	require.NoError(t, err)
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 5*time.Millisecond)
}

func TestController_Watch(t *testing.T) {
	wb, _ := setupWorkbench(t)
	c := wb.Tab("T1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx)
		close(done)
	}()

	_, err := c.Run(context.Background(), "SELECT 1; SELECT 2")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v := c.View()
		return v.Active.ActiveSet == 1 && v.FullyLoaded
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestWorkbench_RunAfterClose(t *testing.T) {
	wb, _ := setupWorkbench(t)
	wb.Close()

	_, err := wb.Tab("T1").Run(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrWorkbenchClosed)
}

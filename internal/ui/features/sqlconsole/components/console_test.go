package components

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/activeset"
	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestErrorBanner_Escapes(t *testing.T) {
	html := render(t, ErrorBanner(`near "<": syntax error`))

	assert.Contains(t, html, `id="console-error"`)
	assert.Contains(t, html, "near &#34;&lt;&#34;: syntax error")
}

func TestConsoleView_Empty(t *testing.T) {
	html := render(t, ConsoleView(console.View{TabID: "tab-1"}))

	assert.Contains(t, html, `<div id="console-view">`)
	assert.Contains(t, html, "Run a statement to see results.")
	assert.NotContains(t, html, "status-bar")
}

func TestConsoleView_Overview(t *testing.T) {
	v := console.View{
		TabID:       "tab-1",
		ExecutionID: "0123456789abcdef",
		Session:     core.Session{Status: core.ExecutionStatusSuccess, DurationMs: 1500, Source: "duckdb"},
		HasSession:  true,
		Active:      activeset.State{ActiveSet: activeset.Overview},
		Overview: []core.OverviewItem{
			{ID: "e:0", SetIndex: 0, SQL: "SELECT 1 < 2", Status: core.ResultSetStatusSuccess, RowsReturned: core.Ptr[int64](1)},
			{ID: "e:1", SetIndex: 1, SQL: "/* Result 2 */", Status: core.ResultSetStatusError, ErrorMessage: "boom"},
		},
	}
	html := render(t, ConsoleView(v))

	assert.Contains(t, html, `class="status status--success"`)
	assert.Contains(t, html, "01234567")
	assert.Contains(t, html, "1.5s")
	assert.Contains(t, html, `class="set set--active"`)
	assert.Contains(t, html, `class="set status--error"`)
	assert.Contains(t, html, "@post(&#39;/api/tabs/tab-1/select/1&#39;)")
	assert.Contains(t, html, "Result 2</button>")
	assert.Contains(t, html, "SELECT 1 &lt; 2")
	assert.Contains(t, html, "1 rows")
	assert.Contains(t, html, "boom")
	assert.NotContains(t, html, `class="rows"`)
}

func TestConsoleView_Rows(t *testing.T) {
	v := console.View{
		TabID:       "tab-1",
		ExecutionID: "E1",
		Active:      activeset.State{ActiveSet: 0},
		Overview:    []core.OverviewItem{{ID: "E1:0", SetIndex: 0, Status: core.ResultSetStatusSuccess}},
		Meta:        &core.ResultSetMeta{Limited: true, LimitValue: 10},
		Columns:     []string{"id", "name"},
		Rows: []core.ResultRow{
			{RID: 0, Data: core.Row{"id": 1, "name": "alice"}},
			{RID: 1, Data: core.Row{"id": 2, "name": nil}},
		},
		Buffered:  3,
		Truncated: true,
		RowBudget: 5000,
		Loading:   true,
		Debug:     &console.DebugInfo{CacheKey: "tab-1|E1|0", Buffered: 3, Visible: 2},
	}
	html := render(t, ConsoleView(v))

	assert.Contains(t, html, "Results truncated to 5000 rows.")
	assert.Contains(t, html, "Spool limited to 10 rows.")
	assert.Contains(t, html, "<th>id</th><th>name</th>")
	assert.Contains(t, html, `<tr data-rid="1"><td>2</td><td>NULL</td></tr>`)
	assert.Contains(t, html, "2 of 3 rows")
	assert.Contains(t, html, "loading…")
	assert.Contains(t, html, "<dt>cache key</dt><dd>tab-1|E1|0</dd>")
}

func TestConsoleView_AffectedRows(t *testing.T) {
	v := console.View{
		TabID:       "tab-1",
		ExecutionID: "E1",
		Active:      activeset.State{ActiveSet: 0},
		Meta:        &core.ResultSetMeta{AffectedRows: 4},
	}
	html := render(t, ConsoleView(v))

	assert.Contains(t, html, "4 rows affected.")
	assert.NotContains(t, html, "<table")
}

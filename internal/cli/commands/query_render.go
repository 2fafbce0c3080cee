package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// overviewRecord is the serialized form of one overview row.
type overviewRecord struct {
	Index        int    `json:"index" yaml:"index"`
	SQL          string `json:"sql" yaml:"sql"`
	Status       string `json:"status" yaml:"status"`
	RowsReturned *int64 `json:"rows_returned,omitempty" yaml:"rows_returned,omitempty"`
	RowsAffected *int64 `json:"rows_affected,omitempty" yaml:"rows_affected,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// viewRecord is the serialized form of a tab view.
type viewRecord struct {
	ExecutionID string           `json:"execution_id" yaml:"execution_id"`
	Status      string           `json:"status" yaml:"status"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs  int64            `json:"duration_ms" yaml:"duration_ms"`
	ActiveSet   int              `json:"active_set" yaml:"active_set"`
	Overview    []overviewRecord `json:"overview" yaml:"overview"`
	Columns     []string         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty" yaml:"rows,omitempty"`
	Truncated   bool             `json:"truncated" yaml:"truncated"`
	RowBudget   int              `json:"row_budget" yaml:"row_budget"`
}

func toRecord(v console.View) viewRecord {
	rec := viewRecord{
		ExecutionID: v.ExecutionID,
		Status:      string(v.Session.Status),
		Error:       v.Session.Error,
		DurationMs:  v.Session.DurationMs,
		ActiveSet:   v.Active.ActiveSet,
		Overview:    make([]overviewRecord, 0, len(v.Overview)),
		Truncated:   v.Truncated,
		RowBudget:   v.RowBudget,
	}
	for _, it := range v.Overview {
		rec.Overview = append(rec.Overview, overviewRecord{
			Index:        it.SetIndex,
			SQL:          it.SQL,
			Status:       string(it.Status),
			RowsReturned: it.RowsReturned,
			RowsAffected: it.RowsAffected,
			Error:        it.ErrorMessage,
		})
	}
	if !v.Active.IsOverview() {
		rec.Columns = v.Columns
		rec.Rows = make([]map[string]any, 0, len(v.Rows))
		for _, r := range v.Rows {
			rec.Rows = append(rec.Rows, plainRow(r.Data))
		}
	}
	return rec
}

// plainRow turns spooled json.Number values into Go numbers so every
// encoder prints them as numbers.
func plainRow(row core.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		return plainRow(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}

// renderView writes the overview (when it matters) and the active result set.
func renderView(w io.Writer, v console.View, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toRecord(v))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toRecord(v)); err != nil {
			return err
		}
		return enc.Close()
	}

	if v.Active.IsOverview() {
		renderOverview(w, v.Overview, format)
		if v.Session.Error != "" && format != "csv" {
			_, _ = fmt.Fprintf(w, "Error: %s\n", v.Session.Error)
		}
		return nil
	}
	if len(v.Overview) > 1 && format != "csv" {
		renderOverview(w, v.Overview, format)
		_, _ = fmt.Fprintf(w, "\nResult %d of %d\n", v.Active.ActiveSet+1, len(v.Overview))
	}
	if v.Meta != nil && v.Meta.Status == core.ResultSetStatusError {
		_, _ = fmt.Fprintf(w, "Error: %s\n", v.Meta.ErrorMessage)
		return nil
	}
	if len(v.Columns) == 0 && v.Meta != nil {
		_, _ = fmt.Fprintf(w, "(%d rows affected)\n", v.Meta.AffectedRows)
		return nil
	}
	renderRows(w, v.Columns, v.Rows, format)
	if format != "csv" {
		if v.Truncated {
			_, _ = fmt.Fprintf(w, "(truncated to the first %d rows; raise the budget with --row-budget)\n", v.RowBudget)
		}
		if v.Meta != nil && v.Meta.Limited {
			_, _ = fmt.Fprintf(w, "(spool limited to %d rows)\n", v.Meta.LimitValue)
		}
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderWith(t table.Writer, format string) {
	switch format {
	case "csv":
		t.RenderCSV()
	case "md", "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
	}
}

func renderOverview(w io.Writer, items []core.OverviewItem, format string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Statement", "Status", "Rows", "Error"})
	for _, it := range items {
		t.AppendRow(table.Row{it.SetIndex + 1, oneLine(it.SQL, 60), string(it.Status), itemRows(it), oneLine(it.ErrorMessage, 60)})
	}
	renderWith(t, format)
}

func renderRows(w io.Writer, cols []string, rows []core.ResultRow, format string) {
	if len(rows) == 0 && format != "csv" {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w)
	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(r.Data[col])
		}
		t.AppendRow(row)
	}

	renderWith(t, format)
	if format != "csv" {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
}

func renderHistory(w io.Writer, sessions []core.Session, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Execution", "Started", "Status", "Duration", "SQL"})
	for _, s := range sessions {
		t.AppendRow(table.Row{
			shortID(s.ExecutionID),
			s.StartedAt.Local().Format("15:04:05"),
			string(s.Status),
			fmt.Sprintf("%dms", s.DurationMs),
			oneLine(s.SQL, 60),
		})
	}
	renderWith(t, format)
	return nil
}

func itemRows(it core.OverviewItem) string {
	switch {
	case it.RowsReturned != nil:
		return fmt.Sprintf("%d", *it.RowsReturned)
	case it.RowsAffected != nil:
		return fmt.Sprintf("%d affected", *it.RowsAffected)
	default:
		return ""
	}
}

func formatValue(v any) string {
	switch x := plainValue(v).(type) {
	case nil:
		return "NULL"
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max > 3 && len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

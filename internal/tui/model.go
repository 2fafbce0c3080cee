// Package tui is the terminal front end of the workbench: an editor, the
// result set bar and a table of the active result set.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/workbench/internal/console"
	"github.com/leapstack-labs/workbench/pkg/core"
)

const (
	editorHeight  = 5
	maxCellWidth  = 40
	widthSample   = 200
	chromeHeight  = editorHeight + 9
	minTableRows  = 3
	defaultWidth  = 100
	defaultHeight = 30
)

var errEmptyScript = errors.New("query cannot be empty")

// changedMsg reports that the tab's view may have changed.
type changedMsg struct{}

// runMsg carries the outcome of submitting a script.
type runMsg struct {
	executionID string
	err         error
}

// Model is the bubbletea model of one workbench tab.
type Model struct {
	ctx     context.Context
	wb      *console.Workbench
	ctl     *console.Controller
	changes <-chan struct{}

	editor  textarea.Model
	results table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	view           console.View
	width          int
	height         int
	resultsFocused bool
	notice         string
	err            error
}

// NewModel focuses tabID on wb and builds a model for it. The model stops
// listening for changes when ctx is done.
func NewModel(ctx context.Context, wb *console.Workbench, tabID string) Model {
	ta := textarea.New()
	ta.Placeholder = "SELECT ...; ctrl+r runs the whole script"
	ta.ShowLineNumbers = true
	ta.SetHeight(editorHeight)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(mutedColor)
	ta.FocusedStyle.Text = lipgloss.NewStyle().Foreground(textPrimary)
	ta.Focus()

	t := table.New(
		table.WithColumns([]table.Column{{Title: "Results", Width: 20}}),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(minTableRows),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(primaryColor).
		BorderBottom(true).
		Bold(true).
		Foreground(primaryColor)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(secondaryColor).
		Bold(false)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	ctl := wb.Focus(ctx, tabID)
	m := Model{
		ctx:     ctx,
		wb:      wb,
		ctl:     ctl,
		changes: ctl.Changes(ctx),
		editor:  ta,
		results: t,
		spinner: sp,
		help:    help.New(),
		keys:    keys,
		width:   defaultWidth,
		height:  defaultHeight,
	}
	m.updateLayout()
	m.sync()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		waitForChange(m.changes),
	)
}

// waitForChange turns the next ping on changes into a changedMsg.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case changedMsg:
		m.sync()
		return m, waitForChange(m.changes)

	case runMsg:
		m.err = msg.err
		if msg.err == nil {
			m.notice = ""
			m.setFocus(true)
		}
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Run):
		script := m.editor.Value()
		if strings.TrimSpace(script) == "" {
			m.err = errEmptyScript
			return m, nil
		}
		return m, m.run(script)
	case key.Matches(msg, m.keys.Cancel):
		if m.ctl.Cancel() {
			m.notice = "Canceled"
		} else {
			m.notice = "Nothing is running"
		}
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.Focus):
		m.setFocus(!m.resultsFocused)
		return m, nil
	case key.Matches(msg, m.keys.Debug):
		m.wb.SetDebug(!m.wb.Debug())
		m.sync()
		return m, nil
	}

	if !m.resultsFocused {
		return m.forward(msg)
	}

	switch {
	case key.Matches(msg, m.keys.QuitKey):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Rerun):
		return m, m.rerun()
	case key.Matches(msg, m.keys.NextSet):
		m.step(1)
	case key.Matches(msg, m.keys.PrevSet):
		m.step(-1)
	case key.Matches(msg, m.keys.PickSet):
		m.selectSet(int(msg.Runes[0]-'1'))
	case key.Matches(msg, m.keys.Overview):
		m.err = m.ctl.SelectOverview(m.ctx)
		m.sync()
	case key.Matches(msg, m.keys.More):
		m.setBudget(m.view.RowBudget * 2)
	case key.Matches(msg, m.keys.Less):
		m.setBudget(m.view.RowBudget / 2)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		return m.forward(msg)
	}
	return m, nil
}

// forward hands msg to the focused component.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.resultsFocused {
		m.results, cmd = m.results.Update(msg)
	} else {
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m Model) run(script string) tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		id, err := ctl.Run(ctx, script)
		return runMsg{executionID: id, err: err}
	}
}

func (m Model) rerun() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		id, err := ctl.Rerun(ctx)
		return runMsg{executionID: id, err: err}
	}
}

func (m *Model) setFocus(results bool) {
	m.resultsFocused = results
	if results {
		m.editor.Blur()
		m.results.Focus()
		return
	}
	m.results.Blur()
	m.editor.Focus()
}

// step moves the selection through overview, set 0, set 1 and so on.
func (m *Model) step(delta int) {
	if m.view.ExecutionID == "" {
		return
	}
	order := make([]int, 0, len(m.view.Overview)+1)
	order = append(order, -1)
	for _, it := range m.view.Overview {
		order = append(order, it.SetIndex)
	}
	pos := 0
	for i, idx := range order {
		if idx == m.view.Active.ActiveSet {
			pos = i
			break
		}
	}
	pos = max(0, min(len(order)-1, pos+delta))
	m.selectSet(order[pos])
}

func (m *Model) selectSet(index int) {
	m.err = m.ctl.SelectResultSet(m.ctx, index)
	m.sync()
}

func (m *Model) setBudget(n int) {
	budget := m.wb.SetRowBudget(m.ctx, n)
	m.notice = fmt.Sprintf("Row budget %d", budget)
	m.sync()
}

// sync pulls the controller's view and rebuilds the table from it.
func (m *Model) sync() {
	m.view = m.ctl.View()

	var cols []table.Column
	var rows []table.Row
	if m.view.Active.IsOverview() {
		cols, rows = overviewTable(m.view.Overview)
	} else {
		cols, rows = resultTable(m.view.Columns, m.view.Rows)
	}
	// Rows must never be wider than the columns they are rendered with.
	m.results.SetRows(nil)
	m.results.SetColumns(cols)
	m.results.SetRows(rows)
}

func (m *Model) updateLayout() {
	m.editor.SetWidth(max(20, m.width-4))
	m.results.SetWidth(m.width)
	m.results.SetHeight(max(minTableRows, m.height-chromeHeight))
	m.help.Width = m.width
}

func overviewTable(items []core.OverviewItem) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Status", Width: 9},
		{Title: "Rows", Width: 14},
		{Title: "SQL", Width: 60},
	}
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		sql := strings.Join(strings.Fields(it.SQL), " ")
		if it.ErrorMessage != "" {
			sql += "  (" + it.ErrorMessage + ")"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", it.SetIndex+1),
			string(it.Status),
			itemRows(it),
			sql,
		})
	}
	return cols, rows
}

func resultTable(columns []string, data []core.ResultRow) ([]table.Column, []table.Row) {
	if len(columns) == 0 {
		return []table.Column{{Title: "Results", Width: 20}}, nil
	}
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c)
	}
	rows := make([]table.Row, 0, len(data))
	for n, r := range data {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = cell(r.Data[c])
			if n < widthSample {
				widths[i] = max(widths[i], lipgloss.Width(row[i]))
			}
		}
		rows = append(rows, row)
	}
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c, Width: min(maxCellWidth, max(3, widths[i]))}
	}
	return cols, rows
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

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.Join(strings.Fields(x), " ")
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

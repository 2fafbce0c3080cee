package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderEditor(),
	}

	if m.view.ExecutionID == "" {
		sections = append(sections, mutedStyle.Render("No results yet. Write a script and press ctrl+r."))
	} else {
		sections = append(sections, m.renderSets())
		if msg := m.errorText(); msg != "" {
			sections = append(sections, errorStyle.Render("Error: "+msg))
		}
		sections = append(sections, m.results.View(), m.renderStatus())
	}

	if d := m.renderDebug(); d != "" {
		sections = append(sections, d)
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	header := titleStyle.Render("workbench") + mutedStyle.Render("tab "+m.view.TabID)
	if m.notice != "" {
		header += statusStyle.Render(m.notice)
	}
	return header
}

func (m Model) renderEditor() string {
	if m.resultsFocused {
		return editorStyle.Render(m.editor.View())
	}
	return focusedEditorStyle.Render(m.editor.View())
}

func (m Model) renderSets() string {
	chips := make([]string, 0, len(m.view.Overview)+1)
	style := setStyle
	if m.view.Active.IsOverview() {
		style = activeSetStyle
	}
	chips = append(chips, style.Render("Overview"))

	for _, it := range m.view.Overview {
		label := fmt.Sprintf("%d", it.SetIndex+1)
		switch {
		case it.SetIndex == m.view.Active.ActiveSet:
			chips = append(chips, activeSetStyle.Render(label))
		case it.Status == core.ResultSetStatusError:
			chips = append(chips, failedSetStyle.Render(label+"!"))
		default:
			chips = append(chips, setStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

func (m Model) errorText() string {
	if m.err != nil {
		return m.err.Error()
	}
	if m.view.Meta != nil && m.view.Meta.ErrorMessage != "" {
		return m.view.Meta.ErrorMessage
	}
	return m.view.Error
}

func (m Model) renderStatus() string {
	v := m.view
	var parts []string
	if v.HasSession {
		parts = append(parts, string(v.Session.Status))
		if v.Session.Status.Terminal() {
			parts = append(parts, fmt.Sprintf("%dms", v.Session.DurationMs))
		}
	}
	if !v.Active.IsOverview() {
		switch {
		case v.Meta != nil && len(v.Columns) == 0 && v.Meta.RowCount == 0:
			parts = append(parts, fmt.Sprintf("%d rows affected", v.Meta.AffectedRows))
		default:
			parts = append(parts, fmt.Sprintf("%d rows", len(v.Rows)))
		}
	}
	if v.FromCache {
		parts = append(parts, "cached")
	}
	parts = append(parts, fmt.Sprintf("budget %d", v.RowBudget))

	status := statusStyle.Render(strings.Join(parts, " · "))
	if v.Loading {
		status = m.spinner.View() + " " + status
	}
	if v.Truncated {
		status += warnStyle.Render(fmt.Sprintf("showing first %d rows; raise the budget with +", v.RowBudget))
	}
	if v.Meta != nil && v.Meta.Limited {
		status += warnStyle.Render(fmt.Sprintf("spooled rows capped at %d", v.Meta.LimitValue))
	}
	return status
}

func (m Model) renderDebug() string {
	d := m.view.Debug
	if d == nil {
		return ""
	}
	lines := []string{
		fmt.Sprintf("cache key %s · buffered %d · visible %d · flushes %d", d.CacheKey, d.Buffered, d.Visible, d.Flushes),
		fmt.Sprintf("first chunk %s · cache %d entries · data version %d/%d · user picked %t",
			d.TimeToFirstChunk, d.CacheEntries, d.DataVersion, d.EngineVersion, d.UserPicked),
	}
	return mutedStyle.Render(strings.Join(lines, "\n"))
}

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Run      key.Binding
	Rerun    key.Binding
	Cancel   key.Binding
	Focus    key.Binding
	NextSet  key.Binding
	PrevSet  key.Binding
	PickSet  key.Binding
	Overview key.Binding
	More     key.Binding
	Less     key.Binding
	Debug    key.Binding
	Help     key.Binding
	Quit     key.Binding
	QuitKey  key.Binding
}

var keys = keyMap{
	Run: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "run script"),
	),
	Rerun: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rerun"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "cancel"),
	),
	Focus: key.NewBinding(
		key.WithKeys("tab", "esc"),
		key.WithHelp("tab", "editor/results"),
	),
	NextSet: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next set"),
	),
	PrevSet: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous set"),
	),
	PickSet: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("1-9", "pick set"),
	),
	Overview: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "overview"),
	),
	More: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "double budget"),
	),
	Less: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "halve budget"),
	),
	Debug: key.NewBinding(
		key.WithKeys("f2"),
		key.WithHelp("f2", "debug"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	QuitKey: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Focus, k.NextSet, k.Overview, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Rerun, k.Cancel, k.Focus},
		{k.NextSet, k.PrevSet, k.PickSet, k.Overview},
		{k.More, k.Less, k.Debug, k.Help, k.Quit},
	}
}

package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	up       key.Binding
	down     key.Binding
	top      key.Binding
	bottom   key.Binding
	search   key.Binding
	filter   key.Binding
	clear    key.Binding
	hideIdle key.Binding
	theme    key.Binding
	reload   key.Binding
	help     key.Binding
	quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		search: key.NewBinding(
			key.WithKeys("s", "enter"),
			key.WithHelp("s", "search"),
		),
		filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		clear: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		hideIdle: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "hide idle"),
		),
		theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "theme"),
		),
		reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.search, k.filter, k.hideIdle, k.help, k.quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.top, k.bottom},
		{k.search, k.filter, k.clear, k.hideIdle},
		{k.theme, k.reload, k.help, k.quit},
	}
}

package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	start   key.Binding
	yes     key.Binding
	no      key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start batch")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "history")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView lists the bindings shown in the help line of a view. The start binding only appears when
// the model can run batches.
func (k keyMap) forView(view ViewState, canRun bool) []key.Binding {
	switch view {
	case HistoryView:
		if canRun {
			return []key.Binding{k.up, k.down, k.enter, k.start, k.quit}
		}
		return []key.Binding{k.up, k.down, k.enter, k.quit}
	case OutcomeView:
		return []key.Binding{k.up, k.down, k.back, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.no}
	case ResultView:
		return []key.Binding{k.restart, k.quit}
	default:
		return []key.Binding{k.quit}
	}
}

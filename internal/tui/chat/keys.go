package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keybindings for the chat TUI
type KeyMap struct {
	// Global
	Quit       key.Binding
	NewSession key.Binding

	// Editor
	Send       key.Binding
	Newline    key.Binding
	NewlineAlt key.Binding
	ClearLine  key.Binding
	Stop       key.Binding
	Retry      key.Binding

	// Suggestions (empty conversation only)
	NextSuggestion key.Binding
	PrevSuggestion key.Binding

	// History navigation
	PageUp   key.Binding
	PageDown key.Binding
	Bottom   key.Binding

	// Message actions on the selected assistant message
	SelectPrev key.Binding
	SelectNext key.Binding
	Copy       key.Binding
	Like       key.Binding
	Dislike    key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new chat"),
		),

		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("ctrl+j", "newline"),
		),
		NewlineAlt: key.NewBinding(
			key.WithKeys("alt+enter", "shift+enter"),
			key.WithHelp("alt+enter", "newline"),
		),
		ClearLine: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "clear line"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "retry"),
		),

		NextSuggestion: key.NewBinding(
			key.WithKeys("tab", "right"),
			key.WithHelp("tab", "next suggestion"),
		),
		PrevSuggestion: key.NewBinding(
			key.WithKeys("shift+tab", "left"),
			key.WithHelp("shift+tab", "previous suggestion"),
		),

		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("ctrl+end", "ctrl+g"),
			key.WithHelp("ctrl+g", "follow"),
		),

		SelectPrev: key.NewBinding(
			key.WithKeys("alt+up"),
			key.WithHelp("alt+↑", "previous answer"),
		),
		SelectNext: key.NewBinding(
			key.WithKeys("alt+down"),
			key.WithHelp("alt+↓", "next answer"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy"),
		),
		Like: key.NewBinding(
			key.WithKeys("alt+l"),
			key.WithHelp("alt+l", "like"),
		),
		Dislike: key.NewBinding(
			key.WithKeys("alt+d"),
			key.WithHelp("alt+d", "dislike"),
		),
	}
}


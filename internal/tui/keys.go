package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit        key.Binding
	Save        key.Binding
	NextChunk   key.Binding
	PrevChunk   key.Binding
	Revert      key.Binding
	Align       key.Binding
	Collapse    key.Binding
	ScrollLock  key.Binding
	ExpandAll   key.Binding
	Help        key.Binding
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	Home        key.Binding
	End         key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	Newline     key.Binding
	Backspace   key.Binding
	DeleteRight key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:        key.NewBinding(key.WithKeys("ctrl+c", "ctrl+q"), key.WithHelp("ctrl+q", "quit")),
		Save:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		NextChunk:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next change")),
		PrevChunk:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "prev change")),
		Revert:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "revert change")),
		Align:       key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "align")),
		Collapse:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "collapse")),
		ScrollLock:  key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "scroll lock")),
		ExpandAll:   key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "expand all")),
		Help:        key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		Up:          key.NewBinding(key.WithKeys("up")),
		Down:        key.NewBinding(key.WithKeys("down")),
		Left:        key.NewBinding(key.WithKeys("left")),
		Right:       key.NewBinding(key.WithKeys("right")),
		Home:        key.NewBinding(key.WithKeys("home")),
		End:         key.NewBinding(key.WithKeys("end")),
		PageUp:      key.NewBinding(key.WithKeys("pgup")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown")),
		ScrollUp:    key.NewBinding(key.WithKeys("ctrl+up")),
		ScrollDown:  key.NewBinding(key.WithKeys("ctrl+down")),
		Newline:     key.NewBinding(key.WithKeys("enter")),
		Backspace:   key.NewBinding(key.WithKeys("backspace")),
		DeleteRight: key.NewBinding(key.WithKeys("delete")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Save, k.NextChunk, k.PrevChunk, k.Revert, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Save, k.Quit, k.Help},
		{k.NextChunk, k.PrevChunk, k.Revert},
		{k.Align, k.Collapse, k.ScrollLock, k.ExpandAll},
	}
}

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Play      key.Binding
	TempoUp   key.Binding
	TempoDown key.Binding
	Save      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Play:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/stop")),
		TempoUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "tempo +")),
		TempoDown: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "tempo -")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save pattern")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.TempoDown, k.TempoUp, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.TempoDown, k.TempoUp},
		{k.Save, k.Help, k.Quit},
	}
}

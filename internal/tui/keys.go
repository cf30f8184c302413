package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down      key.Binding
	Focus         key.Binding
	AddFocus      key.Binding
	Submit        key.Binding
	Toggle        key.Binding
	Delete        key.Binding
	CompleteAll   key.Binding
	ClearComplete key.Binding
	FilterAll     key.Binding
	FilterPending key.Binding
	FilterDone    key.Binding
	FilterCycle   key.Binding
	Refresh       key.Binding
	Copy          key.Binding
	Help          key.Binding
	Quit          key.Binding
	ForceQuit     key.Binding

	Confirm key.Binding
	Cancel  key.Binding
	Dismiss key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Focus:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "input/list")),
		AddFocus:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "new todo")),
		Submit:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add")),
		Toggle:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Delete:        key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		CompleteAll:   key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "complete all")),
		ClearComplete: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear completed")),
		FilterAll:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "all")),
		FilterPending: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "not completed")),
		FilterDone:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "completed")),
		FilterCycle:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "next filter")),
		Refresh:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Copy:          key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy title")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:          key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit:     key.NewBinding(key.WithKeys("ctrl+c")),

		Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		Dismiss: key.NewBinding(key.WithKeys("enter", "esc", "o"), key.WithHelp("enter", "ok")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Toggle, k.Delete, k.FilterCycle, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Focus, k.AddFocus, k.Submit},
		{k.Toggle, k.Delete, k.CompleteAll, k.ClearComplete},
		{k.FilterAll, k.FilterPending, k.FilterDone, k.FilterCycle},
		{k.Refresh, k.Copy, k.Help, k.Quit},
	}
}

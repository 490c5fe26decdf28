package pager

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
)

// KeyMap holds the pager's own bindings. Scrolling keys belong to the
// viewport.
type KeyMap struct {
	Quit        key.Binding
	ModeASCII   key.Binding
	ModeUTF8    key.Binding
	ModeCP437   key.Binding
	ShowText    key.Binding
	ShowBinary  key.Binding
	ShowHex     key.Binding
	Wrap        key.Binding
	Search      key.Binding
	NextMatch   key.Binding
	Top         key.Binding
	Bottom      key.Binding
	ToggleSauce key.Binding
	Help        key.Binding
}

// DefaultKeyMap returns the standard pager bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		ModeASCII:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "ascii")),
		ModeUTF8:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "utf-8")),
		ModeCP437:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cp437")),
		ShowText:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "text")),
		ShowBinary:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "binary")),
		ShowHex:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hex")),
		Wrap:        key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "wrap")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextMatch:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		Top:         key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:      key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		ToggleSauce: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sauce")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Search, k.NextMatch, k.Wrap, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ModeASCII, k.ModeUTF8, k.ModeCP437},
		{k.ShowText, k.ShowBinary, k.ShowHex, k.Wrap},
		{k.Search, k.NextMatch, k.Top, k.Bottom},
		{k.ToggleSauce, k.Help, k.Quit},
	}
}

// viewportKeyMap is the viewport default without the letters the pager
// uses for modes ("b", "u").
func viewportKeyMap() viewport.KeyMap {
	km := viewport.DefaultKeyMap()
	km.PageUp = key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "½ page up"))
	return km
}

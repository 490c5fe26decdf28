// Package pager is a Bubble Tea document viewer. It lays out a source
// with the render package and lets the user switch input mode, display
// mode and wrapping on the fly.
package pager

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stlalpha/gviewer/internal/datasource"
	"github.com/stlalpha/gviewer/internal/inputmode"
	"github.com/stlalpha/gviewer/internal/logging"
	"github.com/stlalpha/gviewer/internal/render"
)

const (
	defaultWidth  = 80
	defaultHeight = 25
)

// ReloadMsg replaces the document, for example after the file changed
// on disk. A non-nil Err keeps the current document and reports the error.
type ReloadMsg struct {
	Source *datasource.Source
	Err    error
}

// Model is the Bubble Tea model for the pager.
type Model struct {
	source *datasource.Source
	opts   render.Options
	lines  []render.Line

	viewport viewport.Model
	keys     KeyMap
	help     help.Model

	search    textinput.Model
	searching bool
	query     string

	showSauce bool
	showHelp  bool
	message   string

	width  int
	height int

	// Embedded pagers hand control back instead of quitting the program.
	embedded bool
}

// New creates a pager for src laid out with opts.
func New(src *datasource.Source, opts render.Options) Model {
	si := textinput.New()
	si.Prompt = "/"
	si.Placeholder = "search"
	si.CharLimit = 80

	vp := viewport.New(defaultWidth, defaultHeight-1)
	vp.KeyMap = viewportKeyMap()

	if opts.Mode == nil {
		opts.Mode = render.DefaultMode
	}
	m := Model{
		source:   src,
		opts:     opts,
		viewport: vp,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		search:   si,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.relayout()
	return m
}

// ClosedMsg is sent by an embedded pager when the user leaves it.
type ClosedMsg struct{}

// Embedded returns a copy of m that emits ClosedMsg on quit instead of
// tea.Quit, for use inside another model.
func (m Model) Embedded() Model {
	m.embedded = true
	return m
}

// WithSize returns m laid out for a width x height screen.
func (m Model) WithSize(width, height int) Model {
	m.width, m.height = width, height
	m.relayout()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.embedded {
		return nil
	}
	return tea.SetWindowTitle(m.source.Name())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.relayout()
		return m, nil

	case ReloadMsg:
		if msg.Err != nil {
			m.message = fmt.Sprintf("Reload failed: %v", msg.Err)
			return m, nil
		}
		follow := m.viewport.AtBottom()
		m.source = msg.Source
		m.relayout()
		if follow {
			m.viewport.GotoBottom()
		}
		m.message = "Reloaded"
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateNavigate(msg)
	}

	var cmd tea.Cmd
	if m.searching {
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateNavigate handles keys while browsing the document.
func (m Model) updateNavigate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.embedded {
			return m, func() tea.Msg { return ClosedMsg{} }
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.ModeASCII):
		m.setMode(inputmode.ASCII)
	case key.Matches(msg, m.keys.ModeUTF8):
		m.setMode(inputmode.UTF8)
	case key.Matches(msg, m.keys.ModeCP437):
		m.setMode(inputmode.CP437)
	case key.Matches(msg, m.keys.ShowText):
		m.setDisplay(render.DisplayText)
	case key.Matches(msg, m.keys.ShowBinary):
		m.setDisplay(render.DisplayBinary)
	case key.Matches(msg, m.keys.ShowHex):
		m.setDisplay(render.DisplayHex)
	case key.Matches(msg, m.keys.Wrap):
		m.opts.Wrap = !m.opts.Wrap
		m.relayout()
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.query)
		m.search.CursorEnd()
		m.search.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.NextMatch):
		m.findFrom(m.viewport.YOffset + 1)
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keys.ToggleSauce):
		if m.source.Sauce() == nil {
			m.message = "No SAUCE record"
			break
		}
		m.showSauce = !m.showSauce
		m.relayout()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.relayout()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// updateSearch handles keys while the search prompt is open.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.query = m.search.Value()
		m.searching = false
		m.search.Blur()
		m.findFrom(m.viewport.YOffset)
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	default:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
}

func (m *Model) findFrom(from int) {
	if m.query == "" {
		m.message = "No search pattern"
		return
	}
	idx := render.FindNext(m.lines, m.query, from)
	if idx < 0 {
		m.message = fmt.Sprintf("Not found: %s", m.query)
		return
	}
	m.viewport.SetYOffset(idx)
	m.message = fmt.Sprintf("Found at line %d", idx+1)
}

func (m *Model) setMode(mode inputmode.Mode) {
	m.opts.Mode = mode
	m.relayout()
}

func (m *Model) setDisplay(d render.DisplayMode) {
	m.opts.Display = d
	m.relayout()
}

// bodyHeight is the number of rows left for the document.
func (m Model) bodyHeight() int {
	h := m.height - 1
	if m.showSauce && m.source.Sauce() != nil {
		h--
	}
	if m.showHelp {
		h -= helpHeight(m.keys)
	}
	if h < 1 {
		h = 1
	}
	return h
}

// relayout re-renders the document and keeps the top line anchored at the
// same byte offset.
func (m *Model) relayout() {
	var top int64
	if y := m.viewport.YOffset; y >= 0 && y < len(m.lines) {
		top = m.lines[y].Offset
	}

	m.opts.Width = m.width
	m.lines = render.Render(m.source.Bytes(), m.opts)
	texts := make([]string, len(m.lines))
	for i, l := range m.lines {
		texts[i] = l.Text
	}
	logging.Debug("pager: %s laid out as %d lines (%s, %s, wrap=%v)",
		m.source.Name(), len(m.lines), m.opts.Mode.Name(), m.opts.Display, m.opts.Wrap)

	m.viewport.Width = m.width
	m.viewport.Height = m.bodyHeight()
	m.viewport.SetContent(strings.Join(texts, "\n"))
	m.viewport.SetYOffset(render.LineAt(m.lines, top))
}

// Lines returns the current layout.
func (m Model) Lines() []render.Line { return m.lines }

// Options returns the current layout options.
func (m Model) Options() render.Options { return m.opts }

// TopLine returns the index of the first visible line.
func (m Model) TopLine() int { return m.viewport.YOffset }

// Message returns the current status message.
func (m Model) Message() string { return m.message }

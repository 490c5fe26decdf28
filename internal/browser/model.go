// Package browser is a Bubble Tea directory browser confined to a root
// directory. Files open in the pager, and files can be selected one by
// one or by glob pattern.
package browser

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stlalpha/gviewer/internal/datasource"
	"github.com/stlalpha/gviewer/internal/logging"
	"github.com/stlalpha/gviewer/internal/pager"
	"github.com/stlalpha/gviewer/internal/patternsel"
	"github.com/stlalpha/gviewer/internal/render"
)

const (
	minWidth  = 40
	minHeight = 10

	parentName = ".."
)

// Options configure a browser.
type Options struct {
	Root          string
	Render        render.Options
	Source        datasource.Options
	CaseSensitive bool
	History       *patternsel.History
}

// Model is the Bubble Tea model for the browser.
type Model struct {
	root    string // resolved root directory
	dir     string // current directory, inside root
	entries []Entry
	cursor  int
	top     int

	selection     *patternsel.Selection
	history       *patternsel.History
	caseSensitive bool

	prompt     textinput.Model
	prompting  bool
	promptMode patternsel.Mode

	viewer     *pager.Model
	renderOpts render.Options
	sourceOpts datasource.Options

	width   int
	height  int
	message string
}

// New creates a browser rooted at opts.Root.
func New(opts Options) (Model, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return Model{}, err
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return Model{}, fmt.Errorf("resolve root: %w", err)
	}
	entries, err := readDir(root)
	if err != nil {
		return Model{}, err
	}

	history := opts.History
	if history == nil {
		history = patternsel.NewHistory(0, nil)
	}

	pi := textinput.New()
	pi.CharLimit = 120
	pi.Width = 40

	return Model{
		root:          root,
		dir:           root,
		entries:       entries,
		selection:     patternsel.NewSelection(),
		history:       history,
		caseSensitive: opts.CaseSensitive,
		prompt:        pi,
		renderOpts:    opts.Render,
		sourceOpts:    opts.Source,
		width:         80,
		height:        25,
	}, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("gviewer " + m.root)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = max(size.Width, minWidth)
		m.height = max(size.Height, minHeight)
		m.clampScroll()
	}

	if m.viewer != nil {
		if _, ok := msg.(pager.ClosedMsg); ok {
			m.viewer = nil
			return m, nil
		}
		next, cmd := m.viewer.Update(msg)
		v := next.(pager.Model)
		m.viewer = &v
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.updateNavigate(msg)
	}
	if m.prompting {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

// updateNavigate handles keys in the listing.
func (m Model) updateNavigate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "pgup":
		m.move(-m.listHeight())
	case "pgdown":
		m.move(m.listHeight())
	case "home":
		m.move(-len(m.rows()))
	case "end":
		m.move(len(m.rows()))
	case "enter":
		return m.open()
	case "backspace":
		m.up()
	case " ", "insert":
		m.toggleCurrent()
		if msg.String() == "insert" {
			m.move(1)
		}
	case "+":
		return m.startPrompt(patternsel.Select)
	case "-":
		return m.startPrompt(patternsel.Unselect)
	case "*":
		m.selection.Invert(m.fileNames())
	}
	return m, nil
}

func (m Model) startPrompt(mode patternsel.Mode) (tea.Model, tea.Cmd) {
	m.prompting = true
	m.promptMode = mode
	if mode == patternsel.Select {
		m.prompt.Prompt = "Select: "
	} else {
		m.prompt.Prompt = "Unselect: "
	}
	m.prompt.SetValue(m.history.Last("*"))
	m.prompt.CursorEnd()
	m.prompt.Focus()
	return m, textinput.Blink
}

// updatePrompt handles keys while the pattern prompt is open.
func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.prompting = false
		m.prompt.Blur()
		m.applyPattern(m.prompt.Value())
		return m, nil
	case tea.KeyEsc:
		m.prompting = false
		m.prompt.Blur()
		return m, nil
	default:
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
}

func (m *Model) applyPattern(pattern string) {
	n, err := m.selection.Apply(m.fileNames(), pattern, m.promptMode, m.caseSensitive)
	if err != nil {
		m.message = err.Error()
		return
	}
	m.history.Add(pattern)
	m.message = fmt.Sprintf("%sed %d file(s) matching %s", m.promptMode, n, pattern)
	logging.Debug("browser: %s %q changed %d names in %s", m.promptMode, pattern, n, m.dir)
}

// rows returns the listing including the parent entry below the root.
func (m Model) rows() []Entry {
	if m.dir == m.root {
		return m.entries
	}
	return append([]Entry{{Name: parentName, IsDir: true}}, m.entries...)
}

func (m Model) current() (Entry, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return Entry{}, false
	}
	return rows[m.cursor], true
}

// relName returns the slash-separated path of name relative to the root,
// the key used in the selection.
func (m Model) relName(name string) string {
	rel, err := filepath.Rel(m.root, filepath.Join(m.dir, name))
	if err != nil {
		return name
	}
	return filepath.ToSlash(rel)
}

// fileNames returns the root-relative names of the files in the current
// directory. Directories are never pattern-selected.
func (m Model) fileNames() []string {
	var names []string
	for _, e := range m.entries {
		if !e.IsDir {
			names = append(names, m.relName(e.Name))
		}
	}
	return names
}

func (m *Model) toggleCurrent() {
	e, ok := m.current()
	if !ok || e.IsDir {
		return
	}
	m.selection.Toggle(m.relName(e.Name))
}

func (m *Model) move(delta int) {
	m.cursor += delta
	if n := len(m.rows()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampScroll()
}

func (m *Model) clampScroll() {
	h := m.listHeight()
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+h {
		m.top = m.cursor - h + 1
	}
	if m.top < 0 {
		m.top = 0
	}
}

// open descends into the directory under the cursor or views the file.
func (m Model) open() (tea.Model, tea.Cmd) {
	e, ok := m.current()
	if !ok {
		return m, nil
	}
	if e.Name == parentName {
		m.up()
		return m, nil
	}

	target, err := resolveWithin(m.root, filepath.Join(m.dir, e.Name))
	if err != nil {
		m.message = err.Error()
		return m, nil
	}
	if e.IsDir {
		m.chdir(target, "")
		return m, nil
	}

	src, err := datasource.Open(target, m.sourceOpts)
	if err != nil {
		m.message = err.Error()
		return m, nil
	}
	v := pager.New(src, m.renderOpts).Embedded().WithSize(m.width, m.height)
	m.viewer = &v
	return m, v.Init()
}

// up moves to the parent directory, never above the root.
func (m *Model) up() {
	if m.dir == m.root {
		return
	}
	m.chdir(filepath.Dir(m.dir), filepath.Base(m.dir))
}

// chdir lists dir and places the cursor on focus when present.
func (m *Model) chdir(dir, focus string) {
	entries, err := readDir(dir)
	if err != nil {
		m.message = err.Error()
		return
	}
	m.dir = dir
	m.entries = entries
	m.cursor, m.top = 0, 0
	for i, e := range m.rows() {
		if e.Name == focus {
			m.cursor = i
			break
		}
	}
	m.clampScroll()
}

func (m Model) listHeight() int {
	return max(m.height-3, 1)
}

// Selected returns the absolute paths of the selected files, sorted.
func (m Model) Selected() []string {
	names := m.selection.Names()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = filepath.Join(m.root, filepath.FromSlash(name))
	}
	return out
}

// History returns the pattern history, most recent first.
func (m Model) History() []string { return m.history.Items() }

// Dir returns the current directory relative to the root, as "/" for the
// root itself.
func (m Model) Dir() string {
	return path.Join("/", m.relName(""))
}

package browser

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stlalpha/gviewer/internal/pager"
	"github.com/stlalpha/gviewer/internal/patternsel"
)

// makeTree creates:
//
//	root/ART.ANS  root/notes.txt  root/readme.md
//	root/sub/inner.txt  root/sub/deep/x.ans
func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"ART.ANS":        "\xC9\xCD\xBB",
		"notes.txt":      "notes",
		"readme.md":      "# readme",
		"sub/inner.txt":  "inner",
		"sub/deep/x.ans": "x",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter     = tea.KeyMsg{Type: tea.KeyEnter}
	backspace = tea.KeyMsg{Type: tea.KeyBackspace}
	down      = tea.KeyMsg{Type: tea.KeyDown}
	space     = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func names(m Model) []string {
	var out []string
	for _, e := range m.rows() {
		out = append(out, e.Name)
	}
	return out
}

func newModel(t *testing.T, root string) Model {
	t.Helper()
	m, err := New(Options{Root: root})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestListingDirsFirst(t *testing.T) {
	m := newModel(t, makeTree(t))
	want := []string{"sub", "ART.ANS", "notes.txt", "readme.md"}
	if got := names(m); !reflect.DeepEqual(got, want) {
		t.Errorf("listing = %q, want %q", got, want)
	}
	if m.Dir() != "/" {
		t.Errorf("Dir = %q", m.Dir())
	}
}

func TestNavigationConfinedToRoot(t *testing.T) {
	m := newModel(t, makeTree(t))

	m, _ = send(t, m, enter) // into sub
	if m.Dir() != "/sub" {
		t.Fatalf("Dir = %q, want /sub", m.Dir())
	}
	if got := names(m); got[0] != parentName {
		t.Errorf("first row = %q, want ..", got[0])
	}

	m, _ = send(t, m, backspace)
	if m.Dir() != "/" {
		t.Fatalf("Dir after backspace = %q", m.Dir())
	}
	if e, _ := m.current(); e.Name != "sub" {
		t.Errorf("cursor on %q, want sub", e.Name)
	}

	m, _ = send(t, m, backspace, backspace)
	if m.Dir() != "/" {
		t.Errorf("backspace left the root: %q", m.Dir())
	}

	m, _ = send(t, m, enter, enter) // sub, then ".."
	if m.Dir() != "/" {
		t.Errorf("parent entry led to %q", m.Dir())
	}
}

func TestSymlinkOutsideRootRefused(t *testing.T) {
	root := makeTree(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "aaa-escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	m := newModel(t, root)
	if e, _ := m.current(); e.Name != "aaa-escape" {
		t.Fatalf("cursor on %q", e.Name)
	}
	m, _ = send(t, m, enter)
	if m.Dir() != "/" || !strings.Contains(m.message, ErrOutsideRoot.Error()) {
		t.Errorf("Dir = %q, message %q", m.Dir(), m.message)
	}
}

func TestResolvePath(t *testing.T) {
	root := makeTree(t)
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	got, err := ResolvePath(root, "../../sub/inner.txt")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if want := filepath.Join(resolvedRoot, "sub", "inner.txt"); got != want {
		t.Errorf("ResolvePath = %q, want %q", got, want)
	}
	if _, err := ResolvePath(root, "/missing"); err == nil {
		t.Error("ResolvePath found a missing file")
	}

	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err == nil {
		if _, err := ResolvePath(root, "link"); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("ResolvePath(link) error = %v, want ErrOutsideRoot", err)
		}
	}
}

func TestToggleAndInvert(t *testing.T) {
	m := newModel(t, makeTree(t))
	m, _ = send(t, m, space) // on "sub": directories are not selectable
	if m.selection.Len() != 0 {
		t.Fatalf("directory got selected")
	}
	m, _ = send(t, m, down, space)
	if got := m.selection.Names(); !reflect.DeepEqual(got, []string{"ART.ANS"}) {
		t.Fatalf("selection = %q", got)
	}
	m, _ = send(t, m, runes("*"))
	if got := m.selection.Names(); !reflect.DeepEqual(got, []string{"notes.txt", "readme.md"}) {
		t.Errorf("inverted selection = %q", got)
	}
}

func TestPatternPrompt(t *testing.T) {
	history := patternsel.NewHistory(5, []string{"*.md"})
	m, err := New(Options{Root: makeTree(t), History: history})
	if err != nil {
		t.Fatal(err)
	}

	// "+" pre-fills the last pattern.
	m, _ = send(t, m, runes("+"))
	if !m.prompting || m.prompt.Value() != "*.md" {
		t.Fatalf("prompt open=%v value=%q", m.prompting, m.prompt.Value())
	}
	m, _ = send(t, m, enter)
	if got := m.selection.Names(); !reflect.DeepEqual(got, []string{"readme.md"}) {
		t.Fatalf("selection = %q", got)
	}

	m, _ = send(t, m, runes("+"), tea.KeyMsg{Type: tea.KeyCtrlU}, runes("*.TXT"), enter)
	if got := m.selection.Names(); !reflect.DeepEqual(got, []string{"notes.txt", "readme.md"}) {
		t.Fatalf("selection = %q", got)
	}
	if got := m.History(); !reflect.DeepEqual(got, []string{"*.TXT", "*.md"}) {
		t.Errorf("history = %q", got)
	}

	m, _ = send(t, m, runes("-"), tea.KeyMsg{Type: tea.KeyCtrlU}, runes("*"), enter)
	if m.selection.Len() != 0 {
		t.Errorf("unselect left %q", m.selection.Names())
	}

	m, _ = send(t, m, runes("+"), tea.KeyMsg{Type: tea.KeyCtrlU}, runes("[abc"), enter)
	if !strings.Contains(m.message, patternsel.ErrBadPattern.Error()) {
		t.Errorf("bad pattern message = %q", m.message)
	}
	if got := m.History()[0]; got == "[abc" {
		t.Error("bad pattern stored in history")
	}
}

func TestSelectionSpansDirectories(t *testing.T) {
	root := makeTree(t)
	m := newModel(t, root)
	m, _ = send(t, m, enter, runes("+"), tea.KeyMsg{Type: tea.KeyCtrlU}, runes("*.txt"), enter, backspace)
	m, _ = send(t, m, runes("+"), tea.KeyMsg{Type: tea.KeyCtrlU}, runes("*.ANS"), enter)

	resolved, _ := filepath.EvalSymlinks(root)
	want := []string{filepath.Join(resolved, "ART.ANS"), filepath.Join(resolved, "sub", "inner.txt")}
	if got := m.Selected(); !reflect.DeepEqual(got, want) {
		t.Errorf("Selected = %q, want %q", got, want)
	}
}

func TestOpenFileInPager(t *testing.T) {
	m := newModel(t, makeTree(t))
	m, _ = send(t, m, down, enter)
	if m.viewer == nil {
		t.Fatalf("file did not open, message %q", m.message)
	}
	if !strings.Contains(m.View(), "╔═╗") {
		t.Errorf("viewer does not show the document")
	}

	m, cmd := send(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q in viewer returned no command")
	}
	msg := cmd()
	if _, ok := msg.(pager.ClosedMsg); !ok {
		t.Fatalf("viewer quit sent %T, want pager.ClosedMsg", msg)
	}
	m, _ = send(t, m, msg)
	if m.viewer != nil {
		t.Error("viewer still open after ClosedMsg")
	}
}

func TestQuit(t *testing.T) {
	m := newModel(t, makeTree(t))
	_, cmd := send(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestHumanSize(t *testing.T) {
	for n, want := range map[int64]string{0: "0", 1023: "1023", 1024: "1.0K", 1536: "1.5K", 5 << 20: "5.0M"} {
		if got := humanSize(n); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", n, got, want)
		}
	}
}

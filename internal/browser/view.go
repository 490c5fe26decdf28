package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4")).
			Bold(true)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("5")).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Background(lipgloss.Color("4"))
)

// View implements tea.Model.
func (m Model) View() string {
	if m.viewer != nil {
		return m.viewer.View()
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(pad(" "+m.Dir(), m.width)))
	b.WriteByte('\n')

	rows := m.rows()
	h := m.listHeight()
	for i := m.top; i < m.top+h; i++ {
		if i < len(rows) {
			b.WriteString(m.renderRow(rows[i], i == m.cursor))
		}
		b.WriteByte('\n')
	}

	if m.prompting {
		b.WriteString(m.prompt.View())
	} else {
		status := fmt.Sprintf(" %d selected", m.selection.Len())
		if m.message != "" {
			status += "  " + m.message
		}
		b.WriteString(footerStyle.Render(pad(status, m.width)))
	}
	return b.String()
}

func (m Model) renderRow(e Entry, atCursor bool) string {
	mark := " "
	name := e.Name
	size := humanSize(e.Size)
	if e.IsDir {
		name += "/"
		size = "<DIR>"
	} else if m.selection.IsSelected(m.relName(e.Name)) {
		mark = "*"
	}

	nameWidth := m.width - 10
	line := fmt.Sprintf("%s %-*s %7s", mark, nameWidth, truncate(name, nameWidth), size)
	switch {
	case atCursor:
		return cursorStyle.Render(line)
	case mark == "*":
		return selectedStyle.Render(line)
	case e.IsDir:
		return dirStyle.Render(line)
	}
	return line
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width || width < 2 {
		return s
	}
	return string(r[:width-1]) + "»"
}

package pager

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	statusBarFillStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("4"))

	statusBarLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Background(lipgloss.Color("4"))

	statusBarValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("4")).
				Bold(true)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Background(lipgloss.Color("4"))

	sauceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	if m.showSauce {
		if rec := m.source.Sauce(); rec != nil {
			b.WriteString(sauceStyle.Render(truncate("SAUCE: "+rec.Summary(), m.width)))
			b.WriteByte('\n')
		}
	}
	if m.showHelp {
		m.help.Width = m.width
		b.WriteString(m.help.View(m.keys))
		b.WriteByte('\n')
	}
	if m.searching {
		b.WriteString(m.search.View())
	} else {
		b.WriteString(m.statusBar())
	}
	return b.String()
}

// statusBar renders "name  mode  display  wrap ... message  percent".
func (m Model) statusBar() string {
	left := statusBarValueStyle.Render(" "+m.source.Name()+" ") +
		statusBarLabelStyle.Render(" "+m.opts.Mode.Name()+" ") +
		statusBarLabelStyle.Render(" "+m.opts.Display.String()+" ")
	if m.opts.Wrap {
		left += statusBarLabelStyle.Render(" wrap ")
	}

	right := statusBarValueStyle.Render(fmt.Sprintf(" %3.0f%% ", m.viewport.ScrollPercent()*100))
	if m.message != "" {
		right = messageStyle.Render(" "+m.message+" ") + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + statusBarFillStyle.Render(strings.Repeat(" ", gap)) + right
}

func helpHeight(k KeyMap) int {
	h := 0
	for _, col := range k.FullHelp() {
		if len(col) > h {
			h = len(col)
		}
	}
	return h + 1
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "»"
}

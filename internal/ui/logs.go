package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/crossbar/internal/logtail"
)

// setLogContent loads entries into the log pane and follows the tail.
func (m *Model) setLogContent(entries []logtail.Entry) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.LevelColor(e.Level)))
		lines = append(lines, style.Render(truncate(e.Format(), max(m.width-4, 10))))
	}
	if len(lines) == 0 {
		lines = append(lines, m.theme.Styles().FaintText.Render("no log entries yet"))
	}
	m.logViewport.SetContent(strings.Join(lines, "\n"))
	m.logViewport.GotoBottom()
}

func (m Model) renderLogs() string {
	return m.theme.Styles().Pane.Width(max(m.width-2, 0)).Render(m.logViewport.View())
}

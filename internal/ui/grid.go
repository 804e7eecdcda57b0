package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/crossbar/internal/state"
)

const (
	nameWidth = 18
	cellWidth = 5
)

// renderGrid renders the routing grid: one row per visible output, one
// column per visible input, the live route marked and the cursor highlighted.
func (m Model) renderGrid() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	if len(m.outputs) == 0 || len(m.inputs) == 0 {
		return styles.MutedText.Render("all ports are hidden")
	}

	name := lipgloss.NewStyle().Width(nameWidth).MaxWidth(nameWidth)
	cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center)

	var b strings.Builder
	b.WriteString(name.Render(""))
	for _, in := range m.inputs {
		b.WriteString(styles.MutedText.Inherit(cell).Render(fmt.Sprintf("%d", in)))
	}
	b.WriteString("\n")

	for r, out := range m.outputs {
		label := truncate(m.outputName(out), nameWidth-1)
		if r == m.row {
			b.WriteString(styles.AccentText.Bold(true).Inherit(name).Render(label))
		} else {
			b.WriteString(styles.Text.Inherit(name).Render(label))
		}

		current, known := 0, false
		if snap.HasStatus() {
			current, known = snap.Status.InputFor(out, m.ctl.Inputs())
		}
		for c, in := range m.inputs {
			mark := "·"
			style := styles.FaintText
			if !m.ports.InputAvailable(out, in) {
				mark = " "
			}
			if known && in == current {
				mark = "●"
				style = styles.SuccessText
				if snap.Availability != state.Fresh {
					style = styles.WarningText
				}
			}
			if r == m.row && c == m.col && m.ports.InputAvailable(out, in) {
				style = styles.Cursor
			}
			b.WriteString(style.Inherit(cell).Render(mark))
		}

		b.WriteString("  ")
		b.WriteString(m.routeLabel(out, current, known, styles))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderLegend(styles))
	return b.String()
}

// routeLabel describes what output out is showing.
func (m Model) routeLabel(out, current int, known bool, styles Styles) string {
	switch {
	case !m.snapshot.HasStatus():
		return styles.FaintText.Render("unknown")
	case !known:
		raw := 0
		if out-1 < len(m.snapshot.Status.Routes) {
			raw = m.snapshot.Status.Routes[out-1]
		}
		return styles.WarningText.Render(fmt.Sprintf("unrecognised input %d", raw))
	default:
		return styles.MutedText.Render("→ " + m.inputName(current))
	}
}

// renderLegend lists the visible inputs by name.
func (m Model) renderLegend(styles Styles) string {
	parts := make([]string, 0, len(m.inputs))
	for _, in := range m.inputs {
		parts = append(parts, styles.AccentText.Render(fmt.Sprintf("%d", in))+" "+styles.MutedText.Render(m.inputName(in)))
	}
	return strings.Join(parts, "   ")
}

// truncate shortens s to max runes, ending with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

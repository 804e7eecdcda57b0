package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/crossbar/internal/matrix"
	"github.com/five82/crossbar/internal/state"
)

// renderHeader renders the status bar: host, availability, power and timing.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	badge := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Background)).
		Background(lipgloss.Color(m.theme.AvailabilityColor(snap))).
		Padding(0, 1).
		Render(availabilityLabel(snap))

	parts := []string{styles.Logo.Render("crossbar")}
	if m.host != "" {
		parts = append(parts, styles.MutedText.Render(m.host))
	}
	parts = append(parts, badge)

	if snap.HasStatus() {
		power := styles.SuccessText.Render("power on")
		if snap.Status.Power == 0 {
			power = styles.WarningText.Render("standby")
		}
		parts = append(parts, power)
	}
	if !snap.LastSuccess.IsZero() {
		parts = append(parts, styles.FaintText.Render("synced "+snap.LastSuccess.Format("15:04:05")))
	}
	if snap.ConsecutiveFailures > 0 && snap.LastError != nil {
		msg := fmt.Sprintf("%s (x%d)", classifyError(snap.LastError), snap.ConsecutiveFailures)
		parts = append(parts, styles.DangerText.Render(msg))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// renderFooter renders the notice line and key hints.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()

	var notice string
	switch {
	case m.notice == "":
	case m.failed:
		notice = styles.DangerText.Render(m.notice)
	case m.pending > 0:
		notice = styles.WarningText.Render(m.notice + "…")
	default:
		notice = styles.SuccessText.Render(m.notice)
	}

	hints := make([]string, 0, len(m.keys.ShortHelp())+1)
	for _, b := range m.keys.ShortHelp() {
		hints = append(hints, hint(styles, b))
	}
	hints = append(hints, styles.AccentText.Render("T")+":"+styles.FaintText.Render(m.theme.Name))

	lines := []string{strings.Join(hints, "  ")}
	if notice != "" {
		lines = append([]string{notice}, lines...)
	}
	return styles.Footer.Width(m.width).Render(strings.Join(lines, "\n"))
}

func hint(styles Styles, b key.Binding) string {
	h := b.Help()
	return styles.AccentText.Render(h.Key) + ":" + styles.MutedText.Render(h.Desc)
}

func availabilityLabel(snap state.Snapshot) string {
	switch {
	case snap.IsOffline():
		return "OFFLINE"
	case snap.Availability == state.Fresh:
		return "LIVE"
	case snap.Availability == state.Stale:
		return "STALE"
	case snap.LastError != nil:
		return "UNREACHABLE"
	default:
		return "CONNECTING"
	}
}

// classifyError returns a short description of a poll failure.
func classifyError(err error) string {
	var te *matrix.TransportError
	if !errors.As(err, &te) {
		return "ERROR"
	}
	msg := te.Error()
	switch {
	case te.Kind == matrix.KindNetwork && strings.Contains(msg, "connection refused"):
		return "REFUSED"
	case te.Kind == matrix.KindNetwork && strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case te.Kind == matrix.KindNetwork && strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	case te.Kind == matrix.KindStatus:
		return fmt.Sprintf("HTTP %d", te.StatusCode)
	default:
		return strings.ToUpper(te.Kind.String())
	}
}

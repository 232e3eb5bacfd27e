package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// View renders the dashboard
func (m Model) View() string {
	if !m.ready {
		return "Connecting to devmon..."
	}

	var b strings.Builder

	b.WriteString(headerStyle.Width(m.width).Render("devmon"))
	b.WriteString("\n")

	if len(m.servers) == 0 {
		b.WriteString(dimStyle.Render("No servers registered."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.serverTable())
	}

	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusBar())

	return b.String()
}

// serverTable renders the server list with the selection marker
func (m Model) serverTable() string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-16s %-9s %-7s %-6s %s", "NAME", "STATUS", "PID", "PORT", "UPTIME")))
	b.WriteString("\n")

	for i, s := range m.servers {
		marker := "  "
		nameStyle := defaultStateStyle
		if i == m.selected {
			marker = "> "
			nameStyle = selectedStyle
		}

		uptime := "-"
		if s.Status == "running" {
			uptime = formatUptime(s.UptimeSeconds)
		}

		b.WriteString(marker)
		b.WriteString(nameStyle.Render(fmt.Sprintf("%-16s", s.Name)))
		b.WriteString(" ")
		b.WriteString(stateStyle(s.Status).Render(fmt.Sprintf("%-9s", s.Status)))
		b.WriteString(fmt.Sprintf(" %-7d %-6d %s", s.PID, s.Port, uptime))
		if s.Reattached {
			b.WriteString(dimStyle.Render("  (reattached)"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// statusBar renders the bottom bar with key hints, errors, and notices
func (m Model) statusBar() string {
	if m.lastErr != nil {
		return failureStyle.Width(m.width).Render("connection error: " + truncateError(m.lastErr))
	}
	if m.notice != "" {
		return statusStyle.Width(m.width).Render(m.notice)
	}
	return statusStyle.Width(m.width).Render("j/k: select  r: restart  s: stop  q: quit")
}

// formatUptime renders seconds as a compact duration
func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

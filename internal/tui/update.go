package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// headerHeight and footerHeight are the rows reserved around the log viewport
const (
	headerHeight = 2
	footerHeight = 2
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		tableRows := len(m.servers) + 3
		vpHeight := m.height - headerHeight - footerHeight - tableRows
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = newViewport(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.logs)

	case ServersMsg:
		m.servers = msg
		m.lastErr = nil
		if m.selected >= len(m.servers) {
			m.selected = len(m.servers) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		cmds = append(cmds, m.fetchLogs())

	case LogsMsg:
		atBottom := m.viewport.AtBottom()
		m.logs = string(msg)
		m.viewport.SetContent(m.logs)
		if atBottom {
			m.viewport.GotoBottom()
		}

	case TickMsg:
		cmds = append(cmds, m.fetchServers(), tickCmd())

	case FetchErrMsg:
		m.lastErr = msg.Err

	case ActionResultMsg:
		if msg.Err != nil {
			m.notice = msg.Action + " " + msg.Server + " failed: " + truncateError(msg.Err)
		} else {
			m.notice = msg.Action + " " + msg.Server + " ok"
		}
		cmds = append(cmds, clearNoticeCmd(), m.fetchServers())

	case ClearNoticeMsg:
		m.notice = ""
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
			return m, m.fetchLogs()
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.servers)-1 {
			m.selected++
			return m, m.fetchLogs()
		}
		return m, nil

	case "r":
		name := m.selectedName()
		if name == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			_, err := m.source.RestartServer(name)
			return ActionResultMsg{Action: "restart", Server: name, Err: err}
		}

	case "s":
		name := m.selectedName()
		if name == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			_, err := m.source.StopServer(name, false)
			return ActionResultMsg{Action: "stop", Server: name, Err: err}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// truncateError shortens an error message for the status bar
func truncateError(err error) string {
	s := err.Error()
	if len(s) > maxErrorDisplayLen {
		return s[:maxErrorDisplayLen-3] + "..."
	}
	return s
}

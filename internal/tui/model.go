// Package tui implements the interactive dashboard that attaches to a
// running supervisor over its HTTP API.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessland/devmon/internal/api"
)

// DataSource is the slice of the API client the dashboard needs. Tests
// substitute a fake.
type DataSource interface {
	GetServers() (*api.ServerListResponse, error)
	GetServerLogs(name string, lines int) (*api.ServerLogsResponse, error)
	RestartServer(name string) (*api.ServerResponse, error)
	StopServer(name string, force bool) (*api.ServerResponse, error)
}

const (
	pollInterval       = time.Second
	logTailLines       = 200
	actionNoticeDelay  = 3 * time.Second
	maxErrorDisplayLen = 60
)

// Model is the bubbletea model for the dashboard
type Model struct {
	source DataSource

	servers  []api.ServerResponse
	selected int
	logs     string
	lastErr  error
	notice   string

	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

// NewModel creates a dashboard model backed by the given source
func NewModel(source DataSource) Model {
	return Model{source: source}
}

// Run attaches the dashboard to the supervisor and blocks until quit
func Run(source DataSource) error {
	p := tea.NewProgram(NewModel(source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init starts polling
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchServers(), tickCmd())
}

// ServersMsg carries a fresh server listing
type ServersMsg []api.ServerResponse

// LogsMsg carries a fresh log tail for the selected server
type LogsMsg string

// TickMsg drives periodic polling
type TickMsg time.Time

// ActionResultMsg reports the outcome of a restart or stop
type ActionResultMsg struct {
	Action string
	Server string
	Err    error
}

// ClearNoticeMsg clears the transient action notice
type ClearNoticeMsg struct{}

// FetchErrMsg reports a failed poll
type FetchErrMsg struct{ Err error }

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(actionNoticeDelay, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

func (m Model) fetchServers() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.source.GetServers()
		if err != nil {
			return FetchErrMsg{Err: err}
		}
		return ServersMsg(resp.Servers)
	}
}

func (m Model) fetchLogs() tea.Cmd {
	name := m.selectedName()
	if name == "" {
		return nil
	}
	return func() tea.Msg {
		resp, err := m.source.GetServerLogs(name, logTailLines)
		if err != nil {
			return FetchErrMsg{Err: err}
		}
		return LogsMsg(resp.Logs)
	}
}

// selectedName returns the name of the currently selected server
func (m Model) selectedName() string {
	if m.selected < 0 || m.selected >= len(m.servers) {
		return ""
	}
	return m.servers[m.selected].Name
}

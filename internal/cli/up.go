package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tessland/devmon/internal/api"
	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
	"github.com/tessland/devmon/internal/registry"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run the supervisor with the interactive dashboard",
	Long: `Run the supervisor in the foreground with the dashboard attached.
Quitting the dashboard shuts the supervisor down; managed servers are
signaled and anything still alive is reattached on the next start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(true)
	},
}

func init() {
	upCmd.Flags().IntVarP(&servePort, "port", "p", 0, "API port (overrides config)")
	rootCmd.AddCommand(upCmd)
}

// localSource feeds the dashboard directly from the in-process registry,
// bypassing the HTTP round trip the attach command needs.
type localSource struct {
	reg *registry.Registry
}

func (s localSource) GetServers() (*api.ServerListResponse, error) {
	infos := s.reg.List()
	servers := make([]api.ServerResponse, 0, len(infos))
	for _, info := range infos {
		servers = append(servers, localServerResponse(info))
	}
	return &api.ServerListResponse{Servers: servers, Count: len(servers)}, nil
}

func (s localSource) GetServerLogs(name string, lines int) (*api.ServerLogsResponse, error) {
	logs, err := s.reg.Logs(name, lines)
	if err != nil {
		return nil, err
	}
	return &api.ServerLogsResponse{Name: name, Lines: lines, Logs: logs}, nil
}

func (s localSource) RestartServer(name string) (*api.ServerResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultRequestTimeout)
	defer cancel()
	info, err := s.reg.Restart(ctx, name)
	if err != nil {
		return nil, err
	}
	resp := localServerResponse(info)
	return &resp, nil
}

func (s localSource) StopServer(name string, force bool) (*api.ServerResponse, error) {
	info, err := s.reg.Stop(name, force)
	if err != nil {
		return nil, err
	}
	resp := localServerResponse(info)
	return &resp, nil
}

func localServerResponse(info domain.ServerInfo) api.ServerResponse {
	return api.ServerResponse{
		Name:          info.Name,
		Status:        string(info.State),
		PID:           info.PID,
		Port:          info.Port,
		Command:       info.Command,
		Cwd:           info.Cwd,
		UptimeSeconds: info.UptimeSeconds(),
		Reattached:    info.Reattached,
	}
}

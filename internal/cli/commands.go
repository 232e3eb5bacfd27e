package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessland/devmon/internal/api"
	"github.com/tessland/devmon/internal/constants"
)

var (
	startCommand string
	startCwd     string
	startPort    int
	stopForce    bool
	logsLines    int
	consolePort  string
	consoleProj  string
	consoleLevel string
	consoleLimit int
	jsonOutput   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supervisor status and managed servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)

		status, err := client.GetStatus()
		if err != nil {
			return fmt.Errorf("%w\nIs devmon running? Try 'devmon serve' first", err)
		}
		servers, err := client.GetServers()
		if err != nil {
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"status":  status,
				"servers": servers.Servers,
			})
		}

		fmt.Printf("Status: %s\n", status.Status)
		fmt.Printf("Uptime: %s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
		fmt.Printf("State file: %s\n", status.StateFile)
		fmt.Println()
		printServerTable(servers.Servers)
		return nil
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List managed dev servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		servers, err := client.GetServers()
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(servers)
		}
		if servers.Count == 0 {
			fmt.Println("No servers registered.")
			return nil
		}
		printServerTable(servers.Servers)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start a dev server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := constants.DefaultServerName
		if len(args) > 0 {
			name = args[0]
		}

		client := NewClient(apiAddr)
		server, err := client.StartServer(api.StartServerRequest{
			Name:    name,
			Command: startCommand,
			Cwd:     startCwd,
			Port:    startPort,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Started server %q (pid %d) on port %d\n", server.Name, server.PID, server.Port)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a dev server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		server, err := client.StopServer(args[0], stopForce)
		if err != nil {
			return err
		}
		fmt.Printf("Stopped server %q\n", server.Name)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart a dev server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		server, err := client.RestartServer(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Restarted server %q (pid %d)\n", server.Name, server.PID)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <name>",
	Short: "Show captured output of a dev server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		logs, err := client.GetServerLogs(args[0], logsLines)
		if err != nil {
			return err
		}
		if logs.Logs == "" {
			fmt.Printf("No logs for server %q.\n", args[0])
			return nil
		}
		fmt.Println(logs.Logs)
		return nil
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Query ingested browser console logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		resp, err := client.GetConsoleLogs(ConsoleParams{
			Port:    consolePort,
			Project: consoleProj,
			Levels:  consoleLevel,
			Limit:   consoleLimit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp)
		}
		if resp.Count == 0 {
			fmt.Println("No browser logs match the filter.")
			return nil
		}
		for _, entry := range resp.Logs {
			fmt.Printf("%s [%s] %s:%s %s\n",
				entry.Timestamp.Format("15:04:05"),
				entry.Level, entry.Port, entry.Project, entry.Message)
		}
		return nil
	},
}

var consoleClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear ingested browser console logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		resp, err := client.ClearConsoleLogs(consolePort, consoleProj)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d browser log entries\n", resp.Removed)
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Shut down the supervisor",
	Long: `Shut down the supervisor. Managed servers receive a termination
signal; anything still alive is reattached by the next supervisor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)
		if err := client.Shutdown(); err != nil {
			return err
		}
		fmt.Println("Shutdown initiated")
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	serversCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	startCmd.Flags().StringVar(&startCommand, "command", constants.DefaultServerCommand, "Command to run")
	startCmd.Flags().StringVar(&startCwd, "cwd", "", "Working directory")
	startCmd.Flags().IntVar(&startPort, "port", constants.DefaultServerPort, "Expected port")

	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill instead of graceful termination")

	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", constants.DefaultLogLines, "Number of lines")

	consoleCmd.Flags().StringVar(&consolePort, "port", "", "Filter by port")
	consoleCmd.Flags().StringVar(&consoleProj, "project", "", "Filter by project")
	consoleCmd.Flags().StringVar(&consoleLevel, "level", "", "Comma-separated levels (log,warn,error,info,debug)")
	consoleCmd.Flags().IntVar(&consoleLimit, "limit", 0, "Max entries")
	consoleCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	consoleClearCmd.Flags().StringVar(&consolePort, "port", "", "Clear entries for this port")
	consoleClearCmd.Flags().StringVar(&consoleProj, "project", "", "Clear entries for this project")
	consoleCmd.AddCommand(consoleClearCmd)

	rootCmd.AddCommand(statusCmd, serversCmd, startCmd, stopCmd, restartCmd, logsCmd, consoleCmd, downCmd)
}

// printServerTable prints servers in a tab-aligned table
func printServerTable(servers []api.ServerResponse) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tPID\tPORT\tUPTIME\tREATTACHED")
	fmt.Fprintln(w, "----\t------\t---\t----\t------\t----------")
	for _, s := range servers {
		uptime := "-"
		if s.Status == "running" {
			uptime = formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
		}
		reattached := ""
		if s.Reattached {
			reattached = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.Name, s.Status, s.PID, s.Port, uptime, reattached)
	}
	w.Flush()
}

// formatDuration formats a duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

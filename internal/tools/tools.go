// Package tools exposes supervisor and console operations under the tool
// invocation contract: each operation takes a flat key-value argument bag
// with documented defaults and returns a single text payload. Status and
// error conditions come back as readable text, structured results as JSON.
// A caller always receives a response; internal faults are recovered at the
// dispatch boundary and converted to textual error results.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tessland/devmon/internal/config"
	"github.com/tessland/devmon/internal/console"
	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
	"github.com/tessland/devmon/internal/registry"
)

// ErrUnknownTool is returned when no tool matches the requested name
var ErrUnknownTool = errors.New("unknown tool")

// Dispatcher routes tool calls to the registry and the console store
type Dispatcher struct {
	registry *registry.Registry
	console  *console.Store
	envFile  string
	baseDir  string
	handlers map[string]func(context.Context, Args) string
}

// NewDispatcher creates a dispatcher. envFile and baseDir configure the
// shared env file merged into every started server's environment.
func NewDispatcher(reg *registry.Registry, store *console.Store, envFile, baseDir string) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		console:  store,
		envFile:  envFile,
		baseDir:  baseDir,
	}
	d.handlers = map[string]func(context.Context, Args) string{
		"start_dev_server":   d.startDevServer,
		"stop_dev_server":    d.stopDevServer,
		"check_dev_server":   d.checkDevServer,
		"list_dev_servers":   d.listDevServers,
		"get_server_logs":    d.getServerLogs,
		"restart_dev_server": d.restartDevServer,
		"get_browser_logs":   d.getBrowserLogs,
		"clear_browser_logs": d.clearBrowserLogs,
		"browser_log_stats":  d.browserLogStats,
	}
	return d
}

// Names returns the available tool names, sorted
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the named tool. The only error it returns is
// ErrUnknownTool; everything else, including panics inside a handler, comes
// back as the text payload.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args Args) (result string, err error) {
	handler, ok := d.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("Error: internal fault in %s: %v", name, r)
			err = nil
		}
	}()

	if args == nil {
		args = Args{}
	}
	return handler(ctx, args), nil
}

func (d *Dispatcher) startDevServer(ctx context.Context, args Args) string {
	name := args.String("name", constants.DefaultServerName)
	command := args.String("command", constants.DefaultServerCommand)
	cwd := args.String("cwd", "")
	port := args.Int("port", constants.DefaultServerPort)

	env, err := config.LoadServerEnv(d.envFile, args.StringMap("env"), d.baseDir)
	if err != nil {
		return fmt.Sprintf("Error starting server %q: %v", name, err)
	}

	info, err := d.registry.Start(ctx, domain.ServerConfig{
		Name:    name,
		Command: command,
		Cwd:     cwd,
		Port:    port,
		Env:     env,
	})
	switch {
	case errors.Is(err, domain.ErrServerAlreadyRunning):
		return fmt.Sprintf("Server %q is already running on port %d.", name, info.Port)
	case err != nil:
		return fmt.Sprintf("Error starting server %q: %v", name, err)
	}
	return fmt.Sprintf("Started server %q (pid %d) on port %d.", name, info.PID, info.Port)
}

func (d *Dispatcher) stopDevServer(_ context.Context, args Args) string {
	name := args.String("name", constants.DefaultServerName)
	force := args.Bool("force", false)

	info, err := d.registry.Stop(name, force)
	switch {
	case errors.Is(err, domain.ErrServerNotFound):
		return fmt.Sprintf("Server %q not found.", name)
	case errors.Is(err, domain.ErrServerNotRunning):
		return fmt.Sprintf("Server %q is already stopped.", name)
	case err != nil:
		return fmt.Sprintf("Error stopping server %q: %v", name, err)
	}
	return fmt.Sprintf("Stopped server %q (pid %d).", name, info.PID)
}

func (d *Dispatcher) checkDevServer(_ context.Context, args Args) string {
	name := args.String("name", constants.DefaultServerName)
	port := args.Int("port", 0)

	result, err := d.registry.Check(name, port)
	if errors.Is(err, domain.ErrServerNotFound) {
		return fmt.Sprintf("Server %q not found.", name)
	} else if err != nil {
		return fmt.Sprintf("Error checking server %q: %v", name, err)
	}
	return toJSON(result)
}

func (d *Dispatcher) listDevServers(_ context.Context, _ Args) string {
	servers := d.registry.List()
	if len(servers) == 0 {
		return "No servers registered."
	}
	return toJSON(servers)
}

func (d *Dispatcher) getServerLogs(_ context.Context, args Args) string {
	name := args.String("name", constants.DefaultServerName)
	lines := args.Int("lines", constants.DefaultLogLines)

	logs, err := d.registry.Logs(name, lines)
	if errors.Is(err, domain.ErrServerNotFound) {
		return fmt.Sprintf("Server %q not found.", name)
	} else if err != nil {
		return fmt.Sprintf("Error reading logs for server %q: %v", name, err)
	}
	if logs == "" {
		return fmt.Sprintf("No logs for server %q.", name)
	}
	return logs
}

func (d *Dispatcher) restartDevServer(ctx context.Context, args Args) string {
	name := args.String("name", constants.DefaultServerName)

	info, err := d.registry.Restart(ctx, name)
	switch {
	case errors.Is(err, domain.ErrServerNotFound):
		return fmt.Sprintf("Server %q not found.", name)
	case err != nil:
		return fmt.Sprintf("Error restarting server %q: %v", name, err)
	}
	return fmt.Sprintf("Restarted server %q (pid %d) on port %d.", name, info.PID, info.Port)
}

func (d *Dispatcher) getBrowserLogs(_ context.Context, args Args) string {
	filter := domain.ConsoleFilter{
		Port:    args.String("port", ""),
		Project: args.String("project", ""),
		Since:   args.Time("since"),
		Until:   args.Time("until"),
		Limit:   args.Int("limit", constants.DefaultConsoleQueryLimit),
	}
	if levels := args.String("level", ""); levels != "" {
		for _, l := range strings.Split(levels, ",") {
			filter.Levels = append(filter.Levels, domain.LogLevel(strings.TrimSpace(l)))
		}
	}

	entries := d.console.Get(filter)
	if len(entries) == 0 {
		return "No browser logs match the filter."
	}
	return toJSON(entries)
}

func (d *Dispatcher) clearBrowserLogs(_ context.Context, args Args) string {
	port := args.String("port", "")
	project := args.String("project", "")

	removed := d.console.Clear(port, project)
	return fmt.Sprintf("Cleared %d browser log entries.", removed)
}

func (d *Dispatcher) browserLogStats(_ context.Context, _ Args) string {
	return toJSON(d.console.Stats())
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error encoding result: %v", err)
	}
	return string(data)
}

package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessland/devmon/internal/console"
	"github.com/tessland/devmon/internal/domain"
	"github.com/tessland/devmon/internal/registry"
	"github.com/tessland/devmon/internal/state"
)

func testDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store := state.NewStore(filepath.Join(t.TempDir(), "devmon.state.json"))
	reg := registry.New(nil, store, registry.Config{
		BufferLines:   100,
		ChunkLimit:    1000,
		ConfirmWindow: 100 * time.Millisecond,
		GracePeriod:   100 * time.Millisecond,
		SettleDelay:   10 * time.Millisecond,
		ProbeTimeout:  100 * time.Millisecond,
	})
	return NewDispatcher(reg, console.NewStore(console.DefaultStoreConfig()), "", "")
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := testDispatcher(t)
	_, err := d.Dispatch(context.Background(), "no_such_tool", Args{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDispatch_Names(t *testing.T) {
	d := testDispatcher(t)
	names := d.Names()
	assert.Contains(t, names, "start_dev_server")
	assert.Contains(t, names, "get_browser_logs")
	assert.Len(t, names, 9)
}

func TestTools_ServerLifecycle(t *testing.T) {
	d := testDispatcher(t)
	ctx := context.Background()

	// Real process: sleep outlives the confirmation window.
	out, err := d.Dispatch(ctx, "start_dev_server", Args{
		"name":    "web",
		"command": "sleep 100",
		"port":    float64(3000), // JSON numbers arrive as float64
	})
	require.NoError(t, err)
	assert.Contains(t, out, `Started server "web"`)
	assert.Contains(t, out, "port 3000")

	out, err = d.Dispatch(ctx, "start_dev_server", Args{
		"name":    "web",
		"command": "sleep 100",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "already running on port 3000")

	out, err = d.Dispatch(ctx, "list_dev_servers", Args{})
	require.NoError(t, err)
	var servers []domain.ServerInfo
	require.NoError(t, json.Unmarshal([]byte(out), &servers))
	require.Len(t, servers, 1)
	assert.Equal(t, domain.ServerStateRunning, servers[0].State)

	out, err = d.Dispatch(ctx, "check_dev_server", Args{"name": "web"})
	require.NoError(t, err)
	var check registry.CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &check))
	assert.Equal(t, "web", check.Server.Name)
	assert.False(t, check.PortResponding)

	out, err = d.Dispatch(ctx, "stop_dev_server", Args{"name": "web"})
	require.NoError(t, err)
	assert.Contains(t, out, `Stopped server "web"`)

	out, err = d.Dispatch(ctx, "stop_dev_server", Args{"name": "web"})
	require.NoError(t, err)
	assert.Contains(t, out, "already stopped")

	out, err = d.Dispatch(ctx, "get_server_logs", Args{"name": "web"})
	require.NoError(t, err)
	assert.Contains(t, out, "[STOP]")
}

func TestTools_StartFailure(t *testing.T) {
	d := testDispatcher(t)

	out, err := d.Dispatch(context.Background(), "start_dev_server", Args{
		"name":    "bad",
		"command": "definitely-not-a-real-binary-12345",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `Error starting server "bad"`)
}

func TestTools_NotFoundResponses(t *testing.T) {
	d := testDispatcher(t)
	ctx := context.Background()

	for _, tool := range []string{"stop_dev_server", "check_dev_server", "get_server_logs", "restart_dev_server"} {
		out, err := d.Dispatch(ctx, tool, Args{"name": "ghost"})
		require.NoError(t, err, tool)
		assert.Contains(t, out, `Server "ghost" not found.`, tool)
	}
}

func TestTools_ListEmpty(t *testing.T) {
	d := testDispatcher(t)
	out, err := d.Dispatch(context.Background(), "list_dev_servers", Args{})
	require.NoError(t, err)
	assert.Equal(t, "No servers registered.", out)
}

func TestTools_BrowserLogs(t *testing.T) {
	d := testDispatcher(t)
	ctx := context.Background()

	d.console.Add(domain.ConsoleEntry{
		Timestamp: time.Now(),
		Level:     domain.LevelError,
		Message:   "boom",
		URL:       "http://localhost:3000/x",
	})
	d.console.Add(domain.ConsoleEntry{
		Timestamp: time.Now(),
		Level:     domain.LevelLog,
		Message:   "fine",
		URL:       "http://localhost:4000/y",
	})

	out, err := d.Dispatch(ctx, "get_browser_logs", Args{"port": "3000", "level": "error"})
	require.NoError(t, err)
	var entries []domain.ConsoleEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, "localhost:3000", entries[0].Project)

	out, err = d.Dispatch(ctx, "get_browser_logs", Args{"port": "5000"})
	require.NoError(t, err)
	assert.Equal(t, "No browser logs match the filter.", out)

	out, err = d.Dispatch(ctx, "browser_log_stats", Args{})
	require.NoError(t, err)
	var stats domain.ConsoleStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalEntries)

	out, err = d.Dispatch(ctx, "clear_browser_logs", Args{"port": "3000"})
	require.NoError(t, err)
	assert.Equal(t, "Cleared 1 browser log entries.", out)
}

func TestArgs_Accessors(t *testing.T) {
	args := Args{
		"name":  "web",
		"port":  float64(3001),
		"lines": "25",
		"force": "true",
		"env":   map[string]any{"NODE_ENV": "test", "num": 3},
		"since": "2026-01-02T15:04:05Z",
	}

	assert.Equal(t, "web", args.String("name", "default"))
	assert.Equal(t, "default", args.String("missing", "default"))
	assert.Equal(t, 3001, args.Int("port", 3000))
	assert.Equal(t, 25, args.Int("lines", 50))
	assert.Equal(t, 50, args.Int("missing", 50))
	assert.True(t, args.Bool("force", false))
	assert.False(t, args.Bool("missing", false))
	assert.Equal(t, map[string]string{"NODE_ENV": "test"}, args.StringMap("env"))
	assert.Equal(t, 2026, args.Time("since").Year())
	assert.True(t, args.Time("missing").IsZero())
}

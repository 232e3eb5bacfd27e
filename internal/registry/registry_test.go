package registry

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessland/devmon/internal/domain"
	"github.com/tessland/devmon/internal/state"
)

// fakeHandle simulates a spawned process without touching the OS
type fakeHandle struct {
	pid    int
	stdout string
	stderr string

	mu      sync.Mutex
	exited  chan struct{}
	signals []os.Signal
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, exited: make(chan struct{})}
}

func (h *fakeHandle) exit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.exited:
	default:
		close(h.exited)
	}
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()
	h.exit()
	return nil
}

func (h *fakeHandle) Alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

func (h *fakeHandle) Wait() error {
	<-h.exited
	return nil
}

func (h *fakeHandle) Stdout() io.Reader { return strings.NewReader(h.stdout) }
func (h *fakeHandle) Stderr() io.Reader { return strings.NewReader(h.stderr) }

func (h *fakeHandle) signalCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.signals)
}

// fakeSpawner hands out fakeHandles and records spawn calls
type fakeSpawner struct {
	mu       sync.Mutex
	nextPID  int
	spawnErr error
	exitFast bool
	stdout   string
	handles  []*fakeHandle
}

func (s *fakeSpawner) Spawn(ctx context.Context, config domain.ServerConfig) (StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	s.nextPID++
	h := newFakeHandle(1000 + s.nextPID)
	h.stdout = s.stdout
	s.handles = append(s.handles, h)
	if s.exitFast {
		h.exit()
	}
	return h, nil
}

func (s *fakeSpawner) spawnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *fakeSpawner) lastHandle() *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return nil
	}
	return s.handles[len(s.handles)-1]
}

func testConfig() Config {
	return Config{
		BufferLines:   100,
		ChunkLimit:    1000,
		ConfirmWindow: 50 * time.Millisecond,
		GracePeriod:   50 * time.Millisecond,
		SettleDelay:   10 * time.Millisecond,
		ProbeTimeout:  100 * time.Millisecond,
	}
}

func testRegistry(t *testing.T, spawner Spawner) *Registry {
	t.Helper()
	store := state.NewStore(filepath.Join(t.TempDir(), "devmon.state.json"))
	return New(spawner, store, testConfig())
}

func webConfig() domain.ServerConfig {
	return domain.ServerConfig{Name: "web", Command: "sleep 100", Port: 3000}
}

// eventually polls until the condition holds or the deadline passes
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never became true: %s", msg)
}

func TestRegistry_StartRunning(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	info, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStateRunning, info.State)
	assert.Equal(t, "web", info.Name)
	assert.Equal(t, 3000, info.Port)
	assert.NotZero(t, info.PID)
}

func TestRegistry_StartImmediateExitIsError(t *testing.T) {
	spawner := &fakeSpawner{exitFast: true}
	r := testRegistry(t, spawner)

	info, err := r.Start(context.Background(), webConfig())
	require.Error(t, err)
	assert.Equal(t, domain.ServerStateError, info.State)

	// The entry remains queryable in its error state.
	servers := r.List()
	require.Len(t, servers, 1)
	assert.Equal(t, domain.ServerStateError, servers[0].State)
}

func TestRegistry_StartSpawnFailure(t *testing.T) {
	spawner := &fakeSpawner{spawnErr: fmt.Errorf("executable not found")}
	r := testRegistry(t, spawner)

	info, err := r.Start(context.Background(), webConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable not found")
	assert.Equal(t, domain.ServerStateError, info.State)

	logs, err := r.Logs("web", 10)
	require.NoError(t, err)
	assert.Contains(t, logs, "[ERROR] failed to start")
}

func TestRegistry_StartAlreadyRunning(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	info, err := r.Start(context.Background(), webConfig())
	assert.ErrorIs(t, err, domain.ErrServerAlreadyRunning)
	// The registry is unchanged: no second process was spawned, and the
	// response carries the existing entry's port.
	assert.Equal(t, 1, spawner.spawnCount())
	assert.Equal(t, 3000, info.Port)
}

func TestRegistry_StartReplacesStoppedEntry(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)
	_, err = r.Stop("web", false)
	require.NoError(t, err)

	info, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStateRunning, info.State)
	assert.Equal(t, 2, spawner.spawnCount())
}

func TestRegistry_StopMarksStoppedAndLogs(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	info, err := r.Stop("web", false)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStateStopped, info.State)

	logs, err := r.Logs("web", 10)
	require.NoError(t, err)
	assert.Contains(t, logs, "[STOP] stopped manually (force=false)")

	// list always reports stopped afterwards
	servers := r.List()
	require.Len(t, servers, 1)
	assert.Equal(t, domain.ServerStateStopped, servers[0].State)
}

func TestRegistry_StopIdempotent(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	_, err = r.Stop("web", false)
	require.NoError(t, err)

	// Second stop reports already stopped, it does not fail hard.
	info, err := r.Stop("web", false)
	assert.ErrorIs(t, err, domain.ErrServerNotRunning)
	assert.Equal(t, domain.ServerStateStopped, info.State)
}

func TestRegistry_StopUnknown(t *testing.T) {
	r := testRegistry(t, &fakeSpawner{})
	_, err := r.Stop("ghost", false)
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestRegistry_StopForceUsesKill(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	_, err = r.Stop("web", true)
	require.NoError(t, err)

	h := spawner.lastHandle()
	require.NotNil(t, h)
	require.Equal(t, 1, h.signalCount())
	assert.Equal(t, sigkill, h.signals[0])
}

func TestRegistry_ListSelfHealing(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	// Kill the process behind the registry's back.
	spawner.lastHandle().exit()

	eventually(t, func() bool {
		servers := r.List()
		return len(servers) == 1 && servers[0].State == domain.ServerStateStopped
	}, "list corrects stale running status")

	logs, err := r.Logs("web", 20)
	require.NoError(t, err)
	assert.Contains(t, logs, "[EXIT]")
}

func TestRegistry_OutputCapture(t *testing.T) {
	spawner := &fakeSpawner{stdout: "ready\nlistening on 3000\n"}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	eventually(t, func() bool {
		logs, _ := r.Logs("web", 50)
		return strings.Contains(logs, "[STDOUT] ready") &&
			strings.Contains(logs, "[STDOUT] listening on 3000")
	}, "stdout lines are captured and tagged")
}

func TestRegistry_LogsUnknown(t *testing.T) {
	r := testRegistry(t, &fakeSpawner{})
	_, err := r.Logs("ghost", 10)
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestRegistry_Restart(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	first, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	info, err := r.Restart(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStateRunning, info.State)
	assert.NotEqual(t, first.PID, info.PID)
	assert.Equal(t, 3000, info.Port)
	assert.Equal(t, 2, spawner.spawnCount())
}

func TestRegistry_RestartUnknown(t *testing.T) {
	r := testRegistry(t, &fakeSpawner{})
	_, err := r.Restart(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestRegistry_Check(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	t.Run("unknown server", func(t *testing.T) {
		_, err := r.Check("ghost", 0)
		assert.ErrorIs(t, err, domain.ErrServerNotFound)
	})

	t.Run("port not responding", func(t *testing.T) {
		// Nothing listens on the advisory port; the probe is a negative
		// result, not an error.
		result, err := r.Check("web", 0)
		require.NoError(t, err)
		assert.Equal(t, 3000, result.ProbedPort)
		assert.False(t, result.PortResponding)
		assert.Equal(t, domain.ServerStateRunning, result.Server.State)
	})

	t.Run("port responding", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		port := ln.Addr().(*net.TCPAddr).Port

		result, err := r.Check("web", port)
		require.NoError(t, err)
		assert.Equal(t, port, result.ProbedPort)
		assert.True(t, result.PortResponding)
	})
}

func TestRegistry_PersistRestoreRoundTrip(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "devmon.state.json")
	store := state.NewStore(statePath)

	// Persist two entries: one whose PID is alive (this test process) and
	// one whose PID cannot exist.
	snaps := []state.ServerSnapshot{
		{
			Name:      "alive",
			PID:       os.Getpid(),
			Command:   "sleep 100",
			Port:      3000,
			StartTime: time.Now().Add(-time.Minute),
			Status:    domain.ServerStateRunning,
			Logs:      []string{"[STDOUT] ready"},
		},
		{
			Name:    "dead",
			PID:     99999999,
			Command: "sleep 100",
			Port:    4000,
			Status:  domain.ServerStateRunning,
		},
		{
			// No resolvable PID: dropped silently.
			Name:    "ghost",
			PID:     0,
			Command: "sleep 100",
		},
	}
	require.NoError(t, store.Save(snaps))

	r := New(&fakeSpawner{}, store, testConfig())
	restored := r.Restore()
	assert.Equal(t, 2, restored)

	servers := r.List()
	require.Len(t, servers, 2)

	byName := map[string]domain.ServerInfo{}
	for _, s := range servers {
		byName[s.Name] = s
	}

	assert.Equal(t, domain.ServerStateRunning, byName["alive"].State)
	assert.True(t, byName["alive"].Reattached)
	assert.Equal(t, os.Getpid(), byName["alive"].PID)

	assert.Equal(t, domain.ServerStateStopped, byName["dead"].State)
	assert.True(t, byName["dead"].Reattached)

	_, hasGhost := byName["ghost"]
	assert.False(t, hasGhost)

	// Recovered entries keep their persisted trailing log lines.
	logs, err := r.Logs("alive", 10)
	require.NoError(t, err)
	assert.Contains(t, logs, "[STDOUT] ready")
	assert.Contains(t, logs, "[SYSTEM] recovered from saved state")
}

func TestRegistry_PersistWritesStateFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "devmon.state.json")
	store := state.NewStore(statePath)
	r := New(&fakeSpawner{}, store, testConfig())

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	snaps, err := store.Load()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "web", snaps[0].Name)
	assert.Equal(t, domain.ServerStateRunning, snaps[0].Status)
	assert.Equal(t, "sleep 100", snaps[0].Command)
}

func TestRegistry_Shutdown(t *testing.T) {
	spawner := &fakeSpawner{}
	statePath := filepath.Join(t.TempDir(), "devmon.state.json")
	store := state.NewStore(statePath)
	r := New(spawner, store, testConfig())

	_, err := r.Start(context.Background(), webConfig())
	require.NoError(t, err)

	r.Shutdown()

	h := spawner.lastHandle()
	require.NotNil(t, h)
	assert.GreaterOrEqual(t, h.signalCount(), 1)

	snaps, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestRegistry_DefaultName(t *testing.T) {
	spawner := &fakeSpawner{}
	r := testRegistry(t, spawner)

	info, err := r.Start(context.Background(), domain.ServerConfig{Command: "sleep 100", Port: 3000})
	require.NoError(t, err)
	assert.Equal(t, "default", info.Name)
}

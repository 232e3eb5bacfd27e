// Package registry owns the process registry: the mapping from logical
// dev-server name to its handle, status, configuration, and bounded log
// buffer. It is the single source of truth for supervisor operations.
package registry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
	"github.com/tessland/devmon/internal/logbuf"
	"github.com/tessland/devmon/internal/state"
)

// Config holds registry tuning knobs
type Config struct {
	// BufferLines and ChunkLimit size each server's bounded log buffer
	BufferLines int
	ChunkLimit  int
	// ConfirmWindow is how long start races "still alive" against "exited early"
	ConfirmWindow time.Duration
	// GracePeriod is how long stop waits after signalling
	GracePeriod time.Duration
	// SettleDelay is the pause between stop and start during restart
	SettleDelay time.Duration
	// ProbeTimeout bounds the TCP port liveness probe
	ProbeTimeout time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{
		BufferLines:   constants.DefaultLogBufferLines,
		ChunkLimit:    constants.DefaultLogChunkLimit,
		ConfirmWindow: constants.StartConfirmWindow,
		GracePeriod:   constants.StopGracePeriod,
		SettleDelay:   constants.RestartSettleDelay,
		ProbeTimeout:  constants.PortProbeTimeout,
	}
}

// managedServer is one registry entry. All fields except logs are guarded by
// the registry mutex; the buffer carries its own lock because output reader
// goroutines append concurrently with reads.
type managedServer struct {
	config     domain.ServerConfig
	handle     Handle
	state      domain.ServerState
	startedAt  time.Time
	logs       *logbuf.Buffer
	done       chan struct{} // closed when exit is observed; nil for reattached handles
	stopping   bool
	reattached bool
}

// Registry manages the set of named dev servers
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*managedServer
	spawner Spawner
	store   *state.Store
	config  Config
}

// New creates a registry. A nil spawner selects the real ExecSpawner and a
// nil store selects the default per-user state file.
func New(spawner Spawner, store *state.Store, config Config) *Registry {
	if spawner == nil {
		spawner = NewExecSpawner()
	}
	if store == nil {
		store = state.NewStore("")
	}
	return &Registry{
		servers: make(map[string]*managedServer),
		spawner: spawner,
		store:   store,
		config:  config,
	}
}

// CheckResult is the snapshot returned by Check
type CheckResult struct {
	Server         domain.ServerInfo `json:"server"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	ProbedPort     int               `json:"probed_port"`
	PortResponding bool              `json:"port_responding"`
	RecentLogs     []string          `json:"recent_logs,omitempty"`
}

// Start spawns a new server under config.Name. A name already in starting or
// running state is rejected with ErrServerAlreadyRunning and the existing
// entry's info; a stopped or errored name is replaced. The call blocks for at
// most the confirmation window: a process that exits inside it fails the
// start, anything that outlives it is reported running.
func (r *Registry) Start(ctx context.Context, config domain.ServerConfig) (domain.ServerInfo, error) {
	if config.Name == "" {
		config.Name = constants.DefaultServerName
	}

	r.mu.Lock()
	if existing, ok := r.servers[config.Name]; ok && existing.state.IsActive() {
		info := r.infoLocked(existing)
		r.mu.Unlock()
		return info, domain.ErrServerAlreadyRunning
	}

	ms := &managedServer{
		config: config,
		state:  domain.ServerStateStarting,
		logs:   logbuf.New(r.config.BufferLines, r.config.ChunkLimit),
		done:   make(chan struct{}),
	}
	r.servers[config.Name] = ms
	r.mu.Unlock()

	handle, err := r.spawner.Spawn(ctx, config)
	if err != nil {
		r.mu.Lock()
		ms.state = domain.ServerStateError
		ms.logs.Append("[ERROR] failed to start: " + err.Error())
		info := r.infoLocked(ms)
		r.mu.Unlock()
		r.persist()
		return info, fmt.Errorf("starting server %q: %w", config.Name, err)
	}

	r.mu.Lock()
	ms.handle = handle
	ms.startedAt = time.Now()
	r.mu.Unlock()

	go r.readOutput(ms, handle.Stdout(), "[STDOUT]")
	go r.readOutput(ms, handle.Stderr(), "[STDERR]")
	go r.monitor(ms, handle)

	// Startup confirmation window: catch bad executables and immediate
	// crashes without blocking for the server's whole lifetime.
	select {
	case <-ms.done:
		r.mu.Lock()
		info := r.infoLocked(ms)
		r.mu.Unlock()
		r.persist()
		return info, fmt.Errorf("server %q exited during startup", config.Name)
	case <-time.After(r.config.ConfirmWindow):
	}

	r.mu.Lock()
	if ms.state == domain.ServerStateStarting {
		ms.state = domain.ServerStateRunning
	}
	info := r.infoLocked(ms)
	r.mu.Unlock()
	r.persist()
	return info, nil
}

// Stop signals the server and marks it stopped. The mark is unconditional:
// stop is best effort, not a guarantee that the process died within the
// grace period.
func (r *Registry) Stop(name string, force bool) (domain.ServerInfo, error) {
	r.mu.Lock()
	ms, ok := r.servers[name]
	if !ok {
		r.mu.Unlock()
		return domain.ServerInfo{}, domain.ErrServerNotFound
	}
	if !ms.state.IsActive() {
		info := r.infoLocked(ms)
		r.mu.Unlock()
		return info, domain.ErrServerNotRunning
	}
	ms.stopping = true
	handle := ms.handle
	done := ms.done
	r.mu.Unlock()

	sig := sigterm
	if force {
		sig = sigkill
	}
	if handle != nil {
		if err := handle.Signal(sig); err != nil {
			ms.logs.Append("[STOP] signal failed (process may have already exited): " + err.Error())
		}
	}

	// Fixed grace period. A live handle reports exit and ends the wait
	// early; a reattached handle cannot, so the full period elapses.
	if done != nil {
		select {
		case <-done:
		case <-time.After(r.config.GracePeriod):
		}
	} else {
		time.Sleep(r.config.GracePeriod)
	}

	r.mu.Lock()
	ms.state = domain.ServerStateStopped
	ms.stopping = false
	ms.logs.Append(fmt.Sprintf("[STOP] stopped manually (force=%t)", force))
	info := r.infoLocked(ms)
	r.mu.Unlock()
	r.persist()
	return info, nil
}

// Check returns a snapshot of the server plus a TCP liveness probe of the
// target port. Probe failure is reported as not responding, never as an
// operation failure.
func (r *Registry) Check(name string, port int) (CheckResult, error) {
	r.mu.RLock()
	ms, ok := r.servers[name]
	if !ok {
		r.mu.RUnlock()
		return CheckResult{}, domain.ErrServerNotFound
	}
	info := r.infoLocked(ms)
	logs := ms.logs
	r.mu.RUnlock()

	if port <= 0 {
		port = info.Port
	}

	return CheckResult{
		Server:         info,
		UptimeSeconds:  info.UptimeSeconds(),
		ProbedPort:     port,
		PortResponding: PortResponding(port, r.config.ProbeTimeout),
		RecentLogs:     logs.TailStrings(10),
	}, nil
}

// List returns all entries sorted by name. Liveness is re-validated against
// each handle directly: an entry believed active whose process is gone is
// corrected to stopped before the result is returned. This self-healing read
// is how externally-killed servers are detected.
func (r *Registry) List() []domain.ServerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.ServerInfo, 0, len(r.servers))
	for _, ms := range r.servers {
		if ms.state.IsActive() && !ms.stopping && ms.handle != nil && !ms.handle.Alive() {
			ms.state = domain.ServerStateStopped
			ms.logs.Append("[EXIT] process no longer alive (discovered during list)")
		}
		result = append(result, r.infoLocked(ms))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Logs returns the last n buffered lines joined by newlines. An empty string
// means the buffer holds nothing yet.
func (r *Registry) Logs(name string, lines int) (string, error) {
	r.mu.RLock()
	ms, ok := r.servers[name]
	r.mu.RUnlock()

	if !ok {
		return "", domain.ErrServerNotFound
	}
	if lines <= 0 {
		lines = constants.DefaultLogLines
	}
	if lines > constants.MaxLogLines {
		lines = constants.MaxLogLines
	}
	return ms.logs.TailText(lines), nil
}

// Restart stops the server, waits a short settle delay, then starts it again
// with the identical configuration. An unknown name is reported as not found
// rather than silently starting fresh.
func (r *Registry) Restart(ctx context.Context, name string) (domain.ServerInfo, error) {
	r.mu.RLock()
	ms, ok := r.servers[name]
	var config domain.ServerConfig
	if ok {
		config = ms.config
	}
	r.mu.RUnlock()

	if !ok {
		return domain.ServerInfo{}, domain.ErrServerNotFound
	}

	if _, err := r.Stop(name, false); err != nil && !errors.Is(err, domain.ErrServerNotRunning) {
		return domain.ServerInfo{}, err
	}

	time.Sleep(r.config.SettleDelay)

	return r.Start(ctx, config)
}

// Restore loads persisted state and reattaches to recovered PIDs. Entries
// whose PID is unusable are dropped silently; the rest come back with a
// degraded handle, running if the process is still alive and stopped
// otherwise. Returns the number of entries restored.
func (r *Registry) Restore() int {
	snapshots, err := r.store.Load()
	if err != nil {
		log.Printf("warning: loading saved state: %v", err)
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, snap := range snapshots {
		if snap.Name == "" || snap.PID <= 0 {
			continue
		}

		handle := Reattach(snap.PID)
		st := domain.ServerStateStopped
		if handle.Alive() {
			st = domain.ServerStateRunning
		}

		ms := &managedServer{
			config: domain.ServerConfig{
				Name:    snap.Name,
				Command: snap.Command,
				Cwd:     snap.Cwd,
				Port:    snap.Port,
			},
			handle:     handle,
			state:      st,
			startedAt:  snap.StartTime,
			logs:       logbuf.New(r.config.BufferLines, r.config.ChunkLimit),
			reattached: true,
		}
		for _, line := range snap.Logs {
			ms.logs.Append(line)
		}
		ms.logs.Append(fmt.Sprintf("[SYSTEM] recovered from saved state (pid %d, %s); live output is not available", snap.PID, st))

		r.servers[snap.Name] = ms
		restored++
	}
	return restored
}

// Shutdown is the best-effort cleanup pass run on supervisor termination:
// every entry still starting or running gets a graceful termination signal,
// then final state is persisted. Exits are not awaited.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for _, ms := range r.servers {
		if ms.state.IsActive() && ms.handle != nil {
			_ = ms.handle.Signal(sigterm)
		}
	}
	r.mu.Unlock()
	r.persist()
}

// StatePath returns the path of the persisted state file
func (r *Registry) StatePath() string {
	return r.store.Path()
}

// monitor observes process exit and applies the resulting state transition.
// Stop owns the transition while a manual stop is in flight.
func (r *Registry) monitor(ms *managedServer, handle StreamHandle) {
	err := handle.Wait()
	code := exitCode(err)

	r.mu.Lock()
	switch {
	case ms.stopping:
		// Stop marks the entry and writes the [STOP] line itself.
	case ms.state == domain.ServerStateStarting:
		ms.state = domain.ServerStateError
		ms.logs.Append(fmt.Sprintf("[ERROR] exited during startup (code %d)", code))
	case ms.state.IsActive():
		ms.state = domain.ServerStateStopped
		ms.logs.Append(fmt.Sprintf("[EXIT] process exited (code %d)", code))
	}
	r.mu.Unlock()

	close(ms.done)
}

// readOutput drains one output stream into the server's bounded buffer
func (r *Registry) readOutput(ms *managedServer, stream io.Reader, tag string) {
	if stream == nil {
		return
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, constants.ScannerBufferSize), constants.ScannerMaxBufferSize)

	for scanner.Scan() {
		ms.logs.Append(tag + " " + scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		ms.logs.Append("[ERROR] output reader error: " + err.Error())
	}
}

// persist writes every entry with a resolved PID to the state file. Failures
// are logged to the operator diagnostic stream and swallowed; they never
// surface to the caller of the triggering operation.
func (r *Registry) persist() {
	r.mu.RLock()
	snapshots := make([]state.ServerSnapshot, 0, len(r.servers))
	for name, ms := range r.servers {
		pid := 0
		if ms.handle != nil {
			pid = ms.handle.PID()
		}
		if pid <= 0 {
			continue
		}
		snapshots = append(snapshots, state.ServerSnapshot{
			Name:      name,
			PID:       pid,
			Command:   ms.config.Command,
			Cwd:       ms.config.Cwd,
			Port:      ms.config.Port,
			StartTime: ms.startedAt,
			Status:    ms.state,
			Logs:      ms.logs.TailStrings(constants.PersistedLogLines),
		})
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})

	if err := r.store.Save(snapshots); err != nil {
		log.Printf("warning: persisting state: %v", err)
	}
}

// infoLocked builds a snapshot. Caller must hold r.mu.
func (r *Registry) infoLocked(ms *managedServer) domain.ServerInfo {
	info := domain.ServerInfo{
		Name:       ms.config.Name,
		State:      ms.state,
		Port:       ms.config.Port,
		Command:    ms.config.Command,
		Cwd:        ms.config.Cwd,
		StartedAt:  ms.startedAt,
		Reattached: ms.reattached,
	}
	if ms.handle != nil {
		info.PID = ms.handle.PID()
	}
	return info
}

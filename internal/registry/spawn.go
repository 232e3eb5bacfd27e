package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/tessland/devmon/internal/domain"
)

// Spawner creates and starts dev-server processes. It exists as an interface
// so registry tests can substitute a fake without touching the OS.
type Spawner interface {
	Spawn(ctx context.Context, config domain.ServerConfig) (StreamHandle, error)
}

// ExecSpawner implements Spawner using os/exec.
//
// The command string is split on whitespace with no quoting support, so
// arguments containing spaces are not representable. Existing callers depend
// on this parsing; see DESIGN.md before changing it.
type ExecSpawner struct{}

// NewExecSpawner creates a new ExecSpawner
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{}
}

// Spawn starts a new dev-server process. The context is only the caller's
// request scope; the spawned process must outlive it, so it is deliberately
// not bound to the command.
func (r *ExecSpawner) Spawn(ctx context.Context, config domain.ServerConfig) (StreamHandle, error) {
	argv := strings.Fields(config.Command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = config.Cwd

	// Base environment overridden by the supplied variables
	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	// Set process group so we can kill all children
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	return &execHandle{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// execHandle wraps exec.Cmd to implement StreamHandle
type execHandle struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (h *execHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *execHandle) Wait() error {
	return h.cmd.Wait()
}

func (h *execHandle) Signal(sig os.Signal) error {
	if h.cmd.Process == nil {
		return nil
	}
	return signalGroup(h.cmd.Process.Pid, sig)
}

func (h *execHandle) Alive() bool {
	if h.cmd.Process == nil {
		return false
	}
	if h.cmd.ProcessState != nil {
		return false // already waited on
	}
	return pidAlive(h.cmd.Process.Pid)
}

func (h *execHandle) Stdout() io.Reader {
	return h.stdout
}

func (h *execHandle) Stderr() io.Reader {
	return h.stderr
}

// exitCode extracts the exit code from a Wait error. Signal termination maps
// to the negative signal number, matching the convention used in log lines.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return -int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}

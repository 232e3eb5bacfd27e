// Package daemon handles detaching the supervisor from the terminal and the
// runtime files (PID lock, state, log) that client commands use to discover
// a running instance.
package daemon

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
)

// DaemonEnvVar marks the re-executed daemon child process
const DaemonEnvVar = "_DEVMON_DAEMON"

// IsDaemonChild returns true if this process is a daemon child process
func IsDaemonChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// Daemonize re-executes the current process detached from the terminal.
//
// In the parent process this calls os.Exit(0) and never returns. Only the
// child continues execution, where IsDaemonChild() reports true.
//
// The parent exits before the child confirms initialization. Client commands
// tolerate this: they read the runtime state file and retry, and the window
// is small because the child writes its state immediately.
func Daemonize() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}

	cmd := exec.Command(executable, os.Args[1:]...)
	cmd.Env = append(os.Environ(), DaemonEnvVar+"=1")

	// New session detaches the child from the controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// The daemon manages its own logging.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting daemon process: %w", err)
	}

	fmt.Printf("devmon started (pid %d)\n", cmd.Process.Pid)
	os.Exit(0)

	return nil // unreachable
}

// SetupLogging redirects stdout and stderr to the daemon log file.
// Should be called early in the daemon child process.
func SetupLogging(dir string) (*os.File, error) {
	if err := EnsureRuntimeDir(dir); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(LogPath(dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	os.Stdout = logFile
	os.Stderr = logFile
	return logFile, nil
}

// FindAvailablePort asks the OS for a free TCP port on the given host
func FindAvailablePort(host string) (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("finding available port: %w", err)
	}
	defer listener.Close()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected address type: %T", listener.Addr())
	}
	return tcpAddr.Port, nil
}

// IsRunning checks whether a supervisor is running for this runtime
// directory. Best effort: the PID file lock is authoritative, the state file
// check covers a supervisor started without the lock.
func IsRunning(dir string) bool {
	if IsLocked(PIDPath(dir)) {
		return true
	}

	state, err := LoadState(dir)
	if err != nil {
		return false
	}
	return ProcessExists(state.PID)
}

// RunningState returns the state of the running supervisor, if any.
// Returns ErrNotRunning when no instance is running.
func RunningState(dir string) (*RuntimeState, error) {
	if !IsRunning(dir) {
		return nil, ErrNotRunning
	}
	return LoadState(dir)
}

// CleanupStaleFiles removes leftover runtime files after a crash. Returns
// ErrAlreadyRunning if the files belong to a live supervisor.
func CleanupStaleFiles(dir string) error {
	if IsLocked(PIDPath(dir)) {
		return ErrAlreadyRunning
	}

	state, err := LoadState(dir)
	if err != nil {
		if err == ErrStateNotFound {
			return nil
		}
		return err
	}

	if ProcessExists(state.PID) {
		return ErrAlreadyRunning
	}
	return CleanupRuntimeDir(dir)
}

package registry

import (
	"io"
	"os"
	"syscall"
)

// Handle is the capability set shared by every managed OS process: send a
// signal, probe liveness. A Handle that can also observe output and exit is
// a StreamHandle.
type Handle interface {
	PID() int
	Signal(sig os.Signal) error
	Alive() bool
}

// StreamHandle is a Handle backed by a freshly spawned process, with piped
// stdout/stderr and a Wait for exit observation. Handles recovered from
// persisted state can never offer this interface: the original pipes are
// gone with the previous supervisor.
type StreamHandle interface {
	Handle
	Wait() error
	Stdout() io.Reader
	Stderr() io.Reader
}

// reattachedHandle is the degraded handle variant constructed from a PID
// recovered from the state file. It preserves kill/liveness capability
// across supervisor restarts and nothing else.
type reattachedHandle struct {
	pid int
}

// Reattach constructs a degraded Handle for a PID recovered from persisted
// state. The PID is not verified here; Alive reports whether it currently
// resolves to a process.
func Reattach(pid int) Handle {
	return &reattachedHandle{pid: pid}
}

func (h *reattachedHandle) PID() int {
	return h.pid
}

func (h *reattachedHandle) Signal(sig os.Signal) error {
	return signalGroup(h.pid, sig)
}

func (h *reattachedHandle) Alive() bool {
	return pidAlive(h.pid)
}

// signalGroup signals the process group led by pid, falling back to the
// single process when the group cannot be resolved. Spawned servers lead
// their own group, so this reaches their children too.
func signalGroup(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		s = syscall.SIGTERM
	}
	if pgid, err := syscall.Getpgid(pid); err == nil {
		return syscall.Kill(-pgid, s)
	}
	return syscall.Kill(pid, s)
}

// pidAlive reports whether pid resolves to a live process using a signal-0
// existence check. EPERM means the process exists but belongs to another
// user, which still counts as alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

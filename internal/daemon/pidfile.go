package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile manages a PID file with an advisory flock. The lock, not the file
// contents, is what prevents two supervisors from sharing a state file.
//
// PIDFile is not safe for concurrent use. Callers must ensure that Create
// and Release are not called concurrently on the same instance.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a new PIDFile manager for the given path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Create creates and locks the PID file, writing the current process's PID.
// Returns ErrPIDFileLocked if another process holds the lock.
func (p *PIDFile) Create() error {
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("opening PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return ErrPIDFileLocked
		}
		return fmt.Errorf("locking PID file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("truncating PID file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("seeking PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("writing PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("syncing PID file: %w", err)
	}

	p.file = f
	return nil
}

// Release unlocks and removes the PID file
func (p *PIDFile) Release() error {
	if p.file == nil {
		return nil
	}

	_ = syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN)
	_ = p.file.Close()
	p.file = nil

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// unlockAndClose unlocks and closes the file without removing it. In daemon
// mode stderr is redirected to the log file, so warnings land there.
func (p *PIDFile) unlockAndClose(f *os.File) {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to unlock PID file: %v\n", err)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close PID file: %v\n", err)
	}
}

// IsLocked checks if the PID file is locked by another process.
// Returns false when the file doesn't exist.
func IsLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err != nil {
		return true
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}

// ReadPID reads the PID from a PID file
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}
	return pid, nil
}

// ProcessExists checks if a process with the given PID exists. EPERM means
// the process exists but belongs to another user.
func ProcessExists(pid int) bool {
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

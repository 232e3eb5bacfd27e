package daemon

import "errors"

var (
	// ErrStateNotFound is returned when no runtime state file exists
	ErrStateNotFound = errors.New("runtime state file not found")
	// ErrAlreadyRunning is returned when a supervisor is already running
	ErrAlreadyRunning = errors.New("devmon is already running")
	// ErrNotRunning is returned when no supervisor is running
	ErrNotRunning = errors.New("devmon is not running")
	// ErrPIDFileLocked is returned when the PID file is locked by another process
	ErrPIDFileLocked = errors.New("PID file is locked by another process")
)

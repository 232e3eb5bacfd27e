package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StateFileName is the name of the runtime state file
	StateFileName = "devmon.state"
	// PIDFileName is the name of the PID file
	PIDFileName = "devmon.pid"
	// LogFileName is the name of the daemon log file
	LogFileName = "devmon.log"
)

// RuntimeState describes a running supervisor so that client commands can
// discover its API address. One supervisor runs per user; the runtime
// directory is keyed by uid, not by working directory.
//
// RuntimeState is not safe for concurrent use. The daemon writes it once at
// startup and clients only read it.
type RuntimeState struct {
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Host       string    `json:"host"`
	StartedAt  time.Time `json:"started_at"`
	ConfigFile string    `json:"config_file,omitempty"`
}

// RuntimeDir returns the directory holding the supervisor's runtime files.
// If dir is non-empty it is used as-is, which tests rely on.
func RuntimeDir(dir string) string {
	if dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("devmon-%d", os.Getuid()))
}

// StatePath returns the full path to the runtime state file
func StatePath(dir string) string {
	return filepath.Join(RuntimeDir(dir), StateFileName)
}

// PIDPath returns the full path to the PID file
func PIDPath(dir string) string {
	return filepath.Join(RuntimeDir(dir), PIDFileName)
}

// LogPath returns the full path to the daemon log file
func LogPath(dir string) string {
	return filepath.Join(RuntimeDir(dir), LogFileName)
}

// EnsureRuntimeDir creates the runtime directory if it doesn't exist
func EnsureRuntimeDir(dir string) error {
	if err := os.MkdirAll(RuntimeDir(dir), 0700); err != nil {
		return fmt.Errorf("creating runtime directory: %w", err)
	}
	return nil
}

// Write validates the state and writes it to the runtime directory
func (s *RuntimeState) Write(dir string) error {
	if s.PID <= 0 {
		return fmt.Errorf("invalid PID: %d", s.PID)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if err := EnsureRuntimeDir(dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling runtime state: %w", err)
	}

	f, err := os.OpenFile(StatePath(dir), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening runtime state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing runtime state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing runtime state file: %w", err)
	}

	return nil
}

// LoadState reads the runtime state from the runtime directory
func LoadState(dir string) (*RuntimeState, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("reading runtime state file: %w", err)
	}

	var state RuntimeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling runtime state: %w", err)
	}

	return &state, nil
}

// RemoveState removes the runtime state file
func RemoveState(dir string) error {
	if err := os.Remove(StatePath(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing runtime state file: %w", err)
	}
	return nil
}

// CleanupRuntimeDir removes the runtime state and PID files. The daemon log
// is kept for debugging.
func CleanupRuntimeDir(dir string) error {
	if err := RemoveState(dir); err != nil {
		return err
	}
	if err := os.Remove(PIDPath(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

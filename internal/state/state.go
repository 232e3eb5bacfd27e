// Package state persists registry bookkeeping to a side-channel file so a
// restarted supervisor can recover its entries and reattach to children that
// are still alive. The file is advisory: a missing or corrupt file is the
// same as no prior state, and persistence failures never propagate to the
// operation that triggered them.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tessland/devmon/internal/domain"
)

// ServerSnapshot is one persisted registry entry. Only entries with a
// resolved PID are written; live pipe handles are not representable and are
// deliberately absent from the schema.
type ServerSnapshot struct {
	Name      string             `json:"name"`
	PID       int                `json:"pid"`
	Command   string             `json:"command"`
	Cwd       string             `json:"cwd,omitempty"`
	Port      int                `json:"port"`
	StartTime time.Time          `json:"start_time"`
	Status    domain.ServerState `json:"status"`
	Logs      []string           `json:"logs,omitempty"`
}

// DefaultPath returns the per-user state file location under the system
// temporary directory. The filename is fixed so successive supervisor runs
// find each other's state.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("devmon-%d.state.json", os.Getuid()))
}

// Store reads and writes the state file at a fixed path.
//
// Store is not safe for use by concurrent supervisors sharing the same path:
// writes are last-writer-wins with no locking. A single supervisor process
// serializes its own writes through the registry.
type Store struct {
	path string
}

// NewStore creates a store for the given path. An empty path selects the
// default per-user location.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// Path returns the state file path
func (s *Store) Path() string {
	return s.path
}

// Save writes the snapshots as a JSON array. The write goes to a temp file
// in the same directory followed by a rename so readers never observe a
// partial file.
func (s *Store) Save(snapshots []ServerSnapshot) error {
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".devmon-state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Load reads the persisted snapshots. A missing or unparseable file yields
// (nil, nil): prior-state recovery is best effort and must never block
// startup. The error return is reserved for conditions worth logging, such
// as a file that exists but cannot be read.
func (s *Store) Load() ([]ServerSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var snapshots []ServerSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		// Unknown or old schema. Treat as absent state rather than failing.
		return nil, nil
	}
	return snapshots, nil
}

// Remove deletes the state file. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

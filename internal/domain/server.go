package domain

import "time"

// ServerState represents the current state of a managed dev server.
// Servers transition through these states during their lifecycle.
type ServerState string

const (
	// ServerStateStarting indicates the server is inside its startup confirmation window
	ServerStateStarting ServerState = "starting"
	// ServerStateRunning indicates the server survived the confirmation window and is running
	ServerStateRunning ServerState = "running"
	// ServerStateStopped indicates the server was stopped or exited on its own
	ServerStateStopped ServerState = "stopped"
	// ServerStateError indicates the server failed to start or crashed
	ServerStateError ServerState = "error"
)

// String returns the string representation of ServerState
func (s ServerState) String() string {
	return string(s)
}

// IsActive returns true while the server occupies its name. Starting a new
// server under an active name is rejected; under an inactive name it replaces
// the old entry.
func (s ServerState) IsActive() bool {
	return s == ServerStateStarting || s == ServerStateRunning
}

// ServerConfig is the immutable configuration captured when a server starts.
// Port is advisory only: it is what the caller claims the server will bind,
// not a verified fact.
type ServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Cwd     string            `json:"cwd,omitempty"`
	Port    int               `json:"port"`
	Env     map[string]string `json:"env,omitempty"`
}

// ServerInfo is a point-in-time snapshot of a managed server
type ServerInfo struct {
	Name      string      `json:"name"`
	State     ServerState `json:"status"`
	PID       int         `json:"pid"`
	Port      int         `json:"port"`
	Command   string      `json:"command"`
	Cwd       string      `json:"cwd,omitempty"`
	StartedAt time.Time   `json:"started_at,omitempty"`
	// Reattached is true when the handle was recovered from persisted state
	// and can no longer supply live output streams
	Reattached bool `json:"reattached,omitempty"`
}

// UptimeSeconds returns the number of seconds the server has been running
func (s ServerInfo) UptimeSeconds() int64 {
	if s.StartedAt.IsZero() {
		return 0
	}
	return int64(time.Since(s.StartedAt).Seconds())
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tessland/devmon/internal/domain"
)

// StatusResponse describes the supervisor itself.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Servers       int    `json:"servers"`
	StateFile     string `json:"state_file"`
}

// ServerResponse is the wire form of a managed dev server.
type ServerResponse struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	PID           int    `json:"pid"`
	Port          int    `json:"port"`
	Command       string `json:"command"`
	Cwd           string `json:"cwd,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Reattached    bool   `json:"reattached"`
}

// ServerListResponse wraps the server listing.
type ServerListResponse struct {
	Servers []ServerResponse `json:"servers"`
	Count   int              `json:"count"`
}

// CheckResponse carries the detailed health view of one server.
type CheckResponse struct {
	Server         ServerResponse `json:"server"`
	ProbedPort     int            `json:"probed_port,omitempty"`
	PortResponding bool           `json:"port_responding"`
	RecentLogs     []string       `json:"recent_logs,omitempty"`
}

// ServerLogsResponse carries a tail of a server's captured output.
type ServerLogsResponse struct {
	Name  string `json:"name"`
	Lines int    `json:"lines"`
	Logs  string `json:"logs"`
}

// StartServerRequest is the body for POST /servers.
type StartServerRequest struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Cwd     string            `json:"cwd,omitempty"`
	Port    int               `json:"port,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ToolListResponse lists the registered tool names.
type ToolListResponse struct {
	Tools []string `json:"tools"`
}

// ToolResponse carries the textual result of a tool invocation.
type ToolResponse struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

// IngestResponse acknowledges a stored browser console entry.
type IngestResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// ConsoleLogsResponse carries queried browser console entries, newest first.
type ConsoleLogsResponse struct {
	Logs  []domain.ConsoleEntry `json:"logs"`
	Count int                   `json:"count"`
}

// ClearResponse reports how many console entries were removed.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// SuccessResponse is a generic acknowledgement.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// toServerResponse converts a domain server info into its wire form.
func toServerResponse(info domain.ServerInfo) ServerResponse {
	return ServerResponse{
		Name:          info.Name,
		Status:        string(info.State),
		PID:           info.PID,
		Port:          info.Port,
		Command:       info.Command,
		Cwd:           info.Cwd,
		UptimeSeconds: info.UptimeSeconds(),
		Reattached:    info.Reattached,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response, mapping known domain errors to
// HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrServerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrServerAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrServerNotRunning):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidLogEntry):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrShutdownInProgress):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Code:  domain.ErrorCode(err),
	})
}

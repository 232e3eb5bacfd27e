package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessland/devmon/internal/console"
	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
	"github.com/tessland/devmon/internal/registry"
	"github.com/tessland/devmon/internal/tools"
)

// Handlers contains the HTTP handlers for the supervisor API. All state is
// held by the registry and the console store; handlers only translate
// between HTTP and those components.
type Handlers struct {
	registry   *registry.Registry
	console    *console.Store
	dispatcher *tools.Dispatcher
	version    string
	startedAt  time.Time
	shutdownFn func()
}

// NewHandlers creates the handler set. shutdownFn is invoked asynchronously
// when POST /shutdown is received; it may be nil.
func NewHandlers(reg *registry.Registry, store *console.Store, dispatcher *tools.Dispatcher, version string, shutdownFn func()) *Handlers {
	return &Handlers{
		registry:   reg,
		console:    store,
		dispatcher: dispatcher,
		version:    version,
		startedAt:  time.Now(),
		shutdownFn: shutdownFn,
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "running",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Servers:       len(h.registry.List()),
		StateFile:     h.registry.StatePath(),
	})
}

// GetServers handles GET /api/v1/servers
func (h *Handlers) GetServers(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.List()
	servers := make([]ServerResponse, 0, len(infos))
	for _, info := range infos {
		servers = append(servers, toServerResponse(info))
	}
	writeJSON(w, http.StatusOK, ServerListResponse{
		Servers: servers,
		Count:   len(servers),
	})
}

// StartServer handles POST /api/v1/servers
func (h *Handlers) StartServer(w http.ResponseWriter, r *http.Request) {
	var req StartServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidConfig, err))
		return
	}
	if req.Name == "" {
		req.Name = constants.DefaultServerName
	}
	if req.Command == "" {
		req.Command = constants.DefaultServerCommand
	}
	if req.Port == 0 {
		req.Port = constants.DefaultServerPort
	}

	info, err := h.registry.Start(r.Context(), domain.ServerConfig{
		Name:    req.Name,
		Command: req.Command,
		Cwd:     req.Cwd,
		Port:    req.Port,
		Env:     req.Env,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServerResponse(info))
}

// GetServer handles GET /api/v1/servers/{name}
func (h *Handlers) GetServer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	port, _ := strconv.Atoi(r.URL.Query().Get("port"))

	result, err := h.registry.Check(name, port)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{
		Server:         toServerResponse(result.Server),
		ProbedPort:     result.ProbedPort,
		PortResponding: result.PortResponding,
		RecentLogs:     result.RecentLogs,
	})
}

// StopServer handles POST /api/v1/servers/{name}/stop
func (h *Handlers) StopServer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force := r.URL.Query().Get("force") == "true"

	info, err := h.registry.Stop(name, force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServerResponse(info))
}

// RestartServer handles POST /api/v1/servers/{name}/restart
func (h *Handlers) RestartServer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	info, err := h.registry.Restart(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServerResponse(info))
}

// GetServerLogs handles GET /api/v1/servers/{name}/logs
func (h *Handlers) GetServerLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	lines, _ := strconv.Atoi(r.URL.Query().Get("lines"))

	logs, err := h.registry.Logs(name, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ServerLogsResponse{
		Name:  name,
		Lines: lines,
		Logs:  logs,
	})
}

// GetTools handles GET /api/v1/tools
func (h *Handlers) GetTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ToolListResponse{Tools: h.dispatcher.Names()})
}

// InvokeTool handles POST /api/v1/tools/{tool}. The body is a flat JSON
// object of tool arguments; an empty body means no arguments.
func (h *Handlers) InvokeTool(w http.ResponseWriter, r *http.Request) {
	tool := chi.URLParam(r, "tool")

	args := tools.Args{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, fmt.Errorf("%w: invalid tool arguments: %v", domain.ErrInvalidConfig, err))
			return
		}
	}

	result, err := h.dispatcher.Dispatch(r.Context(), tool, args)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "TOOL_NOT_FOUND",
		})
		return
	}
	writeJSON(w, http.StatusOK, ToolResponse{Tool: tool, Result: result})
}

// Shutdown handles POST /api/v1/shutdown
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "shutting down",
	})
	if h.shutdownFn != nil {
		go h.shutdownFn()
	}
}

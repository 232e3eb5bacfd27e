package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/domain"
)

// IngestRequest is the body posted by the browser extension for each console
// message. Timestamp accepts either an RFC3339 string or epoch milliseconds.
type IngestRequest struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	URL       string          `json:"url"`
	Port      string          `json:"port,omitempty"`
	Project   string          `json:"project,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
	Stack     string          `json:"stack,omitempty"`
}

// IngestLog handles POST /api/v1/logs. Entries missing any required field
// are rejected before the store is touched.
func (h *Handlers) IngestLog(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidLogEntry, err))
		return
	}

	if len(req.Timestamp) == 0 {
		writeError(w, fmt.Errorf("%w: missing required field: timestamp", domain.ErrInvalidLogEntry))
		return
	}
	if req.Level == "" {
		writeError(w, fmt.Errorf("%w: missing required field: level", domain.ErrInvalidLogEntry))
		return
	}
	if req.Message == "" {
		writeError(w, fmt.Errorf("%w: missing required field: message", domain.ErrInvalidLogEntry))
		return
	}
	if req.URL == "" {
		writeError(w, fmt.Errorf("%w: missing required field: url", domain.ErrInvalidLogEntry))
		return
	}

	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidLogEntry, err))
		return
	}

	level := domain.LogLevel(strings.ToLower(req.Level))
	if !level.IsValid() {
		writeError(w, fmt.Errorf("%w: unknown level %q", domain.ErrInvalidLogEntry, req.Level))
		return
	}

	stored := h.console.Add(domain.ConsoleEntry{
		Timestamp: ts,
		Level:     level,
		Message:   req.Message,
		URL:       req.URL,
		Port:      req.Port,
		Project:   req.Project,
		UserAgent: req.UserAgent,
		Stack:     req.Stack,
	})

	writeJSON(w, http.StatusOK, IngestResponse{Success: true, ID: stored.ID})
}

// parseTimestamp accepts an RFC3339 string or an epoch-milliseconds number.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
		return ts, nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms), nil
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %s", string(raw))
}

// GetConsoleLogs handles GET /api/v1/logs
func (h *Handlers) GetConsoleLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseConsoleFilter(r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err))
		return
	}

	entries := h.console.Get(filter)
	writeJSON(w, http.StatusOK, ConsoleLogsResponse{
		Logs:  entries,
		Count: len(entries),
	})
}

// ClearConsoleLogs handles DELETE /api/v1/logs
func (h *Handlers) ClearConsoleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	removed := h.console.Clear(q.Get("port"), q.Get("project"))
	writeJSON(w, http.StatusOK, ClearResponse{Removed: removed})
}

// GetConsoleStats handles GET /api/v1/logs/stats
func (h *Handlers) GetConsoleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.console.Stats())
}

// parseConsoleFilter builds a filter from query parameters. The level
// parameter is a comma-separated list; since and until are RFC3339.
func parseConsoleFilter(r *http.Request) (domain.ConsoleFilter, error) {
	q := r.URL.Query()
	filter := domain.ConsoleFilter{
		Port:    q.Get("port"),
		Project: q.Get("project"),
		Limit:   constants.DefaultConsoleQueryLimit,
	}

	if levels := q.Get("level"); levels != "" {
		for _, l := range strings.Split(levels, ",") {
			level := domain.LogLevel(strings.TrimSpace(strings.ToLower(l)))
			if !level.IsValid() {
				return domain.ConsoleFilter{}, fmt.Errorf("unknown level %q", l)
			}
			filter.Levels = append(filter.Levels, level)
		}
	}

	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return domain.ConsoleFilter{}, fmt.Errorf("invalid since timestamp %q", since)
		}
		filter.Since = ts
	}

	if until := q.Get("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return domain.ConsoleFilter{}, fmt.Errorf("invalid until timestamp %q", until)
		}
		filter.Until = ts
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return domain.ConsoleFilter{}, fmt.Errorf("invalid limit %q", limit)
		}
		filter.Limit = n
	}

	return filter, nil
}

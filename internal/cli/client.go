package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tessland/devmon/internal/api"
	"github.com/tessland/devmon/internal/constants"
	"github.com/tessland/devmon/internal/tools"
)

// Client is an HTTP client for the devmon API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	token, _ := loadToken() // token may not exist

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: constants.DefaultRequestTimeout,
		},
	}
}

// GetStatus gets supervisor status
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServers lists managed dev servers
func (c *Client) GetServers() (*api.ServerListResponse, error) {
	var resp api.ServerListResponse
	if err := c.get("/api/v1/servers", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServer gets the health view of one server
func (c *Client) GetServer(name string, port int) (*api.CheckResponse, error) {
	path := "/api/v1/servers/" + url.PathEscape(name)
	if port > 0 {
		path += fmt.Sprintf("?port=%d", port)
	}
	var resp api.CheckResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartServer starts a dev server
func (c *Client) StartServer(req api.StartServerRequest) (*api.ServerResponse, error) {
	var resp api.ServerResponse
	if err := c.post("/api/v1/servers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopServer stops a dev server
func (c *Client) StopServer(name string, force bool) (*api.ServerResponse, error) {
	path := "/api/v1/servers/" + url.PathEscape(name) + "/stop"
	if force {
		path += "?force=true"
	}
	var resp api.ServerResponse
	if err := c.post(path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RestartServer restarts a dev server
func (c *Client) RestartServer(name string) (*api.ServerResponse, error) {
	var resp api.ServerResponse
	if err := c.post("/api/v1/servers/"+url.PathEscape(name)+"/restart", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServerLogs gets a tail of a server's captured output
func (c *Client) GetServerLogs(name string, lines int) (*api.ServerLogsResponse, error) {
	path := "/api/v1/servers/" + url.PathEscape(name) + "/logs"
	if lines > 0 {
		path += fmt.Sprintf("?lines=%d", lines)
	}
	var resp api.ServerLogsResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InvokeTool invokes a named tool with the given arguments
func (c *Client) InvokeTool(name string, args tools.Args) (*api.ToolResponse, error) {
	var resp api.ToolResponse
	if err := c.post("/api/v1/tools/"+url.PathEscape(name), args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConsoleParams contains parameters for browser console log queries
type ConsoleParams struct {
	Port    string
	Project string
	Levels  string
	Limit   int
}

// GetConsoleLogs queries ingested browser console logs
func (c *Client) GetConsoleLogs(params ConsoleParams) (*api.ConsoleLogsResponse, error) {
	query := url.Values{}
	if params.Port != "" {
		query.Set("port", params.Port)
	}
	if params.Project != "" {
		query.Set("project", params.Project)
	}
	if params.Levels != "" {
		query.Set("level", params.Levels)
	}
	if params.Limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", params.Limit))
	}

	path := "/api/v1/logs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp api.ConsoleLogsResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearConsoleLogs clears browser console logs for the given port/project
func (c *Client) ClearConsoleLogs(port, project string) (*api.ClearResponse, error) {
	query := url.Values{}
	if port != "" {
		query.Set("port", port)
	}
	if project != "" {
		query.Set("project", project)
	}

	path := "/api/v1/logs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := http.NewRequest("DELETE", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.addAuthHeader(req)

	var resp api.ClearResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConsoleStats gets browser console store statistics
func (c *Client) GetConsoleStats() (map[string]any, error) {
	var resp map[string]any
	if err := c.get("/api/v1/logs/stats", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Shutdown shuts down the supervisor
func (c *Client) Shutdown() error {
	var resp api.SuccessResponse
	return c.post("/api/v1/shutdown", nil, &resp)
}

func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, v)
}

func (c *Client) post(path string, body, v any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequest("POST", c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// addAuthHeader adds the Authorization header if a token is available
func (c *Client) addAuthHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

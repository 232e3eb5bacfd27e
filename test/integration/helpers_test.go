package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

const (
	testAPIPort = 15560
	testAPIAddr = "http://127.0.0.1:15560"
)

// skipShort skips integration tests in -short mode
func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// requireNoError fails the test immediately on error
func requireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// buildBinary builds the devmon binary and returns its path
func buildBinary(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	requireNoError(t, err, "failed to get working directory")
	projectRoot := filepath.Join(wd, "..", "..")

	binary := filepath.Join(t.TempDir(), "devmon")
	cmd := exec.Command("go", "build", "-o", binary, "./cmd/devmon")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}
	return binary
}

// writeConfig writes a config file whose state file lives in the test's
// temp directory, so runs never share persisted servers.
func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "devmon.yaml")
	content := fmt.Sprintf(`api:
  host: 127.0.0.1
  port: %d
state_file: %s
registry:
  confirm_window: 300ms
  grace_period: 500ms
`, testAPIPort, filepath.Join(dir, "devmon.state.json"))
	requireNoError(t, os.WriteFile(path, []byte(content), 0600), "failed to write config")
	return path
}

// startServe starts the supervisor in the foreground
func startServe(t *testing.T, binary, configPath string) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(binary, "serve", "-c", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	requireNoError(t, cmd.Start(), "failed to start devmon")
	return cmd
}

// stopServe terminates the supervisor gracefully and waits for exit
func stopServe(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
	}
}

// killServe kills the supervisor without letting cleanup run
func killServe(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}
}

// waitForAPI waits for the API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// getJSON decodes a GET response into v
func getJSON(t *testing.T, path string, v any) {
	t.Helper()

	resp, err := http.Get(testAPIAddr + path)
	requireNoError(t, err, "GET "+path)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
	}
	requireNoError(t, json.NewDecoder(resp.Body).Decode(v), "decoding "+path)
}

// postJSON posts body as JSON and returns the response status and decoded body
func postJSON(t *testing.T, path string, body, v any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		requireNoError(t, json.NewEncoder(&buf).Encode(body), "encoding body")
	}
	resp, err := http.Post(testAPIAddr+path, "application/json", &buf)
	requireNoError(t, err, "POST "+path)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode < 300 {
		requireNoError(t, json.NewDecoder(resp.Body).Decode(v), "decoding "+path)
	}
	return resp.StatusCode
}

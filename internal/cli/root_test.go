package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessland/devmon/internal/config"
)

func TestLoadAPIAddrFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  host: 127.0.0.1\n  port: 7000\n"), 0600))

	old := configPath
	configPath = path
	defer func() { configPath = old }()

	assert.Equal(t, "http://127.0.0.1:7000", loadAPIAddrFromConfig())
}

func TestLoadAPIAddrFromConfig_Missing(t *testing.T) {
	old := configPath
	configPath = filepath.Join(t.TempDir(), "nope.yaml")
	defer func() { configPath = old }()

	assert.Empty(t, loadAPIAddrFromConfig())
}

func TestIsLocalhost(t *testing.T) {
	for host, want := range map[string]bool{
		"":          true,
		"127.0.0.1": true,
		"localhost": true,
		"::1":       true,
		"0.0.0.0":   false,
		"10.0.0.5":  false,
	} {
		assert.Equal(t, want, isLocalhost(host), host)
	}
}

func TestIsAuthRequired(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	// Explicit config wins.
	cfg := config.Default()
	cfg.API.Auth = boolPtr(true)
	assert.True(t, isAuthRequired(cfg))

	cfg.API.Host = "0.0.0.0"
	cfg.API.Auth = boolPtr(false)
	assert.False(t, isAuthRequired(cfg))

	// Auto: localhost does not require auth, other hosts do.
	cfg = config.Default()
	assert.False(t, isAuthRequired(cfg))
	cfg.API.Host = "0.0.0.0"
	assert.True(t, isAuthRequired(cfg))
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	require.NoError(t, err)
	b, err := generateToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h1m", formatDuration(3660*time.Second))
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "up", "status", "servers", "start", "stop", "restart", "logs", "console", "down", "attach", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

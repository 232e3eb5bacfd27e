package daemon

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validState() *RuntimeState {
	return &RuntimeState{
		PID:       os.Getpid(),
		Port:      5560,
		Host:      "127.0.0.1",
		StartedAt: time.Now().UTC(),
	}
}

func TestRuntimeState_WriteAndLoad(t *testing.T) {
	dir := t.TempDir()

	state := validState()
	require.NoError(t, state.Write(dir))

	loaded, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, state.PID, loaded.PID)
	assert.Equal(t, state.Port, loaded.Port)
	assert.Equal(t, state.Host, loaded.Host)
}

func TestRuntimeState_WriteValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		mutate func(*RuntimeState)
	}{
		{"zero pid", func(s *RuntimeState) { s.PID = 0 }},
		{"negative pid", func(s *RuntimeState) { s.PID = -1 }},
		{"zero port", func(s *RuntimeState) { s.Port = 0 }},
		{"port too large", func(s *RuntimeState) { s.Port = 70000 }},
		{"empty host", func(s *RuntimeState) { s.Host = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := validState()
			tt.mutate(state)
			assert.Error(t, state.Write(dir))
		})
	}
}

func TestLoadState_NotFound(t *testing.T) {
	_, err := LoadState(t.TempDir())
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRemoveState_Idempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, validState().Write(dir))
	require.NoError(t, RemoveState(dir))
	assert.NoError(t, RemoveState(dir))
}

func TestIsRunning(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRunning(dir), "empty runtime dir")

	// State pointing at this process counts as running even without a lock.
	require.NoError(t, validState().Write(dir))
	assert.True(t, IsRunning(dir))

	// A dead PID does not.
	dead := validState()
	dead.PID = 99999999
	require.NoError(t, dead.Write(dir))
	assert.False(t, IsRunning(dir))
}

func TestRunningState(t *testing.T) {
	dir := t.TempDir()

	_, err := RunningState(dir)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, validState().Write(dir))
	state, err := RunningState(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), state.PID)
}

func TestCleanupStaleFiles(t *testing.T) {
	dir := t.TempDir()

	// Nothing to clean.
	assert.NoError(t, CleanupStaleFiles(dir))

	// Live supervisor refuses cleanup.
	require.NoError(t, validState().Write(dir))
	assert.ErrorIs(t, CleanupStaleFiles(dir), ErrAlreadyRunning)

	// Dead supervisor is cleaned up.
	dead := validState()
	dead.PID = 99999999
	require.NoError(t, dead.Write(dir))
	require.NoError(t, CleanupStaleFiles(dir))
	_, err := LoadState(dir)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestFindAvailablePort(t *testing.T) {
	port, err := FindAvailablePort("127.0.0.1")
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.LessOrEqual(t, port, 65535)
}

func TestRuntimeDir_Override(t *testing.T) {
	assert.Equal(t, "/tmp/custom", RuntimeDir("/tmp/custom"))
	assert.NotEmpty(t, RuntimeDir(""))
}

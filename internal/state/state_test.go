package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessland/devmon/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "devmon.state.json"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)

	snaps := []ServerSnapshot{
		{
			Name:      "web",
			PID:       12345,
			Command:   "npm run dev",
			Cwd:       "/tmp/app",
			Port:      3000,
			StartTime: time.Now().Truncate(time.Second),
			Status:    domain.ServerStateRunning,
			Logs:      []string{"[STDOUT] ready", "[STDOUT] listening on 3000"},
		},
		{
			Name:   "api",
			PID:    12346,
			Port:   4000,
			Status: domain.ServerStateStopped,
		},
	}

	require.NoError(t, s.Save(snaps))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "web", loaded[0].Name)
	assert.Equal(t, 12345, loaded[0].PID)
	assert.Equal(t, domain.ServerStateRunning, loaded[0].Status)
	assert.Equal(t, []string{"[STDOUT] ready", "[STDOUT] listening on 3000"}, loaded[0].Logs)
	assert.Equal(t, domain.ServerStateStopped, loaded[1].Status)
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := testStore(t)

	loaded, err := s.Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0600))

	loaded, err := s.Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadUnknownShape(t *testing.T) {
	s := testStore(t)
	// An old schema that serialized an object instead of an array.
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"servers":{}}`), 0600))

	loaded, err := s.Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Save([]ServerSnapshot{{Name: "a", PID: 1}}))
	require.NoError(t, s.Save([]ServerSnapshot{{Name: "b", PID: 2}}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].Name)
}

func TestStore_Remove(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save([]ServerSnapshot{{Name: "a", PID: 1}}))

	require.NoError(t, s.Remove())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	// Removing again is fine.
	assert.NoError(t, s.Remove())
}

func TestDefaultPath(t *testing.T) {
	p := DefaultPath()
	assert.Contains(t, p, "devmon-")
	assert.Contains(t, p, ".state.json")
}

package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotedesk/selfupdate/api"
	"github.com/quotedesk/selfupdate/internal/state"
)

func TestLoadOrCreateDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")

	s, err := state.LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, "stable", s.Update.Config.Channel)
	require.Equal(t, "6h", s.Update.Config.CheckFrequency)
	require.False(t, s.Update.Config.AutoApply)
	require.Equal(t, api.UpdateStatusIdle, s.Update.State.Status)

	// The file got created on first load.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")

	s, err := state.LoadOrCreate(path)
	require.NoError(t, err)

	s.Update.Config.Channel = "beta"
	s.Update.State.Status = api.UpdateStatusStaged
	s.Update.State.PendingVersion = "2.4.1"
	s.Update.State.LastCheck = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save())

	reloaded, err := state.LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, "beta", reloaded.Update.Config.Channel)
	require.Equal(t, api.UpdateStatusStaged, reloaded.Update.State.Status)
	require.Equal(t, "2.4.1", reloaded.Update.State.PendingVersion)
	require.True(t, reloaded.Update.State.LastCheck.Equal(s.Update.State.LastCheck))
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := state.LoadOrCreate(path)
	require.Error(t, err)
}

func TestUpgradeFromLegacyChannel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{"state_version": 0, "update": {"config": {"channel": "default"}}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s, err := state.LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, "stable", s.Update.Config.Channel)
	require.Equal(t, "6h", s.Update.Config.CheckFrequency)

	// The migrated state got persisted at the new version.
	reloaded, err := state.LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, "stable", reloaded.Update.Config.Channel)
}

func TestRefusesNewerState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	future := `{"state_version": 99}`
	require.NoError(t, os.WriteFile(path, []byte(future), 0o600))

	_, err := state.LoadOrCreate(path)
	require.Error(t, err)
}

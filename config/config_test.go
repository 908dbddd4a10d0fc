package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	isolateConfigDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.InDelta(t, 0.8, cfg.Volume, 1e-9)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := isolateConfigDir(t)

	want := Config{
		Volume:     0.35,
		RandomMode: true,
		LastPlayed: LastPlayed{
			StationURL: "https://a.example.com/stream",
			WasPlaying: true,
			Volume:     0.35,
			PositionMs: 4200,
			At:         time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, Save(want))

	_, err := os.Stat(filepath.Join(dir, "airwave", "config.json"))
	require.NoError(t, err)

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadClampsOutOfRangeVolume(t *testing.T) {
	dir := isolateConfigDir(t)

	appDir := filepath.Join(dir, "airwave")
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	raw := `{"volume": 3.5, "last_played": {"volume": -1.0}}`
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.json"), []byte(raw), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cfg.Volume, 1e-9)
	assert.InDelta(t, 0.0, cfg.LastPlayed.Volume, 1e-9)
}

func TestLoadCorruptFileYieldsDefaultsAndError(t *testing.T) {
	dir := isolateConfigDir(t)

	appDir := filepath.Join(dir, "airwave")
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.json"), []byte("{nope"), 0o644))

	cfg, err := Load()
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestStorePreferences(t *testing.T) {
	isolateConfigDir(t)

	s, err := NewStore()
	require.NoError(t, err)

	require.NoError(t, s.SaveVolumePreference(1.7))
	assert.InDelta(t, 1.0, s.VolumePreference(), 1e-9, "volume clamps on save")

	require.NoError(t, s.SaveRandomModePreference(true))
	assert.True(t, s.RandomModePreference())

	lp := LastPlayed{
		StationURL: "https://b.example.com/stream",
		WasPlaying: true,
		Volume:     0.5,
	}
	require.NoError(t, s.SaveLastPlayedState(lp))
	got := s.LastPlayedState()
	assert.Equal(t, lp.StationURL, got.StationURL)
	assert.True(t, got.WasPlaying)
	assert.False(t, got.At.IsZero(), "save stamps the snapshot time")

	// A fresh store sees everything that was persisted.
	s2, err := NewStore()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s2.VolumePreference(), 1e-9)
	assert.True(t, s2.RandomModePreference())
	assert.Equal(t, lp.StationURL, s2.LastPlayedState().StationURL)
}

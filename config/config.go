package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LastPlayed records where playback stood when the app last touched a
// station, so a fresh output route (headphones, Bluetooth) or the next
// launch can pick up where the listener left off.
type LastPlayed struct {
	StationURL string    `json:"station_url"`
	WasPlaying bool      `json:"was_playing"`
	Volume     float64   `json:"volume"`
	PositionMs int64     `json:"position_ms"`
	At         time.Time `json:"at"`
}

// Config holds all persisted user settings.
type Config struct {
	Volume     float64    `json:"volume"` // 0.0-1.0
	RandomMode bool       `json:"random_mode"`
	LastPlayed LastPlayed `json:"last_played"`
}

// DefaultConfig returns the settings used before anything was saved.
func DefaultConfig() Config {
	return Config{
		Volume: 0.8,
	}
}

// getConfigPath resolves the settings file, creating the app config
// directory if needed.
func getConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}

	appConfigDir := filepath.Join(configDir, "airwave")
	if err := os.MkdirAll(appConfigDir, 0o755); err != nil {
		return "", err
	}

	return filepath.Join(appConfigDir, "config.json"), nil
}

// Load reads the settings file. A missing file yields defaults with a
// nil error; any other failure yields defaults plus the error so the
// caller can log and continue.
func Load() (Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	cfg.Volume = clampVolume(cfg.Volume)
	cfg.LastPlayed.Volume = clampVolume(cfg.LastPlayed.Volume)
	return cfg, nil
}

// Save writes the settings file.
func Save(cfg Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	cfg.Volume = clampVolume(cfg.Volume)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0o644)
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Store is the settings collaborator handed to the playback engine.
// All saves are best-effort: errors surface to the caller for logging
// and nothing else.
type Store struct {
	mu  sync.Mutex
	cfg Config
}

// NewStore loads current settings and wraps them for incremental saves.
// The error reports a load problem; the store is usable either way.
func NewStore() (*Store, error) {
	cfg, err := Load()
	return &Store{cfg: cfg}, err
}

func (s *Store) update(mutate func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.cfg)
	return Save(s.cfg)
}

// VolumePreference returns the saved volume.
func (s *Store) VolumePreference() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Volume
}

// SaveVolumePreference persists the volume.
func (s *Store) SaveVolumePreference(v float64) error {
	return s.update(func(c *Config) { c.Volume = clampVolume(v) })
}

// RandomModePreference returns the saved random mode.
func (s *Store) RandomModePreference() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.RandomMode
}

// SaveRandomModePreference persists the random mode.
func (s *Store) SaveRandomModePreference(b bool) error {
	return s.update(func(c *Config) { c.RandomMode = b })
}

// LastPlayedState returns the saved last-played snapshot.
func (s *Store) LastPlayedState() LastPlayed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.LastPlayed
}

// SaveLastPlayedState persists the last-played snapshot.
func (s *Store) SaveLastPlayedState(lp LastPlayed) error {
	if lp.At.IsZero() {
		lp.At = time.Now()
	}
	lp.Volume = clampVolume(lp.Volume)
	return s.update(func(c *Config) { c.LastPlayed = lp })
}

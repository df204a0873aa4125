// Package config holds the snapgrid configuration: storage backend, simulated
// latency, playback timing, UI theme, and logging. Config lives as YAML in the
// data directory next to the storage file and the logs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all snapgrid configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Simulated network latency per operation class
	Latency LatencyConfig `yaml:"latency"`

	// Story playback timing
	Playback PlaybackConfig `yaml:"playback"`

	// UI settings
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the key/value blob store backing the entity stores.
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite, memory
	Path    string `yaml:"path"`    // sqlite file, relative to the data dir
	Watch   bool   `yaml:"watch"`   // refresh the TUI when another process writes the file
}

// LatencyConfig configures the artificial delay that emulates network I/O.
// Defaults sit in the 200-400ms range; zero disables the delay.
type LatencyConfig struct {
	Read   string `yaml:"read"`   // getAll / getById / queries
	Write  string `yaml:"write"`  // create
	Mutate string `yaml:"mutate"` // update / delete / toggles
}

// PlaybackConfig configures the story viewer timing.
type PlaybackConfig struct {
	StoryDuration string `yaml:"story_duration"` // full progress span per story
	TickInterval  string `yaml:"tick_interval"`  // progress animation cadence
}

// UIConfig configures the TUI.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark, auto
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "snapgrid",
		Version: "1.0.0",

		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "snapgrid.db",
			Watch:   true,
		},

		Latency: LatencyConfig{
			Read:   "300ms",
			Write:  "400ms",
			Mutate: "200ms",
		},

		Playback: PlaybackConfig{
			StoryDuration: "5s",
			TickInterval:  "100ms",
		},

		UI: UIConfig{
			Theme: "auto",
		},

		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
		},
	}
}

// DefaultDataDir resolves the snapgrid data directory:
// $SNAPGRID_DATA_DIR if set, otherwise ~/.snapgrid.
func DefaultDataDir() string {
	if dir := os.Getenv("SNAPGRID_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".snapgrid"
	}
	return filepath.Join(home, ".snapgrid")
}

// ConfigPath returns the config file path inside a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if theme := os.Getenv("SNAPGRID_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if backend := os.Getenv("SNAPGRID_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if debug := os.Getenv("SNAPGRID_DEBUG"); debug == "1" || debug == "true" {
		c.Logging.Debug = true
		c.Logging.Level = "debug"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("invalid storage backend: %s (want sqlite or memory)", c.Storage.Backend)
	}

	switch c.UI.Theme {
	case "light", "dark", "auto":
	default:
		return fmt.Errorf("invalid theme: %s (want light, dark or auto)", c.UI.Theme)
	}

	if d := c.StoryDuration(); d <= 0 {
		return fmt.Errorf("playback story_duration must be positive, got %q", c.Playback.StoryDuration)
	}
	if d := c.TickInterval(); d <= 0 {
		return fmt.Errorf("playback tick_interval must be positive, got %q", c.Playback.TickInterval)
	}
	if c.TickInterval() > c.StoryDuration() {
		return fmt.Errorf("playback tick_interval exceeds story_duration")
	}

	return nil
}

// parseDuration parses a duration string, returning fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// ReadLatency returns the simulated latency for read operations.
func (c *Config) ReadLatency() time.Duration {
	return parseDuration(c.Latency.Read, 300*time.Millisecond)
}

// WriteLatency returns the simulated latency for create operations.
func (c *Config) WriteLatency() time.Duration {
	return parseDuration(c.Latency.Write, 400*time.Millisecond)
}

// MutateLatency returns the simulated latency for update/toggle/delete operations.
func (c *Config) MutateLatency() time.Duration {
	return parseDuration(c.Latency.Mutate, 200*time.Millisecond)
}

// StoryDuration returns the full-progress span per story.
func (c *Config) StoryDuration() time.Duration {
	return parseDuration(c.Playback.StoryDuration, 5*time.Second)
}

// TickInterval returns the progress animation cadence.
func (c *Config) TickInterval() time.Duration {
	return parseDuration(c.Playback.TickInterval, 100*time.Millisecond)
}

// StoragePath returns the absolute path of the sqlite storage file.
func (c *Config) StoragePath(dataDir string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(dataDir, c.Storage.Path)
}

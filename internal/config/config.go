// Package config loads terminalist configuration from a YAML file under the
// user's config directory. A missing file means defaults; a malformed file is
// an error, not a silent fallback.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig []byte

const (
	appDirName     = "terminalist"
	configFileName = "config.yaml"
	dbFileName     = "tasks.db"
)

// Config is the root of the YAML configuration.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Logging  LoggingConfig   `yaml:"logging"`
	Sync     SyncConfig      `yaml:"sync"`
	UI       UIConfig        `yaml:"ui"`
	Backends []BackendConfig `yaml:"backends"`
}

// DatabaseConfig locates the local cache database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Verbose           bool `yaml:"verbose"`
	BackgroundEnabled bool `yaml:"background_enabled"`
}

// SyncConfig controls when syncs happen without being asked.
type SyncConfig struct {
	OnStart       bool `yaml:"on_start"`
	WatchDatabase bool `yaml:"watch_database"`
	Workers       int  `yaml:"workers"`
}

// UIConfig holds presentation preferences.
type UIConfig struct {
	DefaultView string `yaml:"default_view"`
}

// BackendConfig describes one connected account. The API token is never in
// the file; it lives in the system keyring or an environment variable.
type BackendConfig struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
}

// UUID parses the backend instance id.
func (b BackendConfig) UUID() (uuid.UUID, error) {
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("backend %q has an invalid id %q: %w", b.Name, b.ID, err)
	}
	return id, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{BackgroundEnabled: true},
		Sync:    SyncConfig{OnStart: true, WatchDatabase: true, Workers: 2},
		UI:      UIConfig{DefaultView: "today"},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// Load reads the configuration at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the parts that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, b := range c.Backends {
		if _, err := b.UUID(); err != nil {
			return err
		}
		if b.Kind == "" {
			return fmt.Errorf("backend %q has no kind", b.Name)
		}
		if seen[b.ID] {
			return fmt.Errorf("backend id %s appears twice", b.ID)
		}
		seen[b.ID] = true
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must not be negative")
	}
	return nil
}

// EnabledBackends returns the backend entries that should be connected.
func (c *Config) EnabledBackends() []BackendConfig {
	var out []BackendConfig
	for _, b := range c.Backends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

// DatabasePath returns the configured database path, or the default under
// the user's config directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, dbFileName), nil
}

// WriteSample writes the commented sample config to path, creating parent
// directories. Refuses to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, sampleConfig, 0o600)
}

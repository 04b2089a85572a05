package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultBackfillPage = 32
	DefaultBackfillRate = 20
	DefaultLogLevel     = "info"
)

// Config represents the global ~/.ringcore/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	// DaemonSocket is the daemon's bridge socket; empty uses the
	// profile's default path.
	DaemonSocket string `toml:"daemon_socket"`
	BackfillPage int    `toml:"backfill_page"`
	BackfillRate int    `toml:"backfill_rate"`
	LogLevel     string `toml:"log_level"`
}

// Default returns a config with every tunable at its default.
func Default() *Config {
	return &Config{
		BackfillPage: DefaultBackfillPage,
		BackfillRate: DefaultBackfillRate,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads config from the given path. Keys absent from the file keep
// their defaults; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load falling back to Default when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Package config handles loading and managing mailsnap configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SnapshotConfig holds where snapshots come from.
type SnapshotConfig struct {
	ManifestURL string `toml:"manifest_url"` // Manifest endpoint on the mail server
	Timeout     int    `toml:"timeout_secs"` // HTTP timeout in seconds (default: 60)
}

// CacheConfig holds local snapshot cache configuration.
type CacheConfig struct {
	Dir      string `toml:"dir"`      // Cache directory (default: <home>/cache)
	Disabled bool   `toml:"disabled"` // Skip the cache entirely
}

// UIConfig holds TUI configuration.
type UIConfig struct {
	Overscan         int `toml:"overscan"`           // Extra rows rendered beyond the viewport
	RowHeight        int `toml:"row_height"`         // Initial row-height estimate in lines (default: 2)
	SearchDebounceMS int `toml:"search_debounce_ms"` // Delay before a typed query runs (default: 300)
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort  int    `toml:"api_port"`  // HTTP server port (default: 8080)
	BindAddr string `toml:"bind_addr"` // Listen address (default: 127.0.0.1)
	APIKey   string `toml:"api_key"`   // API authentication key
}

type Config struct {
	Snapshot SnapshotConfig `toml:"snapshot"`
	Cache    CacheConfig    `toml:"cache"`
	UI       UIConfig       `toml:"ui"`
	Server   ServerConfig   `toml:"server"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`

	path string
}

// DefaultHome returns the default mailsnap home directory.
// Respects MAILSNAP_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILSNAP_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailsnap"
	}
	return filepath.Join(home, ".mailsnap")
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (~/.mailsnap/config.toml).
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		// Defaults
		Snapshot: SnapshotConfig{
			Timeout: 60,
		},
		Cache: CacheConfig{
			Dir: filepath.Join(homeDir, "cache"),
		},
		UI: UIConfig{
			Overscan:         3,
			RowHeight:        2,
			SearchDebounceMS: 300,
		},
		Server: ServerConfig{
			APIPort: 8080,
		},
	}

	cfg.path = path

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Cache.Dir = expandPath(cfg.Cache.Dir)

	return cfg, nil
}

// WorkDir returns where fetched snapshot databases are materialized.
func (c *Config) WorkDir() string {
	return filepath.Join(c.HomeDir, "snapshots")
}

// SnapshotPath returns the default local path of the current snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.WorkDir(), "snapshot.db")
}

// ConfigFilePath returns the path this configuration was loaded from, or
// would be saved to.
func (c *Config) ConfigFilePath() string {
	if c.path != "" {
		return c.path
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home and work directories if they do not exist.
func (c *Config) EnsureHomeDir() error {
	for _, dir := range []string{c.HomeDir, c.WorkDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes the configuration back to its config file.
func (c *Config) Save() error {
	path := c.ConfigFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

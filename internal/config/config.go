package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/taskheatmap/config.yaml"

// Config holds all taskheatmap configuration.
type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Storage  StorageConfig  `yaml:"storage"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TrackingConfig struct {
	TickSeconds          int      `yaml:"tick_seconds"`
	IdleThresholdSeconds int      `yaml:"idle_threshold_seconds"`
	RetentionDays        int      `yaml:"retention_days"`
	DebounceSeconds      int      `yaml:"debounce_seconds"`
	ExcludeDomains       []string `yaml:"exclude_domains"`
	ExcludeSensitive     bool     `yaml:"exclude_sensitive"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.clamp()
	return cfg, nil
}

// clamp replaces out-of-range numbers with defaults.
func (c *Config) clamp() {
	def := DefaultConfig()
	if c.Tracking.TickSeconds < 1 {
		c.Tracking.TickSeconds = def.Tracking.TickSeconds
	}
	if c.Tracking.IdleThresholdSeconds < 15 {
		c.Tracking.IdleThresholdSeconds = def.Tracking.IdleThresholdSeconds
	}
	if c.Tracking.RetentionDays < 1 {
		c.Tracking.RetentionDays = def.Tracking.RetentionDays
	}
	if c.Tracking.DebounceSeconds < 0 {
		c.Tracking.DebounceSeconds = def.Tracking.DebounceSeconds
	}
	if c.Daemon.MaxRequestSize <= 0 {
		c.Daemon.MaxRequestSize = def.Daemon.MaxRequestSize
	}
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// DBPath returns the expanded path of the SQLite database.
func (c *Config) DBPath() (string, error) {
	dir, err := homedir.Expand(c.Storage.Path)
	if err != nil {
		return "", fmt.Errorf("resolving storage path: %w", err)
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// DaemonAddr returns host:port of the local bridge.
func (c *Config) DaemonAddr() string {
	return net.JoinHostPort(c.Daemon.Host, strconv.Itoa(c.Daemon.Port))
}

// DaemonURL returns the base URL of the local bridge.
func (c *Config) DaemonURL() string {
	return "http://" + c.DaemonAddr()
}

// ExcludedDomains returns the configured exclusions, plus the sensitive
// list when exclude_sensitive is set.
func (c *Config) ExcludedDomains() []string {
	out := append([]string{}, c.Tracking.ExcludeDomains...)
	if c.Tracking.ExcludeSensitive {
		out = append(out, DefaultSensitiveDomains()...)
	}
	return out
}

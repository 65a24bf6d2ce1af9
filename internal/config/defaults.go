package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			TickSeconds:          10,
			IdleThresholdSeconds: 60,
			RetentionDays:        30,
			DebounceSeconds:      5,
			ExcludeDomains:       []string{},
			ExcludeSensitive:     false,
		},
		Storage: StorageConfig{
			Path:              "~/.config/taskheatmap",
			SQLiteFile:        "taskheatmap.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8731,
			MaxRequestSize: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for geogram-sync.
type Config struct {
	// Primary station endpoint, e.g. "http://geogram.local" or
	// "https://station.example.org". The WebSocket URL is derived from it.
	StationURL string `env:"STATION_URL"`

	// Callsign this client posts messages as.
	Callsign string `env:"CALLSIGN"`

	// Directory holding the cache database, raw day files and attachment
	// blobs. Defaults to ~/.geogram-sync.
	CacheDir string `env:"CACHE_DIR"`

	// Device name reported to the station. Defaults to system hostname.
	DeviceName string `env:"DEVICE_NAME"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// ReachabilityInterval is the health-check poll period.
	ReachabilityInterval time.Duration `env:"REACHABILITY_INTERVAL" envDefault:"10s"`

	// PollInterval is the message poll period used while the realtime
	// channel is disconnected.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`

	// PageLimit is the fetch size for a room with no sync cursor.
	PageLimit int `env:"PAGE_LIMIT" envDefault:"50"`

	// CursorLimit is the fetch size when an incremental cursor is set.
	// Larger than PageLimit since a cursor fetch should only cover a few
	// dozen new messages.
	CursorLimit int `env:"CURSOR_LIMIT" envDefault:"200"`

	// AutoDownloadMaxBytes caps the attachment size eligible for automatic
	// download on room open.
	AutoDownloadMaxBytes int64 `env:"AUTO_DOWNLOAD_MAX_BYTES" envDefault:"3145728"`

	// AutoDownloadMaxAge caps the message age eligible for automatic
	// attachment download.
	AutoDownloadMaxAge time.Duration `env:"AUTO_DOWNLOAD_MAX_AGE" envDefault:"168h"`

	// MaxAttachmentBytes is the upload size limit enforced before any
	// network call.
	MaxAttachmentBytes int64 `env:"MAX_ATTACHMENT_BYTES" envDefault:"10485760"`
}

// Load reads configuration from environment variables. It first attempts
// to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DeviceName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "geogram-sync"
		}

		cfg.DeviceName = hostname
	}

	if cfg.CacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}

		cfg.CacheDir = dir
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve CacheDir to an absolute path at startup so downstream path
	// joins are stable regardless of the working directory.
	absDir, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache dir to absolute path: %w", err)
	}

	cfg.CacheDir = absDir

	return cfg, nil
}

func (c *Config) validate() error {
	if c.StationURL == "" {
		return fmt.Errorf("STATION_URL is required")
	}

	if !strings.HasPrefix(c.StationURL, "http://") && !strings.HasPrefix(c.StationURL, "https://") {
		return fmt.Errorf("STATION_URL must be an http or https URL")
	}

	if c.Callsign == "" {
		return fmt.Errorf("CALLSIGN is required")
	}

	if c.ReachabilityInterval <= 0 {
		return fmt.Errorf("REACHABILITY_INTERVAL must be positive")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	if c.PageLimit <= 0 || c.CursorLimit <= 0 {
		return fmt.Errorf("PAGE_LIMIT and CURSOR_LIMIT must be positive")
	}

	return nil
}

// DefaultCacheDir returns ~/.geogram-sync.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".geogram-sync"), nil
}

// WebSocketURL derives the realtime channel endpoint from the station URL.
// The station serves its push channel on /ws next to the HTTP API.
func (c *Config) WebSocketURL() string {
	url := c.StationURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	return strings.TrimSuffix(url, "/") + "/ws"
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

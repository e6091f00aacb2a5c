package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	StorageSQLite = "sqlite"
	StoragePebble = "pebble"
)

// Config holds runtime settings for the draftkeeper CLI.
//
// Durations are time.Duration values; JSON accepts "3s" or nanoseconds.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DataDir             string
	StorageBackend      string
	UserID              string
	DeviceID            string
	SaveDebounce        time.Duration
	SyncDelay           time.Duration
	LeaseRenewInterval  time.Duration
	LogFile             string
	Debug               bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DataDir = defaultDataDir()
	c.StorageBackend = StorageSQLite
	c.SaveDebounce = 500 * time.Millisecond
	c.SyncDelay = 2 * time.Second
	c.LeaseRenewInterval = 5 * time.Minute
	c.LogFile = filepath.Join(c.DataDir, "client.log")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".draftkeeper"
	}
	return filepath.Join(home, ".draftkeeper")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

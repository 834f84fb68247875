// Package academy holds application-wide defaults shared by the config,
// storage and content layers.
package academy

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultAppName = "crypto-academy"
	EnvPrefix      = "ACADEMY"

	DefaultServerAddr = ":8080"

	// DefaultCacheTTL is the single expiration applied to every cached
	// price-data response.
	DefaultCacheTTL = 60 * time.Second

	DefaultMarketBaseURL    = "http://localhost:8787/v1"
	DefaultMarketKeyHeader  = "X-API-Key"
	DefaultMarketTimeout    = 10 * time.Second
	DefaultMarketListLimit  = 100
	DefaultRateLimitBurst   = 30
	DefaultRateLimitRefill  = 2 * time.Second
	DefaultContentIgnore    = ".contentignore"
	DefaultAttemptListLimit = 20
	MaxAttemptListLimit     = 200
)

var (
	DefaultConfigPath   = filepath.Join(userConfigDir(), DefaultAppName)
	DefaultDataDir      = filepath.Join(userDataDir(), DefaultAppName)
	DefaultDatabasePath = filepath.Join(DefaultDataDir, "academy.db")
	DefaultContentDir   = filepath.Join(DefaultDataDir, "content")
)

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func userDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overlays TELEMETRY_* environment variables onto cfg.
// Only non-empty variables override; malformed numbers are ignored.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("BUFFER_SIZE"); v > 0 {
		cfg.BufferSize = v
	}
	if v := envInt("BACKLOG"); v > 0 {
		cfg.Backlog = v
	}
	if v := envInt("POLL_INTERVAL_MS"); v > 0 {
		cfg.PollInterval = time.Duration(v) * time.Millisecond
	}
	if v := envInt("MAX_EVENTS"); v > 0 {
		cfg.MaxEvents = v
	}
	if v := os.Getenv(EnvPrefix + "STATS_ADDR"); v != "" {
		cfg.StatsAddr = v
	}
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		cfg.ConfigFile = v
	}
}

// ConfigFileFromEnv returns TELEMETRY_CONFIG, which must be known
// before the file layer is applied.
func ConfigFileFromEnv() string {
	return os.Getenv(EnvPrefix + "CONFIG")
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(name string) int {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Package config defines the runtime configuration for telemetryd and
// the layers that fill it in: defaults, an optional YAML file,
// TELEMETRY_* environment variables and finally CLI flags.
package config

import (
	"fmt"
	"time"

	"telemetry/internal/errors"
)

// Config holds every tuneable for one telemetryd process.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	Host         string // bind address
	Port         int    // TCP and UDP port
	BufferSize   int    // largest message read in one go
	Backlog      int
	PollInterval time.Duration
	MaxEvents    int
	StatsAddr    string // diagnostic HTTP endpoint; empty disables it

	// ── Client ───────────────────────────────────────────────────────
	Client     bool
	UDP        bool
	ServerHost string
	Message    string
	Timeout    time.Duration
	Retries    int

	// ── Output / process ─────────────────────────────────────────────
	Verbose    int
	ConfigFile string
	DryRun     bool
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Host:         DefaultHost,
		BufferSize:   DefaultBufferSize,
		Backlog:      DefaultBacklog,
		PollInterval: DefaultPollInterval,
		MaxEvents:    DefaultMaxEvents,
		Timeout:      DefaultTimeout,
		Retries:      DefaultRetries,
		Verbose:      DefaultVerbose,
	}
}

// Mode names what the process will do.
func (c *Config) Mode() string {
	switch {
	case c.Client && c.UDP:
		return "udp client"
	case c.Client:
		return "tcp client"
	default:
		return "server"
	}
}

// Summary is a one-line rendering for logs and --dry-run.
func (c *Config) Summary() string {
	if c.Client {
		proto := "tcp"
		if c.UDP {
			proto = "udp"
		}
		return fmt.Sprintf("%s client -> %s:%d (timeout %s, retries %d)",
			proto, c.ServerHost, c.Port, c.Timeout, c.Retries)
	}
	s := fmt.Sprintf("server on %s:%d (buffer %d, backlog %d, poll %s, max events %d)",
		c.Host, c.Port, c.BufferSize, c.Backlog, c.PollInterval, c.MaxEvents)
	if c.StatsAddr != "" {
		s += ", diagnostics on " + c.StatsAddr
	}
	return s
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError values with a hint for the user.
func (c *Config) Validate() error {
	if c.Port == 0 {
		hint := "pass the port as an argument, e.g. telemetryd 8080"
		if c.Client {
			hint = "usage: telemetryd -c <host> <port> [message]"
		}
		return &errors.ConfigError{Field: "port", Message: "port is required", Hint: hint}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &errors.ConfigError{
			Field: "port", Value: c.Port,
			Message: "port out of range 1-65535",
		}
	}

	if c.Client {
		if c.ServerHost == "" {
			return &errors.ConfigError{
				Field:   "host",
				Message: "client mode requires a server host",
				Hint:    "usage: telemetryd -c <host> <port> [message]",
			}
		}
		if c.Timeout <= 0 {
			return &errors.ConfigError{Field: "timeout", Value: c.Timeout, Message: "timeout must be positive"}
		}
		if c.Retries < 0 {
			return &errors.ConfigError{Field: "retries", Value: c.Retries, Message: "retries cannot be negative"}
		}
		return nil
	}

	if c.BufferSize < MinBufferSize || c.BufferSize > MaxBufferSize {
		return &errors.ConfigError{
			Field: "buffer-size", Value: c.BufferSize,
			Message: fmt.Sprintf("buffer size must be between %d and %d", MinBufferSize, MaxBufferSize),
			Hint:    fmt.Sprintf("the default is %d", DefaultBufferSize),
		}
	}
	if c.Backlog < 1 {
		return &errors.ConfigError{
			Field: "backlog", Value: c.Backlog,
			Message: "backlog must be at least 1",
			Hint:    fmt.Sprintf("the default is %d", DefaultBacklog),
		}
	}
	if c.PollInterval <= 0 {
		return &errors.ConfigError{
			Field: "poll-interval", Value: c.PollInterval,
			Message: "poll interval must be positive",
			Hint:    "try 100ms",
		}
	}
	if c.MaxEvents < 1 {
		return &errors.ConfigError{Field: "max-events", Value: c.MaxEvents, Message: "max events must be at least 1"}
	}
	return nil
}

package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultHost binds every IPv4 interface.
	DefaultHost = "0.0.0.0"

	// DefaultBufferSize is the per-read message buffer.
	DefaultBufferSize = 1024

	// MinBufferSize and MaxBufferSize bound --buffer-size.  The upper
	// bound is the largest UDP payload over IPv4.
	MinBufferSize = 64
	MaxBufferSize = 65507

	// DefaultBacklog is the TCP listen queue length.
	DefaultBacklog = 128

	// DefaultPollInterval bounds one reactor wait.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultMaxEvents is how many ready descriptors one wait reports.
	DefaultMaxEvents = 64

	// DefaultTimeout is the client's dial and reply timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultRetries is how many extra dial attempts the client makes.
	DefaultRetries = 3

	// DefaultVerbose is normal output.
	DefaultVerbose = 1

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "TELEMETRY_"
)

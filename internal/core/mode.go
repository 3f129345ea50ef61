// Package core is the orchestration layer.  It composes the server,
// the diagnostic endpoint and the client into complete operational
// modes and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	reactor, transport  →  command, session  →  server, diag  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of telemetryd (serve or
// client).  Each mode owns its full lifecycle from setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

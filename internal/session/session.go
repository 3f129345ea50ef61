// Package session keeps the server-wide connection accounting.
//
// All counters are lock-free atomics.  Mutation happens on the reactor
// goroutine, but readers (the /stats command, the diagnostic endpoint,
// tests) may observe them from anywhere at any time.  A nil *Manager is
// a valid no-op receiver, so callers never need to nil-check.
package session

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Manager tracks connection and traffic statistics for one server.
type Manager struct {
	totalConnections   atomic.Uint64
	currentConnections atomic.Int64
	datagrams          atomic.Uint64
	bytesIn            atomic.Uint64
	bytesOut           atomic.Uint64
	ioErrors           atomic.Uint64

	startTime time.Time
}

// NewManager returns a Manager with its start time set to now.
func NewManager() *Manager {
	return &Manager{startTime: time.Now()}
}

// ── Connection accounting ────────────────────────────────────────────

// Connected records a newly accepted stream connection.
func (m *Manager) Connected() {
	if m == nil {
		return
	}
	m.totalConnections.Add(1)
	m.currentConnections.Add(1)
}

// Disconnected records a closed stream connection.  Callers guarantee
// it runs exactly once per Connected.
func (m *Manager) Disconnected() {
	if m == nil {
		return
	}
	m.currentConnections.Add(-1)
}

// TotalConnections returns the lifetime connection count.
func (m *Manager) TotalConnections() uint64 {
	if m == nil {
		return 0
	}
	return m.totalConnections.Load()
}

// CurrentConnections returns the number of open stream connections.
func (m *Manager) CurrentConnections() int64 {
	if m == nil {
		return 0
	}
	return m.currentConnections.Load()
}

// ── Traffic accounting ───────────────────────────────────────────────

// DatagramReceived records one inbound datagram of n bytes.  Datagrams
// never touch the connection counters.
func (m *Manager) DatagramReceived(n int) {
	if m == nil {
		return
	}
	m.datagrams.Add(1)
	m.bytesIn.Add(uint64(n))
}

// BytesReceived records n bytes read from a stream connection.
func (m *Manager) BytesReceived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesIn.Add(uint64(n))
}

// BytesSent records n bytes written to the network.
func (m *Manager) BytesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesOut.Add(uint64(n))
}

// IOError records a per-connection or per-datagram I/O fault.
func (m *Manager) IOError() {
	if m == nil {
		return
	}
	m.ioErrors.Add(1)
}

// ── Snapshots ────────────────────────────────────────────────────────

// Stats is the connection view reported by the stats command.
type Stats struct {
	TotalConnections   uint64
	CurrentConnections int64
	StartTime          time.Time
}

// Stats returns the live connection counters.
func (m *Manager) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		TotalConnections:   m.totalConnections.Load(),
		CurrentConnections: m.currentConnections.Load(),
		StartTime:          m.startTime,
	}
}

// Snapshot is a point-in-time view of every counter.
type Snapshot struct {
	StartTime          string `json:"start_time"`
	Uptime             string `json:"uptime"`
	TotalConnections   uint64 `json:"total_connections"`
	CurrentConnections int64  `json:"current_connections"`
	Datagrams          uint64 `json:"datagrams"`
	BytesIn            uint64 `json:"bytes_in"`
	BytesOut           uint64 `json:"bytes_out"`
	IOErrors           uint64 `json:"io_errors"`
}

// Snapshot returns a copy of all current counters.
func (m *Manager) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		StartTime:          m.startTime.Format(time.RFC3339),
		Uptime:             time.Since(m.startTime).Truncate(time.Second).String(),
		TotalConnections:   m.totalConnections.Load(),
		CurrentConnections: m.currentConnections.Load(),
		Datagrams:          m.datagrams.Load(),
		BytesIn:            m.bytesIn.Load(),
		BytesOut:           m.bytesOut.Load(),
		IOErrors:           m.ioErrors.Load(),
	}
}

// JSON returns the snapshot as an indented JSON string.
func (m *Manager) JSON() string {
	data, _ := json.MarshalIndent(m.Snapshot(), "", "  ")
	return string(data)
}

// Package transport holds the socket layer of the telemetry server: a
// non-blocking stream listener with its per-peer Connection state
// machine, a non-blocking datagram Endpoint, and the outbound dialers
// the client mode uses.  The server side works on raw descriptors so
// the reactor can multiplex them; the client side uses net.Conn.
package transport

import (
	"context"
	"net"
	"time"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer.
	// Stateless dialers return nil.
	Close() error
}

// ForProtocol returns the dialer used by client mode.
func ForProtocol(udp bool, timeout time.Duration) Dialer {
	if udp {
		return &UDPDialer{Timeout: timeout}
	}
	return &TCPDialer{Timeout: timeout}
}

// Package command classifies and executes one inbound message.
//
// A message that starts with "/" is a command; the name after the slash
// is looked up case-sensitively in a fixed registry.  Anything else is
// echoed back unchanged.
package command

import (
	"fmt"
	"strings"
	"time"

	"telemetry/internal/session"
)

// Prefix marks a message as a command.
const Prefix = "/"

// ShutdownAck is returned by the shutdown command.  It never reaches a
// client: the transport that sees it sends ShutdownNotice instead and
// asks the server to stop.
const ShutdownAck = "/SHUTDOWN_ACK"

// ShutdownNotice is the human-readable reply to a shutdown request.
const ShutdownNotice = "Server shutting down gracefully..."

// TimeLayout renders the time command's reply: YYYY-MM-DD HH:MM:SS.
const TimeLayout = "2006-01-02 15:04:05"

// Whitespace is the set trimmed from the end of every inbound message.
const Whitespace = " \t\n\r\f\v"

// Origin identifies where a request came from.
type Origin struct {
	Transport string // "tcp" or "udp"
	Peer      string // remote address
}

func (o Origin) String() string {
	if o.Transport == "" {
		return o.Peer
	}
	return o.Transport + " " + o.Peer
}

// Request is one inbound message, trimmed at the transport boundary.
type Request struct {
	Text   string
	Origin Origin
}

// NewRequest builds a Request, stripping trailing whitespace from text.
func NewRequest(text, transport, peer string) Request {
	return Request{
		Text:   strings.TrimRight(text, Whitespace),
		Origin: Origin{Transport: transport, Peer: peer},
	}
}

// IsCommand reports whether the request carries a command.
func (r Request) IsCommand() bool { return strings.HasPrefix(r.Text, Prefix) }

// Name returns the command name without the prefix.
func (r Request) Name() string { return strings.TrimPrefix(r.Text, Prefix) }

// IsShutdown reports whether a reply is the shutdown sentinel.
func IsShutdown(reply string) bool { return reply == ShutdownAck }

// ── Handlers ─────────────────────────────────────────────────────────

// Handler executes one named command.
type Handler interface {
	Execute() string
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc func() string

// Execute calls f.
func (f HandlerFunc) Execute() string { return f() }

// Time reports the current local time.
type Time struct {
	Now func() time.Time
}

// Execute formats the clock reading with TimeLayout.
func (h Time) Execute() string {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return now().Format(TimeLayout)
}

// Stats reports live connection counters.
type Stats struct {
	Sessions *session.Manager
}

// Execute renders the two-line stats reply.
func (h Stats) Execute() string {
	st := h.Sessions.Stats()
	return fmt.Sprintf("Total connections: %d\nCurrent connections: %d",
		st.TotalConnections, st.CurrentConnections)
}

// Shutdown returns the shutdown sentinel.
type Shutdown struct{}

// Execute returns ShutdownAck.
func (Shutdown) Execute() string { return ShutdownAck }

// ── Processor ────────────────────────────────────────────────────────

// Option customises a Processor.
type Option func(*Processor)

// WithClock replaces the time command's clock.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.handlers["time"] = Time{Now: now} }
}

// Processor maps command names to handlers and echoes everything else.
// Handlers only read session state; none of them mutate it.
type Processor struct {
	handlers map[string]Handler
}

// NewProcessor builds a Processor with the time, stats and shutdown
// commands.
func NewProcessor(sessions *session.Manager, opts ...Option) *Processor {
	p := &Processor{handlers: map[string]Handler{
		"time":     Time{},
		"stats":    Stats{Sessions: sessions},
		"shutdown": Shutdown{},
	}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process returns the reply for req: a handler result, an error string
// naming an unknown command, or the text itself.
func (p *Processor) Process(req Request) string {
	if !req.IsCommand() {
		return req.Text
	}
	h, ok := p.handlers[req.Name()]
	if !ok {
		return fmt.Sprintf("ERROR: Unknown command '%s'", req.Text)
	}
	return h.Execute()
}

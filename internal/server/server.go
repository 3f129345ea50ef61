// Package server composes the telemetry server: one reactor goroutine
// multiplexes a TCP listener, its accepted connections and a UDP
// endpoint bound to the same port, routes every message through the
// command processor and sequences shutdown.
//
// Everything except RequestShutdown and the session counters is owned
// by the goroutine that calls Start, Run and Stop.
package server

import (
	"fmt"
	"os"
	"sync"
	"time"

	"telemetry/internal/command"
	"telemetry/internal/errors"
	"telemetry/internal/reactor"
	"telemetry/internal/session"
	"telemetry/internal/shutdown"
	"telemetry/internal/transport"
	"telemetry/util"
)

// drainLimit caps how many peers or datagrams one readiness event
// handles before the loop moves on to other descriptors.
const drainLimit = 64

// DefaultPollInterval bounds how long one reactor pass may block.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures a Server.
type Options struct {
	Host         string // bind address; empty binds every interface
	Port         int    // TCP and UDP port; 0 picks an ephemeral port
	BufferSize   int
	Backlog      int
	PollInterval time.Duration
	MaxEvents    int
	Signals      []os.Signal // nil selects shutdown.DefaultSignals
	Clock        func() time.Time
}

// Server is the telemetry echo/command server.
type Server struct {
	opts Options
	log  *util.Logger

	sessions  *session.Manager
	processor *command.Processor
	coord     *shutdown.Coordinator
	flag      shutdown.Flag

	loop     *reactor.Loop
	waker    *reactor.Waker
	listener *transport.Listener
	endpoint *transport.Endpoint
	conns    map[int]*transport.Connection

	started  bool
	stopOnce sync.Once
}

// New returns a Server that is not yet listening.
func New(opts Options, logger *util.Logger) *Server {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Signals == nil {
		opts.Signals = shutdown.DefaultSignals
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}

	sessions := session.NewManager()
	var popts []command.Option
	if opts.Clock != nil {
		popts = append(popts, command.WithClock(opts.Clock))
	}

	return &Server{
		opts:      opts,
		log:       logger,
		sessions:  sessions,
		processor: command.NewProcessor(sessions, popts...),
		coord:     shutdown.NewCoordinator(),
		conns:     make(map[int]*transport.Connection),
	}
}

// Sessions returns the live counters.  They are safe to read from any
// goroutine.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Port returns the bound port, valid after Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return s.opts.Port
	}
	return s.listener.Port
}

// Connections returns the number of open TCP connections tracked by
// the reactor.
func (s *Server) Connections() int { return len(s.conns) }

// ShuttingDown reports whether shutdown has been requested.
func (s *Server) ShuttingDown() bool { return s.flag.IsSet() }

// Start binds both sockets, registers them with a fresh reactor and
// installs the signal handlers.  On failure everything acquired so far
// is released and the Server cannot be restarted.
func (s *Server) Start() error {
	if s.started {
		return nil
	}
	if err := s.start(); err != nil {
		s.teardown()
		return err
	}
	s.started = true
	s.log.Info("telemetry server listening on tcp+udp %s", util.FormatAddr(s.bindHost(), s.Port()))
	return nil
}

func (s *Server) start() error {
	loop, err := reactor.New(s.opts.MaxEvents)
	if err != nil {
		return err
	}
	s.loop = loop

	waker, err := reactor.NewWaker()
	if err != nil {
		return err
	}
	s.waker = waker
	if err := s.loop.Register(waker.Fd(), reactor.Readable, func(reactor.Events) { waker.Drain() }); err != nil {
		return err
	}

	s.listener = transport.NewListener(s.opts.Host, s.opts.Port, s.sessions)
	if s.opts.Backlog > 0 {
		s.listener.Backlog = s.opts.Backlog
	}
	if s.opts.BufferSize > 0 {
		s.listener.BufferSize = s.opts.BufferSize
	}
	if err := s.listener.Start(); err != nil {
		return err
	}
	if err := s.loop.Register(s.listener.Fd(), reactor.Readable, s.handleAccept); err != nil {
		return err
	}

	// UDP shares the port TCP ended up on, ephemeral or not.
	s.endpoint = transport.NewEndpoint(s.opts.Host, s.listener.Port, s.sessions)
	if s.opts.BufferSize > 0 {
		s.endpoint.BufferSize = s.opts.BufferSize
	}
	if err := s.endpoint.Start(); err != nil {
		return err
	}
	if err := s.loop.Register(s.endpoint.Fd(), reactor.Readable, s.handleDatagrams); err != nil {
		return err
	}

	return s.coord.Install(s.opts.Signals, func(sig os.Signal) {
		s.RequestShutdown("received signal " + sig.String())
	})
}

// Run drives the reactor until shutdown is requested.
func (s *Server) Run() error {
	if !s.started {
		return errors.ErrNotStarted
	}
	for !s.flag.IsSet() {
		if err := s.loop.Run(s.opts.PollInterval); err != nil {
			return fmt.Errorf("event loop: %w", err)
		}
	}
	return nil
}

// Serve is Start, Run and Stop in sequence.
func (s *Server) Serve() error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()
	return s.Run()
}

// RequestShutdown asks the reactor to stop after its current pass.  It
// may be called from any goroutine; only the first call has an effect.
func (s *Server) RequestShutdown(reason string) {
	s.requestShutdown(reason, false)
}

func (s *Server) requestShutdown(reason string, byClient bool) {
	if !s.flag.Set() {
		return
	}
	if byClient {
		s.log.Warn("shutdown requested by %s", reason)
	} else {
		s.log.Info("shutting down: %s", reason)
	}
	if s.waker != nil {
		s.waker.Wake()
	}
}

// Stop releases every socket.  Open TCP connections are closed without
// a farewell.  It must run on the reactor goroutine after Run returns
// and is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.flag.Set()
		s.teardown()
		if s.started {
			st := s.sessions.Stats()
			s.log.Info("server stopped after %s: %d connections served",
				time.Since(st.StartTime).Truncate(time.Second), st.TotalConnections)
		}
	})
}

func (s *Server) teardown() {
	s.coord.Uninstall()

	if s.listener != nil {
		s.unregister(s.listener.Fd())
		if err := s.listener.Stop(); err != nil {
			s.log.Debug("closing listener: %v", err)
		}
	}
	if s.endpoint != nil {
		s.unregister(s.endpoint.Fd())
		if err := s.endpoint.Stop(); err != nil {
			s.log.Debug("closing datagram socket: %v", err)
		}
	}
	for _, c := range s.conns {
		c.Close()
	}
	if s.waker != nil {
		s.unregister(s.waker.Fd())
		s.waker.Close() //nolint:errcheck
	}
	if s.loop != nil {
		s.loop.Close() //nolint:errcheck
	}
}

func (s *Server) unregister(fd int) {
	if s.loop != nil && fd >= 0 {
		s.loop.Unregister(fd)
	}
}

func (s *Server) bindHost() string {
	if s.opts.Host == "" {
		return "0.0.0.0"
	}
	return s.opts.Host
}

// ── TCP ──────────────────────────────────────────────────────────────

func (s *Server) handleAccept(reactor.Events) {
	for i := 0; i < drainLimit; i++ {
		if s.flag.IsSet() {
			return
		}
		c, err := s.listener.AcceptOne()
		if err != nil {
			s.log.Warn("accept: %v", err)
			return
		}
		if c == nil {
			return
		}
		s.adopt(c)
	}
}

func (s *Server) adopt(c *transport.Connection) {
	fd := c.Fd()
	c.OnMessage(s.handleMessage)
	c.OnClose(func(c *transport.Connection) {
		s.loop.Unregister(fd)
		delete(s.conns, fd)
		s.log.Verbose("tcp %s disconnected", c.Peer())
	})

	err := s.loop.Register(fd, reactor.Readable|reactor.PeerHup, func(reactor.Events) {
		if err := c.HandleRead(); err != nil {
			s.log.Verbose("tcp %s: %v", c.Peer(), err)
		}
	})
	if err != nil {
		s.log.Warn("tcp %s: %v", c.Peer(), err)
		c.Close()
		return
	}
	s.conns[fd] = c
	s.log.Verbose("tcp %s connected", c.Peer())
}

func (s *Server) handleMessage(c *transport.Connection, msg string) {
	req := command.NewRequest(msg, "tcp", c.Peer())
	s.log.Debug("%s: %q", req.Origin, req.Text)

	reply := s.processor.Process(req)
	if command.IsShutdown(reply) {
		s.reply(c, command.ShutdownNotice)
		s.requestShutdown(req.Origin.String(), true)
		return
	}
	s.reply(c, reply)
}

func (s *Server) reply(c *transport.Connection, text string) {
	if err := c.Send(text + "\n"); err != nil {
		s.log.Verbose("tcp %s: %v", c.Peer(), err)
	}
}

// ── UDP ──────────────────────────────────────────────────────────────

func (s *Server) handleDatagrams(reactor.Events) {
	for i := 0; i < drainLimit; i++ {
		msg, from, ok, err := s.endpoint.ReceiveOne()
		if err != nil {
			s.log.Warn("udp receive: %v", err)
			return
		}
		if !ok {
			return
		}

		req := command.NewRequest(msg, "udp", transport.FormatSockaddr(from))
		s.log.Debug("%s: %q", req.Origin, req.Text)

		reply := s.processor.Process(req)
		stop := command.IsShutdown(reply)
		if stop {
			reply = command.ShutdownNotice
		}
		if err := s.endpoint.SendTo(reply, from); err != nil {
			s.log.Verbose("%s: %v", req.Origin, err)
		}
		if stop {
			s.requestShutdown(req.Origin.String(), true)
			return
		}
	}
}

// Package diag serves a read-only HTTP view of the server's counters.
// It runs on its own goroutine and only ever reads the session
// manager's atomics, never reactor state.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"telemetry/internal/command"
	"telemetry/internal/session"
	"telemetry/util"
)

// shutdownGrace bounds how long in-flight requests may run on stop.
const shutdownGrace = 2 * time.Second

// Server is the diagnostic HTTP endpoint.
type Server struct {
	addr     string
	sessions *session.Manager
	log      *util.Logger
	router   *httprouter.Router

	mu       sync.Mutex
	listener net.Listener
}

// NewServer returns an endpoint that will listen on addr.
func NewServer(addr string, sessions *session.Manager, logger *util.Logger) *Server {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	s := &Server{
		addr:     addr,
		sessions: sessions,
		log:      logger,
		router:   httprouter.New(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/stats", s.handleStats)
	s.router.GET("/stats/text", s.handleStatsText)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the bound address once Serve is listening, or the
// configured one before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve listens and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("diag listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("diagnostics on http://%s", ln.Addr())

	select {
	case err := <-errCh:
		return fmt.Errorf("diag serve: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("diag shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("diag serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sessions.Snapshot()); err != nil {
		s.log.Debug("diag: encoding stats: %v", err)
	}
}

// handleStatsText returns exactly what the stats command replies.
func (s *Server) handleStatsText(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, command.Stats{Sessions: s.sessions}.Execute())
}

package core

import (
	"bytes"
	"context"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"telemetry/internal/retry"
	"telemetry/internal/server"
	"telemetry/internal/transport"
	"telemetry/util"
)

// startServer runs a real server on an ephemeral loopback port and
// returns its address.
func startServer(t *testing.T) (string, <-chan struct{}) {
	t.Helper()
	s := server.New(server.Options{
		Host:         "127.0.0.1",
		PollInterval: 20 * time.Millisecond,
		Signals:      []os.Signal{syscall.SIGUSR2},
	}, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", s.Port())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Run() //nolint:errcheck
		s.Stop()
	}()
	t.Cleanup(func() {
		s.RequestShutdown("test cleanup")
		<-stopped
	})
	return addr, stopped
}

func newClient(network, addr string, out *bytes.Buffer) *ClientMode {
	return &ClientMode{
		Dialer:  transport.ForProtocol(network == "udp", time.Second),
		Network: network,
		Address: addr,
		Timeout: 2 * time.Second,
		Logger:  util.NewLogger(0),
		Stdin:   strings.NewReader(""),
		Stdout:  out,
	}
}

func TestClientMode_OneShot(t *testing.T) {
	addr, _ := startServer(t)

	for _, network := range []string{"tcp", "udp"} {
		t.Run(network, func(t *testing.T) {
			var out bytes.Buffer
			m := newClient(network, addr, &out)
			m.Messages = []string{"Hello World", "/stats"}

			if err := m.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
			if len(lines) != 3 || lines[0] != "Hello World" || !strings.HasPrefix(lines[1], "Total connections: ") {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestClientMode_InteractiveQuit(t *testing.T) {
	addr, _ := startServer(t)

	var out bytes.Buffer
	m := newClient("udp", addr, &out)
	m.Prompt = true
	m.Stdin = strings.NewReader("first\n/unknown\nquit\nnever sent\n")

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "> first\n> ERROR: Unknown command '/unknown'\n> "
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestClientMode_StopsOnShutdownNotice(t *testing.T) {
	addr, stopped := startServer(t)

	var out bytes.Buffer
	m := newClient("tcp", addr, &out)
	m.Prompt = true
	m.Stdin = strings.NewReader("/shutdown\nafter\n")

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(out.String(), "Server shutting down gracefully...\n") {
		t.Errorf("output = %q", out.String())
	}
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestClientMode_PipedTCP(t *testing.T) {
	addr, _ := startServer(t)

	var out bytes.Buffer
	m := newClient("tcp", addr, &out)
	m.Stdin = strings.NewReader("one\ntwo\n")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// However the server splits the stream, both lines come back.
	if got := out.String(); !strings.Contains(got, "one") || !strings.Contains(got, "two") {
		t.Errorf("output = %q", got)
	}
}

func TestClientMode_DialRetriesThenFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listens here now

	var out bytes.Buffer
	m := newClient("tcp", addr, &out)
	m.Messages = []string{"hello"}
	m.Backoff = &retry.Backoff{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxAttempts: 3}

	err = m.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "max retries (3)") {
		t.Errorf("Run = %v, want exhausted retries", err)
	}
}

func TestClientMode_DialRetrySucceeds(t *testing.T) {
	port := freePort(t)
	addr := util.FormatAddr("127.0.0.1", port)

	// The server only appears after the client has started dialing.
	ready := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		s := server.New(server.Options{
			Host:         "127.0.0.1",
			Port:         port,
			PollInterval: 20 * time.Millisecond,
			Signals:      []os.Signal{syscall.SIGUSR2},
		}, nil)
		if err := s.Start(); err != nil {
			close(ready)
			return
		}
		close(ready)
		s.Run() //nolint:errcheck
		s.Stop()
	}()

	var out bytes.Buffer
	m := newClient("tcp", addr, &out)
	m.Messages = []string{"/shutdown"}
	m.Backoff = &retry.Backoff{InitialDelay: 20 * time.Millisecond, MaxDelay: 100 * time.Millisecond, MaxAttempts: 20}

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-ready
	if out.String() != "Server shutting down gracefully...\n" {
		t.Errorf("output = %q", out.String())
	}
}

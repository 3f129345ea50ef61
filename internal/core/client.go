package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"telemetry/internal/command"
	"telemetry/internal/retry"
	"telemetry/internal/transport"
	"telemetry/util"
)

// replyBufferSize is the largest reply read in one go.
const replyBufferSize = 64 * 1024

// quitCommand ends an interactive session without contacting the server.
const quitCommand = "quit"

// ClientMode talks to a running server: one-shot when Messages is set,
// otherwise line by line from Stdin.
type ClientMode struct {
	Dialer   transport.Dialer
	Network  string // "tcp" or "udp"
	Address  string
	Messages []string
	Timeout  time.Duration
	Backoff  *retry.Backoff
	Prompt   bool // print "> " before each line; set when stdin is a terminal
	Logger   *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ClientMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ClientMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the server and exchanges messages until the input ends,
// the user types quit or the server announces shutdown.
func (m *ClientMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	m.Logger.Verbose("connected to %s (%s)", m.Address, m.Network)

	if len(m.Messages) > 0 {
		for _, msg := range m.Messages {
			done, err := m.roundTrip(conn, msg)
			if err != nil || done {
				return err
			}
		}
		return nil
	}

	// Piped TCP input is streamed; replies are printed as they come.
	if !m.Prompt && m.Network == "tcp" {
		return util.BidirectionalCopy(ctx, conn, m.stdin(), m.stdout())
	}
	return m.interactive(ctx, conn)
}

func (m *ClientMode) dial(ctx context.Context) (net.Conn, error) {
	b := m.Backoff
	if b == nil {
		b = retry.ForDial(0)
	}

	var conn net.Conn
	err := b.Do(ctx, func(attempt int) error {
		c, err := m.Dialer.Dial(ctx, m.Network, m.Address)
		if err != nil {
			m.Logger.Verbose("connect to %s (attempt %d): %v", m.Address, attempt, err)
			return retry.ClassifyDial(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	return conn, nil
}

func (m *ClientMode) interactive(ctx context.Context, conn net.Conn) error {
	out := m.stdout()
	scanner := bufio.NewScanner(m.stdin())
	for {
		if m.Prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == quitCommand {
			return nil
		}
		done, err := m.roundTrip(conn, line)
		if err != nil || done {
			return err
		}
	}
}

// roundTrip sends one message, prints the reply and reports whether the
// server announced it is shutting down.
func (m *ClientMode) roundTrip(conn net.Conn, msg string) (bool, error) {
	payload := msg
	if m.Network == "tcp" {
		payload += "\n"
	}
	if m.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(m.Timeout)) //nolint:errcheck
	}
	if _, err := io.WriteString(conn, payload); err != nil {
		return false, fmt.Errorf("send: %w", err)
	}

	buf := make([]byte, replyBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		if err == io.EOF {
			return true, fmt.Errorf("server closed the connection")
		}
		return false, fmt.Errorf("receive: %w", err)
	}

	reply := strings.TrimSuffix(string(buf[:n]), "\n")
	fmt.Fprintln(m.stdout(), reply)

	if reply == command.ShutdownNotice {
		m.Logger.Info("server is shutting down")
		return true, nil
	}
	return false, nil
}

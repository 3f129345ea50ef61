package command

import (
	"testing"
	"time"

	"telemetry/internal/session"
)

func TestProcess_Echo(t *testing.T) {
	p := NewProcessor(session.NewManager())

	tests := []string{
		"Hello World",
		"Hello UDP",
		"",
		"   leading spaces",
		"time",
		"stats /shutdown",
		"multi\nline",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if got := p.Process(Request{Text: in}); got != in {
				t.Errorf("Process(%q) = %q, want echo", in, got)
			}
		})
	}
}

func TestProcess_Time(t *testing.T) {
	p := NewProcessor(session.NewManager())

	got := p.Process(Request{Text: "/time"})
	if len(got) != 19 {
		t.Fatalf("len(%q) = %d, want 19", got, len(got))
	}
	for idx, want := range map[int]byte{4: '-', 7: '-', 10: ' ', 13: ':', 16: ':'} {
		if got[idx] != want {
			t.Errorf("%q[%d] = %q, want %q", got, idx, got[idx], want)
		}
	}
	if _, err := time.ParseInLocation(TimeLayout, got, time.Local); err != nil {
		t.Errorf("reply %q does not parse: %v", got, err)
	}
}

func TestProcess_TimeUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)
	p := NewProcessor(session.NewManager(), WithClock(func() time.Time { return fixed }))

	if got, want := p.Process(Request{Text: "/time"}), "2024-03-09 07:05:01"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProcess_Stats(t *testing.T) {
	sessions := session.NewManager()
	p := NewProcessor(sessions)

	sessions.Connected()
	sessions.Connected()
	sessions.Disconnected()

	want := "Total connections: 2\nCurrent connections: 1"
	if got := p.Process(Request{Text: "/stats"}); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Live snapshot, not a cached one.
	sessions.Connected()
	want = "Total connections: 3\nCurrent connections: 2"
	if got := p.Process(Request{Text: "/stats"}); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProcess_StatsDoesNotMutate(t *testing.T) {
	sessions := session.NewManager()
	p := NewProcessor(sessions)

	for i := 0; i < 3; i++ {
		p.Process(Request{Text: "/stats"})
		p.Process(Request{Text: "/time"})
		p.Process(Request{Text: "/shutdown"})
	}
	if st := sessions.Stats(); st.TotalConnections != 0 || st.CurrentConnections != 0 {
		t.Errorf("commands mutated session counters: %+v", st)
	}
}

func TestProcess_Shutdown(t *testing.T) {
	p := NewProcessor(session.NewManager())

	got := p.Process(Request{Text: "/shutdown"})
	if !IsShutdown(got) {
		t.Fatalf("got %q, want sentinel", got)
	}
	if got == ShutdownNotice {
		t.Error("sentinel must differ from the client-facing notice")
	}
}

func TestProcess_Unknown(t *testing.T) {
	p := NewProcessor(session.NewManager())

	tests := []struct {
		in   string
		want string
	}{
		{"/doesnotexist", "ERROR: Unknown command '/doesnotexist'"},
		{"/unknown", "ERROR: Unknown command '/unknown'"},
		{"/", "ERROR: Unknown command '/'"},
		{"/TIME", "ERROR: Unknown command '/TIME'"},
		{"/time now", "ERROR: Unknown command '/time now'"},
		{"/SHUTDOWN_ACK", "ERROR: Unknown command '/SHUTDOWN_ACK'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := p.Process(Request{Text: tt.in}); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequest_TrimsTrailingWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World\n", "Hello World"},
		{"/time\r\n", "/time"},
		{"  padded \t\v\f ", "  padded"},
		{"\n", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := NewRequest(tt.in, "tcp", "127.0.0.1:5000")
		if req.Text != tt.want {
			t.Errorf("NewRequest(%q).Text = %q, want %q", tt.in, req.Text, tt.want)
		}
	}

	req := NewRequest("x", "udp", "10.0.0.1:9")
	if got := req.Origin.String(); got != "udp 10.0.0.1:9" {
		t.Errorf("Origin = %q", got)
	}
}

func TestHandlerFunc(t *testing.T) {
	var h Handler = HandlerFunc(func() string { return "pong" })
	if h.Execute() != "pong" {
		t.Error("HandlerFunc should call through")
	}
}

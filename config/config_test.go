package config

import (
	"strings"
	"testing"
	"time"

	"telemetry/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Host != "0.0.0.0" || cfg.BufferSize != 1024 || cfg.Backlog != 128 {
		t.Errorf("server defaults = %+v", cfg)
	}
	if cfg.PollInterval != 100*time.Millisecond || cfg.MaxEvents != 64 {
		t.Errorf("reactor defaults = %v / %d", cfg.PollInterval, cfg.MaxEvents)
	}
	if cfg.Timeout != 5*time.Second || cfg.Retries != 3 || cfg.Verbose != 1 {
		t.Errorf("client defaults = %+v", cfg)
	}
	if cfg.Port != 0 {
		t.Error("there is no default port")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Port = 8080
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string // "" means valid
		wantSub string
	}{
		{"valid server", func(c *Config) {}, "", ""},
		{"missing port", func(c *Config) { c.Port = 0 }, "port", "hint:"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port", "1-65535"},
		{"negative port", func(c *Config) { c.Port = -1 }, "port", "out of range"},
		{"buffer too small", func(c *Config) { c.BufferSize = 10 }, "buffer-size", "hint:"},
		{"buffer too large", func(c *Config) { c.BufferSize = 70000 }, "buffer-size", "65507"},
		{"backlog zero", func(c *Config) { c.Backlog = 0 }, "backlog", "at least 1"},
		{"poll zero", func(c *Config) { c.PollInterval = 0 }, "poll-interval", "try 100ms"},
		{"max events zero", func(c *Config) { c.MaxEvents = 0 }, "max-events", ""},
		{"client without host", func(c *Config) { c.Client = true }, "host", "hint:"},
		{"client ok", func(c *Config) { c.Client = true; c.ServerHost = "localhost" }, "", ""},
		{"client ignores server knobs", func(c *Config) {
			c.Client = true
			c.ServerHost = "localhost"
			c.BufferSize = 1
		}, "", ""},
		{"client bad timeout", func(c *Config) {
			c.Client = true
			c.ServerHost = "localhost"
			c.Timeout = 0
		}, "timeout", ""},
		{"client missing port hint", func(c *Config) {
			c.Client = true
			c.ServerHost = "localhost"
			c.Port = 0
		}, "port", "-c <host> <port>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *errors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestModeAndSummary(t *testing.T) {
	cfg := Default()
	cfg.Port = 9000
	if cfg.Mode() != "server" || !strings.Contains(cfg.Summary(), "server on 0.0.0.0:9000") {
		t.Errorf("server: %q / %q", cfg.Mode(), cfg.Summary())
	}
	cfg.StatsAddr = "127.0.0.1:9100"
	if !strings.Contains(cfg.Summary(), "diagnostics on 127.0.0.1:9100") {
		t.Errorf("summary = %q", cfg.Summary())
	}

	cfg.Client, cfg.UDP, cfg.ServerHost = true, true, "example.net"
	if cfg.Mode() != "udp client" || !strings.HasPrefix(cfg.Summary(), "udp client -> example.net:9000") {
		t.Errorf("client: %q / %q", cfg.Mode(), cfg.Summary())
	}
}

package core

import (
	"os"

	"golang.org/x/term"

	"telemetry/config"
	"telemetry/internal/diag"
	"telemetry/internal/retry"
	"telemetry/internal/server"
	"telemetry/internal/transport"
	"telemetry/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Client {
		return buildClient(cfg, logger), nil
	}
	return buildServe(cfg, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) *ServeMode {
	srv := server.New(server.Options{
		Host:         cfg.Host,
		Port:         cfg.Port,
		BufferSize:   cfg.BufferSize,
		Backlog:      cfg.Backlog,
		PollInterval: cfg.PollInterval,
		MaxEvents:    cfg.MaxEvents,
	}, logger)

	m := &ServeMode{Server: srv, Logger: logger}
	if cfg.StatsAddr != "" {
		m.Diag = diag.NewServer(cfg.StatsAddr, srv.Sessions(), logger)
	}
	return m
}

func buildClient(cfg *config.Config, logger *util.Logger) *ClientMode {
	network := "tcp"
	if cfg.UDP {
		network = "udp"
	}

	var messages []string
	if cfg.Message != "" {
		messages = []string{cfg.Message}
	}

	return &ClientMode{
		Dialer:   transport.ForProtocol(cfg.UDP, cfg.Timeout),
		Network:  network,
		Address:  util.FormatAddr(cfg.ServerHost, cfg.Port),
		Messages: messages,
		Timeout:  cfg.Timeout,
		Backoff:  retry.ForDial(cfg.Retries),
		Prompt:   term.IsTerminal(int(os.Stdin.Fd())),
		Logger:   logger,
	}
}

// Package cmd wires up the CLI flags, assembles the configuration and
// dispatches to the selected mode.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"telemetry/config"
	"telemetry/internal/core"
	"telemetry/internal/errors"
	"telemetry/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X telemetry/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate telemetryd mode.
//
// Configuration layers, lowest to highest: defaults, the YAML file
// named by --config or TELEMETRY_CONFIG, TELEMETRY_* variables, flags.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()

	if path := configPath(args); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return err
		}
		cfg.ConfigFile = path
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("telemetryd", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP and UDP port")
	fs.StringVarP(&cfg.Host, "host", "H", cfg.Host, "Bind address")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Largest message read at once")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "TCP listen backlog")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Longest single reactor wait")
	fs.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "Ready descriptors handled per wait")
	fs.StringVar(&cfg.StatsAddr, "stats-addr", cfg.StatsAddr, "Serve /health and /stats over HTTP on this address")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML configuration file")

	// ── client ───────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Client, "client", "c", false, "Client mode: talk to a running server")
	fs.BoolVarP(&cfg.UDP, "udp", "u", false, "Client uses UDP instead of TCP")
	fs.StringVarP(&cfg.Message, "message", "m", "", "Send one message, print the reply and exit")
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout, "Client dial and reply timeout")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Extra client dial attempts")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")

	var showVersion, showHelp bool
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A bare invocation serves when the file or environment supplied a
	// port; otherwise it prints usage.
	if showHelp || (len(args) == 0 && cfg.Port == 0) {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("telemetryd %s\n", version)
		return nil
	}

	switch {
	case quiet:
		cfg.Verbose = 0
	case verbose > 0:
		cfg.Verbose = config.DefaultVerbose + verbose
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Printf("configuration ok: %s\n", cfg.Summary())
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.Verbose("%s", cfg.Summary())

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}

	// The server installs its own signal handling; the client just
	// stops when interrupted.
	if cfg.Client {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// configPath finds --config ahead of the real parse so the file layer
// can sit below environment and flags.
func configPath(args []string) string {
	path := config.ConfigFileFromEnv()
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			path = v
		} else if arg == "--config" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	return path
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if !cfg.Client {
		// telemetryd [options] [port]
		switch len(remaining) {
		case 0:
			return nil
		case 1:
			return parsePort(cfg, remaining[0])
		default:
			return fmt.Errorf("too many arguments: %q (use --help for usage)", remaining)
		}
	}

	// telemetryd -c <host> <port> [message…]
	if len(remaining) < 1 {
		return &errors.ConfigError{
			Field:   "host",
			Message: "client mode requires a server host",
			Hint:    "usage: telemetryd -c <host> <port> [message]",
		}
	}
	cfg.ServerHost = remaining[0]

	if len(remaining) >= 2 {
		if err := parsePort(cfg, remaining[1]); err != nil {
			return err
		}
	}
	if len(remaining) > 2 {
		cfg.Message = strings.Join(remaining[2:], " ")
	}
	return nil
}

func parsePort(cfg *config.Config, arg string) error {
	port, err := strconv.Atoi(arg)
	if err != nil {
		return &errors.ConfigError{Field: "port", Value: arg, Message: "port must be a number"}
	}
	cfg.Port = port
	return nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `telemetryd – TCP/UDP echo and command server v%s

Usage:
  telemetryd [options] <port>                       Serve TCP and UDP
  telemetryd -c [-u] <host> <port> [message...]     Client

Commands understood by the server:
  /time        current local time (YYYY-MM-DD HH:MM:SS)
  /stats       total and current TCP connections
  /shutdown    stop the server
  anything else is echoed back

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  telemetryd 8080                                   Serve on port 8080
  telemetryd --stats-addr 127.0.0.1:9100 8080       With HTTP diagnostics
  telemetryd -c localhost 8080 /stats               One-shot TCP request
  telemetryd -cu localhost 8080                     Interactive UDP client
  echo "hello" | telemetryd -c localhost 8080       Pipe data
`)
}

// Package cmd wires up the CLI flags and dispatches to the socket driver.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"tcpdriver/config"
	"tcpdriver/internal/core"
	"tcpdriver/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tcpdriver/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

func stdStreams() core.Streams {
	return core.Streams{
		In:       os.Stdin,
		Out:      os.Stdout,
		Err:      os.Stderr,
		StdinTTY: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Execute parses args and runs the selected tcpdrv mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, stdStreams())
}

func execute(ctx context.Context, args []string, st core.Streams) error {
	cfg := config.New()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("tcpdrv", flag.ContinueOnError)
	fs.SetOutput(st.Err)

	// ── endpoint ─────────────────────────────────────────────────
	var listen, async bool
	fs.BoolVarP(&listen, "listen", "l", cfg.Mode.Listening(), "Bind to <host> <port> and receive from one peer")
	fs.BoolVarP(&async, "async", "a", isAsync(cfg.Mode), "Use the callback-driven send/receive path")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	var localPort int
	fs.IntVarP(&localPort, "local-port", "p", int(cfg.LocalPort), "Source port for the outbound connect (0 = ephemeral)")
	fs.BoolVar(&cfg.Lazy, "lazy", cfg.Lazy, "Open the socket before connecting instead of connecting at construction")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Connect timeout in seconds (0 = none)")

	// ── socket ───────────────────────────────────────────────────
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "I/O context worker goroutines (0 = one per CPU)")
	fs.IntVar(&cfg.RecvBufferSize, "recv-buffer", cfg.RecvBufferSize, "Async receive buffer size in bytes")
	fs.BoolVar(&cfg.ReuseAddr, "reuse-addr", cfg.ReuseAddr, "Set SO_REUSEADDR before connecting")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Connect attempts with exponential backoff")

	// ── payload ──────────────────────────────────────────────────
	fs.StringVarP(&cfg.Data, "data", "d", cfg.Data, "Bytes to send (default: stdin when piped)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Connect through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print socket metrics as JSON to stderr on exit")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(st.Err, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(st.Err, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(st.Out, "tcpdrv %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	if localPort < 0 || localPort > 65535 {
		return fmt.Errorf("local port %d out of range 0-65535", localPort)
	}
	cfg.LocalPort = uint16(localPort)
	cfg.Mode = selectMode(listen, async)

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintf(st.Err, "tcpdrv: %s %s:%d ok\n", cfg.Mode, cfg.Host, cfg.Port)
		return nil
	}

	logger := util.NewLoggerWithOutput(cfg.Verbose, st.Err)
	defer logger.Sync() //nolint:errcheck

	mode, err := core.Build(cfg, st, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func selectMode(listen, async bool) config.Mode {
	switch {
	case listen && async:
		return config.ModeAsyncReceive
	case listen:
		return config.ModeReceive
	case async:
		return config.ModeAsyncSend
	}
	return config.ModeSend
}

func isAsync(m config.Mode) bool {
	return m == config.ModeAsyncSend || m == config.ModeAsyncReceive
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Host != "" && cfg.Port != 0 && len(remaining) == 0 {
		return nil // both from the environment
	}
	switch len(remaining) {
	case 0:
		return fmt.Errorf("hostname required (use --help for usage)")
	case 1:
		return fmt.Errorf("port required")
	case 2:
	default:
		return fmt.Errorf("too many arguments: a socket talks to exactly one <host> <port>")
	}

	port, err := config.ParsePort(remaining[1])
	if err != nil {
		return fmt.Errorf("port: %w", err)
	}
	cfg.Host = remaining[0]
	cfg.Port = port
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `tcpdrv – single-connection TCP driver v%s

Usage:
  tcpdrv [options] <host> <port>              Connect and send
  tcpdrv -l [options] <host> <port>           Bind, accept one peer, receive
  tcpdrv -T user@gateway <host> <port>        Send through an SSH tunnel

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  tcpdrv -d $'\x01\x02\x03' 10.0.0.5 502      Send three bytes
  echo "hello" | tcpdrv host.example.com 9000 Pipe data
  tcpdrv -l 127.0.0.1 9000 > dump.bin         Receive until the peer closes
  tcpdrv -la -v 0.0.0.0 9000                  Stream chunks as they arrive
  tcpdrv --retries 5 plc.local 502            Retry the connect with backoff
`)
}

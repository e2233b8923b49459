// Package config defines the runtime configuration for tcpdrv and
// provides helpers for parsing ports and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "tcpdriver/internal/errors"
)

// Mode selects which socket operation the CLI drives.
type Mode string

const (
	ModeSend         Mode = "send"
	ModeAsyncSend    Mode = "async-send"
	ModeReceive      Mode = "receive"
	ModeAsyncReceive Mode = "async-receive"
)

// Listening reports whether the mode waits for an inbound peer.
func (m Mode) Listening() bool {
	return m == ModeReceive || m == ModeAsyncReceive
}

// Config holds every tuneable for a single tcpdrv run.
type Config struct {
	// ── Endpoint ─────────────────────────────────────────────────────
	Host      string
	Port      uint16
	Mode      Mode
	LocalPort uint16 // source port for outbound connects, 0 = ephemeral
	NoDNS     bool
	Lazy      bool // skip the eager connect in send modes
	Timeout   time.Duration

	// ── Socket ───────────────────────────────────────────────────────
	Workers        int // I/O context workers, 0 = NumCPU
	RecvBufferSize int
	ReuseAddr      bool
	Retries        int // total connect attempts, 1 = no retry

	// ── Payload ──────────────────────────────────────────────────────
	Data string // --data; stdin is used when empty

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Stats   bool
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Mode:           ModeSend,
		Timeout:        DefaultConnTimeout,
		RecvBufferSize: DefaultRecvBufferSize,
		Retries:        DefaultRetries,
	}
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (uint16, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return uint16(port), nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSend, ModeAsyncSend, ModeReceive, ModeAsyncReceive:
	default:
		return &ncerr.ConfigError{
			Field:   "mode",
			Value:   c.Mode,
			Message: "unknown mode",
			Hint:    "use send, async-send, receive or async-receive",
		}
	}

	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "is required",
			Hint:    "usage: tcpdrv [options] <host> <port>",
		}
	}
	if c.Port == 0 {
		return &ncerr.ConfigError{
			Field:   "port",
			Message: "is required",
			Hint:    "usage: tcpdrv [options] <host> <port>",
		}
	}

	if c.Timeout < 0 {
		return &ncerr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.Workers < 0 {
		return &ncerr.ConfigError{Field: "workers", Value: c.Workers, Message: "must not be negative"}
	}
	if c.RecvBufferSize < 1 {
		return &ncerr.ConfigError{Field: "recv-buffer", Value: c.RecvBufferSize, Message: "must be at least 1"}
	}
	if c.Retries < 1 {
		return &ncerr.ConfigError{
			Field:   "retries",
			Value:   c.Retries,
			Message: "must be at least 1",
			Hint:    "1 means a single attempt",
		}
	}

	if c.Mode.Listening() {
		if c.LocalPort != 0 {
			return &ncerr.ConfigError{
				Field:   "local-port",
				Value:   c.LocalPort,
				Message: "only applies to outbound connects",
				Hint:    "in listen mode the positional <port> is the bind port",
			}
		}
		if c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "cannot be combined with listen mode",
				Hint:    "the tunnel only carries outbound connects",
			}
		}
		if c.Data != "" {
			return &ncerr.ConfigError{Field: "data", Message: "is only used when sending"}
		}
	}

	if c.TunnelEnabled && c.LocalPort != 0 {
		return &ncerr.ConfigError{Field: "local-port", Value: c.LocalPort, Message: "cannot be combined with --tunnel"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}

	return nil
}

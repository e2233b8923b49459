package core

import (
	"go.uber.org/zap"

	"tcpdriver/config"
	"tcpdriver/internal/retry"
	"tcpdriver/internal/transport"
	"tcpdriver/tcpdriver"
	"tcpdriver/tunnel"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, st Streams, logger *zap.Logger) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode.Listening() {
		return buildReceive(cfg, st, logger), nil
	}
	return buildSend(cfg, st, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildSend(cfg *config.Config, st Streams, logger *zap.Logger) Mode {
	m := &SendMode{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Workers:   cfg.Workers,
		Options:   socketOptions(cfg, logger),
		Dialer:    buildDialer(cfg, logger),
		Lazy:      cfg.Lazy,
		ReuseAddr: cfg.ReuseAddr,
		Timeout:   cfg.Timeout,
		Async:     cfg.Mode == config.ModeAsyncSend,
		ChunkSize: cfg.RecvBufferSize,
		Payload:   payloadSource(cfg, st),
		Logger:    logger,
	}
	if cfg.Retries > 1 {
		m.Backoff = retry.DefaultBackoff(cfg.Retries)
	}
	if cfg.Stats {
		m.Stats = st.Err
	}
	return m
}

func buildReceive(cfg *config.Config, st Streams, logger *zap.Logger) Mode {
	m := &ReceiveMode{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Workers: cfg.Workers,
		Options: socketOptions(cfg, logger),
		Async:   cfg.Mode == config.ModeAsyncReceive,
		Out:     st.Out,
		Logger:  logger,
	}
	if cfg.Stats {
		m.Stats = st.Err
	}
	return m
}

// ── shared helpers ───────────────────────────────────────────────────

func socketOptions(cfg *config.Config, logger *zap.Logger) []tcpdriver.Option {
	opts := []tcpdriver.Option{
		tcpdriver.WithLogger(logger),
		tcpdriver.WithRecvBufferSize(cfg.RecvBufferSize),
		tcpdriver.WithConnectTimeout(cfg.Timeout),
	}
	if cfg.NoDNS {
		opts = append(opts, tcpdriver.WithNoDNS())
	}
	if cfg.LocalPort != 0 {
		opts = append(opts, tcpdriver.WithLocalPort(cfg.LocalPort))
	}
	return opts
}

// buildDialer returns the SSH dialer when a tunnel is configured, or
// nil to let the socket use plain TCP.
func buildDialer(cfg *config.Config, logger *zap.Logger) transport.Dialer {
	if !cfg.TunnelEnabled {
		return nil
	}
	return transport.NewSSHDialer(&tunnel.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   cfg.Timeout,
	}, logger)
}

// payloadSource picks --data over stdin, and never reads a terminal.
func payloadSource(cfg *config.Config, st Streams) func() ([]byte, error) {
	if cfg.Data != "" {
		data := []byte(cfg.Data)
		return func() ([]byte, error) { return data, nil }
	}
	if st.StdinTTY || st.In == nil {
		return nil
	}
	return func() ([]byte, error) { return readAll(st.In) }
}

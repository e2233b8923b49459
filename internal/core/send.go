package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"tcpdriver/internal/retry"
	"tcpdriver/internal/transport"
	"tcpdriver/iocontext"
	"tcpdriver/tcpdriver"
	"tcpdriver/util"
)

// SendMode connects to a remote endpoint and writes one payload, the
// default client mode.
type SendMode struct {
	Host      string
	Port      uint16
	Workers   int
	Options   []tcpdriver.Option
	Dialer    transport.Dialer // nil = plain TCP
	Lazy      bool             // Connect explicitly instead of at construction
	ReuseAddr bool             // Open before Connect
	Timeout   time.Duration
	Backoff   *retry.Backoff // nil = single attempt
	Async     bool
	ChunkSize int // AsyncSend granularity
	Payload   func() ([]byte, error)
	Stats     io.Writer
	Logger    *zap.Logger
}

// Run executes the send mode.
func (m *SendMode) Run(ctx context.Context) error {
	var payload []byte
	if m.Payload != nil {
		var err error
		if payload, err = m.Payload(); err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
	}

	ioc := iocontext.New(iocontext.WithWorkers(m.Workers), iocontext.WithLogger(m.Logger))
	defer ioc.Stop()

	opts := m.Options
	if m.Dialer != nil {
		defer m.Dialer.Close()
		opts = append(opts[:len(opts):len(opts)], tcpdriver.WithDialer(m.Dialer))
	}

	s, err := m.connect(ctx, ioc, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	defer writeStats(m.Stats, s)

	if len(payload) == 0 {
		m.Logger.Info("connected, nothing to send",
			zap.String("addr", util.FormatAddr(s.IP(), int(s.Port()))))
		return nil
	}
	if m.Async {
		return m.asyncSend(ctx, s, payload)
	}
	if !s.Send(payload) {
		return s.LastError()
	}
	m.Logger.Info("sent", zap.Int("bytes", len(payload)))
	return nil
}

// connect creates the socket, retrying with backoff when configured.
func (m *SendMode) connect(ctx context.Context, ioc *iocontext.Context, opts []tcpdriver.Option) (*tcpdriver.Socket, error) {
	if m.Backoff == nil {
		return m.dial(ctx, ioc, opts)
	}

	var s *tcpdriver.Socket
	err := m.Backoff.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			m.Logger.Info("retrying connect",
				zap.Int("attempt", attempt),
				zap.Int("of", m.Backoff.MaxAttempts))
		}
		var err error
		s, err = m.dial(ctx, ioc, opts)
		return err
	})
	return s, err
}

func (m *SendMode) dial(ctx context.Context, ioc *iocontext.Context, opts []tcpdriver.Option) (*tcpdriver.Socket, error) {
	if !m.Lazy && !m.ReuseAddr {
		return tcpdriver.New(ioc, m.Host, m.Port, opts...)
	}

	s, err := tcpdriver.New(ioc, m.Host, m.Port, append(opts[:len(opts):len(opts)], tcpdriver.WithLazyConnect())...)
	if err != nil {
		return nil, err
	}
	if m.ReuseAddr {
		if err := s.Open(); err != nil {
			return nil, err
		}
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	if err := s.Connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// asyncSend queues payload in ChunkSize pieces and waits until every
// byte has been written.
func (m *SendMode) asyncSend(ctx context.Context, s *tcpdriver.Socket, payload []byte) error {
	chunk := m.ChunkSize
	if chunk <= 0 {
		chunk = len(payload)
	}
	for off := 0; off < len(payload); off += chunk {
		end := off + chunk
		if end > len(payload) {
			end = len(payload)
		}
		s.AsyncSend(payload[off:end])
	}

	total := int64(len(payload))
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if s.Metrics().TotalBytesOut() >= total {
			m.Logger.Info("sent", zap.Int64("bytes", total))
			return nil
		}
		if err := s.LastError(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readAll(r io.Reader) ([]byte, error) {
	var buf []byte
	_, err := util.ReadAllInto(r, &buf)
	return buf, err
}

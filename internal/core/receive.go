package core

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	ncerr "tcpdriver/internal/errors"
	"tcpdriver/iocontext"
	"tcpdriver/tcpdriver"
)

// ReceiveMode binds the endpoint, accepts one peer and copies what it
// sends to Out.
type ReceiveMode struct {
	Host    string
	Port    uint16
	Workers int
	Options []tcpdriver.Option
	Async   bool // stream chunks through AsyncReceive
	Out     io.Writer
	Stats   io.Writer
	Logger  *zap.Logger
}

// Run executes the receive mode.
func (m *ReceiveMode) Run(ctx context.Context) error {
	ioc := iocontext.New(iocontext.WithWorkers(m.Workers), iocontext.WithLogger(m.Logger))
	defer ioc.Stop()

	opts := append(m.Options[:len(m.Options):len(m.Options)], tcpdriver.WithLazyConnect())
	s, err := tcpdriver.New(ioc, m.Host, m.Port, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Open(); err != nil {
		return err
	}
	if err := s.Bind(); err != nil {
		return err
	}
	m.Logger.Info("listening", zap.Stringer("addr", s.LocalAddr()))
	defer writeStats(m.Stats, s)

	if m.Async {
		return m.stream(ctx, s)
	}
	return m.receive(ctx, s)
}

func (m *ReceiveMode) receive(ctx context.Context, s *tcpdriver.Socket) error {
	stop := context.AfterFunc(ctx, func() { s.Close() }) //nolint:errcheck
	defer stop()

	var buf []byte
	if !s.Receive(&buf) {
		if ctx.Err() != nil {
			return nil
		}
		return s.LastError()
	}
	m.Logger.Info("received", zap.Int("bytes", len(buf)))
	_, err := m.Out.Write(buf)
	return err
}

// stream writes every chunk to Out as it arrives, re-registering the
// callback after each one, until the peer closes.
func (m *ReceiveMode) stream(ctx context.Context, s *tcpdriver.Socket) error {
	if err := s.Accept(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	writeErr := make(chan error, 1)
	var onData tcpdriver.ReceiveFunc
	onData = func(data []byte) {
		if _, err := m.Out.Write(data); err != nil {
			m.Logger.Warn("output failed, stopping", zap.Error(err))
			writeErr <- err
			return
		}
		s.AsyncReceive(onData)
	}
	s.AsyncReceive(onData)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if err := s.LastError(); err != nil {
			if ncerr.IsClosed(err) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-writeErr:
			return err
		case <-ticker.C:
		}
	}
}

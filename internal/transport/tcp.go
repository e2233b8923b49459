package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections, optionally binding to a
// specific source port.
type TCPDialer struct {
	Timeout   time.Duration
	LocalPort int  // optional source-port binding (0 = ephemeral)
	ReuseAddr bool // set SO_REUSEADDR before connecting
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: d.Timeout,
		Control: Control(d.ReuseAddr),
	}

	if d.LocalPort > 0 {
		a, err := net.ResolveTCPAddr(network, fmt.Sprintf(":%d", d.LocalPort))
		if err != nil {
			return nil, fmt.Errorf("resolve local addr: %w", err)
		}
		dialer.LocalAddr = a
	}

	return dialer.DialContext(ctx, network, address)
}

// WithReuseAddr implements [ReuseAddrDialer].
func (d *TCPDialer) WithReuseAddr(on bool) Dialer {
	c := *d
	c.ReuseAddr = on
	return &c
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }

// Listen opens a TCP listener on address, applying SO_REUSEADDR when
// reuseAddr is set.
func Listen(ctx context.Context, address string, reuseAddr bool) (*net.TCPListener, error) {
	lc := net.ListenConfig{Control: Control(reuseAddr)}
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return ln.(*net.TCPListener), nil
}

// AcceptOne waits for a single peer on ln, giving up when ctx is done.
// The listener is left open; the caller decides when to release it.
func AcceptOne(ctx context.Context, ln *net.TCPListener) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		ln.SetDeadline(time.Unix(1, 0)) //nolint:errcheck
	})
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return conn, nil
}

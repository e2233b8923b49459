// Package tcpdriver provides a single-connection TCP socket with both
// blocking and callback-driven I/O, meant as the transport layer of a
// device or protocol driver.
//
// A Socket wraps exactly one peer connection.  Blocking calls report
// failure through a boolean and log the cause; asynchronous calls
// return immediately and deliver their completion on a borrowed
// [iocontext.Context].  Nothing in this package retries, frames or
// multiplexes: bytes in, bytes out.
//
//	ioc := iocontext.New()
//	defer ioc.Stop()
//
//	s, err := tcpdriver.New(ioc, "127.0.0.1", 9000)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if !s.Send([]byte{0x01, 0x02, 0x03}) {
//		return s.LastError()
//	}
//
// A Socket guards its own state, but issuing blocking and asynchronous
// I/O concurrently on the same socket is undefined; coordinate that in
// the caller.
package tcpdriver

import (
	"context"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	ncerr "tcpdriver/internal/errors"
	"tcpdriver/internal/metrics"
	"tcpdriver/internal/transport"
	"tcpdriver/iocontext"
	"tcpdriver/util"
)

// State is the lifecycle state of a Socket.
type State int

const (
	StateClosed    State = iota // no OS resource held
	StateOpen                   // opened for configuration, nothing bound or connected
	StateBound                  // listening on the local endpoint
	StateConnected              // a peer connection exists
)

func (st State) String() string {
	switch st {
	case StateOpen:
		return "open"
	case StateBound:
		return "bound"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// ReceiveFunc consumes the bytes of one receive completion.  data is
// only valid for the duration of the call.
type ReceiveFunc func(data []byte)

// Socket is one TCP endpoint talking to one peer.
type Socket struct {
	ioc      *iocontext.Context
	endpoint *net.TCPAddr
	dialer   transport.Dialer
	logger   *zap.Logger
	metrics  *metrics.Collector

	connectTimeout time.Duration
	localPort      uint16
	noDNS          bool
	lazy           bool
	recvSize       int

	mu        sync.Mutex
	opened    bool
	reuseAddr bool
	listener  *net.TCPListener
	conn      net.Conn
	gen       uint64 // bumped by every Close
	lastErr   error

	// async receive slot
	recvBuf    []byte
	onReceive  ReceiveFunc
	armed      bool
	completing bool
	rearm      bool

	// async send FIFO
	sendMu  sync.Mutex
	sendQ   *queue.Queue // of sendRequest
	sending bool
}

// New creates a socket for ip:port on the given I/O context and, unless
// [WithLazyConnect] is passed, connects to it straight away.  A failed
// resolution or connect returns an error and no socket.
func New(ioc *iocontext.Context, ip string, port uint16, opts ...Option) (*Socket, error) {
	if ioc == nil {
		return nil, ncerr.ErrNoContext
	}

	s := &Socket{
		ioc:      ioc,
		logger:   Logger(),
		recvSize: DefaultRecvBufferSize,
		sendQ:    queue.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.dialer == nil {
		s.dialer = &transport.TCPDialer{
			Timeout:   s.connectTimeout,
			LocalPort: int(s.localPort),
		}
	}

	ep, err := util.ResolveTCPAddr(ip, port, s.noDNS)
	if err != nil {
		return nil, ncerr.Wrap("resolve", util.FormatAddr(ip, int(port)), err)
	}
	s.endpoint = ep
	s.recvBuf = make([]byte, s.recvSize)

	if !s.lazy {
		if err := s.Connect(context.Background()); err != nil {
			return nil, err
		}
	}

	runtime.SetFinalizer(s, func(s *Socket) { s.Close() }) //nolint:errcheck
	return s, nil
}

// IP returns the remote address the socket was created for.
func (s *Socket) IP() string { return s.endpoint.IP.String() }

// Port returns the remote port the socket was created for.
func (s *Socket) Port() uint16 { return uint16(s.endpoint.Port) }

// LocalAddr returns the address of the listener or of our end of the
// connection, or nil when neither exists.
func (s *Socket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.conn != nil:
		return s.conn.LocalAddr()
	case s.listener != nil:
		return s.listener.Addr()
	}
	return nil
}

// Metrics exposes the socket's counters.
func (s *Socket) Metrics() *metrics.Collector { return s.metrics }

// LastError returns the most recent transport error, including errors
// from async completions that have no other way to reach the caller.
func (s *Socket) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ── lifecycle ────────────────────────────────────────────────────────

// State returns the current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Socket) stateLocked() State {
	switch {
	case s.conn != nil:
		return StateConnected
	case s.listener != nil:
		return StateBound
	case s.opened:
		return StateOpen
	}
	return StateClosed
}

// IsOpen reports whether the socket holds, or is configured to hold,
// an OS resource.
func (s *Socket) IsOpen() bool {
	return s.State() != StateClosed
}

// Open readies a closed socket for configuration and enables address
// reuse for its later bind or connect.  Opening a socket that is not
// closed returns [ErrAlreadyOpen].
func (s *Socket) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateClosed {
		return ncerr.ErrAlreadyOpen
	}
	s.opened = true
	s.reuseAddr = true
	return nil
}

// Bind starts listening on the socket's endpoint.
func (s *Socket) Bind() error {
	s.mu.Lock()
	switch {
	case s.listener != nil:
		s.mu.Unlock()
		return ncerr.ErrAlreadyBound
	case s.conn != nil:
		s.mu.Unlock()
		return ncerr.ErrAlreadyConnected
	}
	reuse, gen := s.reuseAddr, s.gen
	s.mu.Unlock()

	ln, err := transport.Listen(context.Background(), s.addr(), reuse)
	if err != nil {
		return ncerr.Wrap("bind", s.addr(), err)
	}

	if err := s.install(ln, gen); err != nil {
		return err
	}
	s.logger.Debug("bound", zap.Stringer("addr", ln.Addr()))
	return nil
}

// install keeps ln as the socket's listener unless the socket was
// closed or bound while the listen was in flight.
func (s *Socket) install(ln *net.TCPListener, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.gen != gen:
		ln.Close()
		return ncerr.ErrSocketClosed
	case s.listener != nil:
		ln.Close()
		return ncerr.ErrAlreadyBound
	}
	s.listener = ln
	s.opened = true
	return nil
}

// Connect dials the socket's endpoint.  New does this already unless
// the socket was created with [WithLazyConnect].
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return ncerr.ErrAlreadyConnected
	}
	reuse, gen := s.reuseAddr, s.gen
	s.mu.Unlock()

	dialer := s.dialer
	if rd, ok := dialer.(transport.ReuseAddrDialer); ok && reuse {
		dialer = rd.WithReuseAddr(true)
	}

	conn, err := dialer.Dial(ctx, "tcp", s.addr())
	if err != nil {
		nerr := ncerr.Wrap("dial", s.addr(), err)
		s.recordErr(nerr)
		return nerr
	}
	if err := s.adopt(conn, gen); err != nil {
		return err
	}

	s.metrics.Connected()
	s.logger.Debug("connected",
		zap.Stringer("local", conn.LocalAddr()),
		zap.Stringer("remote", conn.RemoteAddr()))
	return nil
}

// Accept waits for one inbound peer.  It uses the bound listener, or a
// temporary listener on the socket's port when the socket isn't bound,
// and releases the listener once the attempt finishes.
func (s *Socket) Accept(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return ncerr.ErrAlreadyConnected
	}
	ln, reuse, gen := s.listener, s.reuseAddr, s.gen
	s.mu.Unlock()

	if ln == nil {
		local := util.FormatAddr("", int(s.Port()))
		tmp, err := transport.Listen(ctx, local, reuse)
		if err != nil {
			return ncerr.Wrap("bind", local, err)
		}
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			tmp.Close()
			return ncerr.ErrSocketClosed
		}
		s.listener = tmp
		s.mu.Unlock()
		ln = tmp
	}

	s.logger.Debug("waiting for peer", zap.Stringer("addr", ln.Addr()))
	conn, err := transport.AcceptOne(ctx, ln)

	s.mu.Lock()
	if s.listener == ln {
		s.listener = nil
	}
	s.mu.Unlock()
	ln.Close()

	if err != nil {
		nerr := ncerr.Wrap("accept", ln.Addr().String(), err)
		s.recordErr(nerr)
		return nerr
	}
	if err := s.adopt(conn, gen); err != nil {
		return err
	}

	s.metrics.Accepted()
	s.logger.Debug("accepted", zap.Stringer("peer", conn.RemoteAddr()))
	return nil
}

// adopt installs conn unless the socket was closed or connected while
// the dial or accept was in flight.
func (s *Socket) adopt(conn net.Conn, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.gen != gen:
		conn.Close()
		return ncerr.ErrSocketClosed
	case s.conn != nil:
		conn.Close()
		return ncerr.ErrAlreadyConnected
	}
	s.conn = conn
	s.opened = true
	return nil
}

// Close releases the connection and listener.  Pending blocking and
// async operations fail with a transport error.  Close is idempotent;
// a failure is logged and returned, but the socket ends up closed
// either way.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.stateLocked() == StateClosed {
		s.mu.Unlock()
		return nil
	}
	conn, ln := s.conn, s.listener
	s.conn, s.listener = nil, nil
	s.opened, s.reuseAddr = false, false
	s.gen++
	if s.armed {
		// the pending read still owns the old buffer
		s.recvBuf = make([]byte, cap(s.recvBuf))
	}
	s.armed, s.rearm = false, false
	s.onReceive = nil
	s.mu.Unlock()

	var errs []error
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if ln != nil {
		if err := ln.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ncerr.Join(errs...); err != nil {
		nerr := ncerr.Wrap("close", s.addr(), err)
		s.logger.Error("close failed", zap.String("addr", s.addr()), zap.Error(err))
		s.recordErr(nerr)
		return nerr
	}
	s.logger.Debug("closed", zap.String("addr", s.addr()))
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func (s *Socket) addr() string { return s.endpoint.String() }

func (s *Socket) connection() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Socket) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.metrics.RecordError(err.Error())
}

// report logs a failed operation at error level and records it.
func (s *Socket) report(op string, err error) {
	var nerr *ncerr.NetworkError
	if !ncerr.As(err, &nerr) {
		nerr = ncerr.Wrap(op, s.addr(), err)
	}
	s.logger.Error(op+" failed",
		zap.String("addr", s.addr()),
		zap.Error(nerr.Err))
	s.recordErr(nerr)
}

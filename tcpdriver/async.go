package tcpdriver

import (
	"io"
	"net"

	"go.uber.org/zap"

	ncerr "tcpdriver/internal/errors"
)

type sendRequest struct {
	conn net.Conn
	buf  []byte
}

// AsyncSend queues buf for transmission and returns immediately.  The
// socket owns buf until the write completes; do not modify it.  Writes
// from successive calls go out in call order.  Failures are logged from
// the completion handler and recorded in [Socket.LastError].
func (s *Socket) AsyncSend(buf []byte) {
	conn := s.connection()
	if conn == nil {
		s.report("async send", ncerr.ErrNotConnected)
		return
	}

	s.sendMu.Lock()
	s.sendQ.Add(sendRequest{conn: conn, buf: buf})
	start := !s.sending
	s.sending = true
	s.sendMu.Unlock()

	if start {
		go s.writeLoop()
	}
}

func (s *Socket) writeLoop() {
	for {
		s.sendMu.Lock()
		if s.sendQ.Length() == 0 {
			s.sending = false
			s.sendMu.Unlock()
			return
		}
		req := s.sendQ.Remove().(sendRequest)
		s.sendMu.Unlock()

		n, err := req.conn.Write(req.buf)
		if err == nil && n != len(req.buf) {
			err = io.ErrShortWrite
		}
		s.complete("async send", func() { s.handleSendCompletion(err, n) }, nil)
	}
}

func (s *Socket) handleSendCompletion(err error, n int) {
	s.metrics.BytesSent(int64(n))
	if err != nil {
		s.reportAsync("async send", err)
	}
}

// AsyncReceive registers cb as the socket's receive handler, replacing
// any earlier one, and arms a read if none is pending.  Each
// registration is good for one completion:
//
//   - on error the cause is logged, cb is not called and nothing is re-armed;
//   - on a zero-byte completion cb is not called and nothing is re-armed;
//   - otherwise cb is called on the I/O context with exactly the bytes read.
//
// For a continuous stream call AsyncReceive again from inside cb.  The
// next read starts only after cb returns, so cb may use its argument
// freely until then.
func (s *Socket) AsyncReceive(cb ReceiveFunc) {
	s.mu.Lock()
	s.onReceive = cb
	if s.armed {
		s.mu.Unlock()
		return
	}
	if s.completing {
		s.rearm = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.arm()
}

// Armed reports whether an async receive is pending.
func (s *Socket) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Socket) arm() {
	s.mu.Lock()
	if s.armed {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	if conn == nil {
		s.onReceive = nil
		s.mu.Unlock()
		s.report("async receive", ncerr.ErrNotConnected)
		return
	}
	s.armed = true
	gen := s.gen
	buf := s.recvBuf[:cap(s.recvBuf)]
	s.mu.Unlock()

	go func() {
		n, err := conn.Read(buf)
		s.complete("async receive",
			func() { s.handleReceiveCompletion(gen, err, n) },
			func() { s.dropReceive(gen) })
	}()
}

// handleReceiveCompletion finishes the read armed in generation gen.  A
// read from a connection that has since been closed only reports its
// error; the slot belongs to whatever was registered after the Close.
func (s *Socket) handleReceiveCompletion(gen uint64, err error, n int) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		if err == nil {
			err = ncerr.ErrSocketClosed
		}
		s.reportAsync("async receive", err)
		return
	}
	s.armed = false
	cb := s.onReceive
	s.onReceive = nil

	switch {
	case err != nil:
		s.mu.Unlock()
		s.reportAsync("async receive", err)
		return
	case n == 0:
		s.mu.Unlock()
		s.metrics.EmptyCompletion()
		s.logger.Debug("empty receive completion", zap.String("addr", s.addr()))
		return
	}

	s.recvBuf = s.recvBuf[:n]
	data := s.recvBuf
	s.completing = true
	s.mu.Unlock()

	defer s.finishReceive()

	s.metrics.BytesReceived(int64(n))
	if cb != nil {
		s.metrics.CallbackInvoked()
		cb(data)
	}
}

// dropReceive resets the slot of generation gen after its completion
// could not be posted.
func (s *Socket) dropReceive(gen uint64) {
	s.mu.Lock()
	if s.gen == gen {
		s.armed = false
		s.onReceive = nil
	}
	s.mu.Unlock()
}

// finishReceive restores the receive buffer and starts a read that cb
// asked for while it was running.
func (s *Socket) finishReceive() {
	s.mu.Lock()
	s.recvBuf = s.recvBuf[:cap(s.recvBuf)]
	s.completing = false
	rearm := s.rearm
	s.rearm = false
	s.mu.Unlock()

	if rearm {
		s.arm()
	}
}

// complete hands a completion to the I/O context.  If the context has
// stopped the completion is dropped and drop, when set, runs instead.
func (s *Socket) complete(op string, fn, drop func()) {
	if err := s.ioc.Post(fn); err != nil {
		if drop != nil {
			drop()
		}
		s.logger.Warn("completion dropped",
			zap.String("op", op),
			zap.String("addr", s.addr()),
			zap.Error(err))
		s.recordErr(ncerr.Wrap(op, s.addr(), err))
	}
}

// reportAsync logs an error delivered to a completion handler.  A
// closed connection is the normal end of a stream and is logged at
// debug level; anything else is an error.
func (s *Socket) reportAsync(op string, err error) {
	if ncerr.IsClosed(err) {
		s.logger.Debug(op+": connection closed",
			zap.String("addr", s.addr()),
			zap.Error(err))
	} else {
		s.logger.Error(op+" failed",
			zap.String("addr", s.addr()),
			zap.Error(err))
	}
	s.recordErr(ncerr.Wrap(op, s.addr(), err))
}

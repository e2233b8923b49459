package tcpdriver

import (
	"context"
	"errors"
	"io"

	ncerr "tcpdriver/internal/errors"
	"tcpdriver/util"
)

// Send writes all of buf to the peer and blocks until the write
// finishes.  It returns false, and logs why, if there is no connection
// or the write fails or comes up short.
func (s *Socket) Send(buf []byte) bool {
	conn := s.connection()
	if conn == nil {
		s.report("send", ncerr.ErrNotConnected)
		return false
	}

	n, err := conn.Write(buf)
	s.metrics.BytesSent(int64(n))
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.report("send", err)
		return false
	}
	return true
}

// Receive waits for one inbound peer, then reads from it until it
// closes the connection, leaving every byte received in *buf.  This is
// how a socket becomes connected on the inbound path; a socket that is
// already connected fails with [ErrAlreadyConnected].
func (s *Socket) Receive(buf *[]byte) bool {
	if err := s.Accept(context.Background()); err != nil {
		s.report("receive", err)
		return false
	}
	return s.ReadAll(buf)
}

// ReadAll reads from the connected peer until EOF and replaces *buf
// with the bytes received.
func (s *Socket) ReadAll(buf *[]byte) bool {
	if buf == nil {
		s.report("receive", errors.New("nil buffer"))
		return false
	}
	conn := s.connection()
	if conn == nil {
		s.report("receive", ncerr.ErrNotConnected)
		return false
	}

	n, err := util.ReadAllInto(conn, buf)
	s.metrics.BytesReceived(int64(n))
	if err != nil {
		s.report("receive", err)
		return false
	}
	return true
}

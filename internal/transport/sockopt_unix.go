//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Control returns a net.Dialer / net.ListenConfig control hook that
// sets SO_REUSEADDR on the raw socket before bind or connect.
func Control(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	if !reuseAddr {
		return nil
	}
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

//go:build !unix

package transport

import "syscall"

// Control is a no-op where SO_REUSEADDR is not exposed through x/sys.
func Control(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	return nil
}

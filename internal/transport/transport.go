// Package transport provides the ways a socket obtains its OS-level
// connection: dialing out (plain TCP or through an SSH gateway) and
// listening for a single inbound peer.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.  Implementations include the
// plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through an encrypted gateway.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// ReuseAddrDialer is implemented by dialers that can apply the
// address-reuse option to the sockets they create.  WithReuseAddr
// returns a dialer with the option set and leaves the receiver alone.
type ReuseAddrDialer interface {
	Dialer
	WithReuseAddr(on bool) Dialer
}

package tcpdriver

import (
	"time"

	"go.uber.org/zap"

	"tcpdriver/internal/metrics"
	"tcpdriver/internal/transport"
)

// DefaultRecvBufferSize is the capacity of the async receive buffer.
const DefaultRecvBufferSize = 2048

// Option configures a Socket at construction.
type Option func(*Socket)

// WithLogger sets the sink for transport diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Socket) { s.logger = l }
}

// WithDialer replaces the plain TCP dialer, e.g. with an SSH-tunnelled
// one.  The socket does not close a dialer supplied this way.
func WithDialer(d transport.Dialer) Option {
	return func(s *Socket) { s.dialer = d }
}

// WithMetrics shares a collector between sockets.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Socket) { s.metrics = m }
}

// WithConnectTimeout bounds the eager connect done by New.  It only
// applies to the default dialer.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Socket) { s.connectTimeout = d }
}

// WithLocalPort binds outbound connects to a fixed source port.  Pair
// it with Open, which enables address reuse, to reconnect from the same
// port while the previous connection is in TIME_WAIT.  It only applies
// to the default dialer.
func WithLocalPort(port uint16) Option {
	return func(s *Socket) { s.localPort = port }
}

// WithNoDNS rejects addresses that are not literal IPs.
func WithNoDNS() Option {
	return func(s *Socket) { s.noDNS = true }
}

// WithLazyConnect skips the eager connect.  The socket starts closed
// and the caller drives Open, Bind, Accept or Connect.
func WithLazyConnect() Option {
	return func(s *Socket) { s.lazy = true }
}

// WithRecvBufferSize overrides [DefaultRecvBufferSize].
func WithRecvBufferSize(n int) Option {
	return func(s *Socket) {
		if n > 0 {
			s.recvSize = n
		}
	}
}

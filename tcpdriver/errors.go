package tcpdriver

import ncerr "tcpdriver/internal/errors"

// Errors returned by socket lifecycle operations.  Transport failures
// are returned as *NetworkError wrapping the underlying cause.
var (
	ErrNotConnected     = ncerr.ErrNotConnected
	ErrAlreadyOpen      = ncerr.ErrAlreadyOpen
	ErrAlreadyBound     = ncerr.ErrAlreadyBound
	ErrAlreadyConnected = ncerr.ErrAlreadyConnected
	ErrSocketClosed     = ncerr.ErrSocketClosed
	ErrNoContext        = ncerr.ErrNoContext
)

// NetworkError describes a failed transport operation.
type NetworkError = ncerr.NetworkError

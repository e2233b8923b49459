package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds the eager connect.
	DefaultConnTimeout = 30 * time.Second

	// DefaultRecvBufferSize matches the socket's async receive buffer.
	DefaultRecvBufferSize = 2048

	// DefaultRetries is the number of connect attempts; 1 disables
	// retrying.
	DefaultRetries = 1
)

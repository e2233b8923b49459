// Package core is the orchestration layer.  It composes a socket, its
// I/O context and a transport into complete operational modes and
// provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  tcpdriver (socket)  →  core  →  cmd (CLI)
package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"tcpdriver/tcpdriver"
)

// Mode represents a complete operational mode of tcpdrv.  Each mode
// owns its I/O context and socket from construction to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// Streams are the process I/O endpoints a mode reads from and writes
// to.  Tests substitute buffers.
type Streams struct {
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	StdinTTY bool // In is an interactive terminal; never read it
}

// pollInterval is how often the async modes check for completion.
const pollInterval = 10 * time.Millisecond

// writeStats prints the socket's metrics when w is set.
func writeStats(w io.Writer, s *tcpdriver.Socket) {
	if w != nil {
		fmt.Fprintln(w, s.Metrics().JSON())
	}
}

// Package metrics provides lightweight, lock-free counters for tracking
// the health of a single socket.
//
// Async completions have no return channel to the caller, so these
// counters (and the last recorded error) are how a caller observes a
// receive stream that has gone quiet.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one socket.
type Collector struct {
	connects       atomic.Int64
	accepts        atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	callbacks      atomic.Int64
	emptyCompletes atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// Connected records a successful outbound connect.
func (c *Collector) Connected() {
	if c == nil {
		return
	}
	c.connects.Add(1)
}

// Accepted records a successful inbound accept.
func (c *Collector) Accepted() {
	if c == nil {
		return
	}
	c.accepts.Add(1)
}

// Connects returns the number of outbound connections made.
func (c *Collector) Connects() int64 {
	if c == nil {
		return 0
	}
	return c.connects.Load()
}

// Accepts returns the number of inbound peers accepted.
func (c *Collector) Accepts() int64 {
	if c == nil {
		return 0
	}
	return c.accepts.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Async receive metrics ────────────────────────────────────────────

// CallbackInvoked records a receive completion that reached the
// registered callback.
func (c *Collector) CallbackInvoked() {
	if c == nil {
		return
	}
	c.callbacks.Add(1)
}

// EmptyCompletion records a successful receive completion that carried
// zero bytes and was therefore not delivered.
func (c *Collector) EmptyCompletion() {
	if c == nil {
		return
	}
	c.emptyCompletes.Add(1)
}

// Callbacks returns how many completions were delivered to a callback.
func (c *Collector) Callbacks() int64 {
	if c == nil {
		return 0
	}
	return c.callbacks.Load()
}

// EmptyCompletions returns how many zero-byte completions were dropped.
func (c *Collector) EmptyCompletions() int64 {
	if c == nil {
		return 0
	}
	return c.emptyCompletes.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// LastErrorMessage returns the most recently recorded error message.
func (c *Collector) LastErrorMessage() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErrorMsg
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	Connects         int64  `json:"connects"`
	Accepts          int64  `json:"accepts"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	Callbacks        int64  `json:"callbacks"`
	EmptyCompletions int64  `json:"empty_completions"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		Connects:         c.connects.Load(),
		Accepts:          c.accepts.Load(),
		BytesIn:          c.bytesIn.Load(),
		BytesOut:         c.bytesOut.Load(),
		Callbacks:        c.callbacks.Load(),
		EmptyCompletions: c.emptyCompletes.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

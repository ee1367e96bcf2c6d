// Package metrics counts what a tawqa run moved: bytes in each
// direction, accepted or established connections, zero-I/O probe
// outcomes and fatal errors.
//
// A nil *Collector is a valid no-op receiver.
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Collector holds the counters for one run.  Each byte counter has a
// single writer (one relay direction); the supervisor may read them
// from the signal path at any time.
type Collector struct {
	connections  atomic.Int64
	bytesIn      atomic.Int64
	bytesOut     atomic.Int64
	probesOpen   atomic.Int64
	probesClosed atomic.Int64
	errors       atomic.Int64
	lastError    atomic.Pointer[string]

	started time.Time
}

// New returns a Collector whose run clock starts now.
func New() *Collector {
	return &Collector{started: time.Now()}
}

// ── connections ──────────────────────────────────────────────────────

// ConnectionOpened records a peer handed to the relay or the bridge.
func (c *Collector) ConnectionOpened() {
	if c != nil {
		c.connections.Add(1)
	}
}

// Connections returns how many peers the run served.
func (c *Collector) Connections() int64 {
	if c == nil {
		return 0
	}
	return c.connections.Load()
}

// ── bytes ────────────────────────────────────────────────────────────

// BytesReceived records n bytes read from the socket.
func (c *Collector) BytesReceived(n int64) {
	if c != nil {
		c.bytesIn.Add(n)
	}
}

// BytesSent records n bytes written to the socket.
func (c *Collector) BytesSent(n int64) {
	if c != nil {
		c.bytesOut.Add(n)
	}
}

func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// Totals formats the byte counters for the interrupt report.
func (c *Collector) Totals() string {
	return fmt.Sprintf("sent %d, rcvd %d", c.TotalBytesOut(), c.TotalBytesIn())
}

// ── probes ───────────────────────────────────────────────────────────

// ProbeResult records one zero-I/O probe.
func (c *Collector) ProbeResult(open bool) {
	switch {
	case c == nil:
	case open:
		c.probesOpen.Add(1)
	default:
		c.probesClosed.Add(1)
	}
}

// OpenProbes returns how many probes found something listening.
func (c *Collector) OpenProbes() int64 {
	if c == nil {
		return 0
	}
	return c.probesOpen.Load()
}

func (c *Collector) ClosedProbes() int64 {
	if c == nil {
		return 0
	}
	return c.probesClosed.Load()
}

// ── errors ───────────────────────────────────────────────────────────

// RecordError counts a fatal error and keeps its message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errors.Add(1)
	c.lastError.Store(&msg)
}

func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errors.Load()
}

// LastError returns the most recent recorded message, or "".
func (c *Collector) LastError() string {
	if c == nil {
		return ""
	}
	if p := c.lastError.Load(); p != nil {
		return *p
	}
	return ""
}

// ── report ───────────────────────────────────────────────────────────

// Report summarizes the whole run on one line for debug output.
// Probe and error figures appear only when there is something to say.
func (c *Collector) Report() string {
	if c == nil {
		return "no stats"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %v, connections %d",
		c.Totals(), time.Since(c.started).Truncate(time.Millisecond), c.Connections())
	if open, closed := c.OpenProbes(), c.ClosedProbes(); open+closed > 0 {
		fmt.Fprintf(&b, ", probes %d open %d closed", open, closed)
	}
	if n := c.ErrorCount(); n > 0 {
		fmt.Fprintf(&b, ", errors %d (last: %s)", n, c.LastError())
	}
	return b.String()
}

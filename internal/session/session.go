// Package session represents a single connection lifecycle, binding a
// network connection with I/O endpoints and shared context.
//
// Capabilities operate on a Session and never need to know whether
// they read from a terminal, a pipe or a test buffer.
package session

import (
	"io"
	"net"

	"tawqa/internal/metrics"
	"tawqa/internal/transport"
	"tawqa/util"
)

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Conn      net.Conn
	Direction transport.Direction
	Transport transport.Kind
	Peer      string

	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger
	Stats  *metrics.Collector
}

// New creates a Session bound to the given connection and I/O pair.
// Direction and transport are taken from conn's network.
func New(conn net.Conn, dir transport.Direction, stdin io.Reader, stdout io.Writer, logger *util.Logger, stats *metrics.Collector) *Session {
	s := &Session{
		Conn:      conn,
		Direction: dir,
		Stdin:     stdin,
		Stdout:    stdout,
		Logger:    logger,
		Stats:     stats,
	}
	if conn != nil {
		s.Transport = transport.KindOf(conn.LocalAddr())
		if ra := conn.RemoteAddr(); ra != nil {
			s.Peer = ra.String()
		}
	}
	return s
}

// String describes the session for log lines.
func (s *Session) String() string {
	return s.Direction.String() + " " + s.Transport.String() + " " + s.Peer
}

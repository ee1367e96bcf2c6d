package transport

import (
	"context"
	"net"
	"sync"
	"time"

	ncerr "tawqa/internal/errors"
	"tawqa/util"
)

// Listener is a bound socket waiting for its one peer.  Exactly one of
// ln and pc is set.
type Listener struct {
	ln   *net.TCPListener
	pc   *net.UDPConn
	addr net.Addr
	wait time.Duration

	logger *util.Logger
	once   sync.Once
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Close releases the listening socket.  Safe to call more than once.
// After a successful UDP Accept the socket belongs to the returned
// connection and Close does nothing.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		if l.ln != nil {
			err = l.ln.Close()
		} else if l.pc != nil {
			err = l.pc.Close()
		}
	})
	return err
}

// Accept blocks until a peer arrives, ctx is cancelled or the wait
// expires.  The listening socket is closed once a peer is accepted;
// only one connection is ever served.
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	if l.wait > 0 {
		deadline := time.Now().Add(l.wait)
		if l.ln != nil {
			l.ln.SetDeadline(deadline) //nolint:errcheck
		} else {
			l.pc.SetReadDeadline(deadline) //nolint:errcheck
		}
	}

	stop := context.AfterFunc(ctx, func() { l.Close() }) //nolint:errcheck
	defer stop()

	if l.ln != nil {
		conn, err := l.ln.Accept()
		l.Close() //nolint:errcheck
		if err != nil {
			return nil, l.acceptError(ctx, err)
		}
		return conn, nil
	}
	return l.acceptDatagram(ctx)
}

// acceptDatagram waits for the first datagram; its sender becomes the
// only peer of the returned connection.
func (l *Listener) acceptDatagram(ctx context.Context) (net.Conn, error) {
	buf := make([]byte, util.TransferUnit)
	n, peer, err := l.pc.ReadFromUDP(buf)
	if err != nil {
		l.Close() //nolint:errcheck
		return nil, l.acceptError(ctx, err)
	}
	l.pc.SetReadDeadline(time.Time{}) //nolint:errcheck

	conn := &peerConn{UDPConn: l.pc, peer: peer, logger: l.logger}
	if n > 0 {
		conn.pending = buf[:n]
	}
	l.once.Do(func() {}) // ownership passes to conn
	return conn, nil
}

func (l *Listener) acceptError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return &ncerr.SocketError{Kind: classify(err, ncerr.AcceptFailed), Addr: l.addr.String(), Err: err}
}

// peerConn turns an unconnected UDP socket into a net.Conn bound to a
// single remote peer.  Datagrams from anyone else are dropped.
type peerConn struct {
	*net.UDPConn
	peer    *net.UDPAddr
	pending []byte
	logger  *util.Logger
}

func (c *peerConn) Read(p []byte) (int, error) {
	if c.pending != nil {
		n := copy(p, c.pending)
		c.pending = nil
		return n, nil
	}
	for {
		n, from, err := c.UDPConn.ReadFromUDP(p)
		if err != nil {
			return n, err
		}
		if from.IP.Equal(c.peer.IP) && from.Port == c.peer.Port {
			return n, nil
		}
		if c.logger != nil {
			c.logger.Debug("dropping datagram from %s", from)
		}
	}
}

func (c *peerConn) Write(p []byte) (int, error) {
	return c.UDPConn.WriteToUDP(p, c.peer)
}

func (c *peerConn) RemoteAddr() net.Addr { return c.peer }

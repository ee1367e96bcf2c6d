package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"

	ncerr "tawqa/internal/errors"
	"tawqa/util"
)

// Establisher creates connected sockets.  Every socket gets address
// reuse before it is bound.
type Establisher struct {
	UDP bool

	// Wait bounds connect and accept; zero means wait forever.
	Wait time.Duration

	// LocalAddr and LocalPort select the local end.  Zero values let
	// the system choose.
	LocalAddr netip.Addr
	LocalPort uint16

	Logger *util.Logger
}

func (e *Establisher) kind() Kind {
	if e.UDP {
		return UDP
	}
	return TCP
}

// local returns the local bind address in host:port form.
func (e *Establisher) local() string {
	host := ""
	if e.LocalAddr.IsValid() {
		host = e.LocalAddr.String()
	}
	return util.FormatAddr(host, int(e.LocalPort))
}

func (e *Establisher) localAddr() net.Addr {
	if !e.LocalAddr.IsValid() && e.LocalPort == 0 {
		return nil
	}
	ap := netip.AddrPortFrom(e.LocalAddr, e.LocalPort)
	if !e.LocalAddr.IsValid() {
		ap = netip.AddrPortFrom(netip.IPv4Unspecified(), e.LocalPort)
	}
	if e.UDP {
		return net.UDPAddrFromAddrPort(ap)
	}
	return net.TCPAddrFromAddrPort(ap)
}

// Connect opens an outbound socket to addr:port.  For UDP nothing is
// sent on the wire; the socket is merely associated with the peer.
func (e *Establisher) Connect(ctx context.Context, addr netip.Addr, port uint16) (net.Conn, error) {
	if port == 0 {
		return nil, ncerr.ErrNoPort
	}
	target := netip.AddrPortFrom(addr, port).String()

	d := net.Dialer{
		Timeout: e.Wait,
		Control: reuseAddr,
	}
	if la := e.localAddr(); la != nil {
		d.LocalAddr = la
	}

	e.debug("connect %s %s from %s", e.kind(), target, e.local())
	conn, err := d.DialContext(ctx, e.kind().network(), target)
	if err != nil {
		addr := target
		kind := classify(err, ncerr.ConnectFailed)
		if kind == ncerr.BindFailed {
			addr = e.local()
		}
		return nil, &ncerr.SocketError{Kind: kind, Addr: addr, Err: err}
	}
	return conn, nil
}

// Listen binds the local address and starts listening.  With no local
// port the system assigns one; Listener.Addr reports it.
func (e *Establisher) Listen(ctx context.Context) (*Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	local := e.local()
	l := &Listener{wait: e.Wait, logger: e.Logger}

	if e.UDP {
		pc, err := lc.ListenPacket(ctx, UDP.network(), local)
		if err != nil {
			return nil, &ncerr.SocketError{Kind: classify(err, ncerr.BindFailed), Addr: local, Err: err}
		}
		l.pc = pc.(*net.UDPConn)
		l.addr = pc.LocalAddr()
	} else {
		ln, err := lc.Listen(ctx, TCP.network(), local)
		if err != nil {
			return nil, &ncerr.SocketError{Kind: classify(err, ncerr.ListenFailed), Addr: local, Err: err}
		}
		l.ln = ln.(*net.TCPListener)
		l.addr = ln.Addr()
	}
	e.debug("listening on %s %s", e.kind(), l.addr)
	return l, nil
}

func (e *Establisher) debug(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Debug(format, args...)
	}
}

// classify picks the SocketKind for a failed socket operation.
// Timeouts and the failing system call override fallback.
func classify(err error, fallback ncerr.SocketKind) ncerr.SocketKind {
	if isTimeout(err) {
		return ncerr.Timeout
	}
	var se *os.SyscallError
	if errors.As(err, &se) {
		switch se.Syscall {
		case "socket":
			return ncerr.CreateFailed
		case "bind":
			return ncerr.BindFailed
		case "listen":
			return ncerr.ListenFailed
		}
	}
	return fallback
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

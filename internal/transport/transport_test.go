package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "tawqa/internal/errors"
)

var loopback = netip.MustParseAddr("127.0.0.1")

func listenerPort(t *testing.T, l *Listener) uint16 {
	t.Helper()
	ap, err := netip.ParseAddrPort(l.Addr().String())
	require.NoError(t, err)
	return ap.Port()
}

// TestConnect_TCP verifies an outbound TCP connection can exchange data.
func TestConnect_TCP(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	e := &Establisher{Wait: 2 * time.Second}
	conn, err := e.Connect(context.Background(), loopback, port)
	require.NoError(t, err)
	defer conn.Close()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "hello from server\n", string(got))
}

// TestConnect_Refused verifies a closed port surfaces as ConnectFailed
// naming the target.
func TestConnect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()

	e := &Establisher{Wait: 2 * time.Second}
	_, err = e.Connect(context.Background(), loopback, port)
	var se *ncerr.SocketError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ncerr.ConnectFailed, se.Kind)
	assert.Equal(t, netip.AddrPortFrom(loopback, port).String(), se.Addr)
	assert.Equal(t, "ECONNREFUSED", ncerr.Class(err))
}

// TestConnect_WaitExpires verifies -w bounds an unanswered connect.  It
// needs a route that silently drops SYNs and skips when the host has
// none.
func TestConnect_WaitExpires(t *testing.T) {
	blackhole := netip.MustParseAddr("10.255.255.1")
	e := &Establisher{Wait: 200 * time.Millisecond}

	start := time.Now()
	_, err := e.Connect(context.Background(), blackhole, 9)
	elapsed := time.Since(start)

	var se *ncerr.SocketError
	require.ErrorAs(t, err, &se)
	if se.Kind != ncerr.Timeout {
		t.Skipf("no silent route to %s: %v", blackhole, err)
	}
	assert.True(t, ncerr.IsTimeout(err))
	assert.Less(t, elapsed, 2*time.Second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ncerr.SocketKind
	}{
		{"deadline", fmt.Errorf("dial: %w", os.ErrDeadlineExceeded), ncerr.Timeout},
		{"context", context.DeadlineExceeded, ncerr.Timeout},
		{"bind", &net.OpError{Op: "dial", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)}, ncerr.BindFailed},
		{"socket", os.NewSyscallError("socket", syscall.EMFILE), ncerr.CreateFailed},
		{"other", syscall.ECONNREFUSED, ncerr.ConnectFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err, ncerr.ConnectFailed))
		})
	}
}

func TestConnect_NoPort(t *testing.T) {
	e := &Establisher{}
	_, err := e.Connect(context.Background(), loopback, 0)
	assert.ErrorIs(t, err, ncerr.ErrNoPort)
}

// TestConnect_ContextCancel verifies a cancelled context stops the dial.
func TestConnect_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &Establisher{Wait: 5 * time.Second}
	_, err := e.Connect(ctx, loopback, 1)
	assert.Error(t, err)
}

// TestConnect_LocalPort verifies the outbound socket is bound to the
// requested source port.
func TestConnect_LocalPort(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Addr, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn.RemoteAddr()
		conn.Close()
	}()

	probe, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	src := uint16(probe.Addr().(*net.TCPAddr).Port)
	probe.Close()

	e := &Establisher{Wait: 2 * time.Second, LocalAddr: loopback, LocalPort: src}
	conn, err := e.Connect(context.Background(), loopback, uint16(ln.Addr().(*net.TCPAddr).Port))
	require.NoError(t, err)
	defer conn.Close()

	select {
	case ra := <-accepted:
		assert.Equal(t, int(src), ra.(*net.TCPAddr).Port)
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
	}
}

// TestConnect_UDP verifies that an outbound UDP socket reaches the peer.
func TestConnect_UDP(t *testing.T) {
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	e := &Establisher{UDP: true, Wait: 2 * time.Second}
	conn, err := e.Connect(context.Background(), loopback, uint16(pc.LocalAddr().(*net.UDPAddr).Port))
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, UDP, KindOf(conn.LocalAddr()))

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	pc.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

// TestListen_AcceptClosesListener verifies the first peer is served
// and nobody else can connect afterwards.
func TestListen_AcceptClosesListener(t *testing.T) {
	e := &Establisher{LocalAddr: loopback}
	l, err := e.Listen(context.Background())
	require.NoError(t, err)
	port := listenerPort(t, l)
	require.NotZero(t, port)

	go func() {
		conn, err := net.Dial("tcp4", l.Addr().String())
		if err == nil {
			conn.Write([]byte("hi")) //nolint:errcheck
			conn.Close()
		}
	}()

	conn, err := l.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	_, err = net.DialTimeout("tcp4", l.Addr().String(), time.Second)
	assert.Error(t, err, "listener should be closed after accept")
}

// TestListen_BindInUse verifies a bound port surfaces as a socket error
// carrying the local address.
func TestListen_BindInUse(t *testing.T) {
	busy, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	e := &Establisher{LocalAddr: loopback, LocalPort: uint16(busy.Addr().(*net.TCPAddr).Port)}
	_, err = e.Listen(context.Background())
	var se *ncerr.SocketError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ncerr.BindFailed, se.Kind)
	assert.Equal(t, busy.Addr().String(), se.Addr)
}

// TestAccept_Wait verifies the wait bound ends an idle accept.
func TestAccept_Wait(t *testing.T) {
	e := &Establisher{LocalAddr: loopback, Wait: 100 * time.Millisecond}
	l, err := e.Listen(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Accept(context.Background())
	assert.True(t, ncerr.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// TestAccept_ContextCancel verifies cancellation releases a blocked accept.
func TestAccept_ContextCancel(t *testing.T) {
	e := &Establisher{LocalAddr: loopback}
	l, err := e.Listen(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = l.Accept(ctx)
	var se *ncerr.SocketError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ncerr.AcceptFailed, se.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestAccept_UDPFirstDatagramFixesPeer verifies the first sender becomes
// the peer, its datagram is delivered, and strangers are ignored.
func TestAccept_UDPFirstDatagramFixesPeer(t *testing.T) {
	e := &Establisher{UDP: true, LocalAddr: loopback}
	l, err := e.Listen(context.Background())
	require.NoError(t, err)

	peer, err := net.Dial("udp4", l.Addr().String())
	require.NoError(t, err)
	defer peer.Close()
	stranger, err := net.Dial("udp4", l.Addr().String())
	require.NoError(t, err)
	defer stranger.Close()

	_, err = peer.Write([]byte("first"))
	require.NoError(t, err)

	conn, err := l.Accept(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, peer.LocalAddr().String(), conn.RemoteAddr().String())

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(buf[:n]))

	_, err = stranger.Write([]byte("noise"))
	require.NoError(t, err)
	_, err = peer.Write([]byte("second"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	n, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "second", string(buf[:n]))

	_, err = conn.Write([]byte("reply"))
	require.NoError(t, err)
	peer.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	n, err = peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(buf[:n]))
}

func TestKindAndDirection(t *testing.T) {
	assert.Equal(t, "tcp", TCP.String())
	assert.Equal(t, "udp4", UDP.network())
	assert.Equal(t, TCP, KindOf(&net.TCPAddr{}))
	assert.Equal(t, "inbound", Inbound.String())
	assert.Equal(t, "outbound", Outbound.String())
}

//go:build !noexec

package capability

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	ncerr "tawqa/internal/errors"
	"tawqa/internal/session"
	"tawqa/util"
)

// errExit marks the client sending the exit keyword.
var errExit = errors.New("exit requested")

// shellSession is one running command bridged to one connection.
type shellSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser // command's stdin
	output *os.File       // command's merged stdout and stderr
	conn   net.Conn
	sess   *session.Session
	lines  lineAssembler
}

type bridgeResult struct {
	from string
	err  error
}

// Handle spawns the command and bridges it to the connection until the
// command exits, the peer closes, the client sends "exit", or ctx is
// cancelled.  The command is always reaped and the connection closed.
func (s *Shell) Handle(ctx context.Context, sess *session.Session) error {
	ss, err := s.spawn(sess)
	if err != nil {
		sess.Conn.Close() //nolint:errcheck
		return err
	}
	sess.Logger.Verbose("bridging %s to %s (pid %d)", sess.Peer, s.Path, ss.cmd.Process.Pid)

	results := make(chan bridgeResult, 2)
	go func() { results <- bridgeResult{"shell", ss.shellToClient()} }()
	go func() { results <- bridgeResult{"net", ss.clientToShell()} }()

	pending := 2
	var first bridgeResult
	select {
	case first = <-results:
		pending--
	case <-ctx.Done():
		first = bridgeResult{from: "signal", err: ctx.Err()}
	}
	sess.Logger.Debug("bridge ended by %s: %v", first.from, first.err)

	grace := s.grace()
	if first.from == "net" {
		pending -= ss.drain(ctx, results, grace)
	}

	// Stop the command, then unblock whichever worker is still running.
	waitErr := s.terminate(ss.cmd, grace)
	ss.stdin.Close() //nolint:errcheck
	now := time.Now()
	ss.output.SetReadDeadline(now) //nolint:errcheck
	ss.conn.SetReadDeadline(now)   //nolint:errcheck
	ss.conn.SetWriteDeadline(now)  //nolint:errcheck
	for ; pending > 0; pending-- {
		<-results
	}
	ss.output.Close() //nolint:errcheck
	ss.closeConn()

	if waitErr != nil {
		sess.Logger.Debug("%s: %v", s.Path, waitErr)
	}

	switch {
	case first.err == nil, errors.Is(first.err, errExit), errors.Is(first.err, context.Canceled):
		return nil
	case util.IsExpectedClose(first.err), errors.Is(first.err, os.ErrDeadlineExceeded):
		return nil
	}
	return first.err
}

// spawn starts the command with argv[0] set to its base name and its
// stdio on private pipes.
func (s *Shell) spawn(sess *session.Session) (*shellSession, error) {
	cmd := exec.Command(s.Path)
	cmd.Args = []string{filepath.Base(s.Path)}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ncerr.BridgeError{Kind: ncerr.SpawnFailed, Path: s.Path, Err: err}
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close() //nolint:errcheck
		return nil, &ncerr.BridgeError{Kind: ncerr.SpawnFailed, Path: s.Path, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close() //nolint:errcheck
		pr.Close()    //nolint:errcheck
		pw.Close()    //nolint:errcheck
		return nil, &ncerr.BridgeError{Kind: ncerr.SpawnFailed, Path: s.Path, Err: err}
	}
	pw.Close() //nolint:errcheck // the child holds its own copy

	return &shellSession{
		cmd:    cmd,
		stdin:  stdin,
		output: pr,
		conn:   sess.Conn,
		sess:   sess,
	}, nil
}

// drain runs once the peer has stopped sending.  The command sees EOF on
// its stdin and gets up to grace to flush what it already produced to
// the peer.  A peer that stops reading cannot hold the writer past the
// same bound.  drain reports how many worker results it consumed.
func (ss *shellSession) drain(ctx context.Context, results <-chan bridgeResult, grace time.Duration) int {
	ss.stdin.Close()                               //nolint:errcheck
	ss.conn.SetWriteDeadline(time.Now().Add(grace)) //nolint:errcheck

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case r := <-results:
		ss.sess.Logger.Debug("shell output drained: %v", r.err)
		return 1
	case <-timer.C:
		ss.sess.Logger.Debug("shell output not drained after %v", grace)
	case <-ctx.Done():
	}
	return 0
}

func (s *Shell) grace() time.Duration {
	if s.Grace <= 0 {
		return time.Second
	}
	return s.Grace
}

// terminate sends SIGTERM, escalates to SIGKILL after grace and reaps
// the command.
func (s *Shell) terminate(cmd *exec.Cmd, grace time.Duration) error {
	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		cmd.Process.Kill() //nolint:errcheck
	}
	select {
	case err := <-waited:
		return err
	case <-time.After(grace):
		cmd.Process.Kill() //nolint:errcheck
		return <-waited
	}
}

// shellToClient forwards command output to the peer, expanding bare LFs.
func (ss *shellSession) shellToClient() error {
	buf := util.GetBuf()
	defer util.PutBuf(buf)
	out := make([]byte, 0, 2*util.TransferUnit)
	var prev byte

	for {
		n, rerr := ss.output.Read(*buf)
		if n > 0 {
			out, prev = NormalizeNewlines(out[:0], (*buf)[:n], prev)
			nw, werr := ss.conn.Write(out)
			ss.sess.Stats.BytesSent(int64(nw))
			if werr != nil {
				return &ncerr.IOError{Kind: ncerr.WriteFailed, Op: "net", Err: werr}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return &ncerr.IOError{Kind: ncerr.ReadFailed, Op: "shell", Err: rerr}
		}
	}
}

// clientToShell assembles peer input into lines and writes them to the
// command.  It stops at the exit keyword without forwarding it.
func (ss *shellSession) clientToShell() error {
	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, rerr := ss.conn.Read(*buf)
		if n > 0 {
			ss.sess.Stats.BytesReceived(int64(n))
			for _, b := range (*buf)[:n] {
				line := ss.lines.feed(b)
				if line == nil {
					continue
				}
				if err := ss.deliver(line); err != nil {
					return err
				}
			}
		}
		if rerr != nil {
			if rest := ss.lines.take(); len(rest) > 0 {
				ss.deliver(rest) //nolint:errcheck
			}
			if rerr == io.EOF {
				return nil
			}
			return &ncerr.IOError{Kind: ncerr.ReadFailed, Op: "net", Err: rerr}
		}
	}
}

func (ss *shellSession) deliver(line []byte) error {
	if isExit(line) {
		ss.sess.Logger.Verbose("exit requested by %s", ss.sess.Peer)
		return errExit
	}
	if _, err := ss.stdin.Write(toShell(line)); err != nil {
		return &ncerr.IOError{Kind: ncerr.WriteFailed, Op: "shell", Err: err}
	}
	return nil
}

// closeConn shuts down both directions before releasing the socket.
func (ss *shellSession) closeConn() {
	if tc, ok := ss.conn.(*net.TCPConn); ok {
		tc.CloseRead()  //nolint:errcheck
		tc.CloseWrite() //nolint:errcheck
	}
	ss.conn.Close() //nolint:errcheck
}

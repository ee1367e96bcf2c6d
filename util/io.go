package util

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	ncerr "tawqa/internal/errors"
	"tawqa/internal/metrics"
)

// RelayState is the lifecycle of a relay.  A relay starts Active and
// moves straight to Terminated through exactly one of the three exit
// conditions; nothing is drained in between.
type RelayState int

const (
	RelayActive RelayState = iota
	RelayPeerClosed
	RelayLocalClosed
	RelayFailed
	RelayCancelled
	RelayTerminated
)

func (s RelayState) String() string {
	switch s {
	case RelayActive:
		return "active"
	case RelayPeerClosed:
		return "peer closed"
	case RelayLocalClosed:
		return "local input closed"
	case RelayFailed:
		return "error"
	case RelayCancelled:
		return "cancelled"
	case RelayTerminated:
		return "terminated"
	}
	return "unknown"
}

// RelayStats counts what one relay moved.
type RelayStats struct {
	Sent     uint64 // local input → socket
	Received uint64 // socket → local output
	Reason   RelayState
}

// Canceler is implemented by local readers whose blocked Read can be
// interrupted, such as a cancelreader wrapping stdin.  Cancel reports
// whether the interruption took effect.
type Canceler interface {
	Cancel() bool
}

type pumpResult struct {
	state RelayState
	err   error
}

// Relay shovels bytes between conn and the local in/out pair until the
// peer closes, local input ends, either side fails, or ctx is
// cancelled.  Whichever happens first ends both directions: conn is
// closed exactly once here and the local reader is cancelled when it
// supports it.  A local reader that cannot be cancelled is not waited
// for; its pending Read is abandoned.
//
// Writes are issued once per chunk and never retried; the counters
// record exactly what each Write accepted.
func Relay(ctx context.Context, conn net.Conn, in io.Reader, out io.Writer, stats *metrics.Collector) (RelayStats, error) {
	var sent, received atomic.Uint64
	results := make(chan pumpResult, 2)

	var wg sync.WaitGroup

	// socket → local output
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := pump(out, conn, "net", "stdout", func(n int) {
			received.Add(uint64(n))
			stats.BytesReceived(int64(n))
		})
		results <- classify(err, RelayPeerClosed)
	}()

	// local input → socket
	localDone := make(chan struct{})
	go func() {
		defer close(localDone)
		err := pump(conn, in, "stdin", "net", func(n int) {
			sent.Add(uint64(n))
			stats.BytesSent(int64(n))
		})
		results <- classify(err, RelayLocalClosed)
	}()

	var first pumpResult
	select {
	case first = <-results:
	case <-ctx.Done():
		first = pumpResult{state: RelayCancelled}
	}

	conn.Close() //nolint:errcheck // single terminal close
	joinLocal := false
	if c, ok := in.(Canceler); ok {
		joinLocal = c.Cancel()
	}
	wg.Wait()
	if joinLocal {
		<-localDone
	}

	return RelayStats{
		Sent:     sent.Load(),
		Received: received.Load(),
		Reason:   first.state,
	}, first.err
}

// pump copies src to dst one TransferUnit at a time.  It returns nil
// when src reports end of stream and the first real error otherwise.
func pump(dst io.Writer, src io.Reader, srcName, dstName string, count func(int)) error {
	buf := GetBuf()
	defer PutBuf(buf)

	for {
		nr, rerr := src.Read(*buf)
		if nr > 0 {
			nw, werr := dst.Write((*buf)[:nr])
			if nw > 0 {
				count(nw)
			}
			if werr != nil {
				return &ncerr.IOError{Kind: ncerr.WriteFailed, Op: dstName, Err: werr}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return &ncerr.IOError{Kind: ncerr.ReadFailed, Op: srcName, Err: rerr}
		}
		if nr == 0 {
			return nil
		}
	}
}

// classify maps a pump outcome to a relay exit condition.  Teardown
// noise (closed connection, reset, broken pipe) counts as a clean close.
func classify(err error, closed RelayState) pumpResult {
	if err == nil || IsExpectedClose(err) {
		return pumpResult{state: closed}
	}
	return pumpResult{state: RelayFailed, err: err}
}

// IsExpectedClose reports whether err is a normal connection
// termination: EOF, closed connection or pipe, broken pipe, or reset.
func IsExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// Package supervisor owns the process-wide state of a tawqa run: the
// resources that must be released on exit, the diagnostic logger and
// the byte counters.  It turns termination signals into context
// cancellation and is the single place fatal errors are reported.
package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	ncerr "tawqa/internal/errors"
	"tawqa/internal/metrics"
	"tawqa/util"
)

// Supervisor is created once per run and passed down explicitly.
type Supervisor struct {
	Logger *util.Logger
	Stats  *metrics.Collector

	mu       sync.Mutex
	closers  []io.Closer
	released bool
	caught   os.Signal
}

// New returns a Supervisor reporting through logger and stats.
func New(logger *util.Logger, stats *metrics.Collector) *Supervisor {
	return &Supervisor{Logger: logger, Stats: stats}
}

// ── resources ────────────────────────────────────────────────────────

// Track registers c to be closed when the run ends.  Resources are
// closed in reverse order of registration.  Tracking after Release
// closes c immediately.
func (s *Supervisor) Track(c io.Closer) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		c.Close() //nolint:errcheck
		return
	}
	s.closers = append(s.closers, c)
	s.mu.Unlock()
}

// Release closes every tracked resource exactly once.  Errors from
// resources that were already closed elsewhere are not reported.
func (s *Supervisor) Release() error {
	s.mu.Lock()
	closers := s.closers
	first := !s.released
	s.closers = nil
	s.released = true
	s.mu.Unlock()

	if first && s.Logger.Enabled(util.LogDebug) {
		s.Logger.Debug("run stats: %s", s.Stats.Report())
	}

	var errv []error
	for _, c := range slices.Backward(closers) {
		if err := c.Close(); err != nil && !util.IsExpectedClose(err) {
			errv = append(errv, err)
		}
	}
	return errors.Join(errv...)
}

// ── signals ──────────────────────────────────────────────────────────

// Watch returns a context cancelled on SIGINT or SIGTERM.  The signal
// also releases tracked resources so blocked reads and accepts return
// at once.  The returned stop function detaches the handler.
func (s *Supervisor) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			s.notify(sig)
			cancel()
			s.Release() //nolint:errcheck
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

// notify records sig as the reason the run is ending.  Only the first
// signal counts.
func (s *Supervisor) notify(sig os.Signal) {
	s.mu.Lock()
	if s.caught == nil {
		s.caught = sig
	}
	s.mu.Unlock()
}

// Signal returns the caught termination signal, or nil.
func (s *Supervisor) Signal() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caught
}

// ── reporting ────────────────────────────────────────────────────────

// Interrupted reports a signal-driven exit and returns ErrInterrupted.
func (s *Supervisor) Interrupted() error {
	sig := s.Signal()
	if sig != nil && s.Logger.Enabled(util.LogVerbose) {
		s.Logger.Error("Caught signal %s, %s", signalName(sig), s.Stats.Totals())
	} else {
		s.Logger.Error("Interrupted!")
	}
	s.Release() //nolint:errcheck
	return ncerr.ErrInterrupted
}

// Fatal is the single exit funnel for errors.  Reporting is forced on
// even in quiet mode; the message carries the system error class when
// there is one.  Resources are released and err is returned for the
// caller to turn into exit status 1.
func (s *Supervisor) Fatal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ncerr.ErrInterrupted) {
		return err
	}
	if !s.Logger.Enabled(util.LogNormal) {
		s.Logger.SetLevel(util.LogNormal)
	}
	s.Stats.RecordError(err.Error())

	if class := ncerr.Class(err); class != "" && class != "EGENERIC" {
		s.Logger.Error("%v (%s)", err, class)
	} else {
		s.Logger.Error("%v", err)
	}
	s.Release() //nolint:errcheck
	return err
}

// Finish ends a successful run: prints the byte totals at -v and
// releases everything.
func (s *Supervisor) Finish() error {
	if s.Logger.Enabled(util.LogNormal) {
		s.Logger.Info("Total: sent %d, received %d", s.Stats.TotalBytesOut(), s.Stats.TotalBytesIn())
	}
	return s.Release()
}

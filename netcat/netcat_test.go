package netcat

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"tawqa/config"
	"tawqa/internal/metrics"
	"tawqa/internal/supervisor"
	"tawqa/util"
)

// idleStdin blocks like a terminal nobody types into.  Cancel
// releases it.
type idleStdin struct {
	done chan struct{}
	once sync.Once
}

func newIdleStdin() *idleStdin { return &idleStdin{done: make(chan struct{})} }

func (s *idleStdin) Read([]byte) (int, error) {
	<-s.done
	return 0, errors.New("read cancelled")
}

func (s *idleStdin) Cancel() bool {
	s.once.Do(func() { close(s.done) })
	return true
}

// syncBuffer is a bytes.Buffer safe for the relay goroutine and the
// test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// harness is a NetCat with captured stdout and diagnostics.
type harness struct {
	nc     *NetCat
	stdout *syncBuffer
	log    *syncBuffer
}

func newHarness(t *testing.T, cfg *config.Config, stdin io.Reader) *harness {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	h := &harness{stdout: &syncBuffer{}, log: &syncBuffer{}}
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(h.log)
	logger.SetTimestamps(false)

	sup := supervisor.New(logger, metrics.New())
	h.nc = New(cfg, sup, stdin, h.stdout)
	return h
}

func (h *harness) stats() *metrics.Collector { return h.nc.Supervisor.Stats }

// Package terminal switches the local terminal into raw mode for a
// local-interactive session and puts it back afterwards.
package terminal

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when raw mode is requested on something
// that is not a terminal.
var ErrNotTerminal = errors.New("not a terminal")

// Raw is a terminal in raw mode.  Close restores the saved state; it
// is safe to call more than once.
type Raw struct {
	fd    int
	state *term.State
	once  sync.Once
}

// MakeRaw puts the terminal on fd into raw mode.
func MakeRaw(fd int) (*Raw, error) {
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	return &Raw{fd: fd, state: state}, nil
}

// Close restores the terminal.
func (r *Raw) Close() error {
	var err error
	r.once.Do(func() {
		err = term.Restore(r.fd, r.state)
	})
	return err
}

// IsTerminal reports whether fd is a terminal.
func IsTerminal(fd int) bool { return term.IsTerminal(fd) }

//go:build noexec

package capability

import (
	"context"

	ncerr "tawqa/internal/errors"
	"tawqa/internal/session"
)

// Handle refuses to spawn anything in this build.  The connection is
// closed and the caller decides whether that is fatal.
func (s *Shell) Handle(ctx context.Context, sess *session.Session) error {
	sess.Conn.Close() //nolint:errcheck
	return &ncerr.BridgeError{Kind: ncerr.FeatureDisabled, Path: s.Path}
}

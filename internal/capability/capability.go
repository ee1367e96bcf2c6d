// Package capability defines what happens over an established
// connection.  Each Capability encapsulates a single behaviour (relay
// to the terminal, bridge to a shell) and operates on a Session rather
// than a raw net.Conn.
package capability

import (
	"context"

	"tawqa/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.
type Capability interface {
	// Handle runs the capability against the given session.  It blocks
	// until the connection is done or the context is cancelled, and
	// owns the session's connection from then on.
	Handle(ctx context.Context, sess *session.Session) error
}

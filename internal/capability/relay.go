package capability

import (
	"context"

	"tawqa/internal/session"
	"tawqa/util"
)

// Relay copies data bidirectionally between the connection and the
// session's stdin/stdout.  It is the default mode.
type Relay struct {
	// Last holds the statistics of the most recent Handle call.
	Last util.RelayStats
}

// Handle shuttles bytes until one side closes or the context is
// cancelled.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	stats, err := util.Relay(ctx, sess.Conn, sess.Stdin, sess.Stdout, sess.Stats)
	r.Last = stats
	if sess.Logger != nil {
		sess.Logger.Debug("relay %s ended: %s (sent %d, rcvd %d)",
			sess, stats.Reason, stats.Sent, stats.Received)
	}
	return err
}

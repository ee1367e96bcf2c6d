package netcat

import (
	"context"

	"tawqa/internal/transport"
)

// handleServer runs the listen (server) mode.  Exactly one peer is
// accepted and served.
func (nc *NetCat) handleServer(ctx context.Context) error {
	ln, err := nc.Establisher.Listen(ctx)
	if err != nil {
		return err
	}
	nc.Supervisor.Track(ln)

	if nc.Establisher.LocalPort == 0 {
		nc.Logger.Info("Listening on %s (port chosen by the system)", ln.Addr())
	} else {
		nc.Logger.Info("Listening on %s", ln.Addr())
	}

	conn, err := ln.Accept(ctx)
	if err != nil {
		return err
	}
	nc.Supervisor.Track(conn)
	nc.Logger.Info("Connection from %s", conn.RemoteAddr())

	return nc.serve(ctx, conn, transport.Inbound)
}

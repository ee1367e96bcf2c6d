package netcat

import (
	"context"

	"tawqa/internal/transport"
)

// handleClient runs the connect (client) mode.
func (nc *NetCat) handleClient(ctx context.Context) error {
	host, err := nc.Resolver.Host(ctx, nc.Config.Host)
	if err != nil {
		return err
	}
	port, err := nc.Resolver.Port(ctx, nc.Config.RemotePort)
	if err != nil {
		return err
	}
	if len(host.Addrs) > 1 {
		nc.Logger.Debug("%s has %d addresses, using %s", nc.Config.Host, len(host.Addrs), host.Addr())
	}

	conn, err := nc.Establisher.Connect(ctx, host.Addr(), port.Num)
	if err != nil {
		return err
	}
	nc.Supervisor.Track(conn)
	nc.Logger.Info("%s open", describe(host, host.Addr(), port))

	return nc.serve(ctx, conn, transport.Outbound)
}

// Package netcat implements the connect, listen and zero-I/O probe
// modes on top of the resolver, the establisher and the capabilities.
package netcat

import (
	"context"
	"io"
	"net"
	"net/netip"
	"os"

	"tawqa/config"
	"tawqa/internal/capability"
	ncerr "tawqa/internal/errors"
	"tawqa/internal/resolve"
	"tawqa/internal/session"
	"tawqa/internal/supervisor"
	"tawqa/internal/terminal"
	"tawqa/internal/transport"
	"tawqa/util"
)

// NetCat orchestrates a single run.
type NetCat struct {
	Config      *config.Config
	Resolver    *resolve.Resolver
	Establisher *transport.Establisher
	Supervisor  *supervisor.Supervisor
	Logger      *util.Logger

	Stdin  io.Reader
	Stdout io.Writer

	// TerminalFd is the descriptor put into raw mode by -i.
	TerminalFd int
}

// New returns a NetCat wired from cfg.  cfg must already be validated.
func New(cfg *config.Config, sup *supervisor.Supervisor, stdin io.Reader, stdout io.Writer) *NetCat {
	logger := sup.Logger
	return &NetCat{
		Config: cfg,
		Resolver: &resolve.Resolver{
			NumericOnly: cfg.NumericOnly,
			Reverse:     cfg.Verbose >= int(util.LogNormal),
			UDP:         cfg.UDP,
			Nameserver:  cfg.Nameserver,
			Timeout:     cfg.Timeout(),
			Logger:      logger,
		},
		Establisher: &transport.Establisher{
			UDP:    cfg.UDP,
			Wait:   cfg.Timeout(),
			Logger: logger,
		},
		Supervisor: sup,
		Logger:     logger,
		Stdin:      stdin,
		Stdout:     stdout,
		TerminalFd: int(os.Stdin.Fd()),
	}
}

// Run dispatches to the configured mode and funnels the outcome
// through the supervisor: a caught signal reports an interruption,
// any other error is fatal.
func (nc *NetCat) Run(ctx context.Context) error {
	err := nc.dispatch(ctx)
	if nc.Supervisor.Signal() != nil {
		return nc.Supervisor.Interrupted()
	}
	if err != nil {
		return nc.Supervisor.Fatal(err)
	}
	return nil
}

func (nc *NetCat) dispatch(ctx context.Context) error {
	if err := nc.bindLocal(ctx); err != nil {
		return err
	}
	switch {
	case nc.Config.Listen:
		return nc.handleServer(ctx)
	case nc.Config.ZeroIO:
		return nc.handleScan(ctx)
	default:
		return nc.handleClient(ctx)
	}
}

// bindLocal resolves -s and -p (or their listen-mode positional
// stand-ins) into the establisher.
func (nc *NetCat) bindLocal(ctx context.Context) error {
	if host := nc.Config.BindAddr(); host != "" {
		rec, err := nc.Resolver.Host(ctx, host)
		if err != nil {
			return err
		}
		nc.Establisher.LocalAddr = rec.Addr()
	}
	if spec := nc.Config.BindPort(); spec != "" {
		port, err := nc.Resolver.Port(ctx, spec)
		if err != nil {
			return err
		}
		nc.Establisher.LocalPort = port.Num
	}
	return nil
}

// serve hands an established connection to the shell bridge or the
// terminal relay.
func (nc *NetCat) serve(ctx context.Context, conn net.Conn, dir transport.Direction) error {
	stats := nc.Supervisor.Stats
	stats.ConnectionOpened()

	sess := session.New(conn, dir, nc.Stdin, nc.Stdout, nc.Logger, stats)

	if nc.Config.ShellPath != "" {
		shell := &capability.Shell{Path: nc.Config.ShellPath, Grace: config.DefaultGracePeriod}
		err := shell.Handle(ctx, sess)
		if ncerr.IsBridgeDisabled(err) {
			nc.Logger.Error("%v; connection closed", err)
			return nc.release(nc.Supervisor.Release())
		}
		if err != nil {
			return err
		}
		return nc.release(nc.Supervisor.Release())
	}

	if nc.Config.LocalInteractive {
		raw, err := terminal.MakeRaw(nc.TerminalFd)
		if err != nil {
			nc.Logger.Warn("local-interactive: %v", err)
		} else {
			nc.Supervisor.Track(raw)
		}
	}

	relay := &capability.Relay{}
	if err := relay.Handle(ctx, sess); err != nil {
		return err
	}
	nc.Logger.Verbose("%s: %s", sess, relay.Last.Reason)
	return nc.release(nc.Supervisor.Finish())
}

// release ends a successful run.  Failing to close something that is
// no longer used does not change the outcome.
func (nc *NetCat) release(err error) error {
	if err != nil {
		nc.Logger.Debug("release: %v", err)
	}
	return nil
}

// describe formats a resolved endpoint the way diagnostics print it.
func describe(host *resolve.HostRecord, addr netip.Addr, port resolve.PortSpec) string {
	return host.Name + " [" + addr.String() + "] " + port.String()
}

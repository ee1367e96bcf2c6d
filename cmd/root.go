// Package cmd wires up the CLI flags and dispatches to the netcat core.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muesli/cancelreader"
	flag "github.com/spf13/pflag"

	"tawqa/config"
	"tawqa/internal/metrics"
	"tawqa/internal/supervisor"
	"tawqa/netcat"
	"tawqa/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tawqa/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected tawqa mode on the process's
// standard streams.
func Execute(ctx context.Context, args []string) error {
	stdin := io.Reader(os.Stdin)
	if cr, err := cancelreader.NewReader(os.Stdin); err == nil {
		stdin = cr
	}
	return run(ctx, args, stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := &config.Config{}
	fs := flag.NewFlagSet("tawqa", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	// ── mode ─────────────────────────────────────────────────────────
	fs.BoolVarP(&flags.Listen, "listen", "l", false, "Listen for one inbound connection")
	fs.BoolVarP(&flags.UDP, "udp", "u", false, "UDP mode")
	fs.BoolVarP(&flags.ZeroIO, "zero-io", "z", false, "Zero-I/O mode: connect, close, report")
	fs.BoolVarP(&flags.NumericOnly, "numeric", "n", false, "Numeric-only addresses and ports, no DNS")

	// ── endpoints ────────────────────────────────────────────────────
	fs.StringVarP(&flags.LocalPort, "local-port", "p", "", "Local port number or service")
	fs.StringVarP(&flags.LocalAddr, "source", "s", "", "Local source address")
	fs.StringVar(&flags.Nameserver, "dns", "", "Nameserver host[:port] for lookups")
	fs.IntVarP(&flags.WaitSeconds, "wait", "w", 0, "Timeout in seconds for connects and accepts")

	// ── session ──────────────────────────────────────────────────────
	fs.StringVarP(&flags.ShellPath, "exec", "e", "", "Program to bridge to the connection")
	fs.BoolVarP(&flags.LocalInteractive, "interactive", "i", false, "Put the local terminal in raw mode")

	// ── output ───────────────────────────────────────────────────────
	fs.CountVarP(&flags.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var configPath string
	var showVersion, showHelp bool
	fs.StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvPrefix+"CONFIG)")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs, stderr)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "tawqa %s\n", version)
		return nil
	}

	// ── layer: file < env < flags < positionals ─────────────────────
	cfg := &config.Config{}
	if configPath == "" {
		configPath = config.ConfigPathFromEnv()
	}
	if configPath != "" {
		if err := config.LoadFile(configPath, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	overlayFlags(fs, flags, cfg)

	if err := parsePositional(cfg, fs.Args()); err != nil {
		printUsage(fs, stderr)
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	sup := supervisor.New(logger, metrics.New())
	if cr, ok := stdin.(cancelreader.CancelReader); ok {
		sup.Track(cr)
	}

	ctx, stop := sup.Watch(ctx)
	defer stop()

	nc := netcat.New(cfg, sup, stdin, stdout)
	if err := nc.Run(ctx); err != nil {
		return &reportedError{err}
	}
	return nil
}

// reportedError marks a failure the supervisor already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported reports whether err was already written to stderr.
func Reported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

// ── helpers ──────────────────────────────────────────────────────────

// overlayFlags copies every flag the user actually set from src onto
// dst, so unset flags never clobber env or file values.
func overlayFlags(fs *flag.FlagSet, src, dst *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			dst.Listen = src.Listen
		case "udp":
			dst.UDP = src.UDP
		case "zero-io":
			dst.ZeroIO = src.ZeroIO
		case "numeric":
			dst.NumericOnly = src.NumericOnly
		case "local-port":
			dst.LocalPort = src.LocalPort
		case "source":
			dst.LocalAddr = src.LocalAddr
		case "dns":
			dst.Nameserver = src.Nameserver
		case "wait":
			dst.WaitSeconds = src.WaitSeconds
		case "exec":
			dst.ShellPath = src.ShellPath
		case "interactive":
			dst.LocalInteractive = src.LocalInteractive
		case "verbose":
			dst.Verbose = src.Verbose
		}
	})
}

// parsePositional takes "host port".  In listen mode both are optional
// and name the local bind address and port.
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) > 2 {
		return fmt.Errorf("too many arguments: %q", remaining[2:])
	}
	if len(remaining) > 0 {
		cfg.Host = remaining[0]
	}
	if len(remaining) > 1 {
		cfg.RemotePort = remaining[1]
	}
	if !cfg.Listen && (cfg.Host == "" || cfg.RemotePort == "") {
		return fmt.Errorf("host and port required")
	}
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `tawqa v%s

Usage:
  tawqa [options] host port                  Connect
  tawqa -l [options] [host] [port]           Listen for one connection
  tawqa -z [options] host port|lo-hi         Probe without I/O

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  tawqa example.com 80                       TCP connect
  tawqa -l -p 8080                           Listen on 8080
  tawqa -vz host.example.com 20-25           Probe a port range
  tawqa -l -p 4444 -e /bin/sh                Bridge a shell to the peer
  echo "hello" | tawqa -u 10.0.0.1 9000      Send a UDP datagram
`)
}

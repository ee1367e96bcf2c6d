// Package config defines the runtime configuration for tawqa and the
// helpers that check it before any socket is touched.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	ncerr "tawqa/internal/errors"
)

// Config holds every tuneable for a single tawqa run.  It is filled in
// by the CLI layer and read-only afterwards.  Port fields stay textual;
// the resolver turns them into numbers.
type Config struct {
	// ── Mode ─────────────────────────────────────────────────────────
	Listen           bool `yaml:"listen"`
	UDP              bool `yaml:"udp"`
	ZeroIO           bool `yaml:"zero_io"`
	NumericOnly      bool `yaml:"numeric_only"`
	LocalInteractive bool `yaml:"local_interactive"`

	// ── Endpoints ────────────────────────────────────────────────────
	Host       string `yaml:"host"`
	RemotePort string `yaml:"port"`       // number, service name, or lo-hi with -z
	LocalPort  string `yaml:"local_port"` // -p
	LocalAddr  string `yaml:"local_addr"` // -s
	Nameserver string `yaml:"dns"`        // host[:port]

	// ── Behaviour ────────────────────────────────────────────────────
	ShellPath   string `yaml:"exec"` // -e
	WaitSeconds int    `yaml:"wait"` // -w, 0 = forever
	Verbose     int    `yaml:"verbose"`
}

// Timeout returns the -w bound as a duration (0 = none).
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.WaitSeconds) * time.Second
}

// BindAddr returns the local address to bind.  In listen mode a
// positional host stands in for -s.
func (c *Config) BindAddr() string {
	if c.LocalAddr == "" && c.Listen {
		return c.Host
	}
	return c.LocalAddr
}

// BindPort returns the local port to bind.  In listen mode a
// positional port stands in for -p.
func (c *Config) BindPort() string {
	if c.LocalPort == "" && c.Listen {
		return c.RemotePort
	}
	return c.LocalPort
}

// ── Port ranges ──────────────────────────────────────────────────────

// PortRange is an inclusive start–end pair.
type PortRange struct {
	Start int
	End   int
}

// Expand returns every port in the range.
func (pr PortRange) Expand() []int {
	out := make([]int, 0, pr.End-pr.Start+1)
	for p := pr.Start; p <= pr.End; p++ {
		out = append(out, p)
	}
	return out
}

// SplitPortRange reports whether spec has the numeric "lo-hi" form.
// Service names that contain a dash, such as "netbios-ns", are not
// ranges.
func SplitPortRange(spec string) (lo, hi string, ok bool) {
	lo, hi, found := strings.Cut(spec, "-")
	if !found || !isDigits(lo) || !isDigits(hi) {
		return "", "", false
	}
	return lo, hi, true
}

// ParsePortRange parses "lo-hi" into a PortRange within 1..65535.
func ParsePortRange(spec string) (PortRange, error) {
	lo, hi, ok := SplitPortRange(spec)
	if !ok {
		return PortRange{}, fmt.Errorf("invalid port range %q", spec)
	}
	start, _ := strconv.Atoi(lo)
	end, _ := strconv.Atoi(hi)
	if start < 1 || end > 65535 || start > end {
		return PortRange{}, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	return PortRange{Start: start, End: end}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent and
// normalizes the nameserver to host:port.
func (c *Config) Validate() error {
	if c.Listen && c.ZeroIO {
		return &ncerr.ConfigError{
			Field:   "zero-io",
			Message: "listen mode and zero-I/O mode are mutually exclusive",
		}
	}

	if !c.Listen {
		if c.Host == "" {
			return &ncerr.ConfigError{
				Field:   "host",
				Message: "hostname is required",
				Hint:    "usage: tawqa [options] host port",
			}
		}
		if c.RemotePort == "" {
			return &ncerr.ConfigError{
				Field:   "port",
				Message: "destination port is required",
				Hint:    "usage: tawqa [options] host port",
			}
		}
	}

	if _, _, isRange := SplitPortRange(c.RemotePort); isRange {
		if !c.ZeroIO || c.Listen {
			return &ncerr.ConfigError{
				Field:   "port",
				Value:   c.RemotePort,
				Message: "port ranges are only allowed with -z",
			}
		}
		if _, err := ParsePortRange(c.RemotePort); err != nil {
			return &ncerr.ConfigError{Field: "port", Value: c.RemotePort, Message: err.Error()}
		}
	}

	if c.WaitSeconds < 0 {
		return &ncerr.ConfigError{
			Field:   "wait",
			Value:   c.WaitSeconds,
			Message: "must be zero or positive",
		}
	}

	if c.Verbose < 0 {
		c.Verbose = 0
	}

	if c.LocalInteractive && c.ShellPath != "" {
		return &ncerr.ConfigError{
			Field:   "local-interactive",
			Message: "-i and -e are mutually exclusive",
			Hint:    "the peer drives the command; there is no local terminal to configure",
		}
	}

	if c.ZeroIO && c.ShellPath != "" {
		return &ncerr.ConfigError{
			Field:   "exec",
			Value:   c.ShellPath,
			Message: "zero-I/O mode never hands the connection to a command",
		}
	}

	if c.Nameserver != "" {
		ns, err := normalizeNameserver(c.Nameserver)
		if err != nil {
			return &ncerr.ConfigError{Field: "dns", Value: c.Nameserver, Message: err.Error()}
		}
		c.Nameserver = ns
	}

	return nil
}

// normalizeNameserver adds the default DNS port when none is given.
func normalizeNameserver(s string) (string, error) {
	if host, port, err := net.SplitHostPort(s); err == nil {
		if host == "" {
			return "", fmt.Errorf("missing nameserver host")
		}
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("invalid nameserver port %q", port)
		}
		return s, nil
	}
	if strings.ContainsAny(s, "[]") {
		return "", fmt.Errorf("malformed nameserver address")
	}
	return net.JoinHostPort(s, strconv.Itoa(DefaultDNSPort)), nil
}

// Package resolve turns host and port strings into concrete IPv4
// addresses and port numbers.
//
// Literal dotted-quad addresses and numeric ports never touch a name
// service.  Everything else goes through, in order of preference, a
// lookup hook (tests), a configured nameserver (miekg/dns), or the
// system resolver.
package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	ncerr "tawqa/internal/errors"
	"tawqa/util"
)

const (
	// Unknown is the display name used when a peer cannot be named.
	Unknown = "(UNKNOWN)"

	// UnknownService is the display name of a port without a known
	// service.
	UnknownService = "?"

	// MaxAddrs caps how many addresses a HostRecord keeps.
	MaxAddrs = 8
)

// HostRecord is the result of resolving a host.  Addrs always holds
// between 1 and MaxAddrs IPv4 addresses in resolver order.
type HostRecord struct {
	Name  string
	Addrs []netip.Addr
}

// Addr returns the first resolved address, the only one ever connected
// to.
func (h *HostRecord) Addr() netip.Addr { return h.Addrs[0] }

// Strings returns the textual form of every address.
func (h *HostRecord) Strings() []string {
	out := make([]string, len(h.Addrs))
	for i, a := range h.Addrs {
		out[i] = a.String()
	}
	return out
}

// String formats the record as "name [addr]".
func (h *HostRecord) String() string {
	return fmt.Sprintf("%s [%s]", h.Name, h.Addr())
}

// PortSpec is a resolved port.  Num == 0 means no port was requested
// and must never be used to connect or bind.
type PortSpec struct {
	Num  uint16
	Name string // service name, or UnknownService
	Text string // decimal form for display
}

// IsZero reports whether no port was requested.
func (p PortSpec) IsZero() bool { return p.Num == 0 }

// String formats the port as "80 (http)" or "8080 (?)".
func (p PortSpec) String() string {
	return fmt.Sprintf("%s (%s)", p.Text, p.Name)
}

// Resolver resolves hosts and ports according to the run's options.
// The zero value uses the system resolver.
type Resolver struct {
	// NumericOnly forbids every name-service lookup.
	NumericOnly bool

	// Reverse enables a display-only reverse lookup for numeric hosts.
	Reverse bool

	// UDP selects the "udp" service table instead of "tcp".
	UDP bool

	// Nameserver, when set, is the host:port of a DNS server used
	// instead of the system resolver.
	Nameserver string

	// Timeout bounds each individual lookup (0 = no bound).
	Timeout time.Duration

	Logger *util.Logger

	// Optional lookup hooks, mainly for tests.
	LookupIPFunc    func(ctx context.Context, host string) ([]netip.Addr, error)
	LookupCNAMEFunc func(ctx context.Context, host string) (string, error)
	LookupAddrFunc  func(ctx context.Context, addr netip.Addr) ([]string, error)
	LookupPortFunc  func(ctx context.Context, network, service string) (int, error)
}

// Host resolves name into a HostRecord.
func (r *Resolver) Host(ctx context.Context, name string) (*HostRecord, error) {
	if addr, ok := ParseIPv4(name); ok {
		rec := &HostRecord{Name: Unknown, Addrs: []netip.Addr{addr}}
		if !r.NumericOnly && r.Reverse {
			rec.Name = r.reverseName(ctx, addr)
		}
		return rec, nil
	}

	if r.NumericOnly {
		return nil, &ncerr.ResolutionError{Kind: ncerr.NotNumeric, Name: name}
	}

	found, err := r.lookupIP(ctx, name)
	if err != nil {
		return nil, &ncerr.ResolutionError{Kind: ncerr.LookupFailed, Name: name, Err: err}
	}

	addrs := make([]netip.Addr, 0, MaxAddrs)
	for _, a := range found {
		a = a.Unmap()
		if !a.Is4() {
			continue
		}
		addrs = append(addrs, a)
		if len(addrs) == MaxAddrs {
			break
		}
	}
	if len(addrs) == 0 {
		return nil, &ncerr.ResolutionError{Kind: ncerr.LookupFailed, Name: name}
	}

	rec := &HostRecord{Name: Unknown, Addrs: addrs}
	if cname, err := r.lookupCNAME(ctx, name); err == nil && cname != "" {
		rec.Name = strings.TrimSuffix(cname, ".")
	} else if err != nil {
		r.debug("canonical name for %s: %v", name, err)
	}
	return rec, nil
}

// Port resolves a port given as a number or a service name.  An empty
// spec or "0" yields the zero PortSpec.
func (r *Resolver) Port(ctx context.Context, spec string) (PortSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PortSpec{}, nil
	}
	if n, err := strconv.Atoi(spec); err == nil {
		return r.PortNumber(n)
	}

	if r.NumericOnly {
		return PortSpec{}, &ncerr.ResolutionError{Kind: ncerr.NotNumeric, Name: spec, Port: true}
	}

	n, err := r.lookupPort(ctx, util.TransportName(r.UDP), spec)
	if err != nil {
		return PortSpec{}, &ncerr.ResolutionError{Kind: ncerr.LookupFailed, Name: spec, Port: true, Err: err}
	}
	ps, err := r.PortNumber(n)
	if err != nil {
		return PortSpec{}, err
	}
	ps.Name = spec
	return ps, nil
}

// PortNumber wraps a numeric port.  No service lookup is made.
func (r *Resolver) PortNumber(n int) (PortSpec, error) {
	if n < 0 || n > 65535 {
		return PortSpec{}, &ncerr.ResolutionError{Kind: ncerr.InvalidPort, Name: strconv.Itoa(n), Port: true}
	}
	if n == 0 {
		return PortSpec{}, nil
	}
	return PortSpec{Num: uint16(n), Name: UnknownService, Text: strconv.Itoa(n)}, nil
}

// ParseIPv4 reports whether s is a dotted-decimal IPv4 literal.
func ParseIPv4(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}

// ── lookups ──────────────────────────────────────────────────────────

func (r *Resolver) reverseName(ctx context.Context, addr netip.Addr) string {
	names, err := r.lookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		r.debug("reverse lookup for %s: %v", addr, err)
		return Unknown
	}
	return strings.TrimSuffix(names[0], ".")
}

func (r *Resolver) lookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	switch {
	case r.LookupIPFunc != nil:
		return r.LookupIPFunc(ctx, host)
	case r.Nameserver != "":
		return r.dnsLookupIP(ctx, host)
	}
	return net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
}

func (r *Resolver) lookupCNAME(ctx context.Context, host string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	switch {
	case r.LookupCNAMEFunc != nil:
		return r.LookupCNAMEFunc(ctx, host)
	case r.Nameserver != "":
		return r.dnsLookupCNAME(ctx, host)
	case r.LookupIPFunc != nil:
		return "", nil
	}
	return net.DefaultResolver.LookupCNAME(ctx, host)
}

func (r *Resolver) lookupAddr(ctx context.Context, addr netip.Addr) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	switch {
	case r.LookupAddrFunc != nil:
		return r.LookupAddrFunc(ctx, addr)
	case r.Nameserver != "":
		return r.dnsLookupAddr(ctx, addr)
	}
	return net.DefaultResolver.LookupAddr(ctx, addr.String())
}

func (r *Resolver) lookupPort(ctx context.Context, network, service string) (int, error) {
	if r.LookupPortFunc != nil {
		return r.LookupPortFunc(ctx, network, service)
	}
	return net.DefaultResolver.LookupPort(ctx, network, service)
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout > 0 {
		return context.WithTimeout(ctx, r.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Resolver) debug(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Debug(format, args...)
	}
}

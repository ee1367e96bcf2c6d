package resolve

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/miekg/dns"

	"tawqa/util"
)

// maxCNAMEHops bounds how many CNAME records are followed for one name.
const maxCNAMEHops = 8

// exchange sends one recursive query to the configured nameserver.
func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	client := &dns.Client{Net: util.TransportName(true)}
	if r.Timeout > 0 {
		client.Timeout = r.Timeout
	}

	resp, _, err := client.ExchangeContext(ctx, msg, r.Nameserver)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.Nameserver, err)
	}
	if resp.Truncated {
		client.Net = util.TransportName(false)
		resp, _, err = client.ExchangeContext(ctx, msg, r.Nameserver)
		if err != nil {
			return nil, fmt.Errorf("query %s over tcp: %w", r.Nameserver, err)
		}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s: %s", r.Nameserver, dns.RcodeToString[resp.Rcode])
	}
	return resp, nil
}

// dnsLookupIP returns the A records for host, following any CNAME
// chain present in the answer section.
func (r *Resolver) dnsLookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	resp, err := r.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return nil, err
	}

	target := canonical(resp, dns.Fqdn(host))
	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok || !strings.EqualFold(a.Hdr.Name, target) {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A records for %s", host)
	}
	return addrs, nil
}

// dnsLookupCNAME returns the canonical name for host.
func (r *Resolver) dnsLookupCNAME(ctx context.Context, host string) (string, error) {
	resp, err := r.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return "", err
	}
	return canonical(resp, dns.Fqdn(host)), nil
}

// dnsLookupAddr returns the PTR names for addr.
func (r *Resolver) dnsLookupAddr(ctx context.Context, addr netip.Addr) ([]string, error) {
	arpa, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return nil, err
	}
	resp, err := r.exchange(ctx, strings.TrimSuffix(arpa, "."), dns.TypePTR)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no PTR records for %s", addr)
	}
	return names, nil
}

// canonical follows CNAME records in resp starting at name.
func canonical(resp *dns.Msg, name string) string {
	for i := 0; i < maxCNAMEHops; i++ {
		next := ""
		for _, rr := range resp.Answer {
			if c, ok := rr.(*dns.CNAME); ok && strings.EqualFold(c.Hdr.Name, name) {
				next = c.Target
				break
			}
		}
		if next == "" {
			break
		}
		name = next
	}
	return name
}

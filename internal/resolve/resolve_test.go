package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "tawqa/internal/errors"
)

// failHooks returns a Resolver whose every lookup fails the test.
func failHooks(t *testing.T) *Resolver {
	t.Helper()
	return &Resolver{
		LookupIPFunc: func(context.Context, string) ([]netip.Addr, error) {
			t.Error("unexpected forward lookup")
			return nil, errors.New("unexpected")
		},
		LookupCNAMEFunc: func(context.Context, string) (string, error) {
			t.Error("unexpected canonical lookup")
			return "", errors.New("unexpected")
		},
		LookupAddrFunc: func(context.Context, netip.Addr) ([]string, error) {
			t.Error("unexpected reverse lookup")
			return nil, errors.New("unexpected")
		},
		LookupPortFunc: func(context.Context, string, string) (int, error) {
			t.Error("unexpected service lookup")
			return 0, errors.New("unexpected")
		},
	}
}

func TestHost_NumericNeverLooksUp(t *testing.T) {
	r := failHooks(t)
	r.NumericOnly = true
	r.Reverse = true

	rec, err := r.Host(context.Background(), "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Unknown, rec.Name)
	assert.Equal(t, []string{"10.1.2.3"}, rec.Strings())
	assert.Equal(t, "(UNKNOWN) [10.1.2.3]", rec.String())
}

func TestHost_NumericOnlyRejectsNames(t *testing.T) {
	r := failHooks(t)
	r.NumericOnly = true

	_, err := r.Host(context.Background(), "example.com")
	var re *ncerr.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ncerr.NotNumeric, re.Kind)
	assert.False(t, re.Port)
}

func TestHost_ReverseOnlyWhenRequested(t *testing.T) {
	calls := 0
	r := &Resolver{
		LookupAddrFunc: func(_ context.Context, a netip.Addr) ([]string, error) {
			calls++
			return []string{"gateway.lan."}, nil
		},
	}

	rec, err := r.Host(context.Background(), "192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, Unknown, rec.Name)
	assert.Zero(t, calls)

	r.Reverse = true
	rec, err = r.Host(context.Background(), "192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, "gateway.lan", rec.Name)
	assert.Equal(t, 1, calls)
}

func TestHost_ReverseFailureIsUnknown(t *testing.T) {
	r := &Resolver{
		Reverse: true,
		LookupAddrFunc: func(context.Context, netip.Addr) ([]string, error) {
			return nil, errors.New("nxdomain")
		},
	}
	rec, err := r.Host(context.Background(), "192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, Unknown, rec.Name)
}

func TestHost_CapsAddresses(t *testing.T) {
	var many []netip.Addr
	for i := 1; i <= 12; i++ {
		many = append(many, netip.AddrFrom4([4]byte{10, 0, 0, byte(i)}))
	}
	r := &Resolver{
		LookupIPFunc: func(context.Context, string) ([]netip.Addr, error) { return many, nil },
		LookupCNAMEFunc: func(context.Context, string) (string, error) {
			return "big.example.", nil
		},
	}

	rec, err := r.Host(context.Background(), "big.example")
	require.NoError(t, err)
	assert.Len(t, rec.Addrs, MaxAddrs)
	assert.Equal(t, "10.0.0.1", rec.Addr().String())
	assert.Equal(t, "big.example", rec.Name)
}

func TestHost_IPv6OnlyFails(t *testing.T) {
	r := &Resolver{
		LookupIPFunc: func(context.Context, string) ([]netip.Addr, error) {
			return []netip.Addr{netip.MustParseAddr("2001:db8::1")}, nil
		},
	}
	_, err := r.Host(context.Background(), "v6only.example")
	var re *ncerr.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ncerr.LookupFailed, re.Kind)
	assert.Contains(t, err.Error(), "forward host lookup failed")
}

func TestHost_LookupErrorWrapped(t *testing.T) {
	cause := errors.New("server misbehaving")
	r := &Resolver{
		LookupIPFunc: func(context.Context, string) ([]netip.Addr, error) { return nil, cause },
	}
	_, err := r.Host(context.Background(), "broken.example")
	assert.ErrorIs(t, err, cause)
}

func TestPort(t *testing.T) {
	r := &Resolver{
		LookupPortFunc: func(_ context.Context, network, service string) (int, error) {
			if network == "tcp" && service == "http" {
				return 80, nil
			}
			return 0, fmt.Errorf("unknown port %s/%s", network, service)
		},
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		spec    string
		want    uint16
		label   string
		wantErr ncerr.ResolutionKind
	}{
		{"numeric", "8080", 8080, "?", 0},
		{"service", "http", 80, "http", 0},
		{"empty", "", 0, "", 0},
		{"zero", "0", 0, "", 0},
		{"too large", "70000", 0, "", ncerr.InvalidPort},
		{"negative", "-1", 0, "", ncerr.InvalidPort},
		{"unknown service", "nosuchsvc", 0, "", ncerr.LookupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, err := r.Port(ctx, tt.spec)
			if tt.wantErr != 0 {
				var re *ncerr.ResolutionError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, tt.wantErr, re.Kind)
				assert.True(t, re.Port)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ps.Num)
			assert.Equal(t, tt.label, ps.Name)
			assert.Equal(t, tt.want == 0, ps.IsZero())
		})
	}
}

func TestPort_NumericOnly(t *testing.T) {
	r := failHooks(t)
	r.NumericOnly = true

	ps, err := r.Port(context.Background(), "22")
	require.NoError(t, err)
	assert.Equal(t, "22 (?)", ps.String())

	_, err = r.Port(context.Background(), "ssh")
	assert.EqualError(t, err, "can't parse ssh as a port number")
}

func TestPort_UsesTransportTable(t *testing.T) {
	var gotNetwork string
	r := &Resolver{
		UDP: true,
		LookupPortFunc: func(_ context.Context, network, _ string) (int, error) {
			gotNetwork = network
			return 53, nil
		},
	}
	ps, err := r.Port(context.Background(), "domain")
	require.NoError(t, err)
	assert.Equal(t, "udp", gotNetwork)
	assert.Equal(t, uint16(53), ps.Num)
}

func TestParseIPv4(t *testing.T) {
	for _, s := range []string{"127.0.0.1", "0.0.0.0", "255.255.255.255"} {
		_, ok := ParseIPv4(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"", "localhost", "::1", "1.2.3", "256.1.1.1"} {
		_, ok := ParseIPv4(s)
		assert.False(t, ok, s)
	}
}

// ── nameserver path ──────────────────────────────────────────────────

// startDNS runs a miekg/dns server on a loopback UDP socket and
// returns its address.
func startDNS(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		Handler:           handler,
		NotifyStartedFunc: func() { close(started) },
	}
	go server.ActivateAndServe() //nolint:errcheck
	t.Cleanup(func() { server.Shutdown() }) //nolint:errcheck

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func zoneHandler(t *testing.T) dns.HandlerFunc {
	return func(rw dns.ResponseWriter, query *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(query)
		q := query.Question[0]
		hdr := func(name string, rrtype uint16) dns.RR_Header {
			return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: 60}
		}
		switch {
		case q.Qtype == dns.TypeA && q.Name == "www.example.test.":
			resp.Answer = append(resp.Answer,
				&dns.CNAME{Hdr: hdr("www.example.test.", dns.TypeCNAME), Target: "web.example.test."},
				&dns.A{Hdr: hdr("web.example.test.", dns.TypeA), A: net.IPv4(192, 0, 2, 10)},
				&dns.A{Hdr: hdr("web.example.test.", dns.TypeA), A: net.IPv4(192, 0, 2, 11)},
			)
		case q.Qtype == dns.TypePTR && q.Name == "10.2.0.192.in-addr.arpa.":
			resp.Answer = append(resp.Answer,
				&dns.PTR{Hdr: hdr(q.Name, dns.TypePTR), Ptr: "web.example.test."},
			)
		default:
			resp.Rcode = dns.RcodeNameError
		}
		if err := rw.WriteMsg(resp); err != nil {
			t.Error(err)
		}
	}
}

func TestNameserver_ForwardFollowsCNAME(t *testing.T) {
	r := &Resolver{Nameserver: startDNS(t, zoneHandler(t)), Timeout: 2 * time.Second}

	rec, err := r.Host(context.Background(), "www.example.test")
	require.NoError(t, err)
	assert.Equal(t, "web.example.test", rec.Name)
	assert.Equal(t, []string{"192.0.2.10", "192.0.2.11"}, rec.Strings())
}

func TestNameserver_NXDomain(t *testing.T) {
	r := &Resolver{Nameserver: startDNS(t, zoneHandler(t)), Timeout: 2 * time.Second}

	_, err := r.Host(context.Background(), "missing.example.test")
	var re *ncerr.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ncerr.LookupFailed, re.Kind)
	assert.Contains(t, err.Error(), "NXDOMAIN")
}

func TestNameserver_Reverse(t *testing.T) {
	r := &Resolver{
		Nameserver: startDNS(t, zoneHandler(t)),
		Timeout:    2 * time.Second,
		Reverse:    true,
	}

	rec, err := r.Host(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "web.example.test", rec.Name)
}

package dns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startNameserver serves a single zone entry on a random local UDP port.
func startNameserver(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)

		q := req.Question[0]
		if ip, ok := records[q.Name]; ok && q.Qtype == dns.TypeA {
			rr, err := dns.NewRR(q.Name + " 300 IN A " + ip)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("nameserver did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestResolveIPLiteral(t *testing.T) {
	r := NewResolver(config.ResolverConfig{}, logger.Nop())

	ip, ok := r.Resolve(context.Background(), "93.184.216.34")
	assert.True(t, ok)
	assert.Equal(t, "93.184.216.34", ip)

	_, ok = r.Resolve(context.Background(), "2001:db8::1")
	assert.False(t, ok, "IPv6 literals have no IPv4 address")
}

func TestResolveEmptyDomain(t *testing.T) {
	r := NewResolver(config.ResolverConfig{}, logger.Nop())

	ip, ok := r.Resolve(context.Background(), "   ")
	assert.False(t, ok)
	assert.Empty(t, ip)
}

func TestResolveSystemFailure(t *testing.T) {
	r := NewResolver(config.ResolverConfig{Timeout: time.Second}, logger.Nop())

	// .invalid is reserved and never resolves.
	ip, ok := r.Resolve(context.Background(), "no-such-host.invalid")
	assert.False(t, ok)
	assert.Empty(t, ip)
}

func TestResolveThroughNameserver(t *testing.T) {
	addr := startNameserver(t, map[string]string{
		"example.com.": "93.184.216.34",
	})

	r := NewResolver(config.ResolverConfig{Nameserver: addr, Timeout: 2 * time.Second}, logger.Nop())

	ip, ok := r.Resolve(context.Background(), "example.com.")
	require.True(t, ok)
	assert.Equal(t, "93.184.216.34", ip)

	ip, ok = r.Resolve(context.Background(), "missing.example.com")
	assert.False(t, ok)
	assert.Empty(t, ip)
}

func TestNewResolverAddsDefaultPort(t *testing.T) {
	r := NewResolver(config.ResolverConfig{Nameserver: "9.9.9.9"}, logger.Nop())
	assert.Equal(t, "9.9.9.9:53", r.nameserver)

	r = NewResolver(config.ResolverConfig{Nameserver: "127.0.0.1:5353"}, logger.Nop())
	assert.Equal(t, "127.0.0.1:5353", r.nameserver)
}

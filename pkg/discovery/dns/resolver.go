package dns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/miekg/dns"
)

// Resolver maps a domain to its first IPv4 address. By default it goes
// through the system resolver (hosts file, nsswitch); with a nameserver
// configured it asks that server directly.
type Resolver struct {
	nameserver string
	timeout    time.Duration
	client     *dns.Client
	system     *net.Resolver
	logger     *logger.Logger
}

func NewResolver(cfg config.ResolverConfig, log *logger.Logger) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	nameserver := cfg.Nameserver
	if nameserver != "" {
		if _, _, err := net.SplitHostPort(nameserver); err != nil {
			nameserver = net.JoinHostPort(nameserver, "53")
		}
	}

	return &Resolver{
		nameserver: nameserver,
		timeout:    timeout,
		client: &dns.Client{
			Net:     "udp",
			Timeout: timeout,
		},
		system: net.DefaultResolver,
		logger: log.WithComponent("resolver"),
	}
}

// Resolve returns the first IPv4 address of domain. The boolean is false
// when the name does not resolve; there is no retry.
func (r *Resolver) Resolve(ctx context.Context, domain string) (string, bool) {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if domain == "" {
		return "", false
	}

	if ip := net.ParseIP(domain); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), true
		}
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		ip  string
		err error
	)
	if r.nameserver != "" {
		ip, err = r.queryNameserver(ctx, domain)
	} else {
		ip, err = r.querySystem(ctx, domain)
	}

	if err != nil {
		r.logger.Debugw("Domain did not resolve", "domain", domain, "nameserver", r.nameserver, "error", err)
		return "", false
	}

	r.logger.Debugw("Domain resolved", "domain", domain, "ip", ip)
	return ip, true
}

func (r *Resolver) querySystem(ctx context.Context, domain string) (string, error) {
	ips, err := r.system.LookupIP(ctx, "ip4", domain)
	if err != nil {
		return "", err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address for %s", domain)
}

func (r *Resolver) queryNameserver(ctx context.Context, domain string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, r.nameserver)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", r.nameserver, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("query %s: %s", r.nameserver, dns.RcodeToString[resp.Rcode])
	}

	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("no A record for %s", domain)
}

package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

const (
	resolvConfPath = "/etc/resolv.conf"
	defaultTimeout = 5 * time.Second
	maxCNAMEDepth  = 8
)

// Resolver looks up the addresses of a host name.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]netip.Addr, error)
}

// DNSResolver resolves host names against plain UDP DNS servers, trying them in order.
type DNSResolver struct {
	servers []string
	ipv6    bool
	client  *dns.Client
	log     *log.Logger
}

// NewDNSResolver creates a resolver for servers ("1.1.1.1" or "1.1.1.1:53").
// With no servers it uses the nameservers from /etc/resolv.conf.
func NewDNSResolver(servers []string, ipv6 bool, logger *log.Logger) (*DNSResolver, error) {
	if logger == nil {
		logger = log.Default()
	}

	var addrs []string
	if len(servers) == 0 {
		cfg, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolvConfPath, err)
		}
		for _, s := range cfg.Servers {
			addrs = append(addrs, net.JoinHostPort(s, cfg.Port))
		}
	} else {
		for _, s := range servers {
			addr, err := serverAddress(s)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no DNS servers configured")
	}

	return &DNSResolver{
		servers: addrs,
		ipv6:    ipv6,
		client: &dns.Client{
			Net:     "udp",
			Timeout: defaultTimeout,
		},
		log: logger.WithPrefix("resolver"),
	}, nil
}

// serverAddress adds the default port to a bare server address.
func serverAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if addr, err := netip.ParseAddr(s); err == nil {
		return net.JoinHostPort(addr.String(), "53"), nil
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return "", fmt.Errorf("invalid DNS server address %q: %w", s, err)
	}
	return s, nil
}

// Servers returns the server addresses in query order.
func (r *DNSResolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// Resolve returns the A (and, when enabled, AAAA) addresses of host.
func (r *DNSResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	qtypes := []uint16{dns.TypeA}
	if r.ipv6 {
		qtypes = append(qtypes, dns.TypeAAAA)
	}

	var (
		result  []netip.Addr
		lastErr error
	)
	seen := make(map[netip.Addr]bool)
	for _, qtype := range qtypes {
		addrs, err := r.lookup(ctx, dns.Fqdn(host), qtype, 0)
		if err != nil {
			lastErr = err
			continue
		}
		for _, a := range addrs {
			if !seen[a] {
				seen[a] = true
				result = append(result, a)
			}
		}
	}

	if len(result) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no addresses found for %s", host)
	}
	return result, nil
}

func (r *DNSResolver) lookup(ctx context.Context, name string, qtype uint16, depth int) ([]netip.Addr, error) {
	if depth > maxCNAMEDepth {
		return nil, fmt.Errorf("CNAME chain for %s is too long", name)
	}

	resp, err := r.exchange(ctx, name, qtype)
	if err != nil {
		return nil, err
	}

	var (
		addrs  []netip.Addr
		target string
	)
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if a, ok := netip.AddrFromSlice(v.A.To4()); ok {
				addrs = append(addrs, a)
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(v.AAAA.To16()); ok {
				addrs = append(addrs, a)
			}
		case *dns.CNAME:
			target = v.Target
		}
	}

	if len(addrs) == 0 && target != "" {
		r.log.Debugf("Following CNAME %s -> %s", name, target)
		return r.lookup(ctx, target, qtype, depth+1)
	}
	return addrs, nil
}

// exchange asks each server in turn until one answers.
func (r *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	req := new(dns.Msg)
	req.SetQuestion(name, qtype)
	req.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, req, server)
		if err != nil {
			r.log.Debugf("DNS query %s %s to %s failed: %v", dns.TypeToString[qtype], name, server, err)
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%s: %s", name, dns.RcodeToString[resp.Rcode])
		default:
			lastErr = fmt.Errorf("%s: server %s answered %s", name, server, dns.RcodeToString[resp.Rcode])
		}
	}
	return nil, fmt.Errorf("DNS query for %s failed: %w", name, lastErr)
}

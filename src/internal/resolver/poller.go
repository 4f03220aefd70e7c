package resolver

import (
	"context"
	"net/netip"
	"sync"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

// HostnamePoller resolves a fixed list of hosts and remembers the last good answers.
type HostnamePoller struct {
	mu       sync.Mutex
	resolver Resolver
	hosts    []string
	last     map[string][]netip.Addr
	log      *log.Logger
}

// NewHostnamePoller creates a poller for hosts. Invalid host names are dropped with a warning.
func NewHostnamePoller(r Resolver, hosts []string, logger *log.Logger) *HostnamePoller {
	if logger == nil {
		logger = log.Default()
	}
	p := &HostnamePoller{
		resolver: r,
		last:     make(map[string][]netip.Addr),
		log:      logger.WithPrefix("hostnames"),
	}
	p.SetHosts(hosts)
	return p
}

// SetHosts replaces the host list. Answers for hosts no longer listed are forgotten.
func (p *HostnamePoller) SetHosts(hosts []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var valid []string
	seen := make(map[string]bool)
	for _, h := range hosts {
		h = utils.NormalizeHostname(h)
		if !utils.IsHostname(h) {
			p.log.Warnf("Ignoring invalid host name %q", h)
			continue
		}
		if !seen[h] {
			seen[h] = true
			valid = append(valid, h)
		}
	}

	for h := range p.last {
		if !seen[h] {
			delete(p.last, h)
		}
	}
	p.hosts = valid
}

// Hosts returns the polled host names.
func (p *HostnamePoller) Hosts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.hosts...)
}

// Refresh resolves every host. A host whose lookup fails keeps the addresses
// of its last successful lookup.
func (p *HostnamePoller) Refresh(ctx context.Context) []rules.Resolved {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []rules.Resolved
	for _, host := range p.hosts {
		addrs, err := p.resolver.Resolve(ctx, host)
		if err != nil {
			if prev := p.last[host]; len(prev) > 0 {
				p.log.Warnf("Failed to resolve %s, keeping %d previous address(es): %v", host, len(prev), err)
			} else {
				p.log.Warnf("Failed to resolve %s: %v", host, err)
			}
		} else {
			p.log.Debugf("Resolved %s to %v", host, addrs)
			p.last[host] = addrs
		}

		for _, a := range p.last[host] {
			result = append(result, rules.Resolved{Hostname: host, Address: a})
		}
	}
	return result
}

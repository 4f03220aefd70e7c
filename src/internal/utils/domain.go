package utils

import (
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// IsHostname reports whether s is a resolvable DNS name rather than an IP literal.
func IsHostname(s string) bool {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return false
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return false
	}
	labels, ok := dns.IsDomainName(s)
	return ok && labels > 0
}

// NormalizeHostname lowercases a host name and strips the trailing root dot.
func NormalizeHostname(s string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
}

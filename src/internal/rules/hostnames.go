package rules

import "net/netip"

// Resolved is one address a host name resolved to.
type Resolved struct {
	Hostname string
	Address  netip.Addr
}

// HostnameRules turns resolved host addresses into ALLOW rules on port.
// The host name becomes the name suffix, so the same address reached
// through two host names yields two rules.
func HostnameRules(port string, resolved []Resolved) []Rule {
	var result []Rule
	seen := make(map[string]bool)
	for _, r := range resolved {
		rule := Rule{
			Action:        ActionAllow,
			Port:          normalizePort(port),
			RemoteAddress: r.Address.String(),
			NameSuffix:    r.Hostname,
		}
		name := rule.CanonicalName()
		if seen[name] {
			continue
		}
		seen[name] = true
		result = append(result, rule)
	}
	return result
}

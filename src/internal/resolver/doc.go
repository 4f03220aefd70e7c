// Package resolver turns the configured host names into ALLOW rules.
//
// DNSResolver queries plain DNS servers with miekg/dns. HostnamePoller keeps
// the last good answer for every host, so a failed lookup never revokes access
// that was granted before.
package resolver

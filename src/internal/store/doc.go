// Package store adapts live packet-filter rule tables to the FilterStore
// interface used by the reconciliation engine.
//
// Entries are identified by name only. The iptables adapter uses the rule
// comment as the name, the nftables adapter uses the rule user data. A
// disabled entry is one parked in a separate chain that no traffic jumps to;
// enabling it moves the rule back to where it was.
package store

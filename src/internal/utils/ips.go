package utils

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// AddressKind tells how a remote address string was written.
type AddressKind int

const (
	AddressSingle AddressKind = iota
	AddressPrefix
	AddressRange
)

// Address is a parsed remote address: a single IP, a CIDR prefix or a from-to range.
type Address struct {
	Kind   AddressKind
	From   netip.Addr
	To     netip.Addr
	Prefix netip.Prefix
}

// Is4 reports whether the address belongs to the IPv4 family.
func (a Address) Is4() bool {
	if a.Kind == AddressPrefix {
		return a.Prefix.Addr().Is4()
	}
	return a.From.Is4()
}

// String renders the address the way it is written in rule definitions.
func (a Address) String() string {
	switch a.Kind {
	case AddressPrefix:
		return a.Prefix.String()
	case AddressRange:
		return a.From.String() + "-" + a.To.String()
	default:
		return a.From.String()
	}
}

// ParseAddress parses "1.2.3.4", "1.2.3.0/24" or "1.2.3.4-1.2.3.9" (IPv6 likewise).
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return Address{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		return Address{Kind: AddressPrefix, Prefix: prefix.Masked()}, nil
	}

	if from, to, ok := strings.Cut(s, "-"); ok {
		fromAddr, err := netip.ParseAddr(strings.TrimSpace(from))
		if err != nil {
			return Address{}, fmt.Errorf("invalid range start %q: %w", from, err)
		}
		toAddr, err := netip.ParseAddr(strings.TrimSpace(to))
		if err != nil {
			return Address{}, fmt.Errorf("invalid range end %q: %w", to, err)
		}
		if fromAddr.Is4() != toAddr.Is4() {
			return Address{}, fmt.Errorf("range %q mixes IPv4 and IPv6", s)
		}
		if toAddr.Less(fromAddr) {
			return Address{}, fmt.Errorf("range %q ends before it starts", s)
		}
		return Address{Kind: AddressRange, From: fromAddr, To: toAddr}, nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid IP address %q: %w", s, err)
	}
	return Address{Kind: AddressSingle, From: addr, To: addr}, nil
}

// IsValidPort reports whether s is a decimal port number in 1..65535.
func IsValidPort(s string) bool {
	_, err := ParsePort(s)
	return err == nil
}

// ParsePort parses a decimal port number in 1..65535.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", n)
	}
	return uint16(n), nil
}

// ParsePortRange parses "80" or "8000-8080" and returns the inclusive bounds.
func ParsePortRange(s string) (uint16, uint16, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		p, err := ParsePort(s)
		return p, p, err
	}
	fromPort, err := ParsePort(from)
	if err != nil {
		return 0, 0, err
	}
	toPort, err := ParsePort(to)
	if err != nil {
		return 0, 0, err
	}
	if toPort < fromPort {
		return 0, 0, fmt.Errorf("port range %q ends before it starts", s)
	}
	return fromPort, toPort, nil
}

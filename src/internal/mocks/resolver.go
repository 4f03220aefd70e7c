package mocks

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
)

// MockResolver answers host lookups from a fixed table.
type MockResolver struct {
	mu sync.Mutex

	// Answers maps a host name to the addresses returned for it
	Answers map[string][]netip.Addr

	// ResolveFunc is called by Resolve if not nil
	ResolveFunc func(ctx context.Context, host string) ([]netip.Addr, error)

	ResolveCalls int
}

// NewMockResolver creates a resolver with an empty answer table.
func NewMockResolver() *MockResolver {
	return &MockResolver{Answers: make(map[string][]netip.Addr)}
}

// Set replaces the answer for host.
func (m *MockResolver) Set(host string, addrs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parsed := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		parsed = append(parsed, netip.MustParseAddr(a))
	}
	m.Answers[host] = parsed
}

// Resolve returns the configured answer, or an error for unknown hosts.
func (m *MockResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	m.mu.Lock()
	m.ResolveCalls++
	fn := m.ResolveFunc
	answer, ok := m.Answers[host]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, host)
	}
	if !ok {
		return nil, fmt.Errorf("no such host %s", host)
	}
	return append([]netip.Addr(nil), answer...), nil
}

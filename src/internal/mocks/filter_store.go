package mocks

import (
	"sync"

	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/store"
)

// MockFilterStore is a FilterStore whose calls can be overridden one by one.
//
// Calls without an override go to Backing, an in-memory store, so tests only
// need to describe the failures they care about.
type MockFilterStore struct {
	mu sync.Mutex

	Backing *store.MemoryStore

	// ListRulesFunc is called by ListRules if not nil
	ListRulesFunc func() ([]store.Entry, error)

	// AddRuleFunc is called by AddRule if not nil
	AddRuleFunc func(name string, action rules.Action, port, remoteAddress string) error

	// RemoveRuleFunc is called by RemoveRule if not nil
	RemoveRuleFunc func(name string) error

	// SetEnabledFunc is called by SetEnabled if not nil
	SetEnabledFunc func(name string, enabled bool) error

	// Track calls for verification in tests
	ListRulesCalls  int
	AddRuleCalls    int
	RemoveRuleCalls int
	SetEnabledCalls int
}

// NewMockFilterStore creates a mock backed by a memory store holding entries.
func NewMockFilterStore(entries ...store.Entry) *MockFilterStore {
	return &MockFilterStore{Backing: store.NewMemoryStore(entries...)}
}

// ListRules returns the store entries.
func (m *MockFilterStore) ListRules() ([]store.Entry, error) {
	m.mu.Lock()
	m.ListRulesCalls++
	fn := m.ListRulesFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return m.Backing.ListRules()
}

// AddRule creates an entry.
func (m *MockFilterStore) AddRule(name string, action rules.Action, port, remoteAddress string) error {
	m.mu.Lock()
	m.AddRuleCalls++
	fn := m.AddRuleFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(name, action, port, remoteAddress)
	}
	return m.Backing.AddRule(name, action, port, remoteAddress)
}

// RemoveRule deletes an entry.
func (m *MockFilterStore) RemoveRule(name string) error {
	m.mu.Lock()
	m.RemoveRuleCalls++
	fn := m.RemoveRuleFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(name)
	}
	return m.Backing.RemoveRule(name)
}

// SetEnabled enables or disables an entry.
func (m *MockFilterStore) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	m.SetEnabledCalls++
	fn := m.SetEnabledFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(name, enabled)
	}
	return m.Backing.SetEnabled(name, enabled)
}

// ParkedRules reports what the backing store disabled.
func (m *MockFilterStore) ParkedRules() ([]string, error) {
	return m.Backing.ParkedRules()
}

// MutationCalls returns the number of calls that could have changed the store.
func (m *MockFilterStore) MutationCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AddRuleCalls + m.RemoveRuleCalls + m.SetEnabledCalls
}

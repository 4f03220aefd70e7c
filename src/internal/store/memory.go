package store

import (
	"fmt"
	"sync"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// MemoryStore is an ordered in-memory filter table. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	parked  map[string]bool
}

var (
	_ FilterStore  = (*MemoryStore)(nil)
	_ ParkedLister = (*MemoryStore)(nil)
)

// NewMemoryStore creates a store holding the given entries.
func NewMemoryStore(entries ...Entry) *MemoryStore {
	return &MemoryStore{
		entries: append([]Entry(nil), entries...),
		parked:  make(map[string]bool),
	}
}

// Insert appends an entry as-is, the way another program would.
func (s *MemoryStore) Insert(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Get returns the first entry with the given name.
func (s *MemoryStore) Get(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func (s *MemoryStore) ListRules() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...), nil
}

func (s *MemoryStore) AddRule(name string, action rules.Action, port, remoteAddress string) error {
	if name == "" {
		return errors.NewStoreError("rule name is empty", nil)
	}
	if action != rules.ActionAllow && action != rules.ActionBlock {
		return errors.NewStoreError(fmt.Sprintf("unsupported action %q", action), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		Name:          name,
		Enabled:       true,
		LocalPort:     entryPort(port),
		RemoteAddress: entryAddress(remoteAddress),
		Action:        action,
		Protocol:      "TCP",
	})
	return nil
}

// RemoveRule deletes every entry carrying name.
func (s *MemoryStore) RemoveRule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := false
	for _, e := range s.entries {
		if e.Name == name {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	if !removed {
		return notFoundError(name)
	}
	delete(s.parked, name)
	return nil
}

func (s *MemoryStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.entries {
		if s.entries[i].Name != name {
			continue
		}
		found = true
		if s.entries[i].Enabled && !enabled {
			s.parked[name] = true
		}
		s.entries[i].Enabled = enabled
	}
	if !found {
		return notFoundError(name)
	}
	if enabled {
		delete(s.parked, name)
	}
	return nil
}

// ParkedRules returns the names this store disabled and that are still disabled.
func (s *MemoryStore) ParkedRules() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	seen := make(map[string]bool)
	for _, e := range s.entries {
		if s.parked[e.Name] && !e.Enabled && !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	return names, nil
}

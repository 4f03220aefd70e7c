package engine

// NameSet is an insertion-ordered set of rule names.
type NameSet struct {
	names []string
	index map[string]int
}

// NewNameSet creates an empty set.
func NewNameSet() *NameSet {
	return &NameSet{index: make(map[string]int)}
}

// Add inserts name and reports whether it was absent.
func (s *NameSet) Add(name string) bool {
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
	return true
}

// Remove deletes name and reports whether it was present.
func (s *NameSet) Remove(name string) bool {
	idx, ok := s.index[name]
	if !ok {
		return false
	}
	s.names = append(s.names[:idx], s.names[idx+1:]...)
	delete(s.index, name)
	for i := idx; i < len(s.names); i++ {
		s.index[s.names[i]] = i
	}
	return true
}

func (s *NameSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns a copy of the names in insertion order.
func (s *NameSet) Names() []string {
	return append([]string{}, s.names...)
}

func (s *NameSet) Len() int {
	return len(s.names)
}

func (s *NameSet) Clear() {
	s.names = nil
	s.index = make(map[string]int)
}

// Ledger records which filter store entries the engine owns.
type Ledger struct {
	// Created holds names of entries the engine added and still considers its own.
	Created *NameSet
	// Disabled holds names of foreign entries the engine disabled and must re-enable on reset.
	Disabled *NameSet
}

func newLedger() *Ledger {
	return &Ledger{Created: NewNameSet(), Disabled: NewNameSet()}
}

// LedgerSnapshot is a point-in-time copy of the ledger.
type LedgerSnapshot struct {
	CreatedRuleNames  []string `json:"created_rule_names"`
	DisabledRuleNames []string `json:"disabled_rule_names"`
}

func (l *Ledger) snapshot() LedgerSnapshot {
	return LedgerSnapshot{
		CreatedRuleNames:  l.Created.Names(),
		DisabledRuleNames: l.Disabled.Names(),
	}
}

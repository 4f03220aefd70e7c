package store

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/coreos/go-iptables/iptables"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

const (
	DefaultIPTablesTable        = "filter"
	DefaultIPTablesChain        = "INPUT"
	DefaultIPTablesParkingChain = "KEEN_IPRULES_OFF"
)

// IPTablesConfig selects the chain whose rules form the store.
type IPTablesConfig struct {
	Table string
	Chain string
	// ParkingChain holds disabled rules. Nothing jumps to it.
	ParkingChain string
	IPv6         bool
}

// iptablesClient is the subset of *iptables.IPTables the store uses.
type iptablesClient interface {
	List(table, chain string) ([]string, error)
	Insert(table, chain string, pos int, rulespec ...string) error
	Append(table, chain string, rulespec ...string) error
	Delete(table, chain string, rulespec ...string) error
	ChainExists(table, chain string) (bool, error)
	NewChain(table, chain string) error
}

// IPTablesStore is a FilterStore over one iptables chain.
type IPTablesStore struct {
	mu      sync.Mutex
	cfg     IPTablesConfig
	connect func() (iptablesClient, error)
	ipt     iptablesClient
	log     *log.Logger
}

var (
	_ FilterStore  = (*IPTablesStore)(nil)
	_ ParkedLister = (*IPTablesStore)(nil)
)

// NewIPTablesStore creates the store. The iptables binary is not touched until the first call.
func NewIPTablesStore(cfg IPTablesConfig, logger *log.Logger) *IPTablesStore {
	if cfg.Table == "" {
		cfg.Table = DefaultIPTablesTable
	}
	if cfg.Chain == "" {
		cfg.Chain = DefaultIPTablesChain
	}
	if cfg.ParkingChain == "" {
		cfg.ParkingChain = DefaultIPTablesParkingChain
	}
	if logger == nil {
		logger = log.Default()
	}

	proto := iptables.ProtocolIPv4
	if cfg.IPv6 {
		proto = iptables.ProtocolIPv6
	}

	return &IPTablesStore{
		cfg: cfg,
		connect: func() (iptablesClient, error) {
			return iptables.NewWithProtocol(proto)
		},
		log: logger.WithPrefix("iptables"),
	}
}

// client returns the iptables handle, creating it and the parking chain on first use.
func (s *IPTablesStore) client() (iptablesClient, error) {
	if s.ipt != nil {
		return s.ipt, nil
	}

	ipt, err := s.connect()
	if err != nil {
		return nil, errors.NewStoreError("failed to initialize iptables", err)
	}

	exists, err := ipt.ChainExists(s.cfg.Table, s.cfg.ParkingChain)
	if err != nil {
		return nil, errors.NewStoreError(fmt.Sprintf("failed to check chain %s/%s", s.cfg.Table, s.cfg.ParkingChain), err)
	}
	if !exists {
		if err := ipt.NewChain(s.cfg.Table, s.cfg.ParkingChain); err != nil {
			return nil, errors.NewStoreError(fmt.Sprintf("failed to create chain %s/%s", s.cfg.Table, s.cfg.ParkingChain), err)
		}
		s.log.Debugf("Created parking chain %s/%s", s.cfg.Table, s.cfg.ParkingChain)
	}

	s.ipt = ipt
	return ipt, nil
}

// positionTag starts the comment of the bookkeeping rules in the parking
// chain that remember where a parked rule sat: "<tag><position> <name>".
const positionTag = "keen-iprules:pos="

// iptRule is one "-A" line of a chain listing.
type iptRule struct {
	spec []string
	name string
	// position is set on bookkeeping rules only, name is then the parked rule's.
	position int
}

func positionMarker(name string, pos int) []string {
	return []string{"-m", "comment", "--comment", positionTag + strconv.Itoa(pos) + " " + name, "-j", "RETURN"}
}

func parseMarker(r iptRule) iptRule {
	rest, ok := strings.CutPrefix(r.name, positionTag)
	if !ok {
		return r
	}
	posText, name, ok := strings.Cut(rest, " ")
	if !ok {
		return r
	}
	if pos, err := strconv.Atoi(posText); err == nil && pos > 0 {
		r.name = name
		r.position = pos
	}
	return r
}

func (s *IPTablesStore) listChain(ipt iptablesClient, chain string) ([]iptRule, error) {
	lines, err := ipt.List(s.cfg.Table, chain)
	if err != nil {
		return nil, errors.NewStoreError(fmt.Sprintf("failed to list chain %s/%s", s.cfg.Table, chain), err)
	}

	var result []iptRule
	for _, line := range lines {
		tokens, err := splitRuleSpec(line)
		if err != nil {
			s.log.Warnf("Skipping unparsable rule %q: %v", line, err)
			continue
		}
		if len(tokens) < 2 || tokens[0] != "-A" {
			continue
		}
		spec := tokens[2:]
		result = append(result, parseMarker(iptRule{spec: spec, name: ruleSpecName(spec)}))
	}
	return result, nil
}

// listParked splits the parking chain into parked rules and position markers.
func (s *IPTablesStore) listParked(ipt iptablesClient) ([]iptRule, map[string][]iptRule, error) {
	list, err := s.listChain(ipt, s.cfg.ParkingChain)
	if err != nil {
		return nil, nil, err
	}
	var parked []iptRule
	markers := make(map[string][]iptRule)
	for _, r := range list {
		if r.position > 0 {
			markers[r.name] = append(markers[r.name], r)
			continue
		}
		parked = append(parked, r)
	}
	return parked, markers, nil
}

func (s *IPTablesStore) ListRules() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ipt, err := s.client()
	if err != nil {
		return nil, err
	}

	active, err := s.listChain(ipt, s.cfg.Chain)
	if err != nil {
		return nil, err
	}
	parked, _, err := s.listParked(ipt)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(active)+len(parked))
	for _, r := range active {
		entries = append(entries, ruleSpecEntry(r, true))
	}
	for _, r := range parked {
		entries = append(entries, ruleSpecEntry(r, false))
	}
	return entries, nil
}

func (s *IPTablesStore) AddRule(name string, action rules.Action, port, remoteAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := s.buildRuleSpec(name, action, port, remoteAddress)
	if err != nil {
		return err
	}

	ipt, err := s.client()
	if err != nil {
		return err
	}

	if action == rules.ActionAllow {
		err = ipt.Insert(s.cfg.Table, s.cfg.Chain, 1, spec...)
	} else {
		err = ipt.Append(s.cfg.Table, s.cfg.Chain, spec...)
	}
	if err != nil {
		return errors.NewStoreError(fmt.Sprintf("failed to add rule %q", name), err)
	}
	return nil
}

func (s *IPTablesStore) buildRuleSpec(name string, action rules.Action, port, remoteAddress string) ([]string, error) {
	var target string
	switch action {
	case rules.ActionAllow:
		target = "ACCEPT"
	case rules.ActionBlock:
		target = "DROP"
	default:
		return nil, errors.NewStoreError(fmt.Sprintf("unsupported action %q for rule %q", action, name), nil)
	}
	if err := checkNameLength(name); err != nil {
		return nil, err
	}

	spec := []string{"-p", "tcp"}

	if remoteAddress != rules.AnyAddress {
		addr, err := utils.ParseAddress(remoteAddress)
		if err != nil {
			return nil, errors.NewStoreError(fmt.Sprintf("invalid address for rule %q", name), err)
		}
		if addr.Is4() == s.cfg.IPv6 {
			return nil, errors.NewStoreError(fmt.Sprintf("address %s of rule %q does not match the table family", remoteAddress, name), nil)
		}
		if addr.Kind == utils.AddressRange {
			spec = append(spec, "-m", "iprange", "--src-range", addr.String())
		} else {
			spec = append(spec, "-s", addr.String())
		}
	}

	if port != rules.AnyPort {
		from, to, err := utils.ParsePortRange(port)
		if err != nil {
			return nil, errors.NewStoreError(fmt.Sprintf("invalid port for rule %q", name), err)
		}
		dport := strconv.Itoa(int(from))
		if to != from {
			dport += ":" + strconv.Itoa(int(to))
		}
		spec = append(spec, "-m", "tcp", "--dport", dport)
	}

	return append(spec, "-m", "comment", "--comment", name, "-j", target), nil
}

// RemoveRule deletes every rule carrying name, enabled or parked.
func (s *IPTablesStore) RemoveRule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ipt, err := s.client()
	if err != nil {
		return err
	}

	removed := false
	for _, chain := range []string{s.cfg.Chain, s.cfg.ParkingChain} {
		list, err := s.listChain(ipt, chain)
		if err != nil {
			return err
		}
		for _, r := range list {
			if r.name != name {
				continue
			}
			if err := ipt.Delete(s.cfg.Table, chain, r.spec...); err != nil {
				return errors.NewStoreError(fmt.Sprintf("failed to delete rule %q from %s", name, chain), err)
			}
			if r.position == 0 {
				removed = true
			}
		}
	}

	if !removed {
		return notFoundError(name)
	}
	return nil
}

func (s *IPTablesStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ipt, err := s.client()
	if err != nil {
		return err
	}

	active, err := s.listChain(ipt, s.cfg.Chain)
	if err != nil {
		return err
	}
	parked, markers, err := s.listParked(ipt)
	if err != nil {
		return err
	}

	if enabled {
		return s.unpark(ipt, name, active, parked, markers[name])
	}
	return s.park(ipt, name, active, parked, markers[name])
}

func (s *IPTablesStore) park(ipt iptablesClient, name string, active, parked, markers []iptRule) error {
	moved := false
	for idx, r := range active {
		if r.name != name {
			continue
		}
		if err := ipt.Append(s.cfg.Table, s.cfg.ParkingChain, r.spec...); err != nil {
			return errors.NewStoreError(fmt.Sprintf("failed to park rule %q", name), err)
		}
		if err := ipt.Delete(s.cfg.Table, s.cfg.Chain, r.spec...); err != nil {
			return errors.NewStoreError(fmt.Sprintf("failed to remove parked rule %q from %s", name, s.cfg.Chain), err)
		}
		if !moved && len(markers) == 0 {
			s.writeMarker(ipt, name, idx+1)
		}
		moved = true
	}
	if moved {
		s.log.Debugf("Disabled rule %q", name)
		return nil
	}
	if containsRule(parked, name) {
		return nil
	}
	return notFoundError(name)
}

func (s *IPTablesStore) unpark(ipt iptablesClient, name string, active, parked, markers []iptRule) error {
	pos := 0
	if len(markers) > 0 {
		pos = markers[0].position
	}

	chainLen := len(active)
	moved := false
	for _, r := range parked {
		if r.name != name {
			continue
		}
		if pos >= 1 && pos <= chainLen+1 {
			err := ipt.Insert(s.cfg.Table, s.cfg.Chain, pos, r.spec...)
			if err != nil {
				return errors.NewStoreError(fmt.Sprintf("failed to restore rule %q", name), err)
			}
		} else if err := ipt.Append(s.cfg.Table, s.cfg.Chain, r.spec...); err != nil {
			return errors.NewStoreError(fmt.Sprintf("failed to restore rule %q", name), err)
		}
		if err := ipt.Delete(s.cfg.Table, s.cfg.ParkingChain, r.spec...); err != nil {
			return errors.NewStoreError(fmt.Sprintf("failed to remove rule %q from %s", name, s.cfg.ParkingChain), err)
		}
		chainLen++
		moved = true
	}
	if !moved && !containsRule(active, name) {
		return notFoundError(name)
	}
	s.dropMarkers(ipt, markers)
	if moved {
		s.log.Debugf("Enabled rule %q", name)
	}
	return nil
}

// writeMarker records the 1-based chain position of a rule being parked.
// Without a marker the rule is appended to the chain when it is enabled again.
func (s *IPTablesStore) writeMarker(ipt iptablesClient, name string, pos int) {
	marker := positionMarker(name, pos)
	if err := checkNameLength(marker[3]); err != nil {
		s.log.Debugf("Not recording the position of rule %q: %v", name, err)
		return
	}
	if err := ipt.Append(s.cfg.Table, s.cfg.ParkingChain, marker...); err != nil {
		s.log.Warnf("Failed to record the position of rule %q: %v", name, err)
	}
}

func (s *IPTablesStore) dropMarkers(ipt iptablesClient, markers []iptRule) {
	for _, m := range markers {
		if err := ipt.Delete(s.cfg.Table, s.cfg.ParkingChain, m.spec...); err != nil {
			s.log.Warnf("Failed to delete position marker of rule %q: %v", m.name, err)
		}
	}
}

// ParkedRules returns the names of the rules in the parking chain.
func (s *IPTablesStore) ParkedRules() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ipt, err := s.client()
	if err != nil {
		return nil, err
	}
	parked, _, err := s.listParked(ipt)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, r := range parked {
		if !seen[r.name] {
			seen[r.name] = true
			names = append(names, r.name)
		}
	}
	return names, nil
}

func containsRule(list []iptRule, name string) bool {
	for _, r := range list {
		if r.name == name {
			return true
		}
	}
	return false
}

// ruleSpecName is the comment of a rule, or its full spec when it has none.
func ruleSpecName(spec []string) string {
	for i := 0; i+1 < len(spec); i++ {
		if spec[i] == "--comment" {
			return spec[i+1]
		}
	}
	return strings.Join(spec, " ")
}

func ruleSpecEntry(r iptRule, enabled bool) Entry {
	entry := Entry{
		Name:          r.name,
		Enabled:       enabled,
		LocalPort:     Wildcard,
		RemoteAddress: Wildcard,
		Protocol:      Wildcard,
	}

	spec := r.spec
	for i := 0; i+1 < len(spec); i++ {
		value := spec[i+1]
		switch spec[i] {
		case "-p", "--protocol":
			entry.Protocol = strings.ToUpper(value)
		case "--dport", "--dports", "--destination-port":
			entry.LocalPort = strings.ReplaceAll(value, ":", "-")
		case "-s", "--source":
			entry.RemoteAddress = trimHostPrefix(value)
		case "--src-range":
			entry.RemoteAddress = value
		case "-j", "--jump":
			switch value {
			case "ACCEPT":
				entry.Action = rules.ActionAllow
			case "DROP", "REJECT":
				entry.Action = rules.ActionBlock
			}
		}
	}
	return entry
}

// trimHostPrefix turns "1.2.3.4/32" into "1.2.3.4"; iptables lists single hosts with a full mask.
func trimHostPrefix(value string) string {
	if strings.HasSuffix(value, "/32") && !strings.Contains(value, ":") {
		return strings.TrimSuffix(value, "/32")
	}
	return strings.TrimSuffix(value, "/128")
}

// splitRuleSpec tokenizes one line of "iptables -S" output, honoring double
// quotes and backslash escapes inside them.
func splitRuleSpec(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inQuote bool
		escaped bool
		started bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

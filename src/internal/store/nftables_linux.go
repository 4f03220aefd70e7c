//go:build linux

package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
	"github.com/maksimkurb/keen-iprules/src/internal/utils"
)

// nftConn is the subset of *nftables.Conn the store uses.
type nftConn interface {
	AddTable(t *nftables.Table) *nftables.Table
	AddChain(c *nftables.Chain) *nftables.Chain
	ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error)
	GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error)
	AddRule(r *nftables.Rule) *nftables.Rule
	InsertRule(r *nftables.Rule) *nftables.Rule
	DelRule(r *nftables.Rule) error
	Flush() error
}

// NFTablesStore is a FilterStore over one nftables chain.
type NFTablesStore struct {
	mu      sync.Mutex
	cfg     NFTablesConfig
	family  nftables.TableFamily
	connect func() (nftConn, error)
	log     *log.Logger

	conn    nftConn
	table   *nftables.Table
	chain   *nftables.Chain
	parking *nftables.Chain

	positions map[string]int
}

var (
	_ FilterStore  = (*NFTablesStore)(nil)
	_ ParkedLister = (*NFTablesStore)(nil)
)

// NewNFTablesStore creates the store. The netlink connection is opened on first use.
func NewNFTablesStore(cfg NFTablesConfig, logger *log.Logger) (FilterStore, error) {
	return newNFTablesStore(cfg, logger, func() (nftConn, error) {
		return nftables.New()
	})
}

func newNFTablesStore(cfg NFTablesConfig, logger *log.Logger, connect func() (nftConn, error)) (*NFTablesStore, error) {
	cfg = cfg.withDefaults()

	var family nftables.TableFamily
	switch cfg.Family {
	case "inet":
		family = nftables.TableFamilyINet
	case "ip":
		family = nftables.TableFamilyIPv4
	case "ip6":
		family = nftables.TableFamilyIPv6
	default:
		return nil, errors.NewStoreError(fmt.Sprintf("unsupported nftables family %q", cfg.Family), nil)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &NFTablesStore{
		cfg:       cfg,
		family:    family,
		connect:   connect,
		log:       logger.WithPrefix("nftables"),
		positions: make(map[string]int),
	}, nil
}

// client opens the connection and makes sure the table and both chains exist.
func (s *NFTablesStore) client() (nftConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := s.connect()
	if err != nil {
		return nil, errors.NewStoreError("failed to open nftables connection", err)
	}

	table := conn.AddTable(&nftables.Table{Name: s.cfg.Table, Family: s.family})

	chains, err := conn.ListChainsOfTableFamily(s.family)
	if err != nil {
		return nil, errors.NewStoreError("failed to list nftables chains", err)
	}

	var chain, parking *nftables.Chain
	for _, c := range chains {
		if c.Table == nil || c.Table.Name != s.cfg.Table {
			continue
		}
		switch c.Name {
		case s.cfg.Chain:
			chain = c
		case s.cfg.ParkingChain:
			parking = c
		}
	}

	if chain == nil {
		policy := nftables.ChainPolicyAccept
		chain = conn.AddChain(&nftables.Chain{
			Name:     s.cfg.Chain,
			Table:    table,
			Type:     nftables.ChainTypeFilter,
			Hooknum:  nftables.ChainHookInput,
			Priority: nftables.ChainPriorityFilter,
			Policy:   &policy,
		})
		s.log.Debugf("Creating chain %s %s %s", s.cfg.Family, s.cfg.Table, s.cfg.Chain)
	}
	if parking == nil {
		parking = conn.AddChain(&nftables.Chain{
			Name:  s.cfg.ParkingChain,
			Table: table,
		})
		s.log.Debugf("Creating parking chain %s %s %s", s.cfg.Family, s.cfg.Table, s.cfg.ParkingChain)
	}

	if err := conn.Flush(); err != nil {
		return nil, errors.NewStoreError("failed to prepare nftables chains", err)
	}

	s.conn = conn
	s.table = table
	s.chain = chain
	s.parking = parking
	return conn, nil
}

func (s *NFTablesStore) getRules(conn nftConn, chain *nftables.Chain) ([]*nftables.Rule, error) {
	list, err := conn.GetRules(s.table, chain)
	if err != nil {
		return nil, errors.NewStoreError(fmt.Sprintf("failed to get rules of chain %s", chain.Name), err)
	}
	return list, nil
}

func (s *NFTablesStore) ListRules() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.client()
	if err != nil {
		return nil, err
	}
	active, err := s.getRules(conn, s.chain)
	if err != nil {
		return nil, err
	}
	parked, err := s.getRules(conn, s.parking)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(active)+len(parked))
	for _, r := range active {
		entries = append(entries, nftRuleEntry(r, true))
	}
	for _, r := range parked {
		entries = append(entries, nftRuleEntry(r, false))
	}
	return entries, nil
}

func (s *NFTablesStore) AddRule(name string, action rules.Action, port, remoteAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.client()
	if err != nil {
		return err
	}

	exprs, err := s.buildExprs(name, action, port, remoteAddress)
	if err != nil {
		return err
	}

	rule := &nftables.Rule{
		Table:    s.table,
		Chain:    s.chain,
		Exprs:    exprs,
		UserData: []byte(name),
	}
	if action == rules.ActionAllow {
		conn.InsertRule(rule)
	} else {
		conn.AddRule(rule)
	}
	if err := conn.Flush(); err != nil {
		return errors.NewStoreError(fmt.Sprintf("failed to add rule %q", name), err)
	}
	return nil
}

func (s *NFTablesStore) buildExprs(name string, action rules.Action, port, remoteAddress string) ([]expr.Any, error) {
	var verdict expr.VerdictKind
	switch action {
	case rules.ActionAllow:
		verdict = expr.VerdictAccept
	case rules.ActionBlock:
		verdict = expr.VerdictDrop
	default:
		return nil, errors.NewStoreError(fmt.Sprintf("unsupported action %q for rule %q", action, name), nil)
	}
	if err := checkNameLength(name); err != nil {
		return nil, err
	}

	var exprs []expr.Any

	if remoteAddress != rules.AnyAddress {
		addr, err := utils.ParseAddress(remoteAddress)
		if err != nil {
			return nil, errors.NewStoreError(fmt.Sprintf("invalid address for rule %q", name), err)
		}
		if (s.family == nftables.TableFamilyIPv4 && !addr.Is4()) || (s.family == nftables.TableFamilyIPv6 && addr.Is4()) {
			return nil, errors.NewStoreError(fmt.Sprintf("address %s of rule %q does not match the table family", remoteAddress, name), nil)
		}
		exprs = append(exprs, sourceAddressExprs(s.family, addr)...)
	}

	exprs = append(exprs,
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{unix.IPPROTO_TCP}},
	)

	if port != rules.AnyPort {
		from, to, err := utils.ParsePortRange(port)
		if err != nil {
			return nil, errors.NewStoreError(fmt.Sprintf("invalid port for rule %q", name), err)
		}
		exprs = append(exprs, &expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2,
			Len:          2,
		})
		if from == to {
			exprs = append(exprs, &expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryPort(from)})
		} else {
			exprs = append(exprs, &expr.Range{Op: expr.CmpOpEq, Register: 1, FromData: binaryPort(from), ToData: binaryPort(to)})
		}
	}

	return append(exprs, &expr.Counter{}, &expr.Verdict{Kind: verdict}), nil
}

func sourceAddressExprs(family nftables.TableFamily, addr utils.Address) []expr.Any {
	var (
		exprs  []expr.Any
		offset uint32 = 12
		length uint32 = 4
		proto         = byte(unix.NFPROTO_IPV4)
	)
	if !addr.Is4() {
		offset, length, proto = 8, 16, byte(unix.NFPROTO_IPV6)
	}

	if family == nftables.TableFamilyINet {
		exprs = append(exprs,
			&expr.Meta{Key: expr.MetaKeyNFPROTO, Register: 1},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{proto}},
		)
	}

	exprs = append(exprs, &expr.Payload{
		DestRegister: 1,
		Base:         expr.PayloadBaseNetworkHeader,
		Offset:       offset,
		Len:          length,
	})

	switch addr.Kind {
	case utils.AddressPrefix:
		mask := net.CIDRMask(addr.Prefix.Bits(), int(length)*8)
		exprs = append(exprs,
			&expr.Bitwise{
				SourceRegister: 1,
				DestRegister:   1,
				Len:            length,
				Mask:           mask,
				Xor:            make([]byte, length),
			},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: addr.Prefix.Addr().AsSlice()},
		)
	case utils.AddressRange:
		exprs = append(exprs, &expr.Range{
			Op:       expr.CmpOpEq,
			Register: 1,
			FromData: addr.From.AsSlice(),
			ToData:   addr.To.AsSlice(),
		})
	default:
		exprs = append(exprs, &expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: addr.From.AsSlice()})
	}
	return exprs
}

// RemoveRule deletes every rule carrying name, enabled or parked.
func (s *NFTablesStore) RemoveRule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.client()
	if err != nil {
		return err
	}

	removed := false
	for _, chain := range []*nftables.Chain{s.chain, s.parking} {
		list, err := s.getRules(conn, chain)
		if err != nil {
			return err
		}
		for _, r := range list {
			if nftRuleName(r) != name {
				continue
			}
			if err := conn.DelRule(r); err != nil {
				return errors.NewStoreError(fmt.Sprintf("failed to delete rule %q", name), err)
			}
			removed = true
		}
	}
	if !removed {
		return notFoundError(name)
	}
	if err := conn.Flush(); err != nil {
		return errors.NewStoreError(fmt.Sprintf("failed to delete rule %q", name), err)
	}
	delete(s.positions, name)
	return nil
}

func (s *NFTablesStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.client()
	if err != nil {
		return err
	}
	active, err := s.getRules(conn, s.chain)
	if err != nil {
		return err
	}
	parked, err := s.getRules(conn, s.parking)
	if err != nil {
		return err
	}

	from, to := active, parked
	if enabled {
		from, to = parked, active
	}

	moved := false
	for idx, r := range from {
		if nftRuleName(r) != name {
			continue
		}
		moved = true

		target := &nftables.Rule{Table: s.table, Exprs: r.Exprs, UserData: r.UserData}
		switch {
		case enabled && bytes.HasPrefix(r.UserData, []byte(parkedHandleTag)):
			target.UserData = nil
		case !enabled && len(r.UserData) == 0:
			target.UserData = []byte(parkedHandleTag + name)
		}
		if enabled {
			target.Chain = s.chain
			pos := s.positions[name]
			if pos >= 1 && pos <= len(to) {
				target.Position = to[pos-1].Handle
				conn.InsertRule(target)
			} else {
				conn.AddRule(target)
			}
		} else {
			target.Chain = s.parking
			conn.AddRule(target)
			if _, ok := s.positions[name]; !ok {
				s.positions[name] = idx + 1
			}
		}
		if err := conn.DelRule(r); err != nil {
			return errors.NewStoreError(fmt.Sprintf("failed to move rule %q", name), err)
		}
	}

	if !moved {
		for _, r := range to {
			if nftRuleName(r) == name {
				return nil
			}
		}
		return notFoundError(name)
	}

	if err := conn.Flush(); err != nil {
		return errors.NewStoreError(fmt.Sprintf("failed to set enabled=%t on rule %q", enabled, name), err)
	}
	if enabled {
		delete(s.positions, name)
	}
	s.log.Debugf("Set enabled=%t on rule %q", enabled, name)
	return nil
}

// ParkedRules returns the names of the rules in the parking chain.
func (s *NFTablesStore) ParkedRules() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.client()
	if err != nil {
		return nil, err
	}
	parked, err := s.getRules(conn, s.parking)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, r := range parked {
		name := nftRuleName(r)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// parkedHandleTag prefixes the UserData of a parked copy of a rule that had
// none. The copy gets a new handle, so it carries the original "handle N" name
// until it is moved back.
const parkedHandleTag = "keen-iprules:"

// nftRuleName is the rule comment, or "handle N" for rules without one.
func nftRuleName(r *nftables.Rule) string {
	if len(r.UserData) > 0 {
		return strings.TrimPrefix(string(r.UserData), parkedHandleTag)
	}
	return "handle " + strconv.FormatUint(r.Handle, 10)
}

// nftRuleEntry decodes the matches this package writes. Anything else stays a wildcard.
func nftRuleEntry(r *nftables.Rule, enabled bool) Entry {
	entry := Entry{
		Name:          nftRuleName(r),
		Enabled:       enabled,
		LocalPort:     Wildcard,
		RemoteAddress: Wildcard,
		Protocol:      Wildcard,
	}

	var (
		loaded string
		mask   []byte
	)
	for _, e := range r.Exprs {
		switch v := e.(type) {
		case *expr.Meta:
			loaded = ""
			if v.Key == expr.MetaKeyL4PROTO {
				loaded = "l4proto"
			}
		case *expr.Payload:
			loaded = ""
			mask = nil
			switch {
			case v.Base == expr.PayloadBaseTransportHeader && v.Offset == 2 && v.Len == 2:
				loaded = "dport"
			case v.Base == expr.PayloadBaseNetworkHeader && v.Offset == 12 && v.Len == 4:
				loaded = "saddr"
			case v.Base == expr.PayloadBaseNetworkHeader && v.Offset == 8 && v.Len == 16:
				loaded = "saddr"
			}
		case *expr.Bitwise:
			if loaded == "saddr" {
				mask = v.Mask
			}
		case *expr.Cmp:
			if v.Op != expr.CmpOpEq {
				continue
			}
			switch loaded {
			case "l4proto":
				entry.Protocol = protocolName(v.Data)
			case "dport":
				if len(v.Data) == 2 {
					entry.LocalPort = strconv.Itoa(int(binary.BigEndian.Uint16(v.Data)))
				}
			case "saddr":
				if addr, ok := netip.AddrFromSlice(v.Data); ok {
					entry.RemoteAddress = addr.String()
					if mask != nil {
						ones, _ := net.IPMask(mask).Size()
						entry.RemoteAddress = netip.PrefixFrom(addr, ones).String()
					}
				}
			}
		case *expr.Range:
			switch loaded {
			case "dport":
				if len(v.FromData) == 2 && len(v.ToData) == 2 {
					entry.LocalPort = fmt.Sprintf("%d-%d", binary.BigEndian.Uint16(v.FromData), binary.BigEndian.Uint16(v.ToData))
				}
			case "saddr":
				from, okFrom := netip.AddrFromSlice(v.FromData)
				to, okTo := netip.AddrFromSlice(v.ToData)
				if okFrom && okTo {
					entry.RemoteAddress = from.String() + "-" + to.String()
				}
			}
		case *expr.Verdict:
			switch v.Kind {
			case expr.VerdictAccept:
				entry.Action = rules.ActionAllow
			case expr.VerdictDrop:
				entry.Action = rules.ActionBlock
			}
		}
	}
	return entry
}

func protocolName(data []byte) string {
	switch {
	case bytes.Equal(data, []byte{unix.IPPROTO_TCP}):
		return "TCP"
	case bytes.Equal(data, []byte{unix.IPPROTO_UDP}):
		return "UDP"
	default:
		return Wildcard
	}
}

// binaryPort converts port to network byte order.
func binaryPort(port uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, port)
	return b
}

//go:build linux

package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// fakeNFTConn applies every change immediately and hands out rule handles.
type fakeNFTConn struct {
	chains     []*nftables.Chain
	rules      map[string][]*nftables.Rule
	nextHandle uint64
	flushes    int
}

func newFakeNFTConn() *fakeNFTConn {
	return &fakeNFTConn{rules: make(map[string][]*nftables.Rule), nextHandle: 1}
}

func (f *fakeNFTConn) AddTable(t *nftables.Table) *nftables.Table { return t }

func (f *fakeNFTConn) AddChain(c *nftables.Chain) *nftables.Chain {
	f.chains = append(f.chains, c)
	return c
}

func (f *fakeNFTConn) ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error) {
	var result []*nftables.Chain
	for _, c := range f.chains {
		if c.Table.Family == family {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeNFTConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	return append([]*nftables.Rule(nil), f.rules[c.Name]...), nil
}

func (f *fakeNFTConn) stamp(r *nftables.Rule) *nftables.Rule {
	r.Handle = f.nextHandle
	f.nextHandle++
	return r
}

func (f *fakeNFTConn) AddRule(r *nftables.Rule) *nftables.Rule {
	f.rules[r.Chain.Name] = append(f.rules[r.Chain.Name], f.stamp(r))
	return r
}

func (f *fakeNFTConn) InsertRule(r *nftables.Rule) *nftables.Rule {
	list := f.rules[r.Chain.Name]
	idx := 0
	if r.Position != 0 {
		for i, existing := range list {
			if existing.Handle == r.Position {
				idx = i
				break
			}
		}
	}
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = f.stamp(r)
	f.rules[r.Chain.Name] = list
	return r
}

func (f *fakeNFTConn) DelRule(r *nftables.Rule) error {
	list := f.rules[r.Chain.Name]
	for i, existing := range list {
		if existing.Handle == r.Handle {
			f.rules[r.Chain.Name] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no such rule handle %d", r.Handle)
}

func (f *fakeNFTConn) Flush() error {
	f.flushes++
	return nil
}

func (f *fakeNFTConn) names(chain string) []string {
	var names []string
	for _, r := range f.rules[chain] {
		names = append(names, nftRuleName(r))
	}
	return names
}

func newTestNFTablesStore(t *testing.T, conn *fakeNFTConn) *NFTablesStore {
	s, err := newNFTablesStore(NFTablesConfig{}, log.Discard(), func() (nftConn, error) {
		return conn, nil
	})
	require.NoError(t, err)
	return s
}

func TestNFTablesStore_CreatesChains(t *testing.T) {
	conn := newFakeNFTConn()
	s := newTestNFTablesStore(t, conn)

	_, err := s.ListRules()
	require.NoError(t, err)

	require.Len(t, conn.chains, 2)
	assert.Equal(t, DefaultNFTablesChain, conn.chains[0].Name)
	assert.Equal(t, nftables.ChainHookInput, conn.chains[0].Hooknum)
	assert.Equal(t, DefaultNFTablesParkingChain, conn.chains[1].Name)
	assert.Nil(t, conn.chains[1].Hooknum)
}

func TestNFTablesStore_AddAndDecode(t *testing.T) {
	conn := newFakeNFTConn()
	s := newTestNFTablesStore(t, conn)

	require.NoError(t, s.AddRule("block", rules.ActionBlock, "81", "1.1.1.0/24"))
	require.NoError(t, s.AddRule("allow", rules.ActionAllow, "8000-8080", "8.8.8.8"))
	require.NoError(t, s.AddRule("any", rules.ActionAllow, rules.AnyPort, rules.AnyAddress))
	require.NoError(t, s.AddRule("range6", rules.ActionAllow, "80", "2001:db8::1-2001:db8::9"))

	entries, err := s.ListRules()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, Entry{Name: "range6", Enabled: true, LocalPort: "80", RemoteAddress: "2001:db8::1-2001:db8::9", Action: rules.ActionAllow, Protocol: "TCP"}, entries[0])
	assert.Equal(t, Entry{Name: "any", Enabled: true, LocalPort: Wildcard, RemoteAddress: Wildcard, Action: rules.ActionAllow, Protocol: "TCP"}, entries[1])
	assert.Equal(t, Entry{Name: "allow", Enabled: true, LocalPort: "8000-8080", RemoteAddress: "8.8.8.8", Action: rules.ActionAllow, Protocol: "TCP"}, entries[2])
	assert.Equal(t, Entry{Name: "block", Enabled: true, LocalPort: "81", RemoteAddress: "1.1.1.0/24", Action: rules.ActionBlock, Protocol: "TCP"}, entries[3])
}

func TestNFTablesStore_DisableEnable(t *testing.T) {
	conn := newFakeNFTConn()
	s := newTestNFTablesStore(t, conn)
	_, err := s.ListRules()
	require.NoError(t, err)

	for _, name := range []string{"first", "Allow HTTP", "last"} {
		conn.AddRule(&nftables.Rule{
			Table:    s.table,
			Chain:    s.chain,
			Exprs:    []expr.Any{&expr.Verdict{Kind: expr.VerdictAccept}},
			UserData: []byte(name),
		})
	}

	require.NoError(t, s.SetEnabled("Allow HTTP", false))
	assert.Equal(t, []string{"first", "last"}, conn.names(DefaultNFTablesChain))
	assert.Equal(t, []string{"Allow HTTP"}, conn.names(DefaultNFTablesParkingChain))
	require.NoError(t, s.SetEnabled("Allow HTTP", false))

	parked, err := s.ParkedRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"Allow HTTP"}, parked)

	require.NoError(t, s.SetEnabled("Allow HTTP", true))
	assert.Equal(t, []string{"first", "Allow HTTP", "last"}, conn.names(DefaultNFTablesChain))
	assert.Empty(t, conn.names(DefaultNFTablesParkingChain))

	assert.True(t, IsNotFound(s.SetEnabled("missing", true)))
}

func TestNFTablesStore_RemoveRule(t *testing.T) {
	conn := newFakeNFTConn()
	s := newTestNFTablesStore(t, conn)

	require.NoError(t, s.AddRule("a", rules.ActionAllow, "80", "8.8.8.8"))
	require.NoError(t, s.AddRule("b", rules.ActionBlock, "81", "8.8.8.8"))
	require.NoError(t, s.SetEnabled("b", false))

	require.NoError(t, s.RemoveRule("a"))
	require.NoError(t, s.RemoveRule("b"))
	assert.Empty(t, conn.names(DefaultNFTablesChain))
	assert.Empty(t, conn.names(DefaultNFTablesParkingChain))
	assert.True(t, IsNotFound(s.RemoveRule("a")))
}

func TestNFTablesStore_FamilyMismatch(t *testing.T) {
	conn := newFakeNFTConn()
	s, err := newNFTablesStore(NFTablesConfig{Family: "ip"}, log.Discard(), func() (nftConn, error) {
		return conn, nil
	})
	require.NoError(t, err)

	assert.Error(t, s.AddRule("v6", rules.ActionAllow, "80", "2001:db8::1"))

	_, err = newNFTablesStore(NFTablesConfig{Family: "bridge"}, log.Discard(), nil)
	assert.Error(t, err)
}

func TestNFTablesStore_DisableEnableUnnamedRule(t *testing.T) {
	conn := newFakeNFTConn()
	s := newTestNFTablesStore(t, conn)
	name := AddUnnamedRule(t, s, rules.ActionAllow, "80")
	AddUnnamedRule(t, s, rules.ActionAllow, "22")
	require.Equal(t, "handle 1", name)

	require.NoError(t, s.SetEnabled(name, false))
	assert.Equal(t, []string{"handle 2"}, conn.names(DefaultNFTablesChain))
	assert.Equal(t, []string{name}, conn.names(DefaultNFTablesParkingChain))

	parked, err := s.ParkedRules()
	require.NoError(t, err)
	assert.Equal(t, []string{name}, parked)

	entries, err := s.ListRules()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: name, Enabled: false, LocalPort: "80", RemoteAddress: Wildcard, Action: rules.ActionAllow, Protocol: "TCP"}, entries[1])

	require.NoError(t, s.SetEnabled(name, true))
	assert.Empty(t, conn.names(DefaultNFTablesParkingChain))
	active := conn.rules[DefaultNFTablesChain]
	require.Len(t, active, 2)
	assert.Nil(t, active[0].UserData, "restored rule must not keep the parking tag")
	assert.Equal(t, "handle 2", nftRuleName(active[1]))
}

func TestNFTablesStore_RejectsLongNames(t *testing.T) {
	conn := newFakeNFTConn()
	s := newTestNFTablesStore(t, conn)

	err := s.AddRule(strings.Repeat("a", MaxRuleNameLen+1), rules.ActionAllow, "80", "8.8.8.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 255")
	assert.Empty(t, conn.names(DefaultNFTablesChain))
}

//go:build linux

package store

import (
	"testing"

	"github.com/google/nftables"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// NewFakeNFTablesStore returns a store over an in-memory nftables connection.
func NewFakeNFTablesStore(t *testing.T) *NFTablesStore {
	return newTestNFTablesStore(t, newFakeNFTConn())
}

// AddUnnamedRule appends a rule without UserData to the filter chain, as
// `nft add rule` does, and returns the name the store gives it.
func AddUnnamedRule(t *testing.T, s *NFTablesStore, action rules.Action, port string) string {
	t.Helper()
	conn, err := s.client()
	require.NoError(t, err)
	exprs, err := s.buildExprs("", action, port, rules.AnyAddress)
	require.NoError(t, err)
	r := conn.AddRule(&nftables.Rule{Table: s.table, Chain: s.chain, Exprs: exprs})
	require.NoError(t, conn.Flush())
	return nftRuleName(r)
}

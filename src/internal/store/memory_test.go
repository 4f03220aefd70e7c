package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

func TestMemoryStore_AddListRemove(t *testing.T) {
	s := NewMemoryStore(Entry{Name: "Allow HTTP", Enabled: true, LocalPort: "80", RemoteAddress: Wildcard, Protocol: "TCP"})

	require.NoError(t, s.AddRule("a", rules.ActionAllow, "80", "8.8.8.8"))
	require.NoError(t, s.AddRule("b", rules.ActionBlock, rules.AnyPort, rules.AnyAddress))

	entries, err := s.ListRules()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Allow HTTP", entries[0].Name)
	assert.Equal(t, Entry{Name: "a", Enabled: true, LocalPort: "80", RemoteAddress: "8.8.8.8", Action: rules.ActionAllow, Protocol: "TCP"}, entries[1])
	assert.Equal(t, Wildcard, entries[2].LocalPort)
	assert.Equal(t, Wildcard, entries[2].RemoteAddress)

	require.NoError(t, s.RemoveRule("a"))
	_, ok := s.Get("a")
	assert.False(t, ok)

	err = s.RemoveRule("a")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, errors.ErrStore)
}

func TestMemoryStore_ListReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.AddRule("a", rules.ActionAllow, "80", "8.8.8.8"))

	entries, err := s.ListRules()
	require.NoError(t, err)
	entries[0].Enabled = false

	e, ok := s.Get("a")
	require.True(t, ok)
	assert.True(t, e.Enabled)
}

func TestMemoryStore_SetEnabledAndParked(t *testing.T) {
	s := NewMemoryStore(
		Entry{Name: "foreign", Enabled: true, LocalPort: "80"},
		Entry{Name: "already-off", Enabled: false, LocalPort: "80"},
	)

	require.NoError(t, s.SetEnabled("foreign", false))
	require.NoError(t, s.SetEnabled("already-off", false))

	parked, err := s.ParkedRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign"}, parked)

	require.NoError(t, s.SetEnabled("foreign", true))
	parked, err = s.ParkedRules()
	require.NoError(t, err)
	assert.Empty(t, parked)

	err = s.SetEnabled("missing", true)
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore_RejectsInvalidInput(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.AddRule("", rules.ActionAllow, "80", "8.8.8.8"))
	assert.Error(t, s.AddRule("x", rules.Action("PERMIT"), "80", "8.8.8.8"))
}

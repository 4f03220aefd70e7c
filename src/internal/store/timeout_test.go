package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-iprules/src/internal/errors"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (b *blockingStore) ListRules() ([]Entry, error) {
	<-b.release
	return b.MemoryStore.ListRules()
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	inner := NewMemoryStore()
	s := WithTimeout(inner, time.Second)

	require.NoError(t, s.AddRule("a", rules.ActionAllow, "80", "8.8.8.8"))
	require.NoError(t, s.SetEnabled("a", false))

	entries, err := s.ListRules()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Enabled)

	parked, err := s.(ParkedLister).ParkedRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, parked)

	assert.True(t, IsNotFound(s.RemoveRule("missing")))
}

func TestWithTimeout_TimesOut(t *testing.T) {
	inner := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	defer close(inner.release)

	s := WithTimeout(inner, 20*time.Millisecond)
	_, err := s.ListRules()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStore)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWithTimeout_ZeroDisables(t *testing.T) {
	inner := NewMemoryStore()
	assert.Same(t, inner, WithTimeout(inner, 0))
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSet(t *testing.T) {
	s := NewNameSet()
	assert.True(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.True(t, s.Add("c"))
	assert.False(t, s.Add("b"))
	assert.Equal(t, []string{"a", "b", "c"}, s.Names())

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, s.Names())
	assert.True(t, s.Contains("c"))

	// indexes stay valid after removal
	assert.True(t, s.Remove("c"))
	assert.Equal(t, []string{"a"}, s.Names())

	names := s.Names()
	names[0] = "mutated"
	assert.True(t, s.Contains("a"))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Names())
}

package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSet(t *testing.T) {
	var s Set

	assert.Len(t, s.Names(), 8)
	assert.True(t, s.Contains(Koramangala))
	assert.True(t, s.Contains("Manyata Tech Park"))
	assert.False(t, s.Contains("koramangala"))
	assert.False(t, s.Contains(""))
}

func TestCustomSet(t *testing.T) {
	s := NewSet("Test Kitchen")

	assert.Equal(t, []string{"Test Kitchen"}, s.Names())
	assert.False(t, s.Contains(Cochin))
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	assert.Equal(t, Koramangala, All()[0])
}

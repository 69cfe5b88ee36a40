package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	for _, in := range []string{"Onion", " onion ", "ONION", "\tOnion\n"} {
		assert.Equal(t, "onion", Normalize(in), "input %q", in)
	}
	assert.Equal(t, "basmati rice", Normalize("  Basmati Rice "))
	assert.Equal(t, "", Normalize("   "))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Purchase")
	assert.True(t, ok)
	assert.Equal(t, KindPurchase, k)

	k, ok = ParseKind("consumption")
	assert.True(t, ok)
	assert.Equal(t, KindConsumption, k)

	_, ok = ParseKind("stock")
	assert.False(t, ok)
}

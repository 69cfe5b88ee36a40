package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"PurchaseID", id.NewPurchaseID, "pur_"},
		{"ConsumptionID", id.NewConsumptionID, "con_"},
		{"PurchaseHistoryID", id.NewPurchaseHistoryID, "purh_"},
		{"ConsumptionHistoryID", id.NewConsumptionHistoryID, "conh_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			assert.True(t, strings.HasPrefix(got, tt.prefix), "got %q", got)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewPurchaseID()

	parsed, err := id.ParsePurchaseID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original.String(), parsed.String())
	assert.Equal(t, id.PrefixPurchase, parsed.Prefix())
}

func TestCrossTypeRejection(t *testing.T) {
	_, err := id.ParsePurchaseID(id.NewConsumptionID().String())
	assert.Error(t, err)

	_, err = id.ParseConsumptionID(id.NewPurchaseID().String())
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "not-an-id", "pur_"} {
		_, err := id.Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	assert.True(t, i.IsNil())
	assert.Equal(t, "", i.String())

	v, err := i.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestJSONAndScan(t *testing.T) {
	original := id.NewConsumptionID()

	b, err := json.Marshal(struct {
		ID id.ID `json:"id"`
	}{original})
	require.NoError(t, err)

	var out struct {
		ID id.ID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, original.String(), out.ID.String())

	var scanned id.ID
	require.NoError(t, scanned.Scan(original.String()))
	assert.Equal(t, original.String(), scanned.String())

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsNil())

	assert.Error(t, scanned.Scan(42))
}

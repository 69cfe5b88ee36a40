package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/store/storetest"
)

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "10", "2.5", "0.001", "123456789.123456"} {
		got, err := fromDec128(toDec128(decimal.RequireFromString(s)))
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(s).Equal(got), "%s -> %s", s, got)
	}
}

func TestPurchaseModelRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	a := &purchase.Aggregate{
		ID:            id.NewPurchaseID(),
		Branch:        "Cochin",
		Description:   "Toor Dal",
		Qty:           decimal.RequireFromString("2.5"),
		PreviousTotal: decimal.RequireFromString("10"),
		NewTotal:      decimal.RequireFromString("12.5"),
		Version:       3,
	}
	a.CreatedAt, a.UpdatedAt = created, created

	got, err := fromPurchaseModel(toPurchaseModel(a))
	require.NoError(t, err)
	assert.Equal(t, a.ID.String(), got.ID.String())
	assert.True(t, a.NewTotal.Equal(got.NewTotal))
	assert.Empty(t, got.NormalizedDescription)
	assert.Equal(t, "toor dal", got.Key())
	assert.Equal(t, int64(3), got.Version)
}

func TestHistoryModelKeepsMovedAt(t *testing.T) {
	a := &purchase.Aggregate{ID: id.NewPurchaseID(), Branch: "Cochin", Description: "Salt"}
	moved := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	r := history.FromPurchase(a, history.ActionMerged, "admin").Moved(a.Entity, moved)

	got, err := fromHistoryModel(toHistoryModel(r, moved))
	require.NoError(t, err)
	require.NotNil(t, got.MovedAt)
	assert.True(t, moved.Equal(*got.MovedAt))
	assert.Equal(t, history.ActionMerged, got.Action)
}

func TestIndexesCoverEveryCollection(t *testing.T) {
	idx := migrationIndexes()
	for _, col := range []string{colPurchases, colConsumptions, colPurchaseHistory, colConsumptionHistory} {
		assert.NotEmpty(t, idx[col], col)
	}
}

// Runs only when STOCKLEDGER_TEST_MONGO_URI points at a scratch server.
func TestConformance(t *testing.T) {
	uri := os.Getenv("STOCKLEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STOCKLEDGER_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, uri, "stockledger_test")
		require.NoError(t, err)
		require.NoError(t, s.DB().Drop(ctx))
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}

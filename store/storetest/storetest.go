// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the whole suite against stores made by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"PurchaseInsertAndGet", testPurchaseInsertAndGet},
		{"PurchaseFindByItem", testPurchaseFindByItem},
		{"PurchaseListOrderAndPaging", testPurchaseList},
		{"PurchaseUpdateVersionCheck", testPurchaseUpdate},
		{"PurchaseDelete", testPurchaseDelete},
		{"ConsumptionRoundTrip", testConsumptionRoundTrip},
		{"ConsumptionUpdateVersionCheck", testConsumptionUpdate},
		{"HistoryAppendAndList", testHistory},
		{"HistoryKeepsMovedTimestamps", testHistoryMoved},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newPurchase(b, desc, total string) *purchase.Aggregate {
	return &purchase.Aggregate{
		ID:                    id.NewPurchaseID(),
		Branch:                b,
		Description:           desc,
		NormalizedDescription: types.Normalize(desc),
		Vendor:                "Metro",
		BillNo:                "B-1",
		BillAmount:            dec("120.50"),
		Qty:                   dec(total),
		UnitOfMeasure:         "kg",
		ExpiryDate:            "2030-01-31",
		PreviousTotal:         decimal.Zero,
		NewTotal:              dec(total),
		RecordedBy:            "tester",
	}
}

func newConsumption(b, desc, consumed, balance string) *consumption.Aggregate {
	return &consumption.Aggregate{
		ID:                    id.NewConsumptionID(),
		Branch:                b,
		Description:           desc,
		NormalizedDescription: types.Normalize(desc),
		Qty:                   dec(consumed),
		TotalConsumed:         dec(consumed),
		Balance:               dec(balance),
		RecordedBy:            "tester",
	}
}

func testPurchaseInsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newPurchase("Koramangala", "Toor Dal", "10.5")
	require.NoError(t, s.InsertPurchase(ctx, a))

	assert.Equal(t, int64(1), a.Version)
	assert.False(t, a.CreatedAt.IsZero())
	assert.False(t, a.UpdatedAt.IsZero())

	got, err := s.GetPurchase(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID.String(), got.ID.String())
	assert.Equal(t, "Toor Dal", got.Description)
	assert.Equal(t, "toor dal", got.NormalizedDescription)
	assert.Equal(t, "Metro", got.Vendor)
	assert.True(t, dec("120.50").Equal(got.BillAmount), got.BillAmount.String())
	assert.True(t, dec("10.5").Equal(got.NewTotal), got.NewTotal.String())
	assert.Equal(t, "2030-01-31", got.ExpiryDate)
	assert.Equal(t, int64(1), got.Version)

	_, err = s.GetPurchase(ctx, id.NewPurchaseID())
	assert.ErrorIs(t, err, stockledger.ErrNotFound)
}

func testPurchaseFindByItem(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertPurchase(ctx, newPurchase("Koramangala", "Toor Dal", "5")))
	require.NoError(t, s.InsertPurchase(ctx, newPurchase("Cochin", "Toor Dal", "7")))

	legacy := newPurchase("Koramangala", "Rice ", "3")
	legacy.NormalizedDescription = ""
	require.NoError(t, s.InsertPurchase(ctx, legacy))

	rows, err := s.FindPurchasesByItem(ctx, "Koramangala", "toor dal")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, dec("5").Equal(rows[0].NewTotal))

	// Rows without the normalized field are invisible to the indexed query.
	rows, err = s.FindPurchasesByItem(ctx, "Koramangala", "rice")
	require.NoError(t, err)
	assert.Empty(t, rows)

	all, err := s.ListPurchases(ctx, "Koramangala", purchase.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testPurchaseList(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for _, d := range []string{"a", "b", "c"} {
		a := newPurchase("HSR Layout", d, "1")
		require.NoError(t, s.InsertPurchase(ctx, a))
		ids = append(ids, a.ID.String())
		time.Sleep(5 * time.Millisecond)
	}

	rows, err := s.ListPurchases(ctx, "HSR Layout", purchase.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[2], rows[0].ID.String(), "newest first")
	assert.Equal(t, ids[0], rows[2].ID.String())

	rows, err = s.ListPurchases(ctx, "HSR Layout", purchase.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ids[1], rows[0].ID.String())

	rows, err = s.ListPurchases(ctx, "Whitefield", purchase.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testPurchaseUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newPurchase("Koramangala", "Toor Dal", "5")
	require.NoError(t, s.InsertPurchase(ctx, a))
	created := a.CreatedAt

	stale := a.Clone()

	time.Sleep(5 * time.Millisecond)
	a.PreviousTotal = dec("5")
	a.Qty = dec("3")
	a.NewTotal = dec("8")
	require.NoError(t, s.UpdatePurchase(ctx, a))
	assert.Equal(t, int64(2), a.Version)
	assert.True(t, a.UpdatedAt.After(created))

	got, err := s.GetPurchase(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, dec("8").Equal(got.NewTotal))
	assert.Equal(t, int64(2), got.Version)
	assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)

	stale.NewTotal = dec("100")
	assert.ErrorIs(t, s.UpdatePurchase(ctx, stale), stockledger.ErrConflict)

	got, err = s.GetPurchase(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, dec("8").Equal(got.NewTotal), "lost write must not land")

	missing := newPurchase("Koramangala", "ghost", "1")
	missing.Version = 1
	assert.ErrorIs(t, s.UpdatePurchase(ctx, missing), stockledger.ErrNotFound)
}

func testPurchaseDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newPurchase("Koramangala", "Toor Dal", "5")
	require.NoError(t, s.InsertPurchase(ctx, a))

	require.NoError(t, s.DeletePurchase(ctx, a.ID))
	_, err := s.GetPurchase(ctx, a.ID)
	assert.ErrorIs(t, err, stockledger.ErrNotFound)
	assert.ErrorIs(t, s.DeletePurchase(ctx, a.ID), stockledger.ErrNotFound)
}

func testConsumptionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := newConsumption("Cochin", "Sugar", "2.25", "7.75")
	require.NoError(t, s.InsertConsumption(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	got, err := s.GetConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "sugar", got.NormalizedDescription)
	assert.True(t, dec("2.25").Equal(got.TotalConsumed))
	assert.True(t, dec("7.75").Equal(got.Balance))

	rows, err := s.FindConsumptionsByItem(ctx, "Cochin", "sugar")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = s.ListConsumptions(ctx, "Cochin", consumption.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, s.DeleteConsumption(ctx, c.ID))
	_, err = s.GetConsumption(ctx, c.ID)
	assert.ErrorIs(t, err, stockledger.ErrNotFound)
}

func testConsumptionUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := newConsumption("Cochin", "Sugar", "1", "9")
	require.NoError(t, s.InsertConsumption(ctx, c))
	stale := c.Clone()

	c.TotalConsumed = dec("3")
	c.Balance = dec("7")
	require.NoError(t, s.UpdateConsumption(ctx, c))
	assert.Equal(t, int64(2), c.Version)

	assert.ErrorIs(t, s.UpdateConsumption(ctx, stale), stockledger.ErrConflict)

	got, err := s.GetConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, dec("3").Equal(got.TotalConsumed))
}

func testHistory(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newPurchase("Koramangala", "Toor Dal", "5")
	require.NoError(t, s.InsertPurchase(ctx, a))

	first := history.FromPurchase(a, history.ActionPurchase, "tester")
	require.NoError(t, s.AppendPurchaseHistory(ctx, first))
	assert.False(t, first.CreatedAt.IsZero(), "append stamps the record")

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.AppendPurchaseHistory(ctx, history.FromPurchase(a, history.ActionEdit, "admin")))
	require.NoError(t, s.AppendPurchaseHistory(ctx, history.FromPurchase(newPurchase("Cochin", "x", "1"), history.ActionPurchase, "tester")))

	recs, err := s.ListPurchaseHistory(ctx, "Koramangala", history.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, history.ActionEdit, recs[0].Action, "newest first")
	assert.Equal(t, a.ID.String(), recs[1].AggregateID.String())
	assert.Equal(t, types.KindPurchase, recs[1].Kind)
	assert.True(t, dec("5").Equal(recs[1].NewTotal))

	recs, err = s.ListPurchaseHistory(ctx, "Koramangala", history.ListOpts{Action: history.ActionPurchase})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	c := newConsumption("Koramangala", "Toor Dal", "2", "3")
	require.NoError(t, s.InsertConsumption(ctx, c))
	require.NoError(t, s.AppendConsumptionHistory(ctx, history.FromConsumption(c, history.ActionConsume, "tester")))
	crecs, err := s.ListConsumptionHistory(ctx, "Koramangala", history.ListOpts{})
	require.NoError(t, err)
	require.Len(t, crecs, 1)
	assert.Equal(t, types.KindConsumption, crecs[0].Kind)
	assert.True(t, dec("3").Equal(crecs[0].Balance))
}

func testHistoryMoved(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newPurchase("Koramangala", "Toor Dal", "5")
	require.NoError(t, s.InsertPurchase(ctx, a))

	moved := time.Now().Add(time.Hour)
	rec := history.FromPurchase(a, history.ActionMerged, "admin").Moved(a.Entity, moved)
	require.NoError(t, s.AppendPurchaseHistory(ctx, rec))

	recs, err := s.ListPurchaseHistory(ctx, "Koramangala", history.ListOpts{Action: history.ActionMerged})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.WithinDuration(t, a.CreatedAt, recs[0].CreatedAt, time.Millisecond)
	require.NotNil(t, recs[0].MovedAt)
	assert.WithinDuration(t, moved, *recs[0].MovedAt, time.Millisecond)
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}

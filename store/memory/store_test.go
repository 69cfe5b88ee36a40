package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/store/memory"
	"github.com/sukino/stockledger/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestRowsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := &purchase.Aggregate{ID: id.NewPurchaseID(), Branch: "Cochin", Description: "Salt", NormalizedDescription: "salt"}
	require.NoError(t, s.InsertPurchase(ctx, a))

	a.Description = "mutated"
	got, err := s.GetPurchase(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salt", got.Description)

	got.Description = "also mutated"
	again, err := s.GetPurchase(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salt", again.Description)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), stockledger.ErrStoreClosed)
	_, err := s.ListPurchases(ctx, "Cochin", purchase.ListOpts{})
	assert.ErrorIs(t, err, stockledger.ErrStoreClosed)
}

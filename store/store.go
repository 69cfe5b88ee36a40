// Package store defines the persistence contract for the stock ledger.
package store

import (
	"context"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
)

// Store is the unified storage interface over the four collections:
// purchase aggregates, consumption aggregates, and their histories.
//
// Backends own the row timestamps: Insert and Update stamp UpdatedAt with
// the store's clock, and Insert also stamps CreatedAt and sets Version to 1.
// Update is a compare-and-swap on Version: it succeeds only when the stored
// row still has the Version the caller read, and bumps it on success.
// A lost race returns stockledger.ErrConflict, a missing row
// stockledger.ErrNotFound.
type Store interface {
	// Purchase aggregates
	FindPurchasesByItem(ctx context.Context, branch, normalized string) ([]*purchase.Aggregate, error)
	ListPurchases(ctx context.Context, branch string, opts purchase.ListOpts) ([]*purchase.Aggregate, error)
	GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Aggregate, error)
	InsertPurchase(ctx context.Context, a *purchase.Aggregate) error
	UpdatePurchase(ctx context.Context, a *purchase.Aggregate) error
	DeletePurchase(ctx context.Context, purchaseID id.PurchaseID) error

	// Consumption aggregates
	FindConsumptionsByItem(ctx context.Context, branch, normalized string) ([]*consumption.Aggregate, error)
	ListConsumptions(ctx context.Context, branch string, opts consumption.ListOpts) ([]*consumption.Aggregate, error)
	GetConsumption(ctx context.Context, consumptionID id.ConsumptionID) (*consumption.Aggregate, error)
	InsertConsumption(ctx context.Context, a *consumption.Aggregate) error
	UpdateConsumption(ctx context.Context, a *consumption.Aggregate) error
	DeleteConsumption(ctx context.Context, consumptionID id.ConsumptionID) error

	// History
	AppendPurchaseHistory(ctx context.Context, r *history.Record) error
	ListPurchaseHistory(ctx context.Context, branch string, opts history.ListOpts) ([]*history.Record, error)
	AppendConsumptionHistory(ctx context.Context, r *history.Record) error
	ListConsumptionHistory(ctx context.Context, branch string, opts history.ListOpts) ([]*history.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

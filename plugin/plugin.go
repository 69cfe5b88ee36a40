// Package plugin provides an extensible hook system for the stock ledger.
// Plugins observe accepted and rejected changes without being able to
// block or alter them.
package plugin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Stock movement hooks
// ──────────────────────────────────────────────────

// OnPurchaseRecorded is called after a purchase is written.
type OnPurchaseRecorded interface {
	Plugin
	OnPurchaseRecorded(ctx context.Context, a *purchase.Aggregate) error
}

// OnConsumptionRecorded is called after a consumption is written.
type OnConsumptionRecorded interface {
	Plugin
	OnConsumptionRecorded(ctx context.Context, a *consumption.Aggregate) error
}

// OnConsumptionRejected is called when a consumption exceeds available stock.
type OnConsumptionRejected interface {
	Plugin
	OnConsumptionRejected(ctx context.Context, branch, description string, attempted, available decimal.Decimal) error
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnAggregateEdited is called after an admin edits a row's display fields.
type OnAggregateEdited interface {
	Plugin
	OnAggregateEdited(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) error
}

// OnAggregateDeleted is called after an admin deletes a row.
type OnAggregateDeleted interface {
	Plugin
	OnAggregateDeleted(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) error
}

// MergeSummary describes one MergeDuplicates run.
type MergeSummary struct {
	Branch       string
	Kind         types.Kind
	GroupsMerged int
	RowsMoved    int
	GroupsFailed int
}

// OnDuplicatesMerged is called after a merge run, including partial ones.
type OnDuplicatesMerged interface {
	Plugin
	OnDuplicatesMerged(ctx context.Context, summary MergeSummary) error
}

// ──────────────────────────────────────────────────
// Store hooks
// ──────────────────────────────────────────────────

// OnLookupFallback is called when the indexed item lookup failed or found
// nothing and the ledger fell back to scanning the branch.
type OnLookupFallback interface {
	Plugin
	OnLookupFallback(ctx context.Context, kind types.Kind, branch, normalized string, cause error) error
}

// OnWriteConflict is called when an optimistic write lost a race and is
// about to be retried.
type OnWriteConflict interface {
	Plugin
	OnWriteConflict(ctx context.Context, kind types.Kind, branch, normalized string, attempt int) error
}

// OnStoreError is called when a store operation fails.
type OnStoreError interface {
	Plugin
	OnStoreError(ctx context.Context, op string, err error) error
}

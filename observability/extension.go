// Package observability provides a metrics plugin for the stock ledger
// that counts stock movements and store trouble via a MetricFactory.
package observability

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseRecorded    = (*MetricsExtension)(nil)
	_ plugin.OnConsumptionRecorded = (*MetricsExtension)(nil)
	_ plugin.OnConsumptionRejected = (*MetricsExtension)(nil)
	_ plugin.OnAggregateEdited     = (*MetricsExtension)(nil)
	_ plugin.OnAggregateDeleted    = (*MetricsExtension)(nil)
	_ plugin.OnDuplicatesMerged    = (*MetricsExtension)(nil)
	_ plugin.OnLookupFallback      = (*MetricsExtension)(nil)
	_ plugin.OnWriteConflict       = (*MetricsExtension)(nil)
	_ plugin.OnStoreError          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide stock metrics.
// Register it as a ledger plugin.
type MetricsExtension struct {
	// Movement metrics
	PurchasesRecorded    Counter
	PurchasedQty         Histogram
	ConsumptionsRecorded Counter
	ConsumedQty          Histogram
	ConsumptionsRejected Counter

	// Admin metrics
	RowsEdited    Counter
	RowsDeleted   Counter
	GroupsMerged  Counter
	RowsMoved     Counter
	MergeFailures Counter

	// Store metrics
	LookupFallbacks Counter
	WriteConflicts  Counter
	StoreErrors     Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		PurchasesRecorded:    factory.Counter("stockledger.purchase.recorded"),
		PurchasedQty:         factory.Histogram("stockledger.purchase.qty"),
		ConsumptionsRecorded: factory.Counter("stockledger.consumption.recorded"),
		ConsumedQty:          factory.Histogram("stockledger.consumption.qty"),
		ConsumptionsRejected: factory.Counter("stockledger.consumption.rejected"),

		RowsEdited:    factory.Counter("stockledger.row.edited"),
		RowsDeleted:   factory.Counter("stockledger.row.deleted"),
		GroupsMerged:  factory.Counter("stockledger.merge.groups"),
		RowsMoved:     factory.Counter("stockledger.merge.rows_moved"),
		MergeFailures: factory.Counter("stockledger.merge.failures"),

		LookupFallbacks: factory.Counter("stockledger.lookup.fallbacks"),
		WriteConflicts:  factory.Counter("stockledger.write.conflicts"),
		StoreErrors:     factory.Counter("stockledger.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Stock movement hooks
// ──────────────────────────────────────────────────

// OnPurchaseRecorded implements plugin.OnPurchaseRecorded.
func (m *MetricsExtension) OnPurchaseRecorded(_ context.Context, a *purchase.Aggregate) error {
	m.PurchasesRecorded.Inc()
	m.PurchasedQty.Observe(a.Qty.InexactFloat64())
	return nil
}

// OnConsumptionRecorded implements plugin.OnConsumptionRecorded.
func (m *MetricsExtension) OnConsumptionRecorded(_ context.Context, a *consumption.Aggregate) error {
	m.ConsumptionsRecorded.Inc()
	m.ConsumedQty.Observe(a.Qty.InexactFloat64())
	return nil
}

// OnConsumptionRejected implements plugin.OnConsumptionRejected.
func (m *MetricsExtension) OnConsumptionRejected(_ context.Context, _, _ string, _, _ decimal.Decimal) error {
	m.ConsumptionsRejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnAggregateEdited implements plugin.OnAggregateEdited.
func (m *MetricsExtension) OnAggregateEdited(_ context.Context, _ types.Kind, _ string, _ id.ID) error {
	m.RowsEdited.Inc()
	return nil
}

// OnAggregateDeleted implements plugin.OnAggregateDeleted.
func (m *MetricsExtension) OnAggregateDeleted(_ context.Context, _ types.Kind, _ string, _ id.ID) error {
	m.RowsDeleted.Inc()
	return nil
}

// OnDuplicatesMerged implements plugin.OnDuplicatesMerged.
func (m *MetricsExtension) OnDuplicatesMerged(_ context.Context, s plugin.MergeSummary) error {
	m.GroupsMerged.Add(float64(s.GroupsMerged))
	m.RowsMoved.Add(float64(s.RowsMoved))
	m.MergeFailures.Add(float64(s.GroupsFailed))
	return nil
}

// ──────────────────────────────────────────────────
// Store hooks
// ──────────────────────────────────────────────────

// OnLookupFallback implements plugin.OnLookupFallback.
func (m *MetricsExtension) OnLookupFallback(_ context.Context, _ types.Kind, _, _ string, _ error) error {
	m.LookupFallbacks.Inc()
	return nil
}

// OnWriteConflict implements plugin.OnWriteConflict.
func (m *MetricsExtension) OnWriteConflict(_ context.Context, _ types.Kind, _, _ string, _ int) error {
	m.WriteConflicts.Inc()
	return nil
}

// OnStoreError implements plugin.OnStoreError.
func (m *MetricsExtension) OnStoreError(_ context.Context, _ string, _ error) error {
	m.StoreErrors.Inc()
	return nil
}

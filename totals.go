package stockledger

import (
	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// ──────────────────────────────────────────────────
// Pure read helpers
//
// These are the only place totals are computed. The engine's write path
// and any preview shown before submission both go through them.
// ──────────────────────────────────────────────────

// Normalize returns the item join key for a description.
func Normalize(description string) string { return types.Normalize(description) }

// PurchasedTotal returns the purchased total for description among rows:
// the largest NewTotal of any matching row. Unmerged duplicates share
// one stream and are never summed.
func PurchasedTotal(rows []*purchase.Aggregate, description string) decimal.Decimal {
	key := types.Normalize(description)
	if key == "" {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, r := range rows {
		if r.Key() == key && r.NewTotal.GreaterThan(total) {
			total = r.NewTotal
		}
	}
	return total
}

// ConsumedTotal returns the consumed total for description among rows,
// using the same max rule as PurchasedTotal.
func ConsumedTotal(rows []*consumption.Aggregate, description string) decimal.Decimal {
	key := types.Normalize(description)
	if key == "" {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, r := range rows {
		if r.Key() == key && r.TotalConsumed.GreaterThan(total) {
			total = r.TotalConsumed
		}
	}
	return total
}

// AvailableFrom is purchased minus consumed, clamped at zero.
func AvailableFrom(purchased, consumed decimal.Decimal) decimal.Decimal {
	return types.ClampZero(purchased.Sub(consumed))
}

// Available returns the on-hand quantity for description.
func Available(purchases []*purchase.Aggregate, consumptions []*consumption.Aggregate, description string) decimal.Decimal {
	return AvailableFrom(PurchasedTotal(purchases, description), ConsumedTotal(consumptions, description))
}

// PurchasePreview is what a purchase of Qty would do to the item's totals.
type PurchasePreview struct {
	PreviousTotal decimal.Decimal `json:"previous_total"`
	NewTotal      decimal.Decimal `json:"new_total"`
}

// PreviewPurchase computes the totals a purchase of qty would produce.
func PreviewPurchase(purchases []*purchase.Aggregate, description string, qty decimal.Decimal) PurchasePreview {
	prev := PurchasedTotal(purchases, description)
	return PurchasePreview{PreviousTotal: prev, NewTotal: prev.Add(qty)}
}

// ConsumptionPreview is what a consumption of Qty would do to the item.
type ConsumptionPreview struct {
	Purchased     decimal.Decimal `json:"purchased"`
	Consumed      decimal.Decimal `json:"consumed"`
	Available     decimal.Decimal `json:"available"`
	TotalConsumed decimal.Decimal `json:"total_consumed"`
	Balance       decimal.Decimal `json:"balance"`
	// Allowed is false when qty exceeds Available.
	Allowed bool `json:"allowed"`
}

// PreviewConsumption computes the totals a consumption of qty would
// produce and whether it would be accepted.
func PreviewConsumption(purchases []*purchase.Aggregate, consumptions []*consumption.Aggregate, description string, qty decimal.Decimal) ConsumptionPreview {
	purchased := PurchasedTotal(purchases, description)
	consumed := ConsumedTotal(consumptions, description)
	newConsumed := consumed.Add(qty)
	return ConsumptionPreview{
		Purchased:     purchased,
		Consumed:      consumed,
		Available:     AvailableFrom(purchased, consumed),
		TotalConsumed: newConsumed,
		Balance:       AvailableFrom(purchased, newConsumed),
		Allowed:       !qty.GreaterThan(AvailableFrom(purchased, consumed)),
	}
}

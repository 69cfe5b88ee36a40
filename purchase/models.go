// Package purchase defines the purchase aggregate: one running
// purchased-total row per (branch, item).
package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/types"
)

// Aggregate is the live purchase row for an item in a branch.
// NewTotal always equals PreviousTotal + Qty.
type Aggregate struct {
	types.Entity
	ID                    id.PurchaseID   `json:"id"`
	Branch                string          `json:"branch"`
	Description           string          `json:"description"`
	NormalizedDescription string          `json:"normalized_description"`
	Vendor                string          `json:"vendor"`
	BillNo                string          `json:"bill_no"`
	BillAmount            decimal.Decimal `json:"bill_amount"`
	Qty                   decimal.Decimal `json:"qty"`
	UnitOfMeasure         string          `json:"unit_of_measure"`
	ExpiryDate            string          `json:"expiry_date,omitempty"`
	PreviousTotal         decimal.Decimal `json:"previous_total"`
	NewTotal              decimal.Decimal `json:"new_total"`
	RecordedBy            string          `json:"recorded_by,omitempty"`
	Version               int64           `json:"version"`
}

// Key returns the item join key, falling back to the description for
// rows written before the normalized field existed.
func (a *Aggregate) Key() string {
	if a.NormalizedDescription != "" {
		return a.NormalizedDescription
	}
	return types.Normalize(a.Description)
}

// Clone returns a shallow copy.
func (a *Aggregate) Clone() *Aggregate {
	c := *a
	return &c
}

// ListOpts pages through a branch's purchase rows, newest first.
type ListOpts struct {
	Limit  int
	Offset int
}

// Package consumption defines the consumption aggregate: one running
// consumed-total row per (branch, item).
package consumption

import (
	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/types"
)

// Aggregate is the live consumption row for an item in a branch.
// Balance is max(0, purchased total - TotalConsumed) as of the last write.
type Aggregate struct {
	types.Entity
	ID                    id.ConsumptionID `json:"id"`
	Branch                string           `json:"branch"`
	Description           string           `json:"description"`
	NormalizedDescription string           `json:"normalized_description"`
	Qty                   decimal.Decimal  `json:"qty"`
	TotalConsumed         decimal.Decimal  `json:"total_consumed"`
	Balance               decimal.Decimal  `json:"balance"`
	RecordedBy            string           `json:"recorded_by,omitempty"`
	Version               int64            `json:"version"`
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

// ListOpts pages through a branch's consumption rows, newest first.
type ListOpts struct {
	Limit  int
	Offset int
}

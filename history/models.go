// Package history defines the append-only audit records written for every
// accepted change to a purchase or consumption aggregate.
package history

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// Action tags why a record was written.
type Action string

const (
	ActionPurchase Action = "purchase"
	ActionConsume  Action = "consume"
	ActionMerged   Action = "merged"
	ActionEdit     Action = "edit"
)

// Record is an immutable snapshot of an aggregate row. The store stamps
// the Entity times on append unless they are already set: merged rows keep
// the timestamps of the row they came from and carry MovedAt instead.
type Record struct {
	types.Entity
	ID                    id.HistoryID    `json:"id"`
	Kind                  types.Kind      `json:"kind"`
	Action                Action          `json:"action"`
	AggregateID           id.ID           `json:"aggregate_id"`
	Branch                string          `json:"branch"`
	Description           string          `json:"description"`
	NormalizedDescription string          `json:"normalized_description"`
	Qty                   decimal.Decimal `json:"qty"`

	// Purchase fields.
	Vendor        string          `json:"vendor,omitempty"`
	BillNo        string          `json:"bill_no,omitempty"`
	BillAmount    decimal.Decimal `json:"bill_amount"`
	UnitOfMeasure string          `json:"unit_of_measure,omitempty"`
	ExpiryDate    string          `json:"expiry_date,omitempty"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	NewTotal      decimal.Decimal `json:"new_total"`

	// Consumption fields.
	TotalConsumed decimal.Decimal `json:"total_consumed"`
	Balance       decimal.Decimal `json:"balance"`

	RecordedBy string     `json:"recorded_by,omitempty"`
	MovedAt    *time.Time `json:"moved_at,omitempty"`
}

// FromPurchase snapshots a purchase aggregate.
func FromPurchase(a *purchase.Aggregate, action Action, by string) *Record {
	return &Record{
		ID:                    id.NewPurchaseHistoryID(),
		Kind:                  types.KindPurchase,
		Action:                action,
		AggregateID:           a.ID,
		Branch:                a.Branch,
		Description:           a.Description,
		NormalizedDescription: a.Key(),
		Qty:                   a.Qty,
		Vendor:                a.Vendor,
		BillNo:                a.BillNo,
		BillAmount:            a.BillAmount,
		UnitOfMeasure:         a.UnitOfMeasure,
		ExpiryDate:            a.ExpiryDate,
		PreviousTotal:         a.PreviousTotal,
		NewTotal:              a.NewTotal,
		RecordedBy:            by,
	}
}

// FromConsumption snapshots a consumption aggregate.
func FromConsumption(a *consumption.Aggregate, action Action, by string) *Record {
	return &Record{
		ID:                    id.NewConsumptionHistoryID(),
		Kind:                  types.KindConsumption,
		Action:                action,
		AggregateID:           a.ID,
		Branch:                a.Branch,
		Description:           a.Description,
		NormalizedDescription: a.Key(),
		Qty:                   a.Qty,
		TotalConsumed:         a.TotalConsumed,
		Balance:               a.Balance,
		RecordedBy:            by,
	}
}

// Moved marks r as a row moved out of the live collection at t, keeping
// the original row's timestamps.
func (r *Record) Moved(original types.Entity, t time.Time) *Record {
	t = t.UTC()
	r.Entity = original
	r.MovedAt = &t
	return r
}

// ListOpts filters and pages a branch's history, newest first.
type ListOpts struct {
	Action Action
	Limit  int
	Offset int
}

package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// ==================== Decimal helpers ====================

// toDec128 stores a quantity exactly. The conversion only fails for
// values outside the Decimal128 range, which no stock figure reaches.
func toDec128(d decimal.Decimal) bson.Decimal128 {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}
	}
	return v
}

func fromDec128(v bson.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %q: %w", v.String(), err)
	}
	return d, nil
}

// decoder collects the first decimal decode error.
type decoder struct{ err error }

func (d *decoder) dec(v bson.Decimal128) decimal.Decimal {
	out, err := fromDec128(v)
	if err != nil && d.err == nil {
		d.err = err
	}
	return out
}

// ==================== Purchase models ====================

type purchaseModel struct {
	ID                    string          `bson:"_id"`
	Branch                string          `bson:"branch"`
	Description           string          `bson:"description"`
	NormalizedDescription string          `bson:"normalized_description,omitempty"`
	Vendor                string          `bson:"vendor"`
	BillNo                string          `bson:"bill_no"`
	BillAmount            bson.Decimal128 `bson:"bill_amount"`
	Qty                   bson.Decimal128 `bson:"qty"`
	UnitOfMeasure         string          `bson:"unit_of_measure"`
	ExpiryDate            string          `bson:"expiry_date,omitempty"`
	PreviousTotal         bson.Decimal128 `bson:"previous_total"`
	NewTotal              bson.Decimal128 `bson:"new_total"`
	RecordedBy            string          `bson:"recorded_by,omitempty"`
	Version               int64           `bson:"version"`
	CreatedAt             time.Time       `bson:"created_at"`
	UpdatedAt             time.Time       `bson:"updated_at"`
}

func toPurchaseModel(a *purchase.Aggregate) *purchaseModel {
	return &purchaseModel{
		ID:                    a.ID.String(),
		Branch:                a.Branch,
		Description:           a.Description,
		NormalizedDescription: a.NormalizedDescription,
		Vendor:                a.Vendor,
		BillNo:                a.BillNo,
		BillAmount:            toDec128(a.BillAmount),
		Qty:                   toDec128(a.Qty),
		UnitOfMeasure:         a.UnitOfMeasure,
		ExpiryDate:            a.ExpiryDate,
		PreviousTotal:         toDec128(a.PreviousTotal),
		NewTotal:              toDec128(a.NewTotal),
		RecordedBy:            a.RecordedBy,
		Version:               a.Version,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

func fromPurchaseModel(m *purchaseModel) (*purchase.Aggregate, error) {
	aggID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	var d decoder
	a := &purchase.Aggregate{
		Entity:                types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                    aggID,
		Branch:                m.Branch,
		Description:           m.Description,
		NormalizedDescription: m.NormalizedDescription,
		Vendor:                m.Vendor,
		BillNo:                m.BillNo,
		BillAmount:            d.dec(m.BillAmount),
		Qty:                   d.dec(m.Qty),
		UnitOfMeasure:         m.UnitOfMeasure,
		ExpiryDate:            m.ExpiryDate,
		PreviousTotal:         d.dec(m.PreviousTotal),
		NewTotal:              d.dec(m.NewTotal),
		RecordedBy:            m.RecordedBy,
		Version:               m.Version,
	}
	return a, d.err
}

// ==================== Consumption models ====================

type consumptionModel struct {
	ID                    string          `bson:"_id"`
	Branch                string          `bson:"branch"`
	Description           string          `bson:"description"`
	NormalizedDescription string          `bson:"normalized_description,omitempty"`
	Qty                   bson.Decimal128 `bson:"qty"`
	TotalConsumed         bson.Decimal128 `bson:"total_consumed"`
	Balance               bson.Decimal128 `bson:"balance"`
	RecordedBy            string          `bson:"recorded_by,omitempty"`
	Version               int64           `bson:"version"`
	CreatedAt             time.Time       `bson:"created_at"`
	UpdatedAt             time.Time       `bson:"updated_at"`
}

func toConsumptionModel(a *consumption.Aggregate) *consumptionModel {
	return &consumptionModel{
		ID:                    a.ID.String(),
		Branch:                a.Branch,
		Description:           a.Description,
		NormalizedDescription: a.NormalizedDescription,
		Qty:                   toDec128(a.Qty),
		TotalConsumed:         toDec128(a.TotalConsumed),
		Balance:               toDec128(a.Balance),
		RecordedBy:            a.RecordedBy,
		Version:               a.Version,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

func fromConsumptionModel(m *consumptionModel) (*consumption.Aggregate, error) {
	aggID, err := id.ParseConsumptionID(m.ID)
	if err != nil {
		return nil, err
	}
	var d decoder
	a := &consumption.Aggregate{
		Entity:                types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                    aggID,
		Branch:                m.Branch,
		Description:           m.Description,
		NormalizedDescription: m.NormalizedDescription,
		Qty:                   d.dec(m.Qty),
		TotalConsumed:         d.dec(m.TotalConsumed),
		Balance:               d.dec(m.Balance),
		RecordedBy:            m.RecordedBy,
		Version:               m.Version,
	}
	return a, d.err
}

// ==================== History models ====================

type historyModel struct {
	ID                    string          `bson:"_id"`
	Kind                  string          `bson:"kind"`
	Action                string          `bson:"action"`
	AggregateID           string          `bson:"aggregate_id"`
	Branch                string          `bson:"branch"`
	Description           string          `bson:"description"`
	NormalizedDescription string          `bson:"normalized_description"`
	Qty                   bson.Decimal128 `bson:"qty"`
	Vendor                string          `bson:"vendor,omitempty"`
	BillNo                string          `bson:"bill_no,omitempty"`
	BillAmount            bson.Decimal128 `bson:"bill_amount"`
	UnitOfMeasure         string          `bson:"unit_of_measure,omitempty"`
	ExpiryDate            string          `bson:"expiry_date,omitempty"`
	PreviousTotal         bson.Decimal128 `bson:"previous_total"`
	NewTotal              bson.Decimal128 `bson:"new_total"`
	TotalConsumed         bson.Decimal128 `bson:"total_consumed"`
	Balance               bson.Decimal128 `bson:"balance"`
	RecordedBy            string          `bson:"recorded_by,omitempty"`
	MovedAt               *time.Time      `bson:"moved_at,omitempty"`
	CreatedAt             time.Time       `bson:"created_at"`
	UpdatedAt             time.Time       `bson:"updated_at"`
	// AppendedAt orders records by append; merged records keep an older
	// CreatedAt.
	AppendedAt time.Time `bson:"appended_at"`
}

func toHistoryModel(r *history.Record, appended time.Time) *historyModel {
	return &historyModel{
		ID:                    r.ID.String(),
		Kind:                  string(r.Kind),
		Action:                string(r.Action),
		AggregateID:           r.AggregateID.String(),
		Branch:                r.Branch,
		Description:           r.Description,
		NormalizedDescription: r.NormalizedDescription,
		Qty:                   toDec128(r.Qty),
		Vendor:                r.Vendor,
		BillNo:                r.BillNo,
		BillAmount:            toDec128(r.BillAmount),
		UnitOfMeasure:         r.UnitOfMeasure,
		ExpiryDate:            r.ExpiryDate,
		PreviousTotal:         toDec128(r.PreviousTotal),
		NewTotal:              toDec128(r.NewTotal),
		TotalConsumed:         toDec128(r.TotalConsumed),
		Balance:               toDec128(r.Balance),
		RecordedBy:            r.RecordedBy,
		MovedAt:               r.MovedAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		AppendedAt:            appended,
	}
}

func fromHistoryModel(m *historyModel) (*history.Record, error) {
	recID, err := id.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	aggID, err := id.Parse(m.AggregateID)
	if err != nil {
		return nil, err
	}
	var d decoder
	r := &history.Record{
		Entity:                types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                    recID,
		Kind:                  types.Kind(m.Kind),
		Action:                history.Action(m.Action),
		AggregateID:           aggID,
		Branch:                m.Branch,
		Description:           m.Description,
		NormalizedDescription: m.NormalizedDescription,
		Qty:                   d.dec(m.Qty),
		Vendor:                m.Vendor,
		BillNo:                m.BillNo,
		BillAmount:            d.dec(m.BillAmount),
		UnitOfMeasure:         m.UnitOfMeasure,
		ExpiryDate:            m.ExpiryDate,
		PreviousTotal:         d.dec(m.PreviousTotal),
		NewTotal:              d.dec(m.NewTotal),
		TotalConsumed:         d.dec(m.TotalConsumed),
		Balance:               d.dec(m.Balance),
		RecordedBy:            m.RecordedBy,
	}
	if m.MovedAt != nil {
		t := m.MovedAt.UTC()
		r.MovedAt = &t
	}
	return r, d.err
}

package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// ──────────────────────────────────────────────────
// Purchase model
// ──────────────────────────────────────────────────

type purchaseModel struct {
	ID                    string          `gorm:"column:id;primaryKey"`
	Branch                string          `gorm:"column:branch"`
	Description           string          `gorm:"column:description"`
	NormalizedDescription string          `gorm:"column:normalized_description"`
	Vendor                string          `gorm:"column:vendor"`
	BillNo                string          `gorm:"column:bill_no"`
	BillAmount            decimal.Decimal `gorm:"column:bill_amount"`
	Qty                   decimal.Decimal `gorm:"column:qty"`
	UnitOfMeasure         string          `gorm:"column:unit_of_measure"`
	ExpiryDate            string          `gorm:"column:expiry_date"`
	PreviousTotal         decimal.Decimal `gorm:"column:previous_total"`
	NewTotal              decimal.Decimal `gorm:"column:new_total"`
	RecordedBy            string          `gorm:"column:recorded_by"`
	Version               int64           `gorm:"column:version"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at"`
}

func (purchaseModel) TableName() string { return "stockledger_purchases" }

func toPurchaseModel(a *purchase.Aggregate) *purchaseModel {
	return &purchaseModel{
		ID:                    a.ID.String(),
		Branch:                a.Branch,
		Description:           a.Description,
		NormalizedDescription: a.NormalizedDescription,
		Vendor:                a.Vendor,
		BillNo:                a.BillNo,
		BillAmount:            a.BillAmount,
		Qty:                   a.Qty,
		UnitOfMeasure:         a.UnitOfMeasure,
		ExpiryDate:            a.ExpiryDate,
		PreviousTotal:         a.PreviousTotal,
		NewTotal:              a.NewTotal,
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
	return &purchase.Aggregate{
		Entity:                types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                    aggID,
		Branch:                m.Branch,
		Description:           m.Description,
		NormalizedDescription: m.NormalizedDescription,
		Vendor:                m.Vendor,
		BillNo:                m.BillNo,
		BillAmount:            m.BillAmount,
		Qty:                   m.Qty,
		UnitOfMeasure:         m.UnitOfMeasure,
		ExpiryDate:            m.ExpiryDate,
		PreviousTotal:         m.PreviousTotal,
		NewTotal:              m.NewTotal,
		RecordedBy:            m.RecordedBy,
		Version:               m.Version,
	}, nil
}

// ──────────────────────────────────────────────────
// Consumption model
// ──────────────────────────────────────────────────

type consumptionModel struct {
	ID                    string          `gorm:"column:id;primaryKey"`
	Branch                string          `gorm:"column:branch"`
	Description           string          `gorm:"column:description"`
	NormalizedDescription string          `gorm:"column:normalized_description"`
	Qty                   decimal.Decimal `gorm:"column:qty"`
	TotalConsumed         decimal.Decimal `gorm:"column:total_consumed"`
	Balance               decimal.Decimal `gorm:"column:balance"`
	RecordedBy            string          `gorm:"column:recorded_by"`
	Version               int64           `gorm:"column:version"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at"`
}

func (consumptionModel) TableName() string { return "stockledger_consumptions" }

func toConsumptionModel(a *consumption.Aggregate) *consumptionModel {
	return &consumptionModel{
		ID:                    a.ID.String(),
		Branch:                a.Branch,
		Description:           a.Description,
		NormalizedDescription: a.NormalizedDescription,
		Qty:                   a.Qty,
		TotalConsumed:         a.TotalConsumed,
		Balance:               a.Balance,
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
	return &consumption.Aggregate{
		Entity:                types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                    aggID,
		Branch:                m.Branch,
		Description:           m.Description,
		NormalizedDescription: m.NormalizedDescription,
		Qty:                   m.Qty,
		TotalConsumed:         m.TotalConsumed,
		Balance:               m.Balance,
		RecordedBy:            m.RecordedBy,
		Version:               m.Version,
	}, nil
}

// ──────────────────────────────────────────────────
// History model
// ──────────────────────────────────────────────────

// historyModel backs both history tables. Seq orders records by append.
type historyModel struct {
	Seq                   int64           `gorm:"column:seq;primaryKey;autoIncrement"`
	ID                    string          `gorm:"column:id"`
	Kind                  string          `gorm:"column:kind"`
	Action                string          `gorm:"column:action"`
	AggregateID           string          `gorm:"column:aggregate_id"`
	Branch                string          `gorm:"column:branch"`
	Description           string          `gorm:"column:description"`
	NormalizedDescription string          `gorm:"column:normalized_description"`
	Qty                   decimal.Decimal `gorm:"column:qty"`
	Vendor                string          `gorm:"column:vendor"`
	BillNo                string          `gorm:"column:bill_no"`
	BillAmount            decimal.Decimal `gorm:"column:bill_amount"`
	UnitOfMeasure         string          `gorm:"column:unit_of_measure"`
	ExpiryDate            string          `gorm:"column:expiry_date"`
	PreviousTotal         decimal.Decimal `gorm:"column:previous_total"`
	NewTotal              decimal.Decimal `gorm:"column:new_total"`
	TotalConsumed         decimal.Decimal `gorm:"column:total_consumed"`
	Balance               decimal.Decimal `gorm:"column:balance"`
	RecordedBy            string          `gorm:"column:recorded_by"`
	MovedAt               *time.Time      `gorm:"column:moved_at"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at"`
}

const (
	tablePurchaseHistory    = "stockledger_purchase_history"
	tableConsumptionHistory = "stockledger_consumption_history"
)

func toHistoryModel(r *history.Record) *historyModel {
	return &historyModel{
		ID:                    r.ID.String(),
		Kind:                  string(r.Kind),
		Action:                string(r.Action),
		AggregateID:           r.AggregateID.String(),
		Branch:                r.Branch,
		Description:           r.Description,
		NormalizedDescription: r.NormalizedDescription,
		Qty:                   r.Qty,
		Vendor:                r.Vendor,
		BillNo:                r.BillNo,
		BillAmount:            r.BillAmount,
		UnitOfMeasure:         r.UnitOfMeasure,
		ExpiryDate:            r.ExpiryDate,
		PreviousTotal:         r.PreviousTotal,
		NewTotal:              r.NewTotal,
		TotalConsumed:         r.TotalConsumed,
		Balance:               r.Balance,
		RecordedBy:            r.RecordedBy,
		MovedAt:               r.MovedAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
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
	r := &history.Record{
		Entity:                types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                    recID,
		Kind:                  types.Kind(m.Kind),
		Action:                history.Action(m.Action),
		AggregateID:           aggID,
		Branch:                m.Branch,
		Description:           m.Description,
		NormalizedDescription: m.NormalizedDescription,
		Qty:                   m.Qty,
		Vendor:                m.Vendor,
		BillNo:                m.BillNo,
		BillAmount:            m.BillAmount,
		UnitOfMeasure:         m.UnitOfMeasure,
		ExpiryDate:            m.ExpiryDate,
		PreviousTotal:         m.PreviousTotal,
		NewTotal:              m.NewTotal,
		TotalConsumed:         m.TotalConsumed,
		Balance:               m.Balance,
		RecordedBy:            m.RecordedBy,
	}
	if m.MovedAt != nil {
		t := m.MovedAt.UTC()
		r.MovedAt = &t
	}
	return r, nil
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sukino/stockledger"
)

// Number is a form value that may arrive as a JSON number or string. The
// text is kept as sent so the ledger applies its own parsing rules.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
	default:
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return fmt.Errorf("not a number: %s", b)
		}
		*n = Number(num)
	}
	return nil
}

// PurchaseRequest is the body of POST /branches/:branch/purchases.
type PurchaseRequest struct {
	Description   string `json:"description"`
	Vendor        string `json:"vendor"`
	BillNo        string `json:"bill_no"`
	BillAmount    Number `json:"bill_amount"`
	Qty           Number `json:"qty"`
	UnitOfMeasure string `json:"unit_of_measure"`
	ExpiryDate    string `json:"expiry_date"`
}

func (r PurchaseRequest) input(branch string) stockledger.PurchaseInput {
	return stockledger.PurchaseInput{
		Branch:        branch,
		Description:   r.Description,
		Vendor:        r.Vendor,
		BillNo:        r.BillNo,
		BillAmount:    string(r.BillAmount),
		Qty:           string(r.Qty),
		UnitOfMeasure: r.UnitOfMeasure,
		ExpiryDate:    r.ExpiryDate,
	}
}

// ConsumptionRequest is the body of POST /branches/:branch/consumptions.
type ConsumptionRequest struct {
	Description string `json:"description"`
	Qty         Number `json:"qty"`
}

func (r ConsumptionRequest) input(branch string) stockledger.ConsumptionInput {
	return stockledger.ConsumptionInput{Branch: branch, Description: r.Description, Qty: string(r.Qty)}
}

// PurchaseEditRequest is the body of PATCH /branches/:branch/purchases/:id.
type PurchaseEditRequest struct {
	Description   *string `json:"description"`
	Vendor        *string `json:"vendor"`
	BillNo        *string `json:"bill_no"`
	BillAmount    *Number `json:"bill_amount"`
	UnitOfMeasure *string `json:"unit_of_measure"`
	ExpiryDate    *string `json:"expiry_date"`
}

func (r PurchaseEditRequest) edit() stockledger.PurchaseEdit {
	e := stockledger.PurchaseEdit{
		Description:   r.Description,
		Vendor:        r.Vendor,
		BillNo:        r.BillNo,
		UnitOfMeasure: r.UnitOfMeasure,
		ExpiryDate:    r.ExpiryDate,
	}
	if r.BillAmount != nil {
		s := string(*r.BillAmount)
		e.BillAmount = &s
	}
	return e
}

// ConsumptionEditRequest is the body of PATCH /branches/:branch/consumptions/:id.
type ConsumptionEditRequest struct {
	Description *string `json:"description"`
}

// PageQuery pages list endpoints.
type PageQuery struct {
	Limit  int    `form:"limit"  validate:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" validate:"min=0"`
	Action string `form:"action" validate:"omitempty,oneof=purchase consume merged edit"`
}

// StockQuery selects an item.
type StockQuery struct {
	Item string `form:"item" validate:"required"`
}

// PreviewQuery previews a write before it is submitted.
type PreviewQuery struct {
	Kind string `form:"kind" validate:"required,oneof=purchase consumption"`
	Item string `form:"item" validate:"required"`
	Qty  string `form:"qty"  validate:"required"`
}

// ExportQuery selects an export format and tables.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv xlsx"`
	Type   string `form:"type"   validate:"omitempty,oneof=all purchase consumption"`
}

package stockledger

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/types"
)

// ExpiryLayout is the calendar-date format for expiry dates.
const ExpiryLayout = "2006-01-02"

// Messages shown to staff for rejected input.
const (
	msgSelectBranch       = "Please select a branch first"
	msgPurchaseRequired   = "Please fill all required fields (including MOU)."
	msgConsumeRequired    = "Please fill all fields"
	msgPurchaseNumeric    = "Numeric fields must be numbers"
	msgConsumeNumeric     = "Consumption quantity must be a number"
	msgQtyPositive        = "Quantity must be greater than zero."
	msgBillAmountNegative = "Bill amount cannot be negative."
	msgExpiryFormat       = "Expiry date must be a date (YYYY-MM-DD)."
	msgExpiryFuture       = "Expiry date must be a future date."
)

// PurchaseInput is one purchase as entered on the form. Numbers arrive as
// text and are parsed after the presence checks pass.
type PurchaseInput struct {
	Branch        string `json:"branch"          validate:"notblank"`
	Description   string `json:"description"     validate:"notblank"`
	Vendor        string `json:"vendor"          validate:"notblank"`
	BillNo        string `json:"bill_no"         validate:"notblank"`
	BillAmount    string `json:"bill_amount"     validate:"notblank,decimal"`
	Qty           string `json:"qty"             validate:"notblank,decimal"`
	UnitOfMeasure string `json:"unit_of_measure" validate:"notblank"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
}

// ConsumptionInput is one consumption as entered on the form.
type ConsumptionInput struct {
	Branch      string `json:"branch"      validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
	Qty         string `json:"qty"         validate:"notblank,decimal"`
}

// PurchaseEdit changes the display fields of a purchase row. Nil fields
// are left as they are. Totals are never editable.
type PurchaseEdit struct {
	Description   *string `json:"description,omitempty"     validate:"omitnil,notblank"`
	Vendor        *string `json:"vendor,omitempty"          validate:"omitnil,notblank"`
	BillNo        *string `json:"bill_no,omitempty"         validate:"omitnil,notblank"`
	BillAmount    *string `json:"bill_amount,omitempty"     validate:"omitnil,notblank,decimal"`
	UnitOfMeasure *string `json:"unit_of_measure,omitempty" validate:"omitnil,notblank"`
	ExpiryDate    *string `json:"expiry_date,omitempty"`
}

// ConsumptionEdit changes the display fields of a consumption row.
type ConsumptionEdit struct {
	Description *string `json:"description,omitempty" validate:"omitnil,notblank"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := types.ParseDecimal(fl.Field().String())
		return err == nil
	})
	return v
}

// checkStruct runs the tag rules and maps the first failure to a
// ValidationError carrying the form message for that kind of failure.
func checkStruct(s any, required, numeric string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError{Field: "", Message: err.Error()}
	}
	// Report blanks before bad numbers, as the form does.
	for _, fe := range verrs {
		if fe.Tag() == "notblank" {
			if fe.Field() == "branch" {
				return ValidationError{Field: "branch", Message: msgSelectBranch}
			}
			return ValidationError{Field: fe.Field(), Message: required}
		}
	}
	return ValidationError{Field: verrs[0].Field(), Message: numeric}
}

// parsedPurchase is a PurchaseInput after every check has passed.
type parsedPurchase struct {
	PurchaseInput
	key        string
	qty        decimal.Decimal
	billAmount decimal.Decimal
}

func (l *Ledger) parsePurchase(in PurchaseInput) (parsedPurchase, error) {
	if err := checkStruct(in, msgPurchaseRequired, msgPurchaseNumeric); err != nil {
		return parsedPurchase{}, err
	}
	if err := l.checkBranch(in.Branch); err != nil {
		return parsedPurchase{}, err
	}

	qty, _ := types.ParseDecimal(in.Qty)
	amount, _ := types.ParseDecimal(in.BillAmount)
	if !qty.IsPositive() {
		return parsedPurchase{}, ValidationError{Field: "qty", Message: msgQtyPositive}
	}
	if amount.IsNegative() {
		return parsedPurchase{}, ValidationError{Field: "bill_amount", Message: msgBillAmountNegative}
	}
	expiry, err := l.checkExpiry(in.ExpiryDate)
	if err != nil {
		return parsedPurchase{}, err
	}

	in.Description = strings.TrimSpace(in.Description)
	in.Vendor = strings.TrimSpace(in.Vendor)
	in.BillNo = strings.TrimSpace(in.BillNo)
	in.UnitOfMeasure = strings.TrimSpace(in.UnitOfMeasure)
	in.ExpiryDate = expiry
	return parsedPurchase{
		PurchaseInput: in,
		key:           types.Normalize(in.Description),
		qty:           qty,
		billAmount:    amount,
	}, nil
}

// parsedConsumption is a ConsumptionInput after every check has passed.
type parsedConsumption struct {
	ConsumptionInput
	key string
	qty decimal.Decimal
}

func (l *Ledger) parseConsumption(in ConsumptionInput) (parsedConsumption, error) {
	if err := checkStruct(in, msgConsumeRequired, msgConsumeNumeric); err != nil {
		return parsedConsumption{}, err
	}
	if err := l.checkBranch(in.Branch); err != nil {
		return parsedConsumption{}, err
	}
	qty, _ := types.ParseDecimal(in.Qty)
	if !qty.IsPositive() {
		return parsedConsumption{}, ValidationError{Field: "qty", Message: msgQtyPositive}
	}
	in.Description = strings.TrimSpace(in.Description)
	return parsedConsumption{
		ConsumptionInput: in,
		key:              types.Normalize(in.Description),
		qty:              qty,
	}, nil
}

func (l *Ledger) checkBranch(name string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError{Field: "branch", Message: msgSelectBranch}
	}
	if !l.branches.Contains(name) {
		return ValidationError{Field: "branch", Message: "Unknown branch " + `"` + name + `"`}
	}
	return nil
}

// checkExpiry accepts an empty date or a calendar date strictly after
// today in the ledger's location, and returns it in canonical form.
func (l *Ledger) checkExpiry(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	exp, err := time.ParseInLocation(ExpiryLayout, s, l.location)
	if err != nil {
		return "", ValidationError{Field: "expiry_date", Message: msgExpiryFormat}
	}
	now := l.clock().In(l.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.location)
	if !exp.After(today) {
		return "", ValidationError{Field: "expiry_date", Message: msgExpiryFuture}
	}
	return exp.Format(ExpiryLayout), nil
}

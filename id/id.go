// Package id defines TypeID-based identifiers for stock ledger records.
//
// Aggregates and history records share a single ID struct whose prefix
// tells them apart, so a purchase row ID can never be passed where a
// consumption row ID is expected without a parse error.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record kind encoded in a TypeID.
type Prefix string

const (
	PrefixPurchase           Prefix = "pur"  // Purchase aggregate row
	PrefixConsumption        Prefix = "con"  // Consumption aggregate row
	PrefixPurchaseHistory    Prefix = "purh" // Purchase history record
	PrefixConsumptionHistory Prefix = "conh" // Consumption history record
)

// ID is the primary identifier for every stored record, in the form
// "prefix_suffix". The suffix is a UUIDv7 so IDs sort by creation time.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "pur_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// PurchaseID identifies a purchase aggregate row (prefix: "pur").
type PurchaseID = ID

// ConsumptionID identifies a consumption aggregate row (prefix: "con").
type ConsumptionID = ID

// HistoryID identifies a history record (prefix: "purh" or "conh").
type HistoryID = ID

// NewPurchaseID generates a new purchase aggregate ID.
func NewPurchaseID() ID { return New(PrefixPurchase) }

// NewConsumptionID generates a new consumption aggregate ID.
func NewConsumptionID() ID { return New(PrefixConsumption) }

// NewPurchaseHistoryID generates a new purchase history ID.
func NewPurchaseHistoryID() ID { return New(PrefixPurchaseHistory) }

// NewConsumptionHistoryID generates a new consumption history ID.
func NewConsumptionHistoryID() ID { return New(PrefixConsumptionHistory) }

// ParsePurchaseID parses s and requires the "pur" prefix.
func ParsePurchaseID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPurchase) }

// ParseConsumptionID parses s and requires the "con" prefix.
func ParseConsumptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixConsumption) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

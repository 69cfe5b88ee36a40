package stockledger

import (
	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/types"
)

// Re-export common types so callers don't have to import the types and
// access packages for everyday use.

// Entity is re-exported from types package.
type Entity = types.Entity

// Kind is re-exported from types package.
type Kind = types.Kind

// Collection kinds.
const (
	KindPurchase    = types.KindPurchase
	KindConsumption = types.KindConsumption
)

// Principal is re-exported from access package.
type Principal = access.Principal

// Re-export helpers.
var (
	ParseKind     = types.ParseKind
	ParseDecimal  = types.ParseDecimal
	WithPrincipal = access.WithPrincipal
)

package stockledger

import "github.com/sukino/stockledger/id"

// ID is the identifier type for every stored row.
type ID = id.ID

// Prefix identifies the row type encoded in a TypeID.
type Prefix = id.Prefix

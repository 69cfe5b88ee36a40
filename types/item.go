package types

import "strings"

// Normalize returns the join key for an item description. Two
// descriptions with the same key are the same item.
func Normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// Kind selects one of the two aggregate collections.
type Kind string

const (
	KindPurchase    Kind = "purchase"
	KindConsumption Kind = "consumption"
)

// ParseKind accepts "purchase" or "consumption" in any case.
func ParseKind(s string) (Kind, bool) {
	switch Kind(Normalize(s)) {
	case KindPurchase:
		return KindPurchase, true
	case KindConsumption:
		return KindConsumption, true
	default:
		return "", false
	}
}

// Package branch lists the store locations stock is tracked for.
package branch

import "slices"

const (
	Koramangala     = "Koramangala"
	BGRoad          = "BG Road"
	HSRLayout       = "HSR Layout"
	ElectronicCity  = "Electronic City"
	Whitefield      = "Whitefield"
	ManyataTechPark = "Manyata Tech Park"
	Coimbatore      = "Coimbatore"
	Cochin          = "Cochin"
)

var defaults = []string{
	Koramangala,
	BGRoad,
	HSRLayout,
	ElectronicCity,
	Whitefield,
	ManyataTechPark,
	Coimbatore,
	Cochin,
}

// All returns the default branch list in display order.
func All() []string {
	return slices.Clone(defaults)
}

// Set is an allowed-branch set. The zero value allows the default branches.
type Set struct {
	names []string
}

// NewSet builds a Set from names. An empty list means the defaults.
func NewSet(names ...string) Set {
	if len(names) == 0 {
		return Set{}
	}
	return Set{names: slices.Clone(names)}
}

// Contains reports whether name is an allowed branch. Matching is exact;
// branch names are picked from a list, never typed.
func (s Set) Contains(name string) bool {
	return slices.Contains(s.Names(), name)
}

// Names returns the allowed branches in display order.
func (s Set) Names() []string {
	if len(s.names) == 0 {
		return All()
	}
	return slices.Clone(s.names)
}

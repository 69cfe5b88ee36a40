// Package types provides value types shared across the stock ledger.
package types

import "time"

// Entity carries the bookkeeping timestamps of a stored row.
// UpdatedAt is the "last write" date shown in the branch tables and is
// always stamped by the store, never by the caller.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped with now.
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch moves UpdatedAt to now.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}

// NewerThan reports whether e was written after other.
func (e Entity) NewerThan(other Entity) bool {
	return e.UpdatedAt.After(other.UpdatedAt)
}

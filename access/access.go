// Package access models who is calling the ledger and what they may do.
//
// Roles map to a fixed permission set that the engine evaluates once per
// operation. The caller identity travels on the context, the same way the
// HTTP layer attaches it after verifying a token.
package access

import (
	"context"
	"strings"
)

// Role is the role stored on a user profile.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleBranchManager Role = "branchManager"
	RoleUser          Role = "user"
)

// ParseRole maps a stored role string to a Role. Unknown or empty values
// fall back to RoleUser, which can only read.
func ParseRole(s string) Role {
	switch Role(strings.TrimSpace(s)) {
	case RoleAdmin:
		return RoleAdmin
	case RoleBranchManager:
		return RoleBranchManager
	default:
		return RoleUser
	}
}

// DisplayName is the label shown to staff.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleBranchManager:
		return "Kitchen Incharge"
	default:
		return "User"
	}
}

// Permission is a bit set of allowed operations.
type Permission uint16

const (
	PermRead Permission = 1 << iota
	PermRecordPurchase
	PermRecordConsumption
	PermEdit
	PermDelete
	PermMerge
	PermExport

	permWrite = PermRecordPurchase | PermRecordConsumption
	permAll   = PermRead | permWrite | PermEdit | PermDelete | PermMerge | PermExport
)

var permNames = []struct {
	p    Permission
	name string
}{
	{PermRead, "read"},
	{PermRecordPurchase, "record_purchase"},
	{PermRecordConsumption, "record_consumption"},
	{PermEdit, "edit"},
	{PermDelete, "delete"},
	{PermMerge, "merge"},
	{PermExport, "export"},
}

// Has reports whether every bit in q is set in p.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

func (p Permission) String() string {
	var parts []string
	for _, pn := range permNames {
		if p&pn.p != 0 {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Permissions returns the permission set granted to r.
func (r Role) Permissions() Permission {
	switch r {
	case RoleAdmin:
		return permAll
	case RoleBranchManager:
		return PermRead | permWrite
	default:
		return PermRead
	}
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	// Branch is the branch a manager is assigned to. Empty means none.
	Branch string `json:"branch,omitempty"`
}

// Anonymous is the principal used when the context carries none.
var Anonymous = Principal{Role: RoleUser}

// Can reports whether the principal's role grants perm.
func (p Principal) Can(perm Permission) bool {
	return p.Role.Permissions().Has(perm)
}

// CanWriteBranch reports whether the principal may write to branch.
// Managers with an assigned branch are confined to it.
func (p Principal) CanWriteBranch(branch string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleBranchManager:
		return p.Branch == "" || p.Branch == branch
	default:
		return false
	}
}

// Actor is the name written into history records.
func (p Principal) Actor() string {
	if p.Name != "" {
		return p.Name
	}
	return p.UserID
}

// DefaultBranch resolves the branch for a request that may have omitted
// one: a manager gets their assigned branch.
func (p Principal) DefaultBranch(requested string) string {
	if requested == "" && p.Role == RoleBranchManager {
		return p.Branch
	}
	return requested
}

type ctxKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal on ctx, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}

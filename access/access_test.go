package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleBranchManager, ParseRole(" branchManager "))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleUser, ParseRole(""))
	assert.Equal(t, RoleUser, ParseRole("superuser"))
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role    Role
		allowed []Permission
		denied  []Permission
	}{
		{
			role:    RoleAdmin,
			allowed: []Permission{PermRead, PermRecordPurchase, PermRecordConsumption, PermEdit, PermDelete, PermMerge, PermExport},
		},
		{
			role:    RoleBranchManager,
			allowed: []Permission{PermRead, PermRecordPurchase, PermRecordConsumption},
			denied:  []Permission{PermEdit, PermDelete, PermMerge, PermExport},
		},
		{
			role:    RoleUser,
			allowed: []Permission{PermRead},
			denied:  []Permission{PermRecordPurchase, PermRecordConsumption, PermEdit, PermDelete, PermMerge, PermExport},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			p := Principal{Role: tt.role}
			for _, perm := range tt.allowed {
				assert.True(t, p.Can(perm), "%s should have %s", tt.role, perm)
			}
			for _, perm := range tt.denied {
				assert.False(t, p.Can(perm), "%s should not have %s", tt.role, perm)
			}
		})
	}
}

func TestCanWriteBranch(t *testing.T) {
	admin := Principal{Role: RoleAdmin}
	assigned := Principal{Role: RoleBranchManager, Branch: "Cochin"}
	floating := Principal{Role: RoleBranchManager}
	user := Principal{Role: RoleUser, Branch: "Cochin"}

	assert.True(t, admin.CanWriteBranch("Cochin"))
	assert.True(t, assigned.CanWriteBranch("Cochin"))
	assert.False(t, assigned.CanWriteBranch("Whitefield"))
	assert.True(t, floating.CanWriteBranch("Whitefield"))
	assert.False(t, user.CanWriteBranch("Cochin"))
}

func TestDefaultBranch(t *testing.T) {
	m := Principal{Role: RoleBranchManager, Branch: "HSR Layout"}
	assert.Equal(t, "HSR Layout", m.DefaultBranch(""))
	assert.Equal(t, "Cochin", m.DefaultBranch("Cochin"))
	assert.Equal(t, "", Principal{Role: RoleAdmin}.DefaultBranch(""))
}

func TestContext(t *testing.T) {
	assert.Equal(t, Anonymous, FromContext(context.Background()))

	p := Principal{UserID: "u1", Name: "Asha", Role: RoleAdmin}
	ctx := WithPrincipal(context.Background(), p)
	assert.Equal(t, p, FromContext(ctx))
}

func TestDisplayNameAndString(t *testing.T) {
	assert.Equal(t, "Kitchen Incharge", RoleBranchManager.DisplayName())
	assert.Equal(t, "read|record_purchase|record_consumption", RoleBranchManager.Permissions().String())
	assert.Equal(t, "none", Permission(0).String())
}

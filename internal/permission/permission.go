// Package permission maps organization roles to capability bitsets.
// The mapping is static and data-driven; every capability check in the
// system goes through Has, with no bypass path.
package permission

import "github.com/contractflow/contractflow/internal/models"

// Permission is a single grantable action, one bit per capability.
type Permission uint8

const (
	ViewMembers Permission = 1 << iota
	InviteMembers
	RemoveMembers
	EditOrganization
	ManageContracts
)

var rolePermissions = map[models.Role]Permission{
	models.RoleAdmin:  ViewMembers | InviteMembers | RemoveMembers | EditOrganization | ManageContracts,
	models.RoleEditor: ViewMembers | ManageContracts,
	models.RoleViewer: ViewMembers,
}

// ForRole returns the capability set for a role. Unknown roles hold no
// capabilities.
func ForRole(role models.Role) Permission {
	return rolePermissions[role]
}

// Has reports whether the capability set contains the required permission.
func Has(set, required Permission) bool {
	return set&required != 0
}

// RoleHas reports whether a role's capability set contains the permission.
func RoleHas(role models.Role, required Permission) bool {
	return Has(ForRole(role), required)
}

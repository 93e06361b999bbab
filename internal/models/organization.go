package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is an organization membership role. Roles map to capability sets via
// the permission package.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Organization is a tenant. Members join through OrganizationMember rows and
// an organization must retain at least one admin at all times.
type Organization struct {
	OrgID       uuid.UUID // UUIDv7
	Name        string
	Settings    OrganizationSettings
	StorageUsed int64 // bytes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrganizationMember links a user to an organization with a single role.
type OrganizationMember struct {
	OrgID    uuid.UUID
	UserID   uuid.UUID
	Role     Role
	JoinedAt time.Time
}

// OrganizationSettings is the mutable settings document, stored as JSONB.
// Sections are merged independently on update.
type OrganizationSettings struct {
	Security      SecuritySettings     `json:"security"`
	Notifications NotificationSettings `json:"notifications"`
	Storage       StorageSettings      `json:"storage"`
}

type SecuritySettings struct {
	RequireTwoFactor   bool `json:"require_two_factor"`
	SessionTimeoutMins int  `json:"session_timeout_minutes"`
}

type NotificationSettings struct {
	EmailOnInvitation   bool `json:"email_on_invitation"`
	EmailOnRoleChange   bool `json:"email_on_role_change"`
	EmailOnContractSign bool `json:"email_on_contract_sign"`
}

type StorageSettings struct {
	LimitGB float64 `json:"limit_gb"`
	// UsedGB is derived from Organization.StorageUsed and never written back.
	UsedGB float64 `json:"used_gb,omitempty"`
}

// DefaultSettings returns the settings applied to a new organization.
func DefaultSettings() OrganizationSettings {
	return OrganizationSettings{
		Security: SecuritySettings{
			SessionTimeoutMins: 60,
		},
		Notifications: NotificationSettings{
			EmailOnInvitation: true,
			EmailOnRoleChange: true,
		},
		Storage: StorageSettings{
			LimitGB: 5,
		},
	}
}

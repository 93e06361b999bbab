package store

import (
	"context"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/google/uuid"
)

// OrganizationStore persists organizations and their memberships.
type OrganizationStore interface {
	// CreateWithAdmin creates an organization and its first admin membership
	// in one atomic write. Every organization starts with exactly one admin.
	CreateWithAdmin(ctx context.Context, org *models.Organization, adminUserID uuid.UUID) error

	// Get retrieves an organization by ID. Returns ErrOrganizationNotFound
	// if absent.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// Update persists name, settings and storage counter changes.
	// Returns ErrOrganizationNotFound if absent.
	Update(ctx context.Context, org *models.Organization) error

	// AddMember adds a membership row. Returns ErrAlreadyMember when the
	// (org, user) pair already exists.
	AddMember(ctx context.Context, member *models.OrganizationMember) error

	// GetMember retrieves a single membership. Returns ErrMemberNotFound
	// if the user does not belong to the organization.
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error)

	// ListMembers returns all memberships of an organization.
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error)

	// ListByUser returns all memberships of a user ordered by join time,
	// earliest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.OrganizationMember, error)

	// UpdateMemberRole changes a member's role. Returns ErrMemberNotFound
	// if the membership does not exist.
	UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error

	// RemoveMember deletes a membership row. Returns ErrMemberNotFound if
	// the membership does not exist.
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error

	// CountAdmins returns the number of admin members in an organization.
	CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error)
}

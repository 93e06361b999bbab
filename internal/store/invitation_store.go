package store

import (
	"context"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/google/uuid"
)

// InvitationStore persists organization invitations. Expired invitations
// are filtered out of pending queries but are not actively purged.
type InvitationStore interface {
	// Create persists a new invitation.
	Create(ctx context.Context, inv *models.Invitation) error

	// Get retrieves an invitation by ID. Returns ErrInvitationNotFound
	// if absent.
	Get(ctx context.Context, id uuid.UUID) (*models.Invitation, error)

	// GetByToken retrieves an invitation by its one-time token. Returns
	// ErrInvitationNotFound if absent.
	GetByToken(ctx context.Context, token string) (*models.Invitation, error)

	// FindPending returns the unexpired invitation for (org, email), or
	// ErrInvitationNotFound when none exists.
	FindPending(ctx context.Context, orgID uuid.UUID, email string, now time.Time) (*models.Invitation, error)

	// ListPending returns all unexpired invitations of an organization.
	ListPending(ctx context.Context, orgID uuid.UUID, now time.Time) ([]models.Invitation, error)

	// Consume atomically deletes the invitation with the given token and
	// returns it. Returns ErrInvitationNotFound if the token does not match
	// any row; applied twice with the same token, the second call always
	// fails.
	Consume(ctx context.Context, token string) (*models.Invitation, error)

	// Delete removes an invitation by ID. Returns ErrInvitationNotFound
	// if absent.
	Delete(ctx context.Context, id uuid.UUID) error
}

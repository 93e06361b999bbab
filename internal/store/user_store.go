package store

import (
	"context"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/google/uuid"
)

// UserStore persists user accounts.
type UserStore interface {
	// Create persists a new user. Returns ErrUserExists if the email is
	// already registered.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID. Returns ErrUserNotFound if absent.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email. Returns ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByResetToken retrieves a user by their pending password reset
	// token. Returns ErrUserNotFound if no user carries the token.
	GetByResetToken(ctx context.Context, token string) (*models.User, error)

	// Update persists changes to an existing user. Returns ErrUserNotFound
	// if absent.
	Update(ctx context.Context, user *models.User) error

	// Delete removes a user. Returns ErrUserNotFound if absent.
	Delete(ctx context.Context, userID uuid.UUID) error
}

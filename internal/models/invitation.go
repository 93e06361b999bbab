package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation is a pending offer to join an organization. It is consumed
// exactly once on accept, cancelled explicitly, or expires naturally
// (expired rows are filtered out of queries, not purged).
type Invitation struct {
	ID        uuid.UUID // UUIDv7
	OrgID     uuid.UUID
	Email     string
	Role      Role
	Token     string // one-time, URL-safe
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the invitation has passed its expiry.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountType distinguishes personal accounts from business accounts.
// Business accounts own an organization created at registration time.
const (
	AccountTypePersonal = "personal"
	AccountTypeBusiness = "business"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID // UUIDv7
	Email        string
	FullName     string
	PasswordHash string
	AccountType  string // "personal" or "business"

	IsActive   bool
	IsVerified bool

	// Email verification state, single use.
	VerificationCode        *string
	VerificationCodeExpires *time.Time

	// Password reset state, single use.
	ResetPasswordToken        *string
	ResetPasswordTokenExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPersonal reports whether this is a personal account.
func (u *User) IsPersonal() bool {
	return u.AccountType == AccountTypePersonal
}

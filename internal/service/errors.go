package service

import (
	"errors"
	"fmt"

	"github.com/contractflow/contractflow/internal/store"
)

// Error taxonomy shared by all services. The HTTP layer maps each class to
// a status code; services wrap these sentinels with context via %w.
var (
	// ErrNotFound covers missing resources and resources hidden on purpose,
	// where revealing existence would leak information.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is known but lacks the
	// capability or access path for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when the caller's credentials are missing
	// or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when the operation collides with existing
	// state, such as a duplicate email or an existing membership.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition is returned when a status change violates the
	// contract lifecycle rules.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is returned when the request payload fails semantic
	// validation.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream is returned when a dependency such as the PDF renderer or
	// mail relay fails.
	ErrUpstream = errors.New("upstream failure")
)

// translateStoreError maps store sentinels onto the service taxonomy. Errors
// that are neither not-found nor conflict pass through unchanged.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrMemberNotFound),
		errors.Is(err, store.ErrInvitationNotFound),
		errors.Is(err, store.ErrContractNotFound),
		errors.Is(err, store.ErrVersionNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	case errors.Is(err, store.ErrUserExists),
		errors.Is(err, store.ErrAlreadyMember):
		return fmt.Errorf("%w: %s", ErrConflict, err)
	default:
		return err
	}
}

// validationErrorf wraps ErrValidation with a formatted detail message.
func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

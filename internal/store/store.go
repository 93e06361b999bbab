package store

import "errors"

// Sentinel errors shared by all store implementations. Services translate
// these into the API error taxonomy at the service boundary.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrContractNotFound     = errors.New("contract not found")
	ErrVersionNotFound      = errors.New("contract version not found")
)

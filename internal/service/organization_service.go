package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/notify"
	"github.com/contractflow/contractflow/internal/permission"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const invitationTTL = 7 * 24 * time.Hour

const bytesPerGB = 1 << 30

// OrganizationService handles organization membership, invitations and
// settings. Capability checks run here; stores never evaluate permissions.
type OrganizationService struct {
	orgs        store.OrganizationStore
	users       store.UserStore
	invitations store.InvitationStore
	contracts   store.ContractStore
	dispatcher  *notify.Dispatcher
}

// NewOrganizationService creates an OrganizationService.
func NewOrganizationService(orgs store.OrganizationStore, users store.UserStore, invitations store.InvitationStore, contracts store.ContractStore, dispatcher *notify.Dispatcher) *OrganizationService {
	return &OrganizationService{
		orgs:        orgs,
		users:       users,
		invitations: invitations,
		contracts:   contracts,
		dispatcher:  dispatcher,
	}
}

// OrganizationDetail is an organization together with the caller's view of
// it.
type OrganizationDetail struct {
	Organization *models.Organization
	CallerRole   models.Role
	MemberCount  int
	UsedGB       float64
}

// MemberDetail is a membership hydrated with the member's user record.
type MemberDetail struct {
	Member     models.OrganizationMember
	Email      string
	FullName   string
	IsVerified bool
}

// DashboardStats summarizes an organization for its landing page.
type DashboardStats struct {
	MemberCount        int
	MembersByRole      map[models.Role]int
	PendingInvitations int
	ContractsByStatus  map[models.ContractStatus]int
	TotalContracts     int
	UsedGB             float64
	LimitGB            float64
}

// ResolveOrg picks the organization a request operates on. An explicit org
// ID wins, provided the caller is a member; with no explicit ID the caller's
// earliest-joined organization is used.
func (s *OrganizationService) ResolveOrg(ctx context.Context, userID uuid.UUID, explicitOrgID *uuid.UUID) (*models.Organization, *models.OrganizationMember, error) {
	if explicitOrgID != nil {
		member, err := s.orgs.GetMember(ctx, *explicitOrgID, userID)
		if err != nil {
			if errors.Is(err, store.ErrMemberNotFound) {
				return nil, nil, fmt.Errorf("%w: not a member of this organization", ErrForbidden)
			}
			return nil, nil, translateStoreError(err)
		}

		org, err := s.orgs.Get(ctx, *explicitOrgID)
		if err != nil {
			return nil, nil, translateStoreError(err)
		}
		return org, member, nil
	}

	memberships, err := s.orgs.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, translateStoreError(err)
	}
	if len(memberships) == 0 {
		return nil, nil, fmt.Errorf("%w: user has no organization", ErrNotFound)
	}

	member := memberships[0]
	org, err := s.orgs.Get(ctx, member.OrgID)
	if err != nil {
		return nil, nil, translateStoreError(err)
	}
	return org, &member, nil
}

// Detail returns the organization with the caller's role and headline
// numbers.
func (s *OrganizationService) Detail(ctx context.Context, userID uuid.UUID, explicitOrgID *uuid.UUID) (*OrganizationDetail, error) {
	org, member, err := s.ResolveOrg(ctx, userID, explicitOrgID)
	if err != nil {
		return nil, err
	}

	members, err := s.orgs.ListMembers(ctx, org.OrgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	return &OrganizationDetail{
		Organization: org,
		CallerRole:   member.Role,
		MemberCount:  len(members),
		UsedGB:       float64(org.StorageUsed) / bytesPerGB,
	}, nil
}

// Dashboard aggregates membership, invitation, contract and storage numbers
// for the organization.
func (s *OrganizationService) Dashboard(ctx context.Context, userID, orgID uuid.UUID) (*DashboardStats, error) {
	member, err := s.requireMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	members, err := s.orgs.ListMembers(ctx, orgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	byRole := make(map[models.Role]int)
	for _, m := range members {
		byRole[m.Role]++
	}

	pending, err := s.invitations.ListPending(ctx, orgID, time.Now())
	if err != nil {
		return nil, translateStoreError(err)
	}

	stats := &DashboardStats{
		MemberCount:        len(members),
		MembersByRole:      byRole,
		PendingInvitations: len(pending),
		ContractsByStatus:  make(map[models.ContractStatus]int),
		UsedGB:             float64(org.StorageUsed) / bytesPerGB,
		LimitGB:            org.Settings.Storage.LimitGB,
	}

	// Contract numbers cover what the caller can see in this organization.
	query := store.ContractQuery{
		UserID: userID,
		OrgID:  &orgID,
	}
	if permission.RoleHas(member.Role, permission.ViewMembers) {
		query.ViewableOrgIDs = []uuid.UUID{orgID}
	}
	contracts, err := s.contracts.ListForUser(ctx, query)
	if err != nil {
		return nil, translateStoreError(err)
	}
	for _, c := range contracts {
		stats.ContractsByStatus[c.Status]++
	}
	stats.TotalContracts = len(contracts)

	return stats, nil
}

// ListMembers returns the organization's members hydrated with their user
// records. Requires the view-members capability.
func (s *OrganizationService) ListMembers(ctx context.Context, callerID, orgID uuid.UUID) ([]MemberDetail, error) {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.ViewMembers); err != nil {
		return nil, err
	}

	members, err := s.orgs.ListMembers(ctx, orgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	details := make([]MemberDetail, 0, len(members))
	for _, m := range members {
		user, err := s.users.Get(ctx, m.UserID)
		if err != nil {
			return nil, translateStoreError(err)
		}
		details = append(details, MemberDetail{
			Member:     m,
			Email:      user.Email,
			FullName:   user.FullName,
			IsVerified: user.IsVerified,
		})
	}
	return details, nil
}

// InviteMember creates a pending invitation. Duplicate memberships and
// duplicate pending invitations are both conflicts.
func (s *OrganizationService) InviteMember(ctx context.Context, callerID, orgID uuid.UUID, email string, role models.Role) (*models.Invitation, error) {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.InviteMembers); err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationErrorf("invalid email address")
	}
	if !models.ValidRole(role) {
		return nil, validationErrorf("unknown role %q", role)
	}

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	// An existing member must not be invited again.
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		if _, err := s.orgs.GetMember(ctx, orgID, user.ID); err == nil {
			return nil, fmt.Errorf("%w: user is already a member", ErrConflict)
		}
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, translateStoreError(err)
	}

	now := time.Now()
	if _, err := s.invitations.FindPending(ctx, orgID, email, now); err == nil {
		return nil, fmt.Errorf("%w: invitation already pending for this email", ErrConflict)
	} else if !errors.Is(err, store.ErrInvitationNotFound) {
		return nil, translateStoreError(err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		ID:        uuid.Must(uuid.NewV7()),
		OrgID:     orgID,
		Email:     email,
		Role:      role,
		Token:     token,
		ExpiresAt: now.Add(invitationTTL),
		CreatedAt: now,
	}

	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, translateStoreError(err)
	}

	if org.Settings.Notifications.EmailOnInvitation {
		s.dispatcher.Enqueue(func(ctx context.Context) error {
			return s.dispatcher.Notifier().SendInvitation(ctx, email, org.Name, role, token)
		})
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("invitation_id", inv.ID.String()).
		Msg("Created invitation")

	return inv, nil
}

// ListInvitations returns the organization's unexpired invitations.
func (s *OrganizationService) ListInvitations(ctx context.Context, callerID, orgID uuid.UUID) ([]models.Invitation, error) {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.InviteMembers); err != nil {
		return nil, err
	}

	pending, err := s.invitations.ListPending(ctx, orgID, time.Now())
	if err != nil {
		return nil, translateStoreError(err)
	}
	return pending, nil
}

// CancelInvitation withdraws a pending invitation.
func (s *OrganizationService) CancelInvitation(ctx context.Context, callerID, orgID, invitationID uuid.UUID) error {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.InviteMembers); err != nil {
		return err
	}

	inv, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		return translateStoreError(err)
	}
	if inv.OrgID != orgID {
		return fmt.Errorf("%w: invitation not found", ErrNotFound)
	}

	if err := s.invitations.Delete(ctx, invitationID); err != nil {
		return translateStoreError(err)
	}

	if org, err := s.orgs.Get(ctx, orgID); err == nil && org.Settings.Notifications.EmailOnInvitation {
		email := inv.Email
		orgName := org.Name
		s.dispatcher.Enqueue(func(ctx context.Context) error {
			return s.dispatcher.Notifier().SendInvitationCancelled(ctx, email, orgName)
		})
	}

	return nil
}

// AcceptInvitation redeems an invitation token for the calling user. The
// token is single use; the invited email must match the caller's email.
func (s *OrganizationService) AcceptInvitation(ctx context.Context, userID uuid.UUID, token string) (*models.OrganizationMember, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if !strings.EqualFold(inv.Email, user.Email) {
		return nil, fmt.Errorf("%w: invitation was issued to a different email", ErrForbidden)
	}
	if inv.Expired(time.Now()) {
		return nil, validationErrorf("invitation has expired")
	}

	if _, err := s.orgs.GetMember(ctx, inv.OrgID, userID); err == nil {
		return nil, fmt.Errorf("%w: user is already a member", ErrConflict)
	} else if !errors.Is(err, store.ErrMemberNotFound) {
		return nil, translateStoreError(err)
	}

	// Consume is atomic; a concurrent accept of the same token loses here.
	inv, err = s.invitations.Consume(ctx, token)
	if err != nil {
		return nil, translateStoreError(err)
	}

	member := &models.OrganizationMember{
		OrgID:    inv.OrgID,
		UserID:   userID,
		Role:     inv.Role,
		JoinedAt: time.Now(),
	}

	if err := s.orgs.AddMember(ctx, member); err != nil {
		return nil, translateStoreError(err)
	}

	log.Info().
		Str("org_id", inv.OrgID.String()).
		Str("user_id", userID.String()).
		Str("role", string(inv.Role)).
		Msg("Invitation accepted")

	return member, nil
}

// RemoveMember removes a member from the organization. Members cannot
// remove themselves and the last admin can never be removed.
func (s *OrganizationService) RemoveMember(ctx context.Context, callerID, orgID, targetID uuid.UUID) error {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.RemoveMembers); err != nil {
		return err
	}

	if callerID == targetID {
		return fmt.Errorf("%w: cannot remove yourself from the organization", ErrConflict)
	}

	target, err := s.orgs.GetMember(ctx, orgID, targetID)
	if err != nil {
		return translateStoreError(err)
	}

	if target.Role == models.RoleAdmin {
		admins, err := s.orgs.CountAdmins(ctx, orgID)
		if err != nil {
			return translateStoreError(err)
		}
		if admins <= 1 {
			return fmt.Errorf("%w: cannot remove the last admin", ErrConflict)
		}
	}

	if err := s.orgs.RemoveMember(ctx, orgID, targetID); err != nil {
		return translateStoreError(err)
	}

	s.notifyMembershipChange(ctx, orgID, targetID, func(org *models.Organization, user *models.User) {
		if org.Settings.Notifications.EmailOnRoleChange {
			s.dispatcher.Enqueue(func(ctx context.Context) error {
				return s.dispatcher.Notifier().SendMemberRemoved(ctx, user.Email, org.Name)
			})
		}
	})

	return nil
}

// ChangeRole updates a member's role. Callers cannot change their own role
// and the last admin cannot be demoted.
func (s *OrganizationService) ChangeRole(ctx context.Context, callerID, orgID, targetID uuid.UUID, newRole models.Role) error {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.EditOrganization); err != nil {
		return err
	}

	if !models.ValidRole(newRole) {
		return validationErrorf("unknown role %q", newRole)
	}
	if callerID == targetID {
		return fmt.Errorf("%w: cannot change your own role", ErrConflict)
	}

	target, err := s.orgs.GetMember(ctx, orgID, targetID)
	if err != nil {
		return translateStoreError(err)
	}
	if target.Role == newRole {
		return nil
	}

	if target.Role == models.RoleAdmin && newRole != models.RoleAdmin {
		admins, err := s.orgs.CountAdmins(ctx, orgID)
		if err != nil {
			return translateStoreError(err)
		}
		if admins <= 1 {
			return fmt.Errorf("%w: cannot demote the last admin", ErrConflict)
		}
	}

	if err := s.orgs.UpdateMemberRole(ctx, orgID, targetID, newRole); err != nil {
		return translateStoreError(err)
	}

	s.notifyMembershipChange(ctx, orgID, targetID, func(org *models.Organization, user *models.User) {
		if org.Settings.Notifications.EmailOnRoleChange {
			s.dispatcher.Enqueue(func(ctx context.Context) error {
				return s.dispatcher.Notifier().SendRoleChanged(ctx, user.Email, org.Name, newRole)
			})
		}
	})

	return nil
}

// SettingsPatch updates settings section by section. A nil section leaves
// the stored section untouched.
type SettingsPatch struct {
	Security      *models.SecuritySettings
	Notifications *models.NotificationSettings
	Storage       *models.StorageSettings
}

// GetSettings returns the organization settings with derived storage usage
// filled in.
func (s *OrganizationService) GetSettings(ctx context.Context, callerID, orgID uuid.UUID) (*models.OrganizationSettings, error) {
	if _, err := s.requireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	settings := org.Settings
	settings.Storage.UsedGB = float64(org.StorageUsed) / bytesPerGB
	return &settings, nil
}

// UpdateSettings merges the patch into the stored settings. The storage
// limit can never drop below current usage.
func (s *OrganizationService) UpdateSettings(ctx context.Context, callerID, orgID uuid.UUID, patch SettingsPatch) (*models.OrganizationSettings, error) {
	if _, err := s.requireCapability(ctx, orgID, callerID, permission.EditOrganization); err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if patch.Security != nil {
		if patch.Security.SessionTimeoutMins <= 0 {
			return nil, validationErrorf("session timeout must be positive")
		}
		org.Settings.Security = *patch.Security
	}
	if patch.Notifications != nil {
		org.Settings.Notifications = *patch.Notifications
	}
	if patch.Storage != nil {
		usedGB := float64(org.StorageUsed) / bytesPerGB
		if patch.Storage.LimitGB < usedGB {
			return nil, validationErrorf("storage limit %.2f GB is below current usage %.2f GB", patch.Storage.LimitGB, usedGB)
		}
		org.Settings.Storage.LimitGB = patch.Storage.LimitGB
	}

	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, translateStoreError(err)
	}

	settings := org.Settings
	settings.Storage.UsedGB = float64(org.StorageUsed) / bytesPerGB
	return &settings, nil
}

// requireMember ensures the caller belongs to the organization.
func (s *OrganizationService) requireMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	member, err := s.orgs.GetMember(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			return nil, fmt.Errorf("%w: not a member of this organization", ErrForbidden)
		}
		return nil, translateStoreError(err)
	}
	return member, nil
}

// requireCapability ensures the caller's role grants the capability.
func (s *OrganizationService) requireCapability(ctx context.Context, orgID, userID uuid.UUID, required permission.Permission) (*models.OrganizationMember, error) {
	member, err := s.requireMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if !permission.RoleHas(member.Role, required) {
		return nil, fmt.Errorf("%w: insufficient permissions", ErrForbidden)
	}
	return member, nil
}

// notifyMembershipChange looks up the org and user and hands them to fn.
// Lookup failures only log; the membership change already committed.
func (s *OrganizationService) notifyMembershipChange(ctx context.Context, orgID, userID uuid.UUID, fn func(*models.Organization, *models.User)) {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping membership notification")
		return
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping membership notification")
		return
	}
	fn(org, user)
}

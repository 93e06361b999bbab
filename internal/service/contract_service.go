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

const defaultListLimit = 50

// ContractService owns the contract aggregate: creation, metadata updates,
// the version ledger and the visibility query. Access checks resolve in a
// fixed order: owner, then named party, then organization membership.
type ContractService struct {
	contracts  store.ContractStore
	orgs       store.OrganizationStore
	users      store.UserStore
	dispatcher *notify.Dispatcher
}

// NewContractService creates a ContractService.
func NewContractService(contracts store.ContractStore, orgs store.OrganizationStore, users store.UserStore, dispatcher *notify.Dispatcher) *ContractService {
	return &ContractService{
		contracts:  contracts,
		orgs:       orgs,
		users:      users,
		dispatcher: dispatcher,
	}
}

// PartyInput describes one party at contract creation. External fields are
// empty when the party is an internal user.
type PartyInput struct {
	Type              models.PartyType
	UserID            *uuid.UUID
	OrgID             *uuid.UUID
	ExternalName      string
	ExternalEmail     string
	SignatureRequired bool
}

// CreateContractInput is the creation payload after transport decoding.
type CreateContractInput struct {
	Title          string
	Description    string
	TemplateType   models.TemplateType
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	OrgID          *uuid.UUID
	Content        models.ContractContent
	Parties        []PartyInput
}

// MetadataPatch is a partial metadata update. Nil fields stay untouched.
type MetadataPatch struct {
	Title          *string
	Description    *string
	Status         *models.ContractStatus
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
}

// ContractDetail bundles a contract with its current content and parties.
type ContractDetail struct {
	Contract *models.Contract
	Content  models.ContractContent
	Parties  []models.ContractParty
}

// ListContractsInput selects and pages the caller's visible contracts.
type ListContractsInput struct {
	Status   *models.ContractStatus
	OrgID    *uuid.UUID
	Skip     int
	Limit    int
	SortBy   string
	SortDesc bool
}

// Create persists a new contract with its first version and parties in one
// atomic write. Scoping the contract to an organization requires membership
// there.
func (s *ContractService) Create(ctx context.Context, ownerID uuid.UUID, in CreateContractInput) (*models.Contract, error) {
	if err := validateContractInput(in); err != nil {
		return nil, err
	}

	if in.OrgID != nil {
		if err := s.requireMembership(ctx, *in.OrgID, ownerID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	contract := &models.Contract{
		ContractID:     uuid.Must(uuid.NewV7()),
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		TemplateType:   in.TemplateType,
		Status:         models.StatusDraft,
		EffectiveDate:  in.EffectiveDate,
		ExpirationDate: in.ExpirationDate,
		OwnerID:        ownerID,
		OrgID:          in.OrgID,
		CurrentVersion: 1,
		LastActivityBy: ownerID,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	version := &models.ContractVersion{
		ContractID:    contract.ContractID,
		Version:       1,
		Content:       in.Content,
		ModifiedBy:    ownerID,
		ChangeSummary: "Initial version",
		CreatedAt:     now,
	}

	parties := make([]models.ContractParty, 0, len(in.Parties))
	for _, p := range in.Parties {
		parties = append(parties, models.ContractParty{
			PartyID:           uuid.Must(uuid.NewV7()),
			ContractID:        contract.ContractID,
			Type:              p.Type,
			UserID:            p.UserID,
			OrgID:             p.OrgID,
			ExternalName:      p.ExternalName,
			ExternalEmail:     p.ExternalEmail,
			SignatureRequired: p.SignatureRequired,
			CreatedAt:         now,
		})
	}

	if err := s.contracts.Create(ctx, contract, version, parties); err != nil {
		return nil, translateStoreError(err)
	}

	log.Info().
		Str("contract_id", contract.ContractID.String()).
		Str("owner_id", ownerID.String()).
		Msg("Created contract")

	return contract, nil
}

// Get returns the contract, its current content and its parties, provided
// the caller can see it.
func (s *ContractService) Get(ctx context.Context, userID, contractID uuid.UUID) (*ContractDetail, error) {
	contract, content, err := s.contracts.CurrentContent(ctx, contractID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if err := s.requireView(ctx, contract, userID); err != nil {
		return nil, err
	}

	parties, err := s.contracts.ListParties(ctx, contractID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	return &ContractDetail{
		Contract: contract,
		Content:  content,
		Parties:  parties,
	}, nil
}

// UpdateMetadata applies a partial metadata patch. All validation runs
// before any field is touched, so a rejected patch alters nothing,
// including the activity stamp.
func (s *ContractService) UpdateMetadata(ctx context.Context, userID, contractID uuid.UUID, patch MetadataPatch) (*models.Contract, error) {
	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if err := s.requireEdit(ctx, contract, userID); err != nil {
		return nil, err
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, validationErrorf("title must not be empty")
	}
	if patch.Status != nil {
		if !models.ValidStatus(*patch.Status) {
			return nil, validationErrorf("unknown status %q", *patch.Status)
		}
		if err := validateTransition(contract.Status, *patch.Status); err != nil {
			return nil, err
		}
	}

	effective := contract.EffectiveDate
	expiration := contract.ExpirationDate
	if patch.EffectiveDate != nil {
		effective = patch.EffectiveDate
	}
	if patch.ExpirationDate != nil {
		expiration = patch.ExpirationDate
	}
	if effective != nil && expiration != nil && !expiration.After(*effective) {
		return nil, validationErrorf("expiration date must be after effective date")
	}

	wasActive := contract.Status == models.StatusActive
	if patch.Title != nil {
		contract.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		contract.Description = *patch.Description
	}
	if patch.Status != nil {
		contract.Status = *patch.Status
	}
	contract.EffectiveDate = effective
	contract.ExpirationDate = expiration
	contract.LastActivityBy = userID
	contract.LastActivityAt = time.Now()

	if err := s.contracts.Update(ctx, contract); err != nil {
		return nil, translateStoreError(err)
	}

	if !wasActive && contract.Status == models.StatusActive {
		s.notifyActivated(ctx, contract)
	}

	return contract, nil
}

// notifyActivated mails every party that can be reached once the contract
// goes active. Organization-scoped contracts honor the org's notification
// settings.
func (s *ContractService) notifyActivated(ctx context.Context, contract *models.Contract) {
	if contract.OrgID != nil {
		org, err := s.orgs.Get(ctx, *contract.OrgID)
		if err != nil {
			log.Warn().Err(err).Str("contract_id", contract.ContractID.String()).Msg("Failed to load org for activation notice")
			return
		}
		if !org.Settings.Notifications.EmailOnContractSign {
			return
		}
	}

	parties, err := s.contracts.ListParties(ctx, contract.ContractID)
	if err != nil {
		log.Warn().Err(err).Str("contract_id", contract.ContractID.String()).Msg("Failed to list parties for activation notice")
		return
	}

	title := contract.Title
	for _, party := range parties {
		email := party.ExternalEmail
		if email == "" && party.UserID != nil {
			user, err := s.users.Get(ctx, *party.UserID)
			if err != nil {
				continue
			}
			email = user.Email
		}
		if email == "" {
			continue
		}
		addr := email
		s.dispatcher.Enqueue(func(ctx context.Context) error {
			return s.dispatcher.Notifier().SendContractActivated(ctx, addr, title)
		})
	}
}

// AddVersion appends a new content version. The store assigns the version
// number and advances the pointer atomically.
func (s *ContractService) AddVersion(ctx context.Context, userID, contractID uuid.UUID, content models.ContractContent, changeSummary string) (*models.ContractVersion, error) {
	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if err := s.requireEdit(ctx, contract, userID); err != nil {
		return nil, err
	}

	if content.Empty() {
		return nil, validationErrorf("content must not be empty")
	}

	version, err := s.contracts.CreateVersion(ctx, contractID, userID, content, changeSummary)
	if err != nil {
		return nil, translateStoreError(err)
	}

	log.Info().
		Str("contract_id", contractID.String()).
		Int("version", version.Version).
		Msg("Added contract version")

	return version, nil
}

// GetVersion returns one historical version.
func (s *ContractService) GetVersion(ctx context.Context, userID, contractID uuid.UUID, version int) (*models.ContractVersion, error) {
	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if err := s.requireView(ctx, contract, userID); err != nil {
		return nil, err
	}

	v, err := s.contracts.GetVersion(ctx, contractID, version)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return v, nil
}

// List returns the contracts visible to the caller: owned, party to, or
// scoped to an organization whose membership grants visibility.
func (s *ContractService) List(ctx context.Context, userID uuid.UUID, in ListContractsInput) ([]models.Contract, error) {
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return nil, validationErrorf("unknown status %q", *in.Status)
	}

	viewable, err := s.viewableOrgs(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	contracts, err := s.contracts.ListForUser(ctx, store.ContractQuery{
		UserID:         userID,
		ViewableOrgIDs: viewable,
		Status:         in.Status,
		OrgID:          in.OrgID,
		Skip:           in.Skip,
		Limit:          limit,
		SortBy:         in.SortBy,
		SortDesc:       in.SortDesc,
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	return contracts, nil
}

// Delete removes a contract with its versions and parties. Owner only.
func (s *ContractService) Delete(ctx context.Context, userID, contractID uuid.UUID) error {
	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return translateStoreError(err)
	}

	if contract.OwnerID != userID {
		return fmt.Errorf("%w: only the owner can delete a contract", ErrForbidden)
	}

	return translateStoreError(s.contracts.Delete(ctx, contractID))
}

// CanView reports whether the user can see the contract. The paths are
// checked in order: owner, named party, organization membership.
func (s *ContractService) CanView(ctx context.Context, contract *models.Contract, userID uuid.UUID) (bool, error) {
	if contract.OwnerID == userID {
		return true, nil
	}

	parties, err := s.contracts.ListParties(ctx, contract.ContractID)
	if err != nil {
		return false, translateStoreError(err)
	}
	for _, p := range parties {
		if p.UserID != nil && *p.UserID == userID {
			return true, nil
		}
	}

	if contract.OrgID != nil {
		member, err := s.orgs.GetMember(ctx, *contract.OrgID, userID)
		if err == nil && permission.RoleHas(member.Role, permission.ViewMembers) {
			return true, nil
		}
		if err != nil && !errors.Is(err, store.ErrMemberNotFound) {
			return false, translateStoreError(err)
		}
	}

	return false, nil
}

// CanEdit reports whether the user can modify the contract. Being a party
// grants visibility, never edit rights.
func (s *ContractService) CanEdit(ctx context.Context, contract *models.Contract, userID uuid.UUID) (bool, error) {
	if contract.OwnerID == userID {
		return true, nil
	}

	if contract.OrgID != nil {
		member, err := s.orgs.GetMember(ctx, *contract.OrgID, userID)
		if err == nil && permission.RoleHas(member.Role, permission.ManageContracts) {
			return true, nil
		}
		if err != nil && !errors.Is(err, store.ErrMemberNotFound) {
			return false, translateStoreError(err)
		}
	}

	return false, nil
}

func (s *ContractService) requireView(ctx context.Context, contract *models.Contract, userID uuid.UUID) error {
	ok, err := s.CanView(ctx, contract, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no access to this contract", ErrForbidden)
	}
	return nil
}

func (s *ContractService) requireEdit(ctx context.Context, contract *models.Contract, userID uuid.UUID) error {
	ok, err := s.CanEdit(ctx, contract, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no permission to modify this contract", ErrForbidden)
	}
	return nil
}

func (s *ContractService) requireMembership(ctx context.Context, orgID, userID uuid.UUID) error {
	if _, err := s.orgs.GetMember(ctx, orgID, userID); err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			return fmt.Errorf("%w: not a member of this organization", ErrForbidden)
		}
		return translateStoreError(err)
	}
	return nil
}

// viewableOrgs returns the organizations whose membership grants the user
// contract visibility.
func (s *ContractService) viewableOrgs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	memberships, err := s.orgs.ListByUser(ctx, userID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	var orgIDs []uuid.UUID
	for _, m := range memberships {
		if permission.RoleHas(m.Role, permission.ViewMembers) {
			orgIDs = append(orgIDs, m.OrgID)
		}
	}
	return orgIDs, nil
}

// validateTransition enforces the lifecycle gate: an active contract is
// locked in place, everything else moves freely.
func validateTransition(from, to models.ContractStatus) error {
	if from == models.StatusActive && to != from {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func validateContractInput(in CreateContractInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return validationErrorf("title is required")
	}
	if !models.ValidTemplateType(in.TemplateType) {
		return validationErrorf("unknown template type %q", in.TemplateType)
	}
	if in.EffectiveDate != nil && in.ExpirationDate != nil && !in.ExpirationDate.After(*in.EffectiveDate) {
		return validationErrorf("expiration date must be after effective date")
	}

	for i, p := range in.Parties {
		if err := validateParty(p); err != nil {
			return validationErrorf("party %d: %v", i, err)
		}
	}
	return nil
}

// validateParty checks the identity rules per party type. Organization and
// representative parties need an organization reference; individuals and
// representatives without an internal user need a full external identity.
func validateParty(p PartyInput) error {
	if !models.ValidPartyType(p.Type) {
		return fmt.Errorf("unknown party type %q", p.Type)
	}

	if (p.Type == models.PartyOrganization || p.Type == models.PartyRepresentative) && p.OrgID == nil {
		return fmt.Errorf("%s parties require an organization reference", p.Type)
	}

	if (p.Type == models.PartyIndividual || p.Type == models.PartyRepresentative) && p.UserID == nil {
		if p.ExternalName == "" || p.ExternalEmail == "" {
			return fmt.Errorf("external %s parties require a name and an email", p.Type)
		}
	}
	return nil
}

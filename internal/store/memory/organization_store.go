package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
)

type memberKey struct {
	orgID  uuid.UUID
	userID uuid.UUID
}

// OrganizationStore is an in-memory implementation of
// store.OrganizationStore for development and testing.
type OrganizationStore struct {
	mu      sync.RWMutex
	orgs    map[uuid.UUID]*models.Organization
	members map[memberKey]*models.OrganizationMember
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		orgs:    make(map[uuid.UUID]*models.Organization),
		members: make(map[memberKey]*models.OrganizationMember),
	}
}

func (s *OrganizationStore) CreateWithAdmin(ctx context.Context, org *models.Organization, adminUserID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *org
	s.orgs[org.OrgID] = &c
	s.members[memberKey{org.OrgID, adminUserID}] = &models.OrganizationMember{
		OrgID:    org.OrgID,
		UserID:   adminUserID,
		Role:     models.RoleAdmin,
		JoinedAt: org.CreatedAt,
	}
	return nil
}

func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}
	c := *org
	return &c, nil
}

func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.OrgID]; !exists {
		return store.ErrOrganizationNotFound
	}
	c := *org
	s.orgs[org.OrgID] = &c
	return nil
}

func (s *OrganizationStore) AddMember(ctx context.Context, member *models.OrganizationMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{member.OrgID, member.UserID}
	if _, exists := s.members[key]; exists {
		return store.ErrAlreadyMember
	}
	c := *member
	s.members[key] = &c
	return nil
}

func (s *OrganizationStore) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, exists := s.members[memberKey{orgID, userID}]
	if !exists {
		return nil, store.ErrMemberNotFound
	}
	c := *member
	return &c, nil
}

func (s *OrganizationStore) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []models.OrganizationMember
	for key, m := range s.members {
		if key.orgID == orgID {
			members = append(members, *m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].UserID.String() < members[j].UserID.String()
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (s *OrganizationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.OrganizationMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []models.OrganizationMember
	for key, m := range s.members {
		if key.userID == userID {
			members = append(members, *m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].OrgID.String() < members[j].OrgID.String()
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (s *OrganizationStore) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, exists := s.members[memberKey{orgID, userID}]
	if !exists {
		return store.ErrMemberNotFound
	}
	member.Role = role
	return nil
}

func (s *OrganizationStore) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{orgID, userID}
	if _, exists := s.members[key]; !exists {
		return store.ErrMemberNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *OrganizationStore) CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key, m := range s.members {
		if key.orgID == orgID && m.Role == models.RoleAdmin {
			count++
		}
	}
	return count, nil
}

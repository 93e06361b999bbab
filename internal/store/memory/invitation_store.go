package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
)

// InvitationStore is an in-memory implementation of store.InvitationStore
// for development and testing.
type InvitationStore struct {
	mu          sync.Mutex
	invitations map[uuid.UUID]*models.Invitation
	byToken     map[string]uuid.UUID
}

// NewInvitationStore creates a new in-memory invitation store.
func NewInvitationStore() *InvitationStore {
	return &InvitationStore{
		invitations: make(map[uuid.UUID]*models.Invitation),
		byToken:     make(map[string]uuid.UUID),
	}
}

func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *inv
	s.invitations[inv.ID] = &c
	s.byToken[inv.Token] = inv.ID
	return nil
}

func (s *InvitationStore) Get(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.invitations[id]
	if !exists {
		return nil, store.ErrInvitationNotFound
	}
	c := *inv
	return &c, nil
}

func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.byToken[token]
	if !exists {
		return nil, store.ErrInvitationNotFound
	}
	c := *s.invitations[id]
	return &c, nil
}

func (s *InvitationStore) FindPending(ctx context.Context, orgID uuid.UUID, email string, now time.Time) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invitations {
		if inv.OrgID == orgID && strings.EqualFold(inv.Email, email) && now.Before(inv.ExpiresAt) {
			c := *inv
			return &c, nil
		}
	}
	return nil, store.ErrInvitationNotFound
}

func (s *InvitationStore) ListPending(ctx context.Context, orgID uuid.UUID, now time.Time) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []models.Invitation
	for _, inv := range s.invitations {
		if inv.OrgID == orgID && now.Before(inv.ExpiresAt) {
			pending = append(pending, *inv)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID.String() < pending[j].ID.String()
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *InvitationStore) Consume(ctx context.Context, token string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.byToken[token]
	if !exists {
		return nil, store.ErrInvitationNotFound
	}
	inv := s.invitations[id]
	delete(s.invitations, id)
	delete(s.byToken, token)
	c := *inv
	return &c, nil
}

func (s *InvitationStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.invitations[id]
	if !exists {
		return store.ErrInvitationNotFound
	}
	delete(s.byToken, inv.Token)
	delete(s.invitations, id)
	return nil
}

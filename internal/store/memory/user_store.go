package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
)

// UserStore is an in-memory implementation of store.UserStore for
// development and testing.
type UserStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.byEmail[key]; exists {
		return store.ErrUserExists
	}

	s.users[user.ID] = copyUser(user)
	s.byEmail[key] = user.ID
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[strings.ToLower(email)]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *UserStore) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ResetPasswordToken != nil && *user.ResetPasswordToken == token {
			return copyUser(user), nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.ID]
	if !exists {
		return store.ErrUserNotFound
	}

	delete(s.byEmail, strings.ToLower(existing.Email))
	s.users[user.ID] = copyUser(user)
	s.byEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return store.ErrUserNotFound
	}

	delete(s.byEmail, strings.ToLower(user.Email))
	delete(s.users, userID)
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.VerificationCode = copyStr(u.VerificationCode)
	c.VerificationCodeExpires = copyTime(u.VerificationCodeExpires)
	c.ResetPasswordToken = copyStr(u.ResetPasswordToken)
	c.ResetPasswordTokenExpires = copyTime(u.ResetPasswordTokenExpires)
	return &c
}

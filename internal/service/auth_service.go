package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/notify"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	verificationCodeTTL = 24 * time.Hour
	resetTokenTTL       = time.Hour
	minPasswordLength   = 8
)

// AuthService handles registration, email verification and session
// lifecycle.
type AuthService struct {
	users      store.UserStore
	orgs       store.OrganizationStore
	tokens     *auth.TokenIssuer
	blacklist  auth.Blacklist
	dispatcher *notify.Dispatcher
}

// NewAuthService creates an AuthService.
func NewAuthService(users store.UserStore, orgs store.OrganizationStore, tokens *auth.TokenIssuer, blacklist auth.Blacklist, dispatcher *notify.Dispatcher) *AuthService {
	return &AuthService{
		users:      users,
		orgs:       orgs,
		tokens:     tokens,
		blacklist:  blacklist,
		dispatcher: dispatcher,
	}
}

// RegisterInput is the registration payload after transport decoding.
type RegisterInput struct {
	Email            string
	Password         string
	FullName         string
	AccountType      string
	OrganizationName string // required for business accounts
}

// TokenPair is an access/refresh token pair issued on login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Register creates a user account. Business accounts also get an
// organization with the new user as its sole admin. The account starts
// unverified; a verification code goes out after the write commits.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.AccountType == "" {
		in.AccountType = models.AccountTypePersonal
	}
	if err := validateRegister(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := verificationCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expires := now.Add(verificationCodeTTL)
	user := &models.User{
		ID:                      uuid.Must(uuid.NewV7()),
		Email:                   strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:                strings.TrimSpace(in.FullName),
		PasswordHash:            hash,
		AccountType:             in.AccountType,
		IsActive:                true,
		IsVerified:              false,
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, translateStoreError(err)
	}

	if in.AccountType == models.AccountTypeBusiness {
		org := &models.Organization{
			OrgID:     uuid.Must(uuid.NewV7()),
			Name:      strings.TrimSpace(in.OrganizationName),
			Settings:  models.DefaultSettings(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.orgs.CreateWithAdmin(ctx, org, user.ID); err != nil {
			// A business account without its organization must not
			// survive, so roll the user back.
			if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				log.Error().Err(delErr).Str("user_id", user.ID.String()).Msg("Failed to roll back user after org creation failure")
			}
			return nil, translateStoreError(err)
		}

		log.Info().
			Str("user_id", user.ID.String()).
			Str("org_id", org.OrgID.String()).
			Msg("Registered business account")
	}

	s.dispatcher.Enqueue(func(ctx context.Context) error {
		return s.dispatcher.Notifier().SendVerificationCode(ctx, user.Email, user.FullName, code)
	})

	return user, nil
}

// VerifyEmail checks the submitted code and marks the account verified. The
// code is single use.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return translateStoreError(err)
	}

	if user.IsVerified {
		return fmt.Errorf("%w: email already verified", ErrConflict)
	}

	if user.VerificationCode == nil || *user.VerificationCode != code {
		return validationErrorf("invalid verification code")
	}
	if user.VerificationCodeExpires == nil || time.Now().After(*user.VerificationCodeExpires) {
		return validationErrorf("verification code expired")
	}

	user.IsVerified = true
	user.VerificationCode = nil
	user.VerificationCodeExpires = nil

	if err := s.users.Update(ctx, user); err != nil {
		return translateStoreError(err)
	}

	s.dispatcher.Enqueue(func(ctx context.Context) error {
		return s.dispatcher.Notifier().SendWelcome(ctx, user.Email, user.FullName)
	})

	return nil
}

// ResendVerification issues a fresh verification code, invalidating the
// previous one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return translateStoreError(err)
	}

	if user.IsVerified {
		return fmt.Errorf("%w: email already verified", ErrConflict)
	}

	code, err := verificationCode()
	if err != nil {
		return err
	}
	expires := time.Now().Add(verificationCodeTTL)

	user.VerificationCode = &code
	user.VerificationCodeExpires = &expires

	if err := s.users.Update(ctx, user); err != nil {
		return translateStoreError(err)
	}

	s.dispatcher.Enqueue(func(ctx context.Context) error {
		return s.dispatcher.Notifier().SendVerificationCode(ctx, user.Email, user.FullName, code)
	})

	return nil
}

// Login authenticates a user and issues a token pair. Unknown emails and
// wrong passwords come back identical so the response never reveals which
// one failed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("%w: incorrect email or password", ErrUnauthorized)
		}
		return nil, nil, translateStoreError(err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, nil, fmt.Errorf("%w: incorrect email or password", ErrUnauthorized)
		}
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, fmt.Errorf("%w: account is disabled", ErrForbidden)
	}
	if !user.IsVerified {
		return nil, nil, fmt.Errorf("%w: email not verified", ErrForbidden)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().Str("user_id", user.ID.String()).Msg("User logged in")
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The spent
// refresh token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	revoked, err := s.blacklist.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
	}

	if err := s.blacklist.Revoke(ctx, refreshToken, time.Until(claims.ExpiresAt.Time)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}

	return s.issuePair(userID)
}

// Logout revokes the presented tokens for their remaining lifetime.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	for _, tokenStr := range []string{accessToken, refreshToken} {
		if tokenStr == "" {
			continue
		}

		claims, err := parseUnverifiedExpiry(s.tokens, tokenStr)
		if err != nil {
			// Unparseable tokens cannot authenticate anyway.
			continue
		}

		if err := s.blacklist.Revoke(ctx, tokenStr, time.Until(claims)); err != nil {
			return fmt.Errorf("%w: %s", ErrUpstream, err)
		}
	}
	return nil
}

// ForgotPassword starts a password reset. The response is identical whether
// or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil
		}
		return translateStoreError(err)
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(resetTokenTTL)

	user.ResetPasswordToken = &token
	user.ResetPasswordTokenExpires = &expires

	if err := s.users.Update(ctx, user); err != nil {
		return translateStoreError(err)
	}

	s.dispatcher.Enqueue(func(ctx context.Context) error {
		return s.dispatcher.Notifier().SendPasswordReset(ctx, user.Email, user.FullName, token)
	})

	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return validationErrorf("password must be at least %d characters", minPasswordLength)
	}

	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return validationErrorf("invalid or expired reset token")
		}
		return translateStoreError(err)
	}

	if user.ResetPasswordTokenExpires == nil || time.Now().After(*user.ResetPasswordTokenExpires) {
		return validationErrorf("invalid or expired reset token")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = hash
	user.ResetPasswordToken = nil
	user.ResetPasswordTokenExpires = nil

	if err := s.users.Update(ctx, user); err != nil {
		return translateStoreError(err)
	}

	log.Info().Str("user_id", user.ID.String()).Msg("Password reset completed")
	return nil
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return user, nil
}

func (s *AuthService) issuePair(userID uuid.UUID) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func validateRegister(in RegisterInput) error {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return validationErrorf("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return validationErrorf("password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return validationErrorf("full name is required")
	}
	if in.AccountType != models.AccountTypePersonal && in.AccountType != models.AccountTypeBusiness {
		return validationErrorf("account type must be personal or business")
	}
	if in.AccountType == models.AccountTypeBusiness && strings.TrimSpace(in.OrganizationName) == "" {
		return validationErrorf("organization name is required for business accounts")
	}
	return nil
}

// parseUnverifiedExpiry extracts the expiry from a token regardless of its
// type claim, so both access and refresh tokens can be revoked on logout.
func parseUnverifiedExpiry(ti *auth.TokenIssuer, tokenStr string) (time.Time, error) {
	for _, tokenType := range []string{auth.TokenTypeAccess, auth.TokenTypeRefresh} {
		if _, claims, err := ti.Verify(tokenStr, tokenType); err == nil {
			return claims.ExpiresAt.Time, nil
		}
	}
	return time.Time{}, auth.ErrInvalidToken
}

// verificationCode returns a 6 digit zero padded code.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// randomToken returns a URL-safe random token.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

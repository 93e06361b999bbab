package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store. It shares the
// connection pool with the other stores.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `
	user_id, email, full_name, password_hash, account_type,
	is_active, is_verified,
	verification_code, verification_code_expires,
	reset_password_token, reset_password_token_expires,
	created_at, updated_at
`

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AccountType,
		user.IsActive,
		user.IsVerified,
		user.VerificationCode,
		user.VerificationCodeExpires,
		user.ResetPasswordToken,
		user.ResetPasswordTokenExpires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().Str("user_id", user.ID.String()).Msg("Created user")
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return s.scanOne(ctx, query, userID)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return s.scanOne(ctx, query, email)
}

func (s *UserStore) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_password_token = $1`
	return s.scanOne(ctx, query, token)
}

func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			email = $2,
			full_name = $3,
			password_hash = $4,
			account_type = $5,
			is_active = $6,
			is_verified = $7,
			verification_code = $8,
			verification_code_expires = $9,
			reset_password_token = $10,
			reset_password_token_expires = $11,
			updated_at = $12
		WHERE user_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AccountType,
		user.IsActive,
		user.IsVerified,
		user.VerificationCode,
		user.VerificationCodeExpires,
		user.ResetPasswordToken,
		user.ResetPasswordTokenExpires,
		user.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	log.Debug().Str("user_id", userID.String()).Msg("Deleted user")
	return nil
}

func (s *UserStore) scanOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AccountType,
		&user.IsActive,
		&user.IsVerified,
		&user.VerificationCode,
		&user.VerificationCodeExpires,
		&user.ResetPasswordToken,
		&user.ResetPasswordTokenExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

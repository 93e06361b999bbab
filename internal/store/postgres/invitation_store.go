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

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	pool *pgxpool.Pool
}

// NewInvitationStore creates a new PostgreSQL-backed invitation store.
func NewInvitationStore(pool *pgxpool.Pool) *InvitationStore {
	return &InvitationStore{pool: pool}
}

const invitationColumns = `invitation_id, org_id, email, role, token, expires_at, created_at`

func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invitations (`+invitationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.OrgID, inv.Email, inv.Role, inv.Token, inv.ExpiresAt, inv.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("invitation_id", inv.ID.String()).
		Str("org_id", inv.OrgID.String()).
		Msg("Created invitation")

	return nil
}

func (s *InvitationStore) Get(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE invitation_id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, id))
}

func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, token))
}

func (s *InvitationStore) FindPending(ctx context.Context, orgID uuid.UUID, email string, now time.Time) (*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE org_id = $1 AND lower(email) = lower($2) AND expires_at > $3
		LIMIT 1
	`
	return s.scanOne(s.pool.QueryRow(ctx, query, orgID, email, now))
}

func (s *InvitationStore) ListPending(ctx context.Context, orgID uuid.UUID, now time.Time) ([]models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE org_id = $1 AND expires_at > $2
		ORDER BY created_at, invitation_id
	`

	rows, err := s.pool.Query(ctx, query, orgID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.Token, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}
	return invitations, nil
}

// Consume deletes the invitation by token and returns the deleted row. The
// DELETE ... RETURNING makes acceptance single-use under concurrency: only
// one caller ever sees the row.
func (s *InvitationStore) Consume(ctx context.Context, token string) (*models.Invitation, error) {
	query := `DELETE FROM invitations WHERE token = $1 RETURNING ` + invitationColumns
	return s.scanOne(s.pool.QueryRow(ctx, query, token))
}

func (s *InvitationStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM invitations WHERE invitation_id = $1`, id)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrInvitationNotFound
	}
	return nil
}

func (s *InvitationStore) scanOne(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.Token, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

package postgres

import (
	"context"
	"encoding/json"
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

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

func (s *OrganizationStore) CreateWithAdmin(ctx context.Context, org *models.Organization, adminUserID uuid.UUID) error {
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (org_id, name, settings, storage_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, org.OrgID, org.Name, settings, org.StorageUsed, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO organization_members (org_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, org.OrgID, adminUserID, models.RoleAdmin, org.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit organization: %w", err)
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Str("admin_user_id", adminUserID.String()).
		Msg("Created organization")

	return nil
}

func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT org_id, name, settings, storage_used, created_at, updated_at
		FROM organizations
		WHERE org_id = $1
	`

	var org models.Organization
	var settings []byte
	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&org.OrgID,
		&org.Name,
		&settings,
		&org.StorageUsed,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &org.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	return &org, nil
}

func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE organizations SET
			name = $2,
			settings = $3,
			storage_used = $4,
			updated_at = $5
		WHERE org_id = $1
	`, org.OrgID, org.Name, settings, org.StorageUsed, org.UpdatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}
	return nil
}

func (s *OrganizationStore) AddMember(ctx context.Context, member *models.OrganizationMember) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organization_members (org_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, member.OrgID, member.UserID, member.Role, member.JoinedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("org_id", member.OrgID.String()).
		Str("user_id", member.UserID.String()).
		Str("role", string(member.Role)).
		Msg("Added organization member")

	return nil
}

func (s *OrganizationStore) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	query := `
		SELECT org_id, user_id, role, joined_at
		FROM organization_members
		WHERE org_id = $1 AND user_id = $2
	`

	var member models.OrganizationMember
	err := s.pool.QueryRow(ctx, query, orgID, userID).Scan(
		&member.OrgID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

func (s *OrganizationStore) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	query := `
		SELECT org_id, user_id, role, joined_at
		FROM organization_members
		WHERE org_id = $1
		ORDER BY joined_at, user_id
	`
	return s.scanMembers(ctx, query, orgID)
}

func (s *OrganizationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.OrganizationMember, error) {
	query := `
		SELECT org_id, user_id, role, joined_at
		FROM organization_members
		WHERE user_id = $1
		ORDER BY joined_at, org_id
	`
	return s.scanMembers(ctx, query, userID)
}

func (s *OrganizationStore) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE organization_members SET role = $3
		WHERE org_id = $1 AND user_id = $2
	`, orgID, userID, role)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrMemberNotFound
	}
	return nil
}

func (s *OrganizationStore) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM organization_members
		WHERE org_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrMemberNotFound
	}

	log.Debug().
		Str("org_id", orgID.String()).
		Str("user_id", userID.String()).
		Msg("Removed organization member")

	return nil
}

func (s *OrganizationStore) CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM organization_members
		WHERE org_id = $1 AND role = $2
	`, orgID, models.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

func (s *OrganizationStore) scanMembers(ctx context.Context, query string, arg any) ([]models.OrganizationMember, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.OrganizationMember
	for rows.Next() {
		var m models.OrganizationMember
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

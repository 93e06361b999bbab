package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ContractStore implements store.ContractStore using PostgreSQL. Aggregate
// writes (contract+version+parties, version append) run in a single
// transaction; version appends take a row lock on the contract so that
// concurrent appends never compute the same version number.
type ContractStore struct {
	pool *pgxpool.Pool
}

// NewContractStore creates a new PostgreSQL-backed contract store.
func NewContractStore(pool *pgxpool.Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

const contractColumns = `
	contract_id, title, description, template_type, status,
	effective_date, expiration_date, owner_id, org_id,
	current_version, last_activity_by, last_activity_at,
	created_at, updated_at
`

func (s *ContractStore) Create(ctx context.Context, contract *models.Contract, version *models.ContractVersion, parties []models.ContractParty) error {
	content, err := json.Marshal(version.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO contracts (`+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		contract.ContractID,
		contract.Title,
		contract.Description,
		contract.TemplateType,
		contract.Status,
		contract.EffectiveDate,
		contract.ExpirationDate,
		contract.OwnerID,
		contract.OrgID,
		contract.CurrentVersion,
		contract.LastActivityBy,
		contract.LastActivityAt,
		contract.CreatedAt,
		contract.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO contract_versions (contract_id, version, content, modified_by, change_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, version.ContractID, version.Version, content, version.ModifiedBy, version.ChangeSummary, version.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	for _, p := range parties {
		_, err = tx.Exec(ctx, `
			INSERT INTO contract_parties (
				party_id, contract_id, party_type, user_id, org_id,
				external_name, external_email, signature_required, signed_at, signature_data, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, p.PartyID, p.ContractID, p.Type, p.UserID, p.OrgID,
			p.ExternalName, p.ExternalEmail, p.SignatureRequired, p.SignedAt, p.SignatureData, p.CreatedAt)
		if err != nil {
			return mapPostgresError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit contract: %w", err)
	}

	log.Debug().
		Str("contract_id", contract.ContractID.String()).
		Int("parties", len(parties)).
		Msg("Created contract")

	return nil
}

func (s *ContractStore) Get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE contract_id = $1`
	return scanContract(s.pool.QueryRow(ctx, query, contractID))
}

func (s *ContractStore) Update(ctx context.Context, contract *models.Contract) error {
	contract.UpdatedAt = time.Now()

	result, err := s.pool.Exec(ctx, `
		UPDATE contracts SET
			title = $2,
			description = $3,
			template_type = $4,
			status = $5,
			effective_date = $6,
			expiration_date = $7,
			org_id = $8,
			last_activity_by = $9,
			last_activity_at = $10,
			updated_at = $11
		WHERE contract_id = $1
	`,
		contract.ContractID,
		contract.Title,
		contract.Description,
		contract.TemplateType,
		contract.Status,
		contract.EffectiveDate,
		contract.ExpirationDate,
		contract.OrgID,
		contract.LastActivityBy,
		contract.LastActivityAt,
		contract.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrContractNotFound
	}
	return nil
}

// Delete removes the contract row; versions and parties go with it via
// ON DELETE CASCADE.
func (s *ContractStore) Delete(ctx context.Context, contractID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM contracts WHERE contract_id = $1`, contractID)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrContractNotFound
	}

	log.Debug().Str("contract_id", contractID.String()).Msg("Deleted contract (cascading versions and parties)")
	return nil
}

func (s *ContractStore) CreateVersion(ctx context.Context, contractID, modifiedBy uuid.UUID, content models.ContractContent, changeSummary string) (*models.ContractVersion, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe after commit

	// Lock the contract row so concurrent appends serialize on the version
	// counter.
	var current int
	err = tx.QueryRow(ctx, `
		SELECT current_version FROM contracts WHERE contract_id = $1 FOR UPDATE
	`, contractID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to lock contract: %w", err)
	}

	now := time.Now()
	version := &models.ContractVersion{
		ContractID:    contractID,
		Version:       current + 1,
		Content:       content,
		ModifiedBy:    modifiedBy,
		ChangeSummary: changeSummary,
		CreatedAt:     now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO contract_versions (contract_id, version, content, modified_by, change_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, contractID, version.Version, raw, modifiedBy, changeSummary, now)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE contracts SET
			current_version = $2,
			last_activity_by = $3,
			last_activity_at = $4,
			updated_at = $4
		WHERE contract_id = $1
	`, contractID, version.Version, modifiedBy, now)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}

	log.Debug().
		Str("contract_id", contractID.String()).
		Int("version", version.Version).
		Msg("Appended contract version")

	return version, nil
}

func (s *ContractStore) GetVersion(ctx context.Context, contractID uuid.UUID, version int) (*models.ContractVersion, error) {
	query := `
		SELECT contract_id, version, content, modified_by, change_summary, rendered_html, pdf_path, created_at
		FROM contract_versions
		WHERE contract_id = $1 AND version = $2
	`

	var v models.ContractVersion
	var raw []byte
	err := s.pool.QueryRow(ctx, query, contractID, version).Scan(
		&v.ContractID,
		&v.Version,
		&raw,
		&v.ModifiedBy,
		&v.ChangeSummary,
		&v.RenderedHTML,
		&v.PDFPath,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	if err := json.Unmarshal(raw, &v.Content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content: %w", err)
	}
	return &v, nil
}

func (s *ContractStore) CurrentContent(ctx context.Context, contractID uuid.UUID) (*models.Contract, models.ContractContent, error) {
	contract, err := s.Get(ctx, contractID)
	if err != nil {
		return nil, models.ContractContent{}, err
	}

	version, err := s.GetVersion(ctx, contractID, contract.CurrentVersion)
	if err != nil {
		if errors.Is(err, store.ErrVersionNotFound) {
			// Inconsistent pointer; hand back empty content rather than
			// failing the read.
			log.Warn().
				Str("contract_id", contractID.String()).
				Int("current_version", contract.CurrentVersion).
				Msg("No version row matches current_version")
			return contract, models.ContractContent{}, nil
		}
		return nil, models.ContractContent{}, err
	}
	return contract, version.Content, nil
}

func (s *ContractStore) ListParties(ctx context.Context, contractID uuid.UUID) ([]models.ContractParty, error) {
	query := `
		SELECT party_id, contract_id, party_type, user_id, org_id,
			external_name, external_email, signature_required, signed_at, signature_data, created_at
		FROM contract_parties
		WHERE contract_id = $1
		ORDER BY created_at, party_id
	`

	rows, err := s.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	var parties []models.ContractParty
	for rows.Next() {
		var p models.ContractParty
		err := rows.Scan(
			&p.PartyID,
			&p.ContractID,
			&p.Type,
			&p.UserID,
			&p.OrgID,
			&p.ExternalName,
			&p.ExternalEmail,
			&p.SignatureRequired,
			&p.SignedAt,
			&p.SignatureData,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parties: %w", err)
	}
	return parties, nil
}

func (s *ContractStore) UpdateVersionRender(ctx context.Context, contractID uuid.UUID, version int, renderedHTML, pdfPath *string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE contract_versions SET
			rendered_html = COALESCE($3, rendered_html),
			pdf_path = COALESCE($4, pdf_path)
		WHERE contract_id = $1 AND version = $2
	`, contractID, version, renderedHTML, pdfPath)
	if err != nil {
		return mapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrVersionNotFound
	}
	return nil
}

// ListForUser unions three independent ID-set queries (owned, party,
// organization-visible) before hydrating rows. Filters apply inside each
// branch so a row that matches via one path is never excluded because
// another path's branch filtered it.
func (s *ContractStore) ListForUser(ctx context.Context, q store.ContractQuery) ([]models.Contract, error) {
	filter := ""
	args := []any{q.UserID}
	if q.Status != nil {
		args = append(args, *q.Status)
		filter += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if q.OrgID != nil {
		args = append(args, *q.OrgID)
		filter += fmt.Sprintf(" AND org_id = $%d", len(args))
	}

	ownedBranch := `SELECT contract_id FROM contracts WHERE owner_id = $1` + filter
	partyBranch := `
		SELECT c.contract_id
		FROM contracts c
		JOIN contract_parties p ON p.contract_id = c.contract_id
		WHERE p.user_id = $1` + strings.ReplaceAll(filter, " AND ", " AND c.")

	union := ownedBranch + " UNION " + partyBranch
	if len(q.ViewableOrgIDs) > 0 {
		args = append(args, q.ViewableOrgIDs)
		union += fmt.Sprintf(` UNION SELECT contract_id FROM contracts WHERE org_id = ANY($%d)`, len(args)) + filter
	}

	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE contract_id IN (` + union + `)
		ORDER BY ` + sortClause(q.SortBy, q.SortDesc)

	args = append(args, q.Skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	contracts := []models.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}
	return contracts, nil
}

// sortClause whitelists the sort column and always tie-breaks on
// contract_id so pagination stays deterministic.
func sortClause(sortBy string, desc bool) string {
	column := "updated_at"
	switch sortBy {
	case store.SortByTitle:
		column = "lower(title)"
	case store.SortByStatus:
		column = "status"
	case store.SortByCreatedAt:
		column = "created_at"
	case store.SortByEffectiveDate:
		column = "effective_date"
	case store.SortByExpirationDate:
		column = "expiration_date"
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, contract_id %s", column, direction, direction)
}

func scanContract(row pgx.Row) (*models.Contract, error) {
	var c models.Contract
	err := row.Scan(
		&c.ContractID,
		&c.Title,
		&c.Description,
		&c.TemplateType,
		&c.Status,
		&c.EffectiveDate,
		&c.ExpirationDate,
		&c.OwnerID,
		&c.OrgID,
		&c.CurrentVersion,
		&c.LastActivityBy,
		&c.LastActivityAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}
	return &c, nil
}

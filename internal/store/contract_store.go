package store

import (
	"context"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/google/uuid"
)

// Sort fields accepted by ContractQuery.SortBy.
const (
	SortByUpdatedAt      = "updated_at"
	SortByCreatedAt      = "created_at"
	SortByTitle          = "title"
	SortByStatus         = "status"
	SortByEffectiveDate  = "effective_date"
	SortByExpirationDate = "expiration_date"
)

// ContractQuery selects the contracts visible to a user. Visibility is the
// union of three paths: owned contracts, contracts where the user is a
// party, and contracts scoped to one of ViewableOrgIDs. Status and OrgID
// filters apply to each path independently before the union.
type ContractQuery struct {
	UserID uuid.UUID

	// ViewableOrgIDs are the organizations whose role grants the user the
	// view-members capability. The caller computes this set; the store does
	// not evaluate permissions.
	ViewableOrgIDs []uuid.UUID

	Status *models.ContractStatus
	OrgID  *uuid.UUID

	Skip     int
	Limit    int
	SortBy   string // one of the SortBy constants; default updated_at
	SortDesc bool
}

// ContractStore persists the contract aggregate: contract rows, their
// append-only version ledger and their parties.
type ContractStore interface {
	// Create persists a contract, its initial version and its parties in
	// one atomic write. A failure leaves no partial aggregate behind.
	Create(ctx context.Context, contract *models.Contract, version *models.ContractVersion, parties []models.ContractParty) error

	// Get retrieves a contract by ID. Returns ErrContractNotFound if absent.
	Get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error)

	// Update persists contract metadata changes. Returns ErrContractNotFound
	// if absent.
	Update(ctx context.Context, contract *models.Contract) error

	// Delete removes a contract together with its versions and parties.
	Delete(ctx context.Context, contractID uuid.UUID) error

	// CreateVersion appends a new content version. The version number is
	// computed inside the store as current_version+1; the version row, the
	// pointer advance and the activity stamp commit atomically, and
	// concurrent calls against the same contract are serialized so that no
	// two versions ever share a number. Returns ErrContractNotFound if the
	// contract is absent.
	CreateVersion(ctx context.Context, contractID, modifiedBy uuid.UUID, content models.ContractContent, changeSummary string) (*models.ContractVersion, error)

	// GetVersion retrieves one version row. Returns ErrVersionNotFound if
	// absent.
	GetVersion(ctx context.Context, contractID uuid.UUID, version int) (*models.ContractVersion, error)

	// CurrentContent returns the contract and the content its version
	// pointer designates. If no version row matches the pointer the content
	// comes back empty rather than as an error.
	CurrentContent(ctx context.Context, contractID uuid.UUID) (*models.Contract, models.ContractContent, error)

	// ListParties returns all parties of a contract in creation order.
	ListParties(ctx context.Context, contractID uuid.UUID) ([]models.ContractParty, error)

	// UpdateVersionRender stores render-cache fields on a version row. Nil
	// arguments leave the corresponding column untouched, so a failed PDF
	// generation can never clobber a previously stored path.
	UpdateVersionRender(ctx context.Context, contractID uuid.UUID, version int, renderedHTML, pdfPath *string) error

	// ListForUser resolves the query's three-way visibility union,
	// deduplicates, sorts with a contract-ID tie-break for deterministic
	// pagination, and applies skip/limit.
	ListForUser(ctx context.Context, q ContractQuery) ([]models.Contract, error)
}

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

type versionKey struct {
	contractID uuid.UUID
	version    int
}

// ContractStore is an in-memory implementation of store.ContractStore for
// development and testing. The single mutex serializes version creation,
// which gives the same no-duplicate-version guarantee as the row lock in
// the postgres implementation.
type ContractStore struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]*models.Contract
	versions  map[versionKey]*models.ContractVersion
	parties   map[uuid.UUID][]models.ContractParty
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		contracts: make(map[uuid.UUID]*models.Contract),
		versions:  make(map[versionKey]*models.ContractVersion),
		parties:   make(map[uuid.UUID][]models.ContractParty),
	}
}

func (s *ContractStore) Create(ctx context.Context, contract *models.Contract, version *models.ContractVersion, parties []models.ContractParty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contracts[contract.ContractID] = copyContract(contract)
	s.versions[versionKey{contract.ContractID, version.Version}] = copyVersion(version)

	stored := make([]models.ContractParty, len(parties))
	for i, p := range parties {
		stored[i] = copyParty(p)
	}
	s.parties[contract.ContractID] = stored
	return nil
}

func (s *ContractStore) Get(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contract, exists := s.contracts[contractID]
	if !exists {
		return nil, store.ErrContractNotFound
	}
	return copyContract(contract), nil
}

func (s *ContractStore) Update(ctx context.Context, contract *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[contract.ContractID]; !exists {
		return store.ErrContractNotFound
	}
	s.contracts[contract.ContractID] = copyContract(contract)
	return nil
}

func (s *ContractStore) Delete(ctx context.Context, contractID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[contractID]; !exists {
		return store.ErrContractNotFound
	}
	delete(s.contracts, contractID)
	delete(s.parties, contractID)
	for key := range s.versions {
		if key.contractID == contractID {
			delete(s.versions, key)
		}
	}
	return nil
}

func (s *ContractStore) CreateVersion(ctx context.Context, contractID, modifiedBy uuid.UUID, content models.ContractContent, changeSummary string) (*models.ContractVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contract, exists := s.contracts[contractID]
	if !exists {
		return nil, store.ErrContractNotFound
	}

	now := time.Now()
	version := &models.ContractVersion{
		ContractID:    contractID,
		Version:       contract.CurrentVersion + 1,
		Content:       copyContent(content),
		ModifiedBy:    modifiedBy,
		ChangeSummary: changeSummary,
		CreatedAt:     now,
	}
	s.versions[versionKey{contractID, version.Version}] = version

	contract.CurrentVersion = version.Version
	contract.LastActivityBy = modifiedBy
	contract.LastActivityAt = now
	contract.UpdatedAt = now

	return copyVersion(version), nil
}

func (s *ContractStore) GetVersion(ctx context.Context, contractID uuid.UUID, version int) (*models.ContractVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.versions[versionKey{contractID, version}]
	if !exists {
		return nil, store.ErrVersionNotFound
	}
	return copyVersion(v), nil
}

func (s *ContractStore) CurrentContent(ctx context.Context, contractID uuid.UUID) (*models.Contract, models.ContractContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contract, exists := s.contracts[contractID]
	if !exists {
		return nil, models.ContractContent{}, store.ErrContractNotFound
	}

	v, exists := s.versions[versionKey{contractID, contract.CurrentVersion}]
	if !exists {
		// Inconsistent pointer; hand back empty content rather than failing.
		return copyContract(contract), models.ContractContent{}, nil
	}
	return copyContract(contract), copyContent(v.Content), nil
}

func (s *ContractStore) ListParties(ctx context.Context, contractID uuid.UUID) ([]models.ContractParty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.parties[contractID]
	parties := make([]models.ContractParty, len(stored))
	for i, p := range stored {
		parties[i] = copyParty(p)
	}
	return parties, nil
}

func (s *ContractStore) UpdateVersionRender(ctx context.Context, contractID uuid.UUID, version int, renderedHTML, pdfPath *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.versions[versionKey{contractID, version}]
	if !exists {
		return store.ErrVersionNotFound
	}
	if renderedHTML != nil {
		v.RenderedHTML = *renderedHTML
	}
	if pdfPath != nil {
		v.PDFPath = *pdfPath
	}
	return nil
}

func (s *ContractStore) ListForUser(ctx context.Context, q store.ContractQuery) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewable := make(map[uuid.UUID]bool, len(q.ViewableOrgIDs))
	for _, id := range q.ViewableOrgIDs {
		viewable[id] = true
	}

	matches := func(c *models.Contract) bool {
		if q.Status != nil && c.Status != *q.Status {
			return false
		}
		if q.OrgID != nil && (c.OrgID == nil || *c.OrgID != *q.OrgID) {
			return false
		}
		return true
	}

	visible := make(map[uuid.UUID]*models.Contract)
	for id, c := range s.contracts {
		if !matches(c) {
			continue
		}
		if c.OwnerID == q.UserID {
			visible[id] = c
			continue
		}
		if c.OrgID != nil && viewable[*c.OrgID] {
			visible[id] = c
			continue
		}
		for _, p := range s.parties[id] {
			if p.UserID != nil && *p.UserID == q.UserID {
				visible[id] = c
				break
			}
		}
	}

	results := make([]models.Contract, 0, len(visible))
	for _, c := range visible {
		results = append(results, *copyContract(c))
	}
	sortContracts(results, q.SortBy, q.SortDesc)

	if q.Skip >= len(results) {
		return []models.Contract{}, nil
	}
	results = results[q.Skip:]
	if q.Limit > 0 && q.Limit < len(results) {
		results = results[:q.Limit]
	}
	return results, nil
}

// sortContracts orders contracts by the requested field with a contract-ID
// tie-break so pagination stays deterministic for equal keys.
func sortContracts(contracts []models.Contract, sortBy string, desc bool) {
	key := func(c *models.Contract) string {
		switch sortBy {
		case store.SortByTitle:
			return strings.ToLower(c.Title)
		case store.SortByStatus:
			return string(c.Status)
		case store.SortByCreatedAt:
			return c.CreatedAt.UTC().Format(time.RFC3339Nano)
		case store.SortByEffectiveDate:
			return timeKey(c.EffectiveDate)
		case store.SortByExpirationDate:
			return timeKey(c.ExpirationDate)
		default:
			return c.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
	}
	sort.Slice(contracts, func(i, j int) bool {
		ki, kj := key(&contracts[i]), key(&contracts[j])
		if ki == kj {
			return contracts[i].ContractID.String() < contracts[j].ContractID.String()
		}
		if desc {
			return ki > kj
		}
		return ki < kj
	})
}

func timeKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func copyContract(c *models.Contract) *models.Contract {
	cc := *c
	cc.EffectiveDate = copyTime(c.EffectiveDate)
	cc.ExpirationDate = copyTime(c.ExpirationDate)
	cc.OrgID = copyUUID(c.OrgID)
	return &cc
}

func copyVersion(v *models.ContractVersion) *models.ContractVersion {
	cv := *v
	cv.Content = copyContent(v.Content)
	return &cv
}

func copyParty(p models.ContractParty) models.ContractParty {
	cp := p
	cp.UserID = copyUUID(p.UserID)
	cp.OrgID = copyUUID(p.OrgID)
	cp.SignedAt = copyTime(p.SignedAt)
	return cp
}

func copyContent(c models.ContractContent) models.ContractContent {
	cc := models.ContractContent{}
	if c.Meta != nil {
		m := *c.Meta
		cc.Meta = &m
	}
	if c.Sections == nil {
		return cc
	}
	cc.Sections = make([]models.Section, len(c.Sections))
	for i, sec := range c.Sections {
		cs := sec
		if sec.Subsections != nil {
			cs.Subsections = make([]models.Subsection, len(sec.Subsections))
			copy(cs.Subsections, sec.Subsections)
		}
		cc.Sections[i] = cs
	}
	return cc
}

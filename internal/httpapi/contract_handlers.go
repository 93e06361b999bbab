package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/render"
	"github.com/contractflow/contractflow/internal/service"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/google/uuid"
)

const (
	maxListLimit     = 100
	defaultListLimit = 50
)

// ContractHandler exposes the contract endpoints including HTML and PDF
// export.
type ContractHandler struct {
	contractSvc *service.ContractService
	renderSvc   *render.Service
	catalog     *render.Catalog
}

// NewContractHandler creates the contract endpoint handler.
func NewContractHandler(contractSvc *service.ContractService, renderSvc *render.Service, catalog *render.Catalog) *ContractHandler {
	return &ContractHandler{
		contractSvc: contractSvc,
		renderSvc:   renderSvc,
		catalog:     catalog,
	}
}

type partyRequest struct {
	Type              string  `json:"type"`
	UserID            *string `json:"user_id,omitempty"`
	OrgID             *string `json:"org_id,omitempty"`
	ExternalName      *string `json:"external_name,omitempty"`
	ExternalEmail     *string `json:"external_email,omitempty"`
	SignatureRequired bool    `json:"signature_required"`
}

type createContractRequest struct {
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	TemplateType   string                 `json:"template_type"`
	EffectiveDate  *time.Time             `json:"effective_date,omitempty"`
	ExpirationDate *time.Time             `json:"expiration_date,omitempty"`
	OrgID          *string                `json:"org_id,omitempty"`
	Content        models.ContractContent `json:"content"`

	// TemplateID plus Variables instantiate a catalog template instead of
	// taking Content verbatim.
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`

	Parties []partyRequest `json:"parties,omitempty"`
}

type contractResponse struct {
	ContractID     string     `json:"contract_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	TemplateType   string     `json:"template_type"`
	Status         string     `json:"status"`
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	OwnerID        string     `json:"owner_id"`
	OrgID          *string    `json:"org_id,omitempty"`
	CurrentVersion int        `json:"current_version"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toContractResponse(c *models.Contract) contractResponse {
	resp := contractResponse{
		ContractID:     c.ContractID.String(),
		Title:          c.Title,
		Description:    c.Description,
		TemplateType:   string(c.TemplateType),
		Status:         string(c.Status),
		EffectiveDate:  c.EffectiveDate,
		ExpirationDate: c.ExpirationDate,
		OwnerID:        c.OwnerID.String(),
		CurrentVersion: c.CurrentVersion,
		LastActivityAt: c.LastActivityAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.OrgID != nil {
		s := c.OrgID.String()
		resp.OrgID = &s
	}
	return resp
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized))
		return
	}

	var req createContractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	content := req.Content
	if req.TemplateID != "" {
		instantiated, err := h.catalog.Instantiate(req.TemplateID, req.Variables)
		if err != nil {
			writeError(w, err)
			return
		}
		content = instantiated
	}

	in := service.CreateContractInput{
		Title:          req.Title,
		Description:    req.Description,
		TemplateType:   models.TemplateType(req.TemplateType),
		EffectiveDate:  req.EffectiveDate,
		ExpirationDate: req.ExpirationDate,
		Content:        content,
	}

	if req.OrgID != nil {
		orgID, err := uuid.Parse(*req.OrgID)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid org_id", service.ErrValidation))
			return
		}
		in.OrgID = &orgID
	}

	for _, p := range req.Parties {
		party := service.PartyInput{
			Type:              models.PartyType(p.Type),
			ExternalName:      strValue(p.ExternalName),
			ExternalEmail:     strValue(p.ExternalEmail),
			SignatureRequired: p.SignatureRequired,
		}
		if p.UserID != nil {
			id, err := uuid.Parse(*p.UserID)
			if err != nil {
				writeError(w, fmt.Errorf("%w: invalid party user_id", service.ErrValidation))
				return
			}
			party.UserID = &id
		}
		if p.OrgID != nil {
			id, err := uuid.Parse(*p.OrgID)
			if err != nil {
				writeError(w, fmt.Errorf("%w: invalid party org_id", service.ErrValidation))
				return
			}
			party.OrgID = &id
		}
		in.Parties = append(in.Parties, party)
	}

	contract, err := h.contractSvc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractResponse(contract))
}

func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized))
		return
	}

	in, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contracts, err := h.contractSvc.List(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]contractResponse, 0, len(contracts))
	for i := range contracts {
		out = append(out, toContractResponse(&contracts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type partyResponse struct {
	PartyID           string     `json:"party_id"`
	Type              string     `json:"type"`
	UserID            *string    `json:"user_id,omitempty"`
	OrgID             *string    `json:"org_id,omitempty"`
	ExternalName      *string    `json:"external_name,omitempty"`
	ExternalEmail     *string    `json:"external_email,omitempty"`
	SignatureRequired bool       `json:"signature_required"`
	SignedAt          *time.Time `json:"signed_at,omitempty"`
}

type contractDetailResponse struct {
	contractResponse

	Content models.ContractContent `json:"content"`
	Parties []partyResponse        `json:"parties"`
}

func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, contractID, err := callerAndContract(r)
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.contractSvc.Get(r.Context(), userID, contractID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := contractDetailResponse{
		contractResponse: toContractResponse(detail.Contract),
		Content:          detail.Content,
		Parties:          make([]partyResponse, 0, len(detail.Parties)),
	}
	for _, p := range detail.Parties {
		pr := partyResponse{
			PartyID:           p.PartyID.String(),
			Type:              string(p.Type),
			ExternalName:      optString(p.ExternalName),
			ExternalEmail:     optString(p.ExternalEmail),
			SignatureRequired: p.SignatureRequired,
			SignedAt:          p.SignedAt,
		}
		if p.UserID != nil {
			s := p.UserID.String()
			pr.UserID = &s
		}
		if p.OrgID != nil {
			s := p.OrgID.String()
			pr.OrgID = &s
		}
		resp.Parties = append(resp.Parties, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}

type patchContractRequest struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Status         *string    `json:"status,omitempty"`
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (h *ContractHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID, contractID, err := callerAndContract(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req patchContractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := service.MetadataPatch{
		Title:          req.Title,
		Description:    req.Description,
		EffectiveDate:  req.EffectiveDate,
		ExpirationDate: req.ExpirationDate,
	}
	if req.Status != nil {
		status := models.ContractStatus(*req.Status)
		patch.Status = &status
	}

	contract, err := h.contractSvc.UpdateMetadata(r.Context(), userID, contractID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractResponse(contract))
}

func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, contractID, err := callerAndContract(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.contractSvc.Delete(r.Context(), userID, contractID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type createVersionRequest struct {
	Content       models.ContractContent `json:"content"`
	ChangeSummary string                 `json:"change_summary,omitempty"`
}

type versionResponse struct {
	Version       int       `json:"version"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	ModifiedBy    string    `json:"modified_by"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *ContractHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	userID, contractID, err := callerAndContract(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	version, err := h.contractSvc.AddVersion(r.Context(), userID, contractID, req.Content, req.ChangeSummary)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, versionResponse{
		Version:       version.Version,
		ChangeSummary: version.ChangeSummary,
		ModifiedBy:    version.ModifiedBy.String(),
		CreatedAt:     version.CreatedAt,
	})
}

// ExportHTML returns the rendered document for the contract's current
// version.
func (h *ContractHandler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	userID, contractID, err := callerAndContract(r)
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.contractSvc.Get(r.Context(), userID, contractID)
	if err != nil {
		writeError(w, err)
		return
	}

	html, err := h.renderSvc.HTML(r.Context(), detail.Contract)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html)) //nolint:errcheck
}

// ExportPDF streams the PDF for the contract's current version.
// A non-empty ?watermark= value is stamped across every page and skips the
// cache; ?download=true sets an attachment disposition.
func (h *ContractHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	userID, contractID, err := callerAndContract(r)
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.contractSvc.Get(r.Context(), userID, contractID)
	if err != nil {
		writeError(w, err)
		return
	}

	watermark := r.URL.Query().Get("watermark")
	path, err := h.renderSvc.PDF(r.Context(), detail.Contract, watermark)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	if r.URL.Query().Get("download") == "true" {
		filename := fmt.Sprintf("%s_v%d.pdf", detail.Contract.Title, detail.Contract.CurrentVersion)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	http.ServeFile(w, r, path)
}

func parseListQuery(r *http.Request) (service.ListContractsInput, error) {
	q := r.URL.Query()
	in := service.ListContractsInput{Limit: defaultListLimit}

	if v := q.Get("status"); v != "" {
		status := models.ContractStatus(v)
		in.Status = &status
	}
	if v := q.Get("org_id"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			return in, fmt.Errorf("%w: invalid org_id", service.ErrValidation)
		}
		in.OrgID = &orgID
	}
	if v := q.Get("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return in, fmt.Errorf("%w: skip must be a non-negative integer", service.ErrValidation)
		}
		in.Skip = skip
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			return in, fmt.Errorf("%w: limit must be between 1 and %d", service.ErrValidation, maxListLimit)
		}
		in.Limit = limit
	}

	switch v := q.Get("sort_by"); v {
	case "", store.SortByUpdatedAt, store.SortByCreatedAt, store.SortByTitle,
		store.SortByStatus, store.SortByEffectiveDate, store.SortByExpirationDate:
		in.SortBy = v
	default:
		return in, fmt.Errorf("%w: unknown sort_by %q", service.ErrValidation, v)
	}
	// Newest-first unless the caller asks for ascending order.
	in.SortDesc = q.Get("order") != "asc"

	return in, nil
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// optString maps the empty string to an absent JSON field.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func callerAndContract(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized)
	}

	contractID, err := pathUUID(r, "contractID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, contractID, nil
}

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/render"
	"github.com/contractflow/contractflow/internal/service"
	"github.com/go-chi/chi/v5"
)

// TemplateHandler exposes the contract template catalog.
type TemplateHandler struct {
	catalog *render.Catalog
}

// NewTemplateHandler creates the template endpoint handler.
func NewTemplateHandler(catalog *render.Catalog) *TemplateHandler {
	return &TemplateHandler{catalog: catalog}
}

type templateResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Variables   []string               `json:"variables"`
	Builtin     bool                   `json:"builtin"`
	Content     models.ContractContent `json:"content,omitempty"`
}

func toTemplateResponse(t *render.TemplateDefinition, includeContent bool) templateResponse {
	resp := templateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Type:        string(t.Type),
		Description: t.Description,
		Variables:   t.Variables,
		Builtin:     t.Builtin(),
	}
	if includeContent {
		resp.Content = t.Content
	}
	return resp
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates := h.catalog.List()

	out := make([]templateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, toTemplateResponse(&templates[i], false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.catalog.Get(chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t, true))
}

type createTemplateRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Content     models.ContractContent `json:"content"`
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized))
		return
	}

	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, fmt.Errorf("%w: id and name are required", service.ErrValidation))
		return
	}
	if req.Content.Empty() {
		writeError(w, fmt.Errorf("%w: content must not be empty", service.ErrValidation))
		return
	}

	tmpl := &render.TemplateDefinition{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		OwnerID:     &userID,
	}
	if err := h.catalog.Save(tmpl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(tmpl, true))
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized))
		return
	}

	if err := h.catalog.Delete(chi.URLParam(r, "templateID"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// orgHeader selects the organization for /organizations/me on multi-org
// accounts.
const orgHeader = "X-Organization-ID"

// OrgHandler exposes organization, membership and invitation endpoints.
type OrgHandler struct {
	orgSvc *service.OrganizationService
}

// NewOrgHandler creates the organization endpoint handler.
func NewOrgHandler(orgSvc *service.OrganizationService) *OrgHandler {
	return &OrgHandler{orgSvc: orgSvc}
}

type organizationResponse struct {
	OrgID       string  `json:"org_id"`
	Name        string  `json:"name"`
	CallerRole  string  `json:"caller_role"`
	MemberCount int     `json:"member_count"`
	UsedGB      float64 `json:"used_gb"`
	LimitGB     float64 `json:"limit_gb"`
}

func (h *OrgHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized))
		return
	}

	var explicit *uuid.UUID
	if header := r.Header.Get(orgHeader); header != "" {
		id, err := uuid.Parse(header)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid %s header", service.ErrValidation, orgHeader))
			return
		}
		explicit = &id
	}

	detail, err := h.orgSvc.Detail(r.Context(), userID, explicit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, organizationResponse{
		OrgID:       detail.Organization.OrgID.String(),
		Name:        detail.Organization.Name,
		CallerRole:  string(detail.CallerRole),
		MemberCount: detail.MemberCount,
		UsedGB:      detail.UsedGB,
		LimitGB:     detail.Organization.Settings.Storage.LimitGB,
	})
}

func (h *OrgHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.orgSvc.Dashboard(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	byRole := make(map[string]int, len(stats.MembersByRole))
	for role, n := range stats.MembersByRole {
		byRole[string(role)] = n
	}
	byStatus := make(map[string]int, len(stats.ContractsByStatus))
	for status, n := range stats.ContractsByStatus {
		byStatus[string(status)] = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"member_count":        stats.MemberCount,
		"members_by_role":     byRole,
		"pending_invitations": stats.PendingInvitations,
		"total_contracts":     stats.TotalContracts,
		"contracts_by_status": byStatus,
		"storage": map[string]float64{
			"used_gb":  stats.UsedGB,
			"limit_gb": stats.LimitGB,
		},
	})
}

type memberResponse struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	JoinedAt   time.Time `json:"joined_at"`
}

func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := h.orgSvc.ListMembers(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:     m.Member.UserID.String(),
			Email:      m.Email,
			FullName:   m.FullName,
			Role:       string(m.Member.Role),
			IsVerified: m.IsVerified,
			JoinedAt:   m.Member.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type invitationResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toInvitationResponse(inv *models.Invitation) invitationResponse {
	return invitationResponse{
		ID:        inv.ID.String(),
		Email:     inv.Email,
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}

func (h *OrgHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	inv, err := h.orgSvc.InviteMember(r.Context(), userID, orgID, req.Email, models.Role(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvitationResponse(inv))
}

func (h *OrgHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	pending, err := h.orgSvc.ListInvitations(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]invitationResponse, 0, len(pending))
	for i := range pending {
		out = append(out, toInvitationResponse(&pending[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrgHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	invitationID, err := pathUUID(r, "invitationID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orgSvc.CancelInvitation(r.Context(), userID, orgID, invitationID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (h *OrgHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized))
		return
	}

	var req acceptInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	member, err := h.orgSvc.AcceptInvitation(r.Context(), userID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"org_id": member.OrgID.String(),
		"role":   string(member.Role),
	})
}

func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orgSvc.RemoveMember(r.Context(), userID, orgID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *OrgHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.orgSvc.ChangeRole(r.Context(), userID, orgID, targetID, models.Role(req.Role)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": req.Role})
}

type settingsPatchRequest struct {
	Security      *models.SecuritySettings     `json:"security,omitempty"`
	Notifications *models.NotificationSettings `json:"notifications,omitempty"`
	Storage       *models.StorageSettings      `json:"storage,omitempty"`
}

func (h *OrgHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	settings, err := h.orgSvc.GetSettings(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *OrgHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, orgID, err := callerAndOrg(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req settingsPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	settings, err := h.orgSvc.UpdateSettings(r.Context(), userID, orgID, service.SettingsPatch{
		Security:      req.Security,
		Notifications: req.Notifications,
		Storage:       req.Storage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// callerAndOrg pulls the authenticated user and the {orgID} path parameter.
func callerAndOrg(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: missing authentication", service.ErrUnauthorized)
	}

	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, orgID, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", service.ErrValidation, param)
	}
	return id, nil
}

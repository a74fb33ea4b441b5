package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/inopsio/platform/internal/apperrors"
	"github.com/inopsio/platform/internal/auth"
	httpx "github.com/inopsio/platform/internal/http"
	"github.com/inopsio/platform/internal/models"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

type organizationOut struct {
	ID        uuid.UUID   `json:"id"`
	Slug      string      `json:"slug"`
	Name      string      `json:"name"`
	Plan      string      `json:"plan"`
	Role      models.Role `json:"role,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func toOrganizationOut(org *models.Organization, role models.Role) organizationOut {
	return organizationOut{
		ID:        org.OrgID,
		Slug:      org.Slug,
		Name:      org.Name,
		Plan:      org.Plan,
		Role:      role,
		CreatedAt: org.CreatedAt,
	}
}

func validSlug(slug string) bool {
	if len(slug) < 3 || len(slug) > 63 {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return slug[0] != '-' && slug[len(slug)-1] != '-'
}

// handleCreateOrganization creates an organization with the caller as its
// founding owner, atomically.
func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}

	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !validSlug(req.Slug) {
		httpx.WriteError(w, r, apperrors.Validation("slug must be 3-63 lowercase letters, digits or hyphens"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httpx.WriteError(w, r, apperrors.Validation("name is required"))
		return
	}
	if req.Plan == "" {
		req.Plan = "free"
	}

	now := time.Now()
	org := &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Slug:      req.Slug,
		Name:      strings.TrimSpace(req.Name),
		Plan:      req.Plan,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orgs.CreateWithOwner(r.Context(), org, principal.PrincipalID); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "organization not found"))
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("org_id", org.OrgID.String()).
		Str("owner", principal.PrincipalID.String()).
		Msg("Organization created")

	httpx.WriteJSON(w, http.StatusCreated, toOrganizationOut(org, models.RoleOwner))
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	memberships, err := s.memberships.ListByPrincipal(r.Context(), principal.PrincipalID)
	if err != nil {
		httpx.WriteError(w, r, apperrors.Internal(err))
		return
	}

	out := make([]organizationOut, 0, len(memberships))
	for _, membership := range memberships {
		org, err := s.orgs.Get(r.Context(), membership.OrgID)
		if err != nil {
			httpx.WriteError(w, r, mapStoreError(err, "organization not found"))
			return
		}
		out = append(out, toOrganizationOut(org, membership.Role))
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid organization id"))
		return
	}

	membership, err := s.gate.ResolveMembership(r.Context(), principal, orgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	org, err := s.orgs.Get(r.Context(), orgID)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "organization not found"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toOrganizationOut(org, membership.Role))
}

type updateOrganizationRequest struct {
	Name *string `json:"name"`
	Plan *string `json:"plan"`
}

// handleUpdateOrganization rewrites organization settings. The slug is
// immutable once minted; only owners hold org:manage.
func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid organization id"))
		return
	}

	membership, err := s.gate.ResolveMembership(r.Context(), principal, orgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapOrgManage); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var req updateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}

	org, err := s.orgs.Get(r.Context(), orgID)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "organization not found"))
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			httpx.WriteError(w, r, apperrors.Validation("name is required"))
			return
		}
		org.Name = name
	}
	if req.Plan != nil {
		org.Plan = *req.Plan
	}
	org.UpdatedAt = time.Now()

	if err := s.orgs.Update(r.Context(), org); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "organization not found"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toOrganizationOut(org, membership.Role))
}

type addMemberRequest struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type memberOut struct {
	PrincipalID uuid.UUID   `json:"principalId"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// handleAddMember adds a principal to the organization. This is the
// invite-acceptance step: the membership exists from here on.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid organization id"))
		return
	}

	membership, err := s.gate.ResolveMembership(r.Context(), principal, orgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapMembersInvite); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !req.Role.Valid() {
		httpx.WriteError(w, r, apperrors.Validation("unknown role"))
		return
	}
	// Only owners may mint further owners.
	if req.Role == models.RoleOwner && membership.Role != models.RoleOwner {
		httpx.WriteError(w, r, apperrors.Unauthorized(string(auth.CapOrgManage)))
		return
	}

	invitee, err := s.principals.GetByEmail(r.Context(), req.Email)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "user not found"))
		return
	}

	now := time.Now()
	newMembership := &models.Membership{
		PrincipalID: invitee.PrincipalID,
		OrgID:       orgID,
		Role:        req.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.memberships.Create(r.Context(), newMembership); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "user not found"))
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("org_id", orgID.String()).
		Str("principal_id", invitee.PrincipalID.String()).
		Str("role", string(req.Role)).
		Msg("Member added")

	httpx.WriteJSON(w, http.StatusCreated, memberOut{
		PrincipalID: invitee.PrincipalID,
		Email:       invitee.Email,
		Role:        req.Role,
		CreatedAt:   now,
	})
}

type updateMemberRequest struct {
	Role models.Role `json:"role"`
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid organization id"))
		return
	}
	targetID, err := uuid.Parse(r.PathValue("principalID"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid principal id"))
		return
	}

	membership, err := s.gate.ResolveMembership(r.Context(), principal, orgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapMembersManage); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	if !req.Role.Valid() {
		httpx.WriteError(w, r, apperrors.Validation("unknown role"))
		return
	}
	if req.Role == models.RoleOwner && membership.Role != models.RoleOwner {
		httpx.WriteError(w, r, apperrors.Unauthorized(string(auth.CapOrgManage)))
		return
	}

	if err := s.memberships.UpdateRole(r.Context(), targetID, orgID, req.Role); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "membership not found"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid organization id"))
		return
	}
	targetID, err := uuid.Parse(r.PathValue("principalID"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid principal id"))
		return
	}

	membership, err := s.gate.ResolveMembership(r.Context(), principal, orgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	// Leaving an organization needs no capability; removing someone else does.
	if targetID != principal.PrincipalID {
		if err := auth.RequireCapability(membership.Role, auth.CapMembersManage); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
	}

	if err := s.memberships.Delete(r.Context(), targetID, orgID); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "membership not found"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

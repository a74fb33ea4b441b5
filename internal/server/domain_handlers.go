package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/apperrors"
	"github.com/inopsio/platform/internal/auth"
	httpx "github.com/inopsio/platform/internal/http"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// orgScopeHeader selects the organization a tenant operation runs under.
// When absent, the caller's primary (oldest) membership is used.
const orgScopeHeader = "X-Org-ID"

// resolveScope determines the membership a tenant request operates under.
// The organization id always comes from the gate-resolved membership, never
// from the request body.
func (s *Server) resolveScope(r *http.Request, principal *models.Principal) (*models.Membership, error) {
	if header := r.Header.Get(orgScopeHeader); header != "" {
		orgID, err := uuid.Parse(header)
		if err != nil {
			return nil, apperrors.Validation("invalid " + orgScopeHeader + " header")
		}
		return s.gate.ResolveMembership(r.Context(), principal, orgID)
	}
	return s.gate.PrimaryMembership(r.Context(), principal)
}

type createDomainRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	membership, err := s.resolveScope(r, principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapDomainsCreate); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var req createDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	if req.Name == "" || !strings.Contains(req.Name, ".") {
		httpx.WriteError(w, r, apperrors.Validation("a fully qualified domain name is required"))
		return
	}

	now := time.Now()
	domain := models.Domain{
		Name:      req.Name,
		Verified:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The store assigns the id and forces the tenant to the resolved
	// membership, whatever the payload said.
	created, err := s.domains.Create(r.Context(), membership.OrgID, domain)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "domain not found"))
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	membership, err := s.resolveScope(r, principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapDomainsRead); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	query := r.URL.Query()
	skip, _ := strconv.Atoi(query.Get("skip"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	filter := store.Filter{}
	if name := query.Get("name"); name != "" {
		filter["name"] = strings.ToLower(name)
	}
	if verified := query.Get("verified"); verified != "" {
		v, err := strconv.ParseBool(verified)
		if err != nil {
			httpx.WriteError(w, r, apperrors.Validation("verified must be true or false"))
			return
		}
		filter["verified"] = v
	}

	page, err := s.domains.List(r.Context(), membership.OrgID, filter, skip, limit)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "domain not found"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	domainID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid domain id"))
		return
	}

	membership, err := s.resolveScope(r, principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapDomainsRead); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	domain, err := s.domains.Get(r.Context(), membership.OrgID, domainID)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "domain not found"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, domain)
}

type updateDomainRequest struct {
	Name     *string `json:"name"`
	Verified *bool   `json:"verified"`
}

func (s *Server) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	domainID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid domain id"))
		return
	}

	membership, err := s.resolveScope(r, principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapDomainsUpdate); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var req updateDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}

	domain, err := s.domains.Get(r.Context(), membership.OrgID, domainID)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "domain not found"))
		return
	}

	if req.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*req.Name))
		if name == "" || !strings.Contains(name, ".") {
			httpx.WriteError(w, r, apperrors.Validation("a fully qualified domain name is required"))
			return
		}
		domain.Name = name
	}
	if req.Verified != nil {
		domain.Verified = *req.Verified
	}
	domain.UpdatedAt = time.Now()

	updated, err := s.domains.Update(r.Context(), membership.OrgID, domainID, domain)
	if err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "domain not found"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	domainID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid domain id"))
		return
	}

	membership, err := s.resolveScope(r, principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := auth.RequireCapability(membership.Role, auth.CapDomainsDelete); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	if err := s.domains.Delete(r.Context(), membership.OrgID, domainID); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "domain not found"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

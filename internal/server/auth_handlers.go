package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/inopsio/platform/internal/apperrors"
	"github.com/inopsio/platform/internal/auth"
	httpx "github.com/inopsio/platform/internal/http"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/password"
	"github.com/inopsio/platform/internal/store"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// principalOut is the safe response shape for a principal. It never carries
// the password hash.
type principalOut struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPrincipalOut(p *models.Principal) principalOut {
	return principalOut{
		ID:        p.PrincipalID,
		Email:     p.Email,
		FullName:  p.FullName,
		IsActive:  p.Active,
		CreatedAt: p.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid request body"))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid email address"))
		return
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		httpx.WriteError(w, r, apperrors.Validation(err.Error()))
		return
	}

	now := time.Now()
	principal := &models.Principal{
		PrincipalID:    uuid.Must(uuid.NewV7()),
		Email:          req.Email,
		FullName:       strings.TrimSpace(req.FullName),
		HashedPassword: hashed,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.principals.Create(r.Context(), principal); err != nil {
		httpx.WriteError(w, r, mapStoreError(err, "user not found"))
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("principal_id", principal.PrincipalID.String()).
		Msg("Principal signed up")

	httpx.WriteJSON(w, http.StatusCreated, toPrincipalOut(principal))
}

// handleLogin implements the OAuth2-style password exchange: form-encoded
// username/password in, bearer token out. The token is additionally mirrored
// into a path-scoped cookie so the edge guard can inspect it without a
// network call.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, r, apperrors.Validation("invalid form body"))
		return
	}

	username := r.PostFormValue("username")
	secret := r.PostFormValue("password")

	principal, err := s.principals.GetByEmail(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			httpx.WriteError(w, r, apperrors.InvalidCredentials("Incorrect email or password"))
			return
		}
		httpx.WriteError(w, r, apperrors.Internal(err))
		return
	}

	if !password.Verify(principal.HashedPassword, secret) {
		httpx.WriteError(w, r, apperrors.InvalidCredentials("Incorrect email or password"))
		return
	}

	if !principal.Active {
		httpx.WriteDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}

	token, err := s.tokens.Issue(principal.PrincipalID, s.cfg.TokenTTL)
	if err != nil {
		httpx.WriteError(w, r, apperrors.Internal(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.CookieTTL.Seconds()),
	})

	zerolog.Ctx(r.Context()).Info().
		Str("principal_id", principal.PrincipalID.String()).
		Str("client_ip", httpx.ClientIPFromContext(r.Context())).
		Msg("Login succeeded")

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// handleLogout clears the mirror cookie. The bearer token itself stays
// valid until natural expiry; there is no server-side revocation.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleTestToken lets a frontend verify auth state on load: it simply
// echoes the principal the gate resolved.
func (s *Server) handleTestToken(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, toPrincipalOut(principal))
}

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/inopsio/platform/internal/auth"
	"github.com/inopsio/platform/internal/store/memory"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), "inopsio")
	require.NoError(t, err)

	principals := memory.NewPrincipalStore()
	memberships := memory.NewMembershipStore()
	orgs := memory.NewOrganizationStore(memberships)
	domains := memory.NewDomainStore()

	gate := auth.NewPermissionGate(tokens, principals, memberships)

	srv := NewServer(Config{
		// Generous limits so tests never trip the login limiter.
		LoginRatePerSecond: 1000,
		LoginBurst:         1000,
	}, tokens, gate, principals, orgs, memberships, domains)

	return srv.Handler(zerolog.Nop())
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	r := httptest.NewRequest(method, path, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func signup(t *testing.T, handler http.Handler, email, pass string) {
	t.Helper()

	w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": pass,
		"fullName": "Test User",
	})
	require.Equal(t, http.StatusCreated, w.Code)
}

func login(t *testing.T, handler http.Handler, email, pass string) string {
	t.Helper()

	form := url.Values{"username": {email}, "password": {pass}}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
	}
	decodeBody(t, w, &resp)
	require.Equal(t, "bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func createOrg(t *testing.T, handler http.Handler, token, slug string) uuid.UUID {
	t.Helper()

	w := doJSON(t, handler, http.MethodPost, "/api/v1/organizations", token, map[string]string{
		"name": "Org " + slug,
		"slug": slug,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var org struct {
		ID uuid.UUID `json:"id"`
	}
	decodeBody(t, w, &org)
	return org.ID
}

func TestSignupLoginAndTestToken(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "alice@example.com", "s3cretpass")
	token := login(t, handler, "alice@example.com", "s3cretpass")

	w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/test-token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var principal struct {
		Email    string `json:"email"`
		IsActive bool   `json:"isActive"`
	}
	decodeBody(t, w, &principal)
	require.Equal(t, "alice@example.com", principal.Email)
	require.True(t, principal.IsActive)
}

func TestSignupValidation(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		name     string
		body     map[string]string
		expected int
	}{
		{
			name:     "invalid email",
			body:     map[string]string{"email": "not-an-email", "password": "s3cretpass"},
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "short password",
			body:     map[string]string{"email": "bob@example.com", "password": "short"},
			expected: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/signup", "", tt.body)
			require.Equal(t, tt.expected, w.Code)
		})
	}

	t.Run("duplicate email conflicts", func(t *testing.T) {
		signup(t, handler, "carol@example.com", "s3cretpass")

		w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
			"email":    "carol@example.com",
			"password": "s3cretpass",
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestLoginFailures(t *testing.T) {
	handler := newTestServer(t)
	signup(t, handler, "alice@example.com", "s3cretpass")

	post := func(username, pass string) *httptest.ResponseRecorder {
		form := url.Values{"username": {username}, "password": {pass}}
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("wrong password", func(t *testing.T) {
		w := post("alice@example.com", "wrongpass")
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var body struct {
			Detail string `json:"detail"`
		}
		decodeBody(t, w, &body)
		require.Equal(t, "Incorrect email or password", body.Detail)
	})

	t.Run("unknown user indistinguishable from wrong password", func(t *testing.T) {
		w := post("nobody@example.com", "whatever12")
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var body struct {
			Detail string `json:"detail"`
		}
		decodeBody(t, w, &body)
		require.Equal(t, "Incorrect email or password", body.Detail)
	})
}

func TestAuthRequired(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "no token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodGet, "/api/v1/domains", tt.token, nil)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestOrganizationLifecycle(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "owner@example.com", "s3cretpass")
	token := login(t, handler, "owner@example.com", "s3cretpass")

	orgID := createOrg(t, handler, token, "acme")

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodPost, "/api/v1/organizations", token, map[string]string{
			"name": "Acme Again",
			"slug": "acme",
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid slug rejected", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodPost, "/api/v1/organizations", token, map[string]string{
			"name": "Bad",
			"slug": "-bad-",
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("creator is owner", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/api/v1/organizations/"+orgID.String(), token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var org struct {
			Slug string `json:"slug"`
			Role string `json:"role"`
		}
		decodeBody(t, w, &org)
		require.Equal(t, "acme", org.Slug)
		require.Equal(t, "owner", org.Role)
	})

	t.Run("owner can update settings", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodPatch, "/api/v1/organizations/"+orgID.String(), token, map[string]string{
			"name": "Acme Incorporated",
			"plan": "pro",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var org struct {
			Name string `json:"name"`
			Plan string `json:"plan"`
			Slug string `json:"slug"`
		}
		decodeBody(t, w, &org)
		require.Equal(t, "Acme Incorporated", org.Name)
		require.Equal(t, "pro", org.Plan)
		require.Equal(t, "acme", org.Slug)
	})

	t.Run("non-owner cannot update settings", func(t *testing.T) {
		signup(t, handler, "admin@example.com", "s3cretpass")
		adminToken := login(t, handler, "admin@example.com", "s3cretpass")

		w := doJSON(t, handler, http.MethodPost, "/api/v1/organizations/"+orgID.String()+"/members", token, map[string]string{
			"email": "admin@example.com",
			"role":  "admin",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(t, handler, http.MethodPatch, "/api/v1/organizations/"+orgID.String(), adminToken, map[string]string{
			"name": "Hijacked",
		})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("non-member cannot see the organization", func(t *testing.T) {
		signup(t, handler, "outsider@example.com", "s3cretpass")
		outsider := login(t, handler, "outsider@example.com", "s3cretpass")

		w := doJSON(t, handler, http.MethodGet, "/api/v1/organizations/"+orgID.String(), outsider, nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestMembershipManagement(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "owner@example.com", "s3cretpass")
	signup(t, handler, "member@example.com", "s3cretpass")
	ownerToken := login(t, handler, "owner@example.com", "s3cretpass")
	memberToken := login(t, handler, "member@example.com", "s3cretpass")

	orgID := createOrg(t, handler, ownerToken, "acme")
	membersPath := "/api/v1/organizations/" + orgID.String() + "/members"

	w := doJSON(t, handler, http.MethodPost, membersPath, ownerToken, map[string]string{
		"email": "member@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var added struct {
		PrincipalID uuid.UUID `json:"principalId"`
		Role        string    `json:"role"`
	}
	decodeBody(t, w, &added)
	require.Equal(t, "member", added.Role)

	t.Run("member cannot invite", func(t *testing.T) {
		signup(t, handler, "third@example.com", "s3cretpass")

		w := doJSON(t, handler, http.MethodPost, membersPath, memberToken, map[string]string{
			"email": "third@example.com",
		})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("sole owner cannot leave", func(t *testing.T) {
		owner := struct {
			ID uuid.UUID `json:"id"`
		}{}
		resp := doJSON(t, handler, http.MethodPost, "/api/v1/auth/test-token", ownerToken, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		decodeBody(t, resp, &owner)

		w := doJSON(t, handler, http.MethodDelete, membersPath+"/"+owner.ID.String(), ownerToken, nil)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("member can leave without capability", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodDelete, membersPath+"/"+added.PrincipalID.String(), memberToken, nil)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestDomainLifecycleAndTenantIsolation(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "alice@example.com", "s3cretpass")
	signup(t, handler, "bob@example.com", "s3cretpass")
	aliceToken := login(t, handler, "alice@example.com", "s3cretpass")
	bobToken := login(t, handler, "bob@example.com", "s3cretpass")

	createOrg(t, handler, aliceToken, "alice-org")
	createOrg(t, handler, bobToken, "bob-org")

	w := doJSON(t, handler, http.MethodPost, "/api/v1/domains", aliceToken, map[string]string{
		"name": "Example.COM",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var domain struct {
		ID       uuid.UUID `json:"id"`
		Name     string    `json:"name"`
		Verified bool      `json:"verified"`
	}
	decodeBody(t, w, &domain)
	require.Equal(t, "example.com", domain.Name)
	require.False(t, domain.Verified)

	t.Run("visible to its own organization", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/api/v1/domains/"+domain.ID.String(), aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invisible across organizations", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/api/v1/domains/"+domain.ID.String(), bobToken, nil)
		require.Equal(t, http.StatusNotFound, w.Code)

		w = doJSON(t, handler, http.MethodDelete, "/api/v1/domains/"+domain.ID.String(), bobToken, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list is scoped", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/api/v1/domains", bobToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var page struct {
			Items []json.RawMessage `json:"items"`
			Total int64             `json:"total"`
		}
		decodeBody(t, w, &page)
		require.Empty(t, page.Items)
		require.Zero(t, page.Total)
	})

	t.Run("patch updates fields", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodPatch, "/api/v1/domains/"+domain.ID.String(), aliceToken, map[string]any{
			"verified": true,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var updated struct {
			Name     string `json:"name"`
			Verified bool   `json:"verified"`
		}
		decodeBody(t, w, &updated)
		require.Equal(t, "example.com", updated.Name)
		require.True(t, updated.Verified)
	})

	t.Run("invalid name rejected", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodPost, "/api/v1/domains", aliceToken, map[string]string{
			"name": "nodots",
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("without organization membership", func(t *testing.T) {
		signup(t, handler, "orgless@example.com", "s3cretpass")
		orgless := login(t, handler, "orgless@example.com", "s3cretpass")

		w := doJSON(t, handler, http.MethodGet, "/api/v1/domains", orgless, nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestDomainPaginationAndFilters(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "alice@example.com", "s3cretpass")
	token := login(t, handler, "alice@example.com", "s3cretpass")
	createOrg(t, handler, token, "acme")

	for i := range 5 {
		w := doJSON(t, handler, http.MethodPost, "/api/v1/domains", token, map[string]string{
			"name": fmt.Sprintf("site%d.example.com", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var page struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
		Total int64 `json:"total"`
		Skip  int   `json:"skip"`
		Limit int   `json:"limit"`
	}

	w := doJSON(t, handler, http.MethodGet, "/api/v1/domains?skip=1&limit=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &page)
	require.Len(t, page.Items, 2)
	require.EqualValues(t, 5, page.Total)
	require.Equal(t, 1, page.Skip)
	require.Equal(t, 2, page.Limit)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/domains?name=site3.example.com", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, "site3.example.com", page.Items[0].Name)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/domains?verified=false", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &page)
	require.EqualValues(t, 5, page.Total)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/domains?verified=maybe", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDomainCapabilities(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "owner@example.com", "s3cretpass")
	signup(t, handler, "member@example.com", "s3cretpass")
	ownerToken := login(t, handler, "owner@example.com", "s3cretpass")
	memberToken := login(t, handler, "member@example.com", "s3cretpass")

	orgID := createOrg(t, handler, ownerToken, "acme")

	w := doJSON(t, handler, http.MethodPost, "/api/v1/organizations/"+orgID.String()+"/members", ownerToken, map[string]string{
		"email": "member@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/api/v1/domains", memberToken, map[string]string{
		"name": "member.example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var domain struct {
		ID uuid.UUID `json:"id"`
	}
	decodeBody(t, w, &domain)

	t.Run("member cannot delete", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodDelete, "/api/v1/domains/"+domain.ID.String(), memberToken, nil)
		require.Equal(t, http.StatusForbidden, w.Code)

		var body struct {
			Detail string `json:"detail"`
		}
		decodeBody(t, w, &body)
		require.Contains(t, body.Detail, "domains:delete")
	})

	t.Run("owner can delete", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodDelete, "/api/v1/domains/"+domain.ID.String(), ownerToken, nil)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestOrgScopeHeader(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "alice@example.com", "s3cretpass")
	token := login(t, handler, "alice@example.com", "s3cretpass")

	firstOrg := createOrg(t, handler, token, "first")
	secondOrg := createOrg(t, handler, token, "second")

	withOrg := func(method, path string, orgID string, body any) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(encoded)
		}
		r := httptest.NewRequest(method, path, reader)
		r.Header.Set("Authorization", "Bearer "+token)
		if orgID != "" {
			r.Header.Set("X-Org-ID", orgID)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	// Created under the second organization via the header.
	w := withOrg(http.MethodPost, "/api/v1/domains", secondOrg.String(), map[string]string{
		"name": "second.example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var domain struct {
		ID             uuid.UUID `json:"id"`
		OrganizationID uuid.UUID `json:"organizationId"`
	}
	decodeBody(t, w, &domain)
	require.Equal(t, secondOrg, domain.OrganizationID)

	// Without the header the first (oldest) membership is the scope, so
	// the domain is not visible.
	w = withOrg(http.MethodGet, "/api/v1/domains/"+domain.ID.String(), "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = withOrg(http.MethodGet, "/api/v1/domains/"+domain.ID.String(), secondOrg.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Naming the first organization explicitly behaves like the default.
	w = withOrg(http.MethodGet, "/api/v1/domains/"+domain.ID.String(), firstOrg.String(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	t.Run("header must name a membership", func(t *testing.T) {
		w := withOrg(http.MethodGet, "/api/v1/domains", uuid.Must(uuid.NewV7()).String(), nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		w := withOrg(http.MethodGet, "/api/v1/domains", "not-a-uuid", nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRequestIDEchoedOnResponses(t *testing.T) {
	handler := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	supplied := uuid.Must(uuid.NewV7()).String()
	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-ID", supplied)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, supplied, w.Header().Get("X-Request-ID"))
}

func TestLogoutClearsCookie(t *testing.T) {
	handler := newTestServer(t)

	signup(t, handler, "alice@example.com", "s3cretpass")
	token := login(t, handler, "alice@example.com", "s3cretpass")

	w := doJSON(t, handler, http.MethodPost, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "inopsio_token", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)

	// The bearer token itself stays valid until expiry.
	w = doJSON(t, handler, http.MethodPost, "/api/v1/auth/test-token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

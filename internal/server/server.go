package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"github.com/inopsio/platform/internal/apperrors"
	"github.com/inopsio/platform/internal/auth"
	httpx "github.com/inopsio/platform/internal/http"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// Config holds the request-facing settings of the API server.
type Config struct {
	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration

	// CookieName and CookieTTL configure the mirror cookie carrying the
	// access token for edge checks. The cookie is a transport convenience;
	// the Authorization header remains the canonical credential carrier.
	CookieName   string
	CookieTTL    time.Duration
	CookieSecure bool

	// LoginRatePerSecond and LoginBurst bound login attempts per client.
	LoginRatePerSecond float64
	LoginBurst         int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = 30 * time.Minute
	}
	if c.CookieName == "" {
		c.CookieName = "inopsio_token"
	}
	if c.CookieTTL == 0 {
		c.CookieTTL = 7 * 24 * time.Hour
	}
	if c.LoginRatePerSecond == 0 {
		c.LoginRatePerSecond = 1
	}
	if c.LoginBurst == 0 {
		c.LoginBurst = 5
	}
}

// Server wires the permission gate, token service and stores into the HTTP
// API. All tenant data access goes through the tenant-scoped domain store;
// handlers never query tenant tables directly.
type Server struct {
	cfg    Config
	tokens *auth.TokenService
	gate   *auth.PermissionGate

	principals  store.PrincipalStore
	orgs        store.OrganizationStore
	memberships store.MembershipStore
	domains     store.TenantStore[models.Domain]

	loginLimiter *httpx.RateLimiter
}

// NewServer creates a new API server.
func NewServer(
	cfg Config,
	tokens *auth.TokenService,
	gate *auth.PermissionGate,
	principals store.PrincipalStore,
	orgs store.OrganizationStore,
	memberships store.MembershipStore,
	domains store.TenantStore[models.Domain],
) *Server {
	cfg.ApplyDefaults()
	return &Server{
		cfg:          cfg,
		tokens:       tokens,
		gate:         gate,
		principals:   principals,
		orgs:         orgs,
		memberships:  memberships,
		domains:      domains,
		loginLimiter: httpx.NewRateLimiter(rate.Limit(cfg.LoginRatePerSecond), cfg.LoginBurst),
	}
}

// Handler returns the HTTP handler for the API: routes wrapped with the
// correlation id, client IP and request logging middleware. CORS, CSRF and
// edge-guard layers are composed by the caller around this handler.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public auth routes
	mux.Handle("POST /api/v1/auth/login",
		s.loginLimiter.Middleware()(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /api/v1/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)

	// Authenticated routes: the gate resolves the bearer token once, before
	// any handler logic runs.
	authed := auth.Middleware(s.gate, func(w http.ResponseWriter, r *http.Request, err error) {
		httpx.WriteError(w, r, err)
	})

	mux.Handle("POST /api/v1/auth/test-token", authed(http.HandlerFunc(s.handleTestToken)))

	mux.Handle("POST /api/v1/organizations", authed(http.HandlerFunc(s.handleCreateOrganization)))
	mux.Handle("GET /api/v1/organizations", authed(http.HandlerFunc(s.handleListOrganizations)))
	mux.Handle("GET /api/v1/organizations/{id}", authed(http.HandlerFunc(s.handleGetOrganization)))
	mux.Handle("PATCH /api/v1/organizations/{id}", authed(http.HandlerFunc(s.handleUpdateOrganization)))
	mux.Handle("POST /api/v1/organizations/{id}/members", authed(http.HandlerFunc(s.handleAddMember)))
	mux.Handle("PATCH /api/v1/organizations/{id}/members/{principalID}", authed(http.HandlerFunc(s.handleUpdateMemberRole)))
	mux.Handle("DELETE /api/v1/organizations/{id}/members/{principalID}", authed(http.HandlerFunc(s.handleRemoveMember)))

	mux.Handle("POST /api/v1/domains", authed(http.HandlerFunc(s.handleCreateDomain)))
	mux.Handle("GET /api/v1/domains", authed(http.HandlerFunc(s.handleListDomains)))
	mux.Handle("GET /api/v1/domains/{id}", authed(http.HandlerFunc(s.handleGetDomain)))
	mux.Handle("PATCH /api/v1/domains/{id}", authed(http.HandlerFunc(s.handleUpdateDomain)))
	mux.Handle("DELETE /api/v1/domains/{id}", authed(http.HandlerFunc(s.handleDeleteDomain)))

	var handler http.Handler = mux
	handler = httpx.LoggingMiddleware(log)(handler)
	handler = httpx.ClientIPMiddleware()(handler)
	handler = httpx.RequestIDMiddleware()(handler)

	return handler
}

// mapStoreError lifts store sentinel errors into the apperrors taxonomy.
// Cross-tenant and genuinely absent records both arrive as ErrNotFound and
// stay indistinguishable here.
func mapStoreError(err error, notFoundDetail string) error {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrPrincipalNotFound),
		errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrMembershipNotFound):
		return apperrors.NotFound(notFoundDetail)
	case errors.Is(err, store.ErrEmailAlreadyExists):
		return apperrors.Conflict("email already registered")
	case errors.Is(err, store.ErrSlugAlreadyExists):
		return apperrors.Conflict("organization slug already taken")
	case errors.Is(err, store.ErrMembershipExists):
		return apperrors.Conflict("already a member of this organization")
	case errors.Is(err, store.ErrLastOwner):
		return apperrors.Conflict("organization must keep at least one owner")
	default:
		return apperrors.Internal(err)
	}
}

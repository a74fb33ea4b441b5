package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/inopsio/platform/internal/auth"
	"github.com/inopsio/platform/internal/edge"
	"github.com/inopsio/platform/internal/logger"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/server"
	"github.com/inopsio/platform/internal/store"
	memorystore "github.com/inopsio/platform/internal/store/memory"
	postgresstore "github.com/inopsio/platform/internal/store/postgres"
	"github.com/inopsio/platform/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"INOPSIO_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"INOPSIO_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"INOPSIO_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"INOPSIO_CORS_ORIGINS"`

	// Token configuration
	TokenSigningSecret string        `help:"secret key for HMAC signing of access tokens" env:"INOPSIO_TOKEN_SECRET"`
	TokenIssuer        string        `help:"issuer claim on access tokens" default:"inopsio" env:"INOPSIO_TOKEN_ISSUER"`
	TokenTTL           time.Duration `help:"access token TTL" default:"30m" env:"INOPSIO_TOKEN_TTL"`

	// Cookie configuration
	CookieName     string        `help:"name of the token mirror cookie" default:"inopsio_token" env:"INOPSIO_COOKIE_NAME"`
	CookieTTL      time.Duration `help:"mirror cookie TTL" default:"168h" env:"INOPSIO_COOKIE_TTL"`
	CookieInsecure bool          `help:"allow the mirror cookie over plain HTTP (development only)" default:"false" env:"INOPSIO_COOKIE_INSECURE"`

	// Login rate limiting
	LoginRate  float64 `help:"sustained login attempts per second per client" default:"1" env:"INOPSIO_LOGIN_RATE"`
	LoginBurst int     `help:"login attempt burst per client" default:"5" env:"INOPSIO_LOGIN_BURST"`

	// Edge guard configuration
	EdgeRoutes string `help:"path to a YAML file overriding the edge route rules" default:"" env:"INOPSIO_EDGE_ROUTES"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"INOPSIO_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *ServerCmd) Validate() error {
	if c.TokenSigningSecret == "" {
		return errors.New("token signing secret is required (--token-signing-secret or INOPSIO_TOKEN_SECRET)")
	}
	if len(c.TokenSigningSecret) < 32 {
		return errors.New("token signing secret must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}
	return nil
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"INOPSIO_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Create stores based on store type
	var (
		principalStore    store.PrincipalStore
		organizationStore store.OrganizationStore
		membershipStore   store.MembershipStore
		domainStore       store.TenantStore[models.Domain]
	)

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.validate(); err != nil {
			return fmt.Errorf("failed to validate postgres flags: %w", err)
		}

		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		principalStore = postgresstore.NewPrincipalStore(pool)
		organizationStore = postgresstore.NewOrganizationStore(pool)
		membershipStore = postgresstore.NewMembershipStore(pool)
		domainStore, err = postgresstore.NewDomainStore(pool)
		if err != nil {
			return fmt.Errorf("failed to create domain store: %w", err)
		}
		log.Info().Msg("Using PostgreSQL stores")

	default:
		memberships := memorystore.NewMembershipStore()
		principalStore = memorystore.NewPrincipalStore()
		organizationStore = memorystore.NewOrganizationStore(memberships)
		membershipStore = memberships
		domainStore = memorystore.NewDomainStore()
		log.Warn().Msg("Using in-memory stores, all data is lost on restart")
	}

	tokens, err := auth.NewTokenService([]byte(c.TokenSigningSecret), c.TokenIssuer)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	gate := auth.NewPermissionGate(tokens, principalStore, membershipStore)

	srv := server.NewServer(server.Config{
		TokenTTL:           c.TokenTTL,
		CookieName:         c.CookieName,
		CookieTTL:          c.CookieTTL,
		CookieSecure:       !c.CookieInsecure,
		LoginRatePerSecond: c.LoginRate,
		LoginBurst:         c.LoginBurst,
	}, tokens, gate, principalStore, organizationStore, membershipStore, domainStore)

	metrics := telemetry.NewMetrics()
	apiHandler := withCORS(c.CORSOrigins, metrics.Middleware()(srv.Handler(log)))

	// Edge route rules for page requests
	rules := edge.DefaultRules()
	if c.EdgeRoutes != "" {
		rules, err = edge.LoadRules(c.EdgeRoutes)
		if err != nil {
			return fmt.Errorf("failed to load edge route rules: %w", err)
		}
		log.Info().Str("path", c.EdgeRoutes).Msg("Loaded edge route rules")
	}
	guard := edge.NewGuard(rules)

	// Page requests never reach a handler here; the frontend serves them.
	// The guard still classifies direct hits so unauthenticated deep links
	// bounce to signin instead of a bare 404.
	pages := guard.Middleware(c.CookieName)(http.NotFoundHandler())

	// CSRF protection for page routes (not applied to API routes)
	protection := csrf.New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API routes get CORS, page routes get CSRF plus the edge guard
		if isAPIRoute(r.URL.Path) {
			apiHandler.ServeHTTP(w, r)
		} else if r.URL.Path == "/metrics" {
			metrics.Handler().ServeHTTP(w, r)
		} else {
			protection.Handler(pages).ServeHTTP(w, r)
		}
	})

	httpServer := configureHTTPServer(c.Listen, handler)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" && c.Key != "" {
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/health"
}

// withCORS adds CORS support to the API handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Org-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}

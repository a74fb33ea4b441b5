package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/inopsio/platform/internal/models"
)

type contextKey int

const principalContextKey contextKey = iota

// PrincipalFromContext extracts the authenticated principal from the request
// context. Returns nil if no principal is present (unauthenticated request).
func PrincipalFromContext(ctx context.Context) *models.Principal {
	principal, _ := ctx.Value(principalContextKey).(*models.Principal)
	return principal
}

// ContextWithPrincipal attaches a resolved principal to the context. Used by
// the middleware below and by tests that fabricate authenticated requests.
func ContextWithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// ExtractBearerToken extracts the token from the Authorization header.
// Returns an empty string when the header is missing or malformed.
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return parts[1]
}

// Middleware returns an HTTP middleware that resolves the bearer token into
// a principal via the permission gate, rejecting the request with onError
// when resolution fails. Handlers behind it read the principal from the
// context; no handler re-verifies tokens itself.
func Middleware(gate *PermissionGate, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := gate.Resolve(r.Context(), ExtractBearerToken(r))
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

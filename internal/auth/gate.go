package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/inopsio/platform/internal/apperrors"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// PermissionGate resolves a verified token into a principal and, for tenant
// operations, an active membership plus role. Its failures short-circuit
// request handling before any tenant store is touched.
type PermissionGate struct {
	tokens      *TokenService
	principals  store.PrincipalStore
	memberships store.MembershipStore
}

// NewPermissionGate creates a permission gate over the given stores.
func NewPermissionGate(tokens *TokenService, principals store.PrincipalStore, memberships store.MembershipStore) *PermissionGate {
	return &PermissionGate{
		tokens:      tokens,
		principals:  principals,
		memberships: memberships,
	}
}

// Resolve verifies the bearer token and loads the principal behind it.
// Every failure mode - missing token, bad signature, expiry, unknown or
// deactivated principal - resolves to Unauthenticated; token verification
// detail is logged, not surfaced.
func (g *PermissionGate) Resolve(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, apperrors.Unauthenticated("missing bearer token")
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Token verification failed")
		if errors.Is(err, apperrors.ExpiredToken()) {
			return nil, apperrors.Unauthenticated("token has expired")
		}
		return nil, apperrors.Unauthenticated("could not validate credentials")
	}

	principal, err := g.principals.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			return nil, apperrors.Unauthenticated("could not validate credentials")
		}
		return nil, apperrors.Internal(err)
	}

	if !principal.Active {
		return nil, apperrors.Unauthenticated("inactive user")
	}

	return principal, nil
}

// ResolveMembership loads the principal's membership in the requested
// organization. Absence fails NotAMember.
func (g *PermissionGate) ResolveMembership(ctx context.Context, principal *models.Principal, orgID uuid.UUID) (*models.Membership, error) {
	if principal == nil {
		return nil, apperrors.Unauthenticated("missing principal")
	}

	membership, err := g.memberships.Get(ctx, principal.PrincipalID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return nil, apperrors.NotAMember("not a member of this organization")
		}
		return nil, apperrors.Internal(err)
	}

	return membership, nil
}

// PrimaryMembership returns the principal's oldest membership, used when a
// request selects no organization explicitly.
func (g *PermissionGate) PrimaryMembership(ctx context.Context, principal *models.Principal) (*models.Membership, error) {
	memberships, err := g.memberships.ListByPrincipal(ctx, principal.PrincipalID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(memberships) == 0 {
		return nil, apperrors.NotAMember("user has no organization")
	}
	return memberships[0], nil
}

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrPrincipalNotFound    = errors.New("principal not found")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrSlugAlreadyExists    = errors.New("organization slug already taken")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrMembershipExists     = errors.New("membership already exists")
	ErrLastOwner            = errors.New("organization must keep at least one owner")
	ErrNotFound             = errors.New("not found")
)

// PrincipalStore manages principal records.
type PrincipalStore interface {
	// Create persists a new principal. Fails with ErrEmailAlreadyExists
	// when the email is taken.
	Create(ctx context.Context, principal *models.Principal) error

	// Get retrieves a principal by ID.
	Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error)

	// GetByEmail retrieves a principal by email address.
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)

	// Update rewrites a principal's mutable fields.
	Update(ctx context.Context, principal *models.Principal) error

	// Deactivate flips Active to false. Principals are never hard-deleted.
	Deactivate(ctx context.Context, principalID uuid.UUID) error
}

// OrganizationStore manages organization records.
type OrganizationStore interface {
	// CreateWithOwner persists a new organization and the founding owner
	// membership as one atomic step. Fails with ErrSlugAlreadyExists when
	// the slug is taken.
	CreateWithOwner(ctx context.Context, org *models.Organization, ownerPrincipalID uuid.UUID) error

	// Get retrieves an organization by ID.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// GetBySlug retrieves an organization by slug.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// Update rewrites an organization's mutable fields.
	Update(ctx context.Context, org *models.Organization) error
}

// MembershipStore manages the principal/organization/role relation.
type MembershipStore interface {
	// Create adds a membership. Fails with ErrMembershipExists when the
	// principal already belongs to the organization.
	Create(ctx context.Context, membership *models.Membership) error

	// Get retrieves the membership for a principal in an organization.
	Get(ctx context.Context, principalID, orgID uuid.UUID) (*models.Membership, error)

	// ListByPrincipal returns all memberships held by a principal, oldest
	// first, so the first entry is the principal's primary organization.
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error)

	// ListByOrganization returns all memberships of an organization.
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error)

	// UpdateRole mutates the role on an existing membership.
	UpdateRole(ctx context.Context, principalID, orgID uuid.UUID, role models.Role) error

	// Delete removes a membership. Fails with ErrLastOwner when it would
	// leave the organization without an owner.
	Delete(ctx context.Context, principalID, orgID uuid.UUID) error
}

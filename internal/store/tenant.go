package store

import (
	"context"

	"github.com/google/uuid"
)

// TenantEntity is the shape a record must have to live in a tenant-scoped
// store: an immutable ID plus exactly one organization ID. WithID and
// WithTenant return modified copies so the store can assign identity and
// force the tenant scope without reflection.
type TenantEntity[T any] interface {
	EntityID() uuid.UUID
	TenantID() uuid.UUID
	WithID(id uuid.UUID) T
	WithTenant(orgID uuid.UUID) T
}

// Filter restricts List results by column value. Filters compose with the
// organization constraint; they can never widen or replace it. Keys not
// registered as filterable by the implementation are rejected.
type Filter map[string]any

// Page is a window of scoped results plus the total count computed under
// the same scoped filter.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Skip  int   `json:"skip"`
	Limit int   `json:"limit"`
}

// DefaultPageLimit applies when a caller passes limit <= 0.
const DefaultPageLimit = 100

// TenantStore is the single sanctioned path to persisted tenant data. Every
// operation takes the organization ID resolved by the permission gate for
// the current request; client-supplied organization fields in payloads are
// overwritten. A cross-tenant ID is indistinguishable from an absent one:
// both fail ErrNotFound.
//
// Calling any operation with orgID == uuid.Nil is a programming-contract
// violation and panics; it is never a recoverable error path for callers.
type TenantStore[T TenantEntity[T]] interface {
	// Create persists the entity under orgID, assigning a fresh ID and
	// overwriting any tenant value already present on the payload.
	Create(ctx context.Context, orgID uuid.UUID, entity T) (T, error)

	// Get retrieves one entity within the organization scope.
	Get(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (T, error)

	// List returns a page of entities within the organization scope.
	// filter may be nil.
	List(ctx context.Context, orgID uuid.UUID, filter Filter, skip, limit int) (*Page[T], error)

	// Update rewrites the entity's mutable fields within the organization
	// scope, preserving the stored ID and tenant.
	Update(ctx context.Context, orgID uuid.UUID, id uuid.UUID, entity T) (T, error)

	// Delete removes one entity within the organization scope.
	Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error
}

// MustScope panics when orgID is absent. Implementations call it at the top
// of every operation; reaching the store without a resolved organization
// means the permission gate was bypassed.
func MustScope(orgID uuid.UUID) {
	if orgID == uuid.Nil {
		panic("store: tenant operation without a resolved organization")
	}
}

// NormalizePage clamps pagination inputs to sane values.
func NormalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return skip, limit
}

package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

func newDomain(name string) models.Domain {
	now := time.Now()
	return models.Domain{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTenantStore_CreateAssignsScope(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()
	orgID := uuid.Must(uuid.NewV7())

	// Payload tenant and ID values are overwritten, never trusted.
	payload := newDomain("example.com")
	payload.DomainID = uuid.Must(uuid.NewV7())
	payload.OrgID = uuid.Must(uuid.NewV7())

	created, err := domains.Create(ctx, orgID, payload)
	require.NoError(t, err)
	require.Equal(t, orgID, created.OrgID)
	require.NotEqual(t, payload.DomainID, created.DomainID)
	require.NotEqual(t, uuid.Nil, created.DomainID)

	got, err := domains.Get(ctx, orgID, created.DomainID)
	require.NoError(t, err)
	require.Equal(t, "example.com", got.Name)
}

func TestTenantStore_CrossTenantIsolation(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()

	orgA := uuid.Must(uuid.NewV7())
	orgB := uuid.Must(uuid.NewV7())

	created, err := domains.Create(ctx, orgA, newDomain("example.com"))
	require.NoError(t, err)

	// A record owned by another organization reads as absent, exactly
	// like a record that never existed.
	_, err = domains.Get(ctx, orgB, created.DomainID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = domains.Get(ctx, orgA, uuid.Must(uuid.NewV7()))
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = domains.Update(ctx, orgB, created.DomainID, newDomain("stolen.com"))
	require.ErrorIs(t, err, store.ErrNotFound)

	err = domains.Delete(ctx, orgB, created.DomainID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The record survives untouched under its own organization.
	got, err := domains.Get(ctx, orgA, created.DomainID)
	require.NoError(t, err)
	require.Equal(t, "example.com", got.Name)
}

func TestTenantStore_ListScopedPagination(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()

	orgA := uuid.Must(uuid.NewV7())
	orgB := uuid.Must(uuid.NewV7())

	for i := range 5 {
		_, err := domains.Create(ctx, orgA, newDomain(fmt.Sprintf("a%d.example.com", i)))
		require.NoError(t, err)
	}
	for i := range 3 {
		_, err := domains.Create(ctx, orgB, newDomain(fmt.Sprintf("b%d.example.com", i)))
		require.NoError(t, err)
	}

	page, err := domains.List(ctx, orgA, nil, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.EqualValues(t, 5, page.Total)
	require.Equal(t, 0, page.Skip)
	require.Equal(t, 2, page.Limit)

	// Newest first.
	require.Equal(t, "a4.example.com", page.Items[0].Name)
	require.Equal(t, "a3.example.com", page.Items[1].Name)

	page, err = domains.List(ctx, orgA, nil, 4, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.EqualValues(t, 5, page.Total)

	page, err = domains.List(ctx, orgA, nil, 10, 2)
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.EqualValues(t, 5, page.Total)
}

func TestTenantStore_ListFilter(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()
	orgID := uuid.Must(uuid.NewV7())

	verified := newDomain("verified.example.com")
	verified.Verified = true
	_, err := domains.Create(ctx, orgID, verified)
	require.NoError(t, err)

	_, err = domains.Create(ctx, orgID, newDomain("pending.example.com"))
	require.NoError(t, err)

	page, err := domains.List(ctx, orgID, store.Filter{"verified": true}, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "verified.example.com", page.Items[0].Name)

	page, err = domains.List(ctx, orgID, store.Filter{"name": "pending.example.com"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	// Unknown columns are rejected rather than silently ignored.
	_, err = domains.List(ctx, orgID, store.Filter{"org_id": uuid.Must(uuid.NewV7())}, 0, 10)
	require.Error(t, err)
}

func TestTenantStore_UpdatePreservesIdentity(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()
	orgID := uuid.Must(uuid.NewV7())

	created, err := domains.Create(ctx, orgID, newDomain("example.com"))
	require.NoError(t, err)

	patch := created
	patch.Name = "renamed.example.com"
	patch.DomainID = uuid.Must(uuid.NewV7())
	patch.OrgID = uuid.Must(uuid.NewV7())

	updated, err := domains.Update(ctx, orgID, created.DomainID, patch)
	require.NoError(t, err)
	require.Equal(t, created.DomainID, updated.DomainID)
	require.Equal(t, orgID, updated.OrgID)
	require.Equal(t, "renamed.example.com", updated.Name)
}

func TestTenantStore_Delete(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()
	orgID := uuid.Must(uuid.NewV7())

	created, err := domains.Create(ctx, orgID, newDomain("example.com"))
	require.NoError(t, err)

	require.NoError(t, domains.Delete(ctx, orgID, created.DomainID))

	_, err = domains.Get(ctx, orgID, created.DomainID)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = domains.Delete(ctx, orgID, created.DomainID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTenantStore_NilScopePanics(t *testing.T) {
	domains := NewDomainStore()
	ctx := context.Background()

	require.Panics(t, func() {
		_, _ = domains.Get(ctx, uuid.Nil, uuid.Must(uuid.NewV7()))
	})
	require.Panics(t, func() {
		_, _ = domains.Create(ctx, uuid.Nil, newDomain("example.com"))
	})
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/store"
)

// TenantStore is an in-memory implementation of store.TenantStore for
// development and testing. Records are held as values, so reads hand out
// copies for free.
//
// fields maps filterable column names to accessors; filter keys outside
// this map are rejected, and tenant columns are never filterable because
// the organization constraint is applied unconditionally.
type TenantStore[T store.TenantEntity[T]] struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]T
	order  []uuid.UUID // creation order, newest listed first
	fields map[string]func(T) any
}

// NewTenantStore creates an in-memory tenant-scoped store. fields may be
// nil when the entity exposes no filterable columns.
func NewTenantStore[T store.TenantEntity[T]](fields map[string]func(T) any) *TenantStore[T] {
	return &TenantStore[T]{
		items:  make(map[uuid.UUID]T),
		fields: fields,
	}
}

// Create persists the entity under orgID with a fresh ID.
func (s *TenantStore[T]) Create(ctx context.Context, orgID uuid.UUID, entity T) (T, error) {
	store.MustScope(orgID)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The tenant is always the resolved scope, whatever the payload said.
	stored := entity.WithTenant(orgID).WithID(uuid.Must(uuid.NewV7()))
	s.items[stored.EntityID()] = stored
	s.order = append(s.order, stored.EntityID())
	return stored, nil
}

// Get retrieves one entity within the organization scope. A record owned by
// another organization reads as absent.
func (s *TenantStore[T]) Get(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (T, error) {
	store.MustScope(orgID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	entity, exists := s.items[id]
	if !exists || entity.TenantID() != orgID {
		return zero, store.ErrNotFound
	}
	return entity, nil
}

// List returns a page of entities within the organization scope, newest
// first. The total is counted under the same scoped filter.
func (s *TenantStore[T]) List(ctx context.Context, orgID uuid.UUID, filter store.Filter, skip, limit int) (*store.Page[T], error) {
	store.MustScope(orgID)
	skip, limit = store.NormalizePage(skip, limit)

	match, err := s.compileFilter(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []T
	for i := len(s.order) - 1; i >= 0; i-- {
		entity := s.items[s.order[i]]
		if entity.TenantID() != orgID {
			continue
		}
		if !match(entity) {
			continue
		}
		matched = append(matched, entity)
	}

	page := &store.Page[T]{
		Items: []T{},
		Total: int64(len(matched)),
		Skip:  skip,
		Limit: limit,
	}
	if skip < len(matched) {
		end := min(skip+limit, len(matched))
		page.Items = append(page.Items, matched[skip:end]...)
	}
	return page, nil
}

// Update rewrites the entity's mutable fields, preserving the stored ID and
// tenant. A record owned by another organization reads as absent.
func (s *TenantStore[T]) Update(ctx context.Context, orgID uuid.UUID, id uuid.UUID, entity T) (T, error) {
	store.MustScope(orgID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	current, exists := s.items[id]
	if !exists || current.TenantID() != orgID {
		return zero, store.ErrNotFound
	}

	stored := entity.WithTenant(orgID).WithID(id)
	s.items[id] = stored
	return stored, nil
}

// Delete removes one entity within the organization scope.
func (s *TenantStore[T]) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	store.MustScope(orgID)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[id]
	if !exists || current.TenantID() != orgID {
		return store.ErrNotFound
	}

	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *TenantStore[T]) compileFilter(filter store.Filter) (func(T) bool, error) {
	if len(filter) == 0 {
		return func(T) bool { return true }, nil
	}

	type clause struct {
		get  func(T) any
		want any
	}
	var clauses []clause
	for column, want := range filter {
		get, ok := s.fields[column]
		if !ok {
			return nil, fmt.Errorf("unknown filter column %q", column)
		}
		clauses = append(clauses, clause{get: get, want: want})
	}

	return func(entity T) bool {
		for _, c := range clauses {
			if c.get(entity) != c.want {
				return false
			}
		}
		return true
	}, nil
}

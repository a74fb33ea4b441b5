package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// OrganizationStore is an in-memory implementation of
// store.OrganizationStore. The membership store is injected so that
// CreateWithOwner can create the founding owner membership in the same
// locked step.
type OrganizationStore struct {
	mu          sync.Mutex
	orgs        map[uuid.UUID]*models.Organization
	bySlug      map[string]uuid.UUID
	memberships *MembershipStore
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore(memberships *MembershipStore) *OrganizationStore {
	return &OrganizationStore{
		orgs:        make(map[uuid.UUID]*models.Organization),
		bySlug:      make(map[string]uuid.UUID),
		memberships: memberships,
	}
}

// CreateWithOwner persists the organization and the owner membership
// atomically. Either both exist afterwards or neither does.
func (s *OrganizationStore) CreateWithOwner(ctx context.Context, org *models.Organization, ownerPrincipalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySlug[org.Slug]; exists {
		return store.ErrSlugAlreadyExists
	}

	now := time.Now()
	membership := &models.Membership{
		PrincipalID: ownerPrincipalID,
		OrgID:       org.OrgID,
		Role:        models.RoleOwner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.memberships.Create(ctx, membership); err != nil {
		return err
	}

	stored := *org
	s.orgs[stored.OrgID] = &stored
	s.bySlug[stored.Slug] = stored.OrgID
	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	stored := *org
	return &stored, nil
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.bySlug[slug]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	stored := *s.orgs[id]
	return &stored, nil
}

// Update rewrites an organization's mutable fields.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.orgs[org.OrgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	if org.Slug != current.Slug {
		if _, taken := s.bySlug[org.Slug]; taken {
			return store.ErrSlugAlreadyExists
		}
		delete(s.bySlug, current.Slug)
		s.bySlug[org.Slug] = org.OrgID
	}

	stored := *org
	stored.UpdatedAt = time.Now()
	s.orgs[stored.OrgID] = &stored
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

type membershipKey struct {
	principalID uuid.UUID
	orgID       uuid.UUID
}

// MembershipStore is an in-memory implementation of store.MembershipStore.
type MembershipStore struct {
	mu          sync.RWMutex
	memberships map[membershipKey]*models.Membership
}

// NewMembershipStore creates a new in-memory membership store.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		memberships: make(map[membershipKey]*models.Membership),
	}
}

// Create adds a membership.
func (s *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{membership.PrincipalID, membership.OrgID}
	if _, exists := s.memberships[key]; exists {
		return store.ErrMembershipExists
	}

	stored := *membership
	s.memberships[key] = &stored
	return nil
}

// Get retrieves the membership for a principal in an organization.
func (s *MembershipStore) Get(ctx context.Context, principalID, orgID uuid.UUID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	membership, exists := s.memberships[membershipKey{principalID, orgID}]
	if !exists {
		return nil, store.ErrMembershipNotFound
	}

	stored := *membership
	return &stored, nil
}

// ListByPrincipal returns a principal's memberships, oldest first.
func (s *MembershipStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Membership
	for key, membership := range s.memberships {
		if key.principalID == principalID {
			stored := *membership
			result = append(result, &stored)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListByOrganization returns all memberships of an organization, oldest first.
func (s *MembershipStore) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Membership
	for key, membership := range s.memberships {
		if key.orgID == orgID {
			stored := *membership
			result = append(result, &stored)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateRole mutates the role on an existing membership.
func (s *MembershipStore) UpdateRole(ctx context.Context, principalID, orgID uuid.UUID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, exists := s.memberships[membershipKey{principalID, orgID}]
	if !exists {
		return store.ErrMembershipNotFound
	}

	if membership.Role == models.RoleOwner && role != models.RoleOwner && s.ownerCountLocked(orgID) == 1 {
		return store.ErrLastOwner
	}

	membership.Role = role
	membership.UpdatedAt = time.Now()
	return nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, principalID, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{principalID, orgID}
	membership, exists := s.memberships[key]
	if !exists {
		return store.ErrMembershipNotFound
	}

	if membership.Role == models.RoleOwner && s.ownerCountLocked(orgID) == 1 {
		return store.ErrLastOwner
	}

	delete(s.memberships, key)
	return nil
}

func (s *MembershipStore) ownerCountLocked(orgID uuid.UUID) int {
	count := 0
	for key, membership := range s.memberships {
		if key.orgID == orgID && membership.Role == models.RoleOwner {
			count++
		}
	}
	return count
}

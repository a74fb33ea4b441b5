package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// PrincipalStore is an in-memory implementation of store.PrincipalStore for
// development and testing.
type PrincipalStore struct {
	mu         sync.RWMutex
	principals map[uuid.UUID]*models.Principal
	byEmail    map[string]uuid.UUID
}

// NewPrincipalStore creates a new in-memory principal store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{
		principals: make(map[uuid.UUID]*models.Principal),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create persists a new principal.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(principal.Email)
	if _, exists := s.byEmail[email]; exists {
		return store.ErrEmailAlreadyExists
	}

	// Store a copy to avoid external modifications
	stored := *principal
	stored.Email = email
	s.principals[stored.PrincipalID] = &stored
	s.byEmail[email] = stored.PrincipalID
	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	stored := *principal
	return &stored, nil
}

// GetByEmail retrieves a principal by email address.
func (s *PrincipalStore) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[normalizeEmail(email)]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	stored := *s.principals[id]
	return &stored, nil
}

// Update rewrites a principal's mutable fields.
func (s *PrincipalStore) Update(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.principals[principal.PrincipalID]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	email := normalizeEmail(principal.Email)
	if email != current.Email {
		if _, taken := s.byEmail[email]; taken {
			return store.ErrEmailAlreadyExists
		}
		delete(s.byEmail, current.Email)
		s.byEmail[email] = principal.PrincipalID
	}

	stored := *principal
	stored.Email = email
	stored.UpdatedAt = time.Now()
	s.principals[stored.PrincipalID] = &stored
	return nil
}

// Deactivate soft-disables a principal.
func (s *PrincipalStore) Deactivate(ctx context.Context, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	principal.Active = false
	principal.UpdatedAt = time.Now()
	return nil
}

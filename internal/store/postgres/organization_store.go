package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// CreateWithOwner creates the organization and the founding owner membership
// in one transaction.
func (s *OrganizationStore) CreateWithOwner(ctx context.Context, org *models.Organization, ownerPrincipalID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (org_id, slug, name, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		org.OrgID,
		org.Slug,
		org.Name,
		org.Plan,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO memberships (principal_id, org_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		ownerPrincipalID,
		org.OrgID,
		models.RoleOwner,
		now,
		now,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit organization creation: %w", err)
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Str("owner", ownerPrincipalID.String()).
		Msg("Created organization with owner membership")

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT org_id, slug, name, plan, created_at, updated_at
		FROM organizations
		WHERE org_id = $1
	`

	return s.scanOne(s.pool.QueryRow(ctx, query, orgID))
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `
		SELECT org_id, slug, name, plan, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`

	return s.scanOne(s.pool.QueryRow(ctx, query, slug))
}

// Update updates an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE organizations SET
			slug = $2,
			name = $3,
			plan = $4,
			updated_at = $5
		WHERE org_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		org.OrgID,
		org.Slug,
		org.Name,
		org.Plan,
		org.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	return nil
}

func (s *OrganizationStore) scanOne(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.OrgID,
		&org.Slug,
		&org.Name,
		&org.Plan,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

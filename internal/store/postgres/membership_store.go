package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
// It shares the connection pool with other stores.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

// Create adds a membership.
func (s *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO memberships (principal_id, org_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		membership.PrincipalID,
		membership.OrgID,
		membership.Role,
		membership.CreatedAt,
		membership.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	return nil
}

// Get retrieves the membership for a principal in an organization.
func (s *MembershipStore) Get(ctx context.Context, principalID, orgID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT principal_id, org_id, role, created_at, updated_at
		FROM memberships
		WHERE principal_id = $1 AND org_id = $2
	`

	var membership models.Membership
	err := s.pool.QueryRow(ctx, query, principalID, orgID).Scan(
		&membership.PrincipalID,
		&membership.OrgID,
		&membership.Role,
		&membership.CreatedAt,
		&membership.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &membership, nil
}

// ListByPrincipal returns a principal's memberships, oldest first.
func (s *MembershipStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT principal_id, org_id, role, created_at, updated_at
		FROM memberships
		WHERE principal_id = $1
		ORDER BY created_at ASC
	`

	return s.list(ctx, query, principalID)
}

// ListByOrganization returns all memberships of an organization, oldest first.
func (s *MembershipStore) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT principal_id, org_id, role, created_at, updated_at
		FROM memberships
		WHERE org_id = $1
		ORDER BY created_at ASC
	`

	return s.list(ctx, query, orgID)
}

// UpdateRole mutates the role on an existing membership. Demoting the last
// owner is rejected inside the same transaction that performs the update.
func (s *MembershipStore) UpdateRole(ctx context.Context, principalID, orgID uuid.UUID, role models.Role) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := s.lockMembership(ctx, tx, principalID, orgID)
	if err != nil {
		return err
	}

	if current.Role == models.RoleOwner && role != models.RoleOwner {
		owners, err := s.ownerCount(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if owners == 1 {
			return store.ErrLastOwner
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE memberships SET role = $3, updated_at = now()
		WHERE principal_id = $1 AND org_id = $2
	`, principalID, orgID, role)
	if err != nil {
		return mapPostgresError(err)
	}

	return tx.Commit(ctx)
}

// Delete removes a membership, refusing to remove the last owner.
func (s *MembershipStore) Delete(ctx context.Context, principalID, orgID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := s.lockMembership(ctx, tx, principalID, orgID)
	if err != nil {
		return err
	}

	if current.Role == models.RoleOwner {
		owners, err := s.ownerCount(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if owners == 1 {
			return store.ErrLastOwner
		}
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM memberships WHERE principal_id = $1 AND org_id = $2`,
		principalID, orgID)
	if err != nil {
		return mapPostgresError(err)
	}

	return tx.Commit(ctx)
}

func (s *MembershipStore) list(ctx context.Context, query string, arg any) ([]*models.Membership, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var membership models.Membership
		err := rows.Scan(
			&membership.PrincipalID,
			&membership.OrgID,
			&membership.Role,
			&membership.CreatedAt,
			&membership.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, &membership)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return memberships, nil
}

func (s *MembershipStore) lockMembership(ctx context.Context, tx pgx.Tx, principalID, orgID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := tx.QueryRow(ctx, `
		SELECT principal_id, org_id, role, created_at, updated_at
		FROM memberships
		WHERE principal_id = $1 AND org_id = $2
		FOR UPDATE
	`, principalID, orgID).Scan(
		&membership.PrincipalID,
		&membership.OrgID,
		&membership.Role,
		&membership.CreatedAt,
		&membership.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to lock membership: %w", err)
	}

	return &membership, nil
}

func (s *MembershipStore) ownerCount(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM memberships WHERE org_id = $1 AND role = $2`,
		orgID, models.RoleOwner,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

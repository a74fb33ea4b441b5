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

// PrincipalStore implements store.PrincipalStore using PostgreSQL.
type PrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPrincipalStore creates a new PostgreSQL-backed principal store.
// It shares the connection pool with other stores.
func NewPrincipalStore(pool *pgxpool.Pool) *PrincipalStore {
	return &PrincipalStore{
		pool: pool,
	}
}

// Create creates a new principal in the database.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	query := `
		INSERT INTO principals (
			principal_id, email, full_name, hashed_password, active, created_at, updated_at
		) VALUES (
			$1, lower($2), $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		principal.PrincipalID,
		principal.Email,
		principal.FullName,
		principal.HashedPassword,
		principal.Active,
		principal.CreatedAt,
		principal.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("principal_id", principal.PrincipalID.String()).
		Msg("Created principal")

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	query := `
		SELECT principal_id, email, full_name, hashed_password, active, created_at, updated_at
		FROM principals
		WHERE principal_id = $1
	`

	return s.scanOne(s.pool.QueryRow(ctx, query, principalID))
}

// GetByEmail retrieves a principal by email address.
func (s *PrincipalStore) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `
		SELECT principal_id, email, full_name, hashed_password, active, created_at, updated_at
		FROM principals
		WHERE email = lower($1)
	`

	return s.scanOne(s.pool.QueryRow(ctx, query, email))
}

// Update updates an existing principal.
func (s *PrincipalStore) Update(ctx context.Context, principal *models.Principal) error {
	principal.UpdatedAt = time.Now()

	query := `
		UPDATE principals SET
			email = lower($2),
			full_name = $3,
			hashed_password = $4,
			active = $5,
			updated_at = $6
		WHERE principal_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		principal.PrincipalID,
		principal.Email,
		principal.FullName,
		principal.HashedPassword,
		principal.Active,
		principal.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}

	return nil
}

// Deactivate soft-disables a principal.
func (s *PrincipalStore) Deactivate(ctx context.Context, principalID uuid.UUID) error {
	query := `UPDATE principals SET active = false, updated_at = now() WHERE principal_id = $1`

	result, err := s.pool.Exec(ctx, query, principalID)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}

	log.Info().
		Str("principal_id", principalID.String()).
		Msg("Deactivated principal")

	return nil
}

func (s *PrincipalStore) scanOne(row pgx.Row) (*models.Principal, error) {
	var principal models.Principal
	err := row.Scan(
		&principal.PrincipalID,
		&principal.Email,
		&principal.FullName,
		&principal.HashedPassword,
		&principal.Active,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	return &principal, nil
}

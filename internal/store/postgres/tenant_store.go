package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/inopsio/platform/internal/store"
)

// TableSpec describes how one tenant-owned entity maps onto a table. It is
// the single per-entity composition point for the generic store: identifiers
// come from this trusted spec, never from request input, so building SQL
// from them is safe.
type TableSpec[T store.TenantEntity[T]] struct {
	// Table is the table name.
	Table string

	// IDColumn and TenantColumn are the primary key and organization
	// columns.
	IDColumn     string
	TenantColumn string

	// Columns are the remaining data columns, in the order Values and
	// Scan handle them.
	Columns []string

	// Values extracts the data column values from an entity, matching
	// Columns order.
	Values func(T) []any

	// Scan reads one row in the order: id, tenant, then Columns.
	Scan func(row pgx.Row) (T, error)

	// Filterable lists the columns List filters may reference. The ID and
	// tenant columns are deliberately absent: the tenant constraint is
	// applied unconditionally and cannot be restated or replaced.
	Filterable map[string]bool
}

func (spec *TableSpec[T]) validate() error {
	if spec.Table == "" || spec.IDColumn == "" || spec.TenantColumn == "" {
		return fmt.Errorf("table spec requires table, id column and tenant column")
	}
	if spec.Values == nil || spec.Scan == nil {
		return fmt.Errorf("table spec requires Values and Scan")
	}
	return nil
}

// TenantStore implements store.TenantStore on PostgreSQL for any entity
// described by a TableSpec. The organization constraint is ANDed into every
// statement; there is no code path that queries the table without it.
type TenantStore[T store.TenantEntity[T]] struct {
	pool *pgxpool.Pool
	spec TableSpec[T]

	selectCols string
}

// NewTenantStore creates a PostgreSQL-backed tenant-scoped store for the
// entity described by spec.
func NewTenantStore[T store.TenantEntity[T]](pool *pgxpool.Pool, spec TableSpec[T]) (*TenantStore[T], error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	cols := append([]string{spec.IDColumn, spec.TenantColumn}, spec.Columns...)
	return &TenantStore[T]{
		pool:       pool,
		spec:       spec,
		selectCols: strings.Join(cols, ", "),
	}, nil
}

// Create persists the entity under orgID with a fresh ID, overwriting any
// tenant value already present on the payload.
func (s *TenantStore[T]) Create(ctx context.Context, orgID uuid.UUID, entity T) (T, error) {
	store.MustScope(orgID)

	stored := entity.WithTenant(orgID).WithID(uuid.Must(uuid.NewV7()))

	placeholders := make([]string, 0, len(s.spec.Columns)+2)
	args := make([]any, 0, len(s.spec.Columns)+2)
	args = append(args, stored.EntityID(), orgID)
	args = append(args, s.spec.Values(stored)...)
	for i := range args {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.spec.Table, s.selectCols, strings.Join(placeholders, ", "),
	)

	var zero T
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return zero, mapPostgresError(err)
	}

	return stored, nil
}

// Get retrieves one entity within the organization scope. A row owned by
// another organization reads as absent.
func (s *TenantStore[T]) Get(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (T, error) {
	store.MustScope(orgID)

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND %s = $2",
		s.selectCols, s.spec.Table, s.spec.TenantColumn, s.spec.IDColumn,
	)

	entity, err := s.spec.Scan(s.pool.QueryRow(ctx, query, orgID, id))
	if err != nil {
		var zero T
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, store.ErrNotFound
		}
		return zero, fmt.Errorf("failed to get %s: %w", s.spec.Table, err)
	}

	return entity, nil
}

// List returns a page of entities within the organization scope, newest
// first. Caller filters compose with the tenant constraint; they can never
// replace it.
func (s *TenantStore[T]) List(ctx context.Context, orgID uuid.UUID, filter store.Filter, skip, limit int) (*store.Page[T], error) {
	store.MustScope(orgID)
	skip, limit = store.NormalizePage(skip, limit)

	where := []string{fmt.Sprintf("%s = $1", s.spec.TenantColumn)}
	args := []any{orgID}
	for column, value := range filter {
		if !s.spec.Filterable[column] {
			return nil, fmt.Errorf("unknown filter column %q", column)
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", s.spec.Table, whereClause)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", s.spec.Table, err)
	}

	// UUIDv7 primary keys sort by creation time.
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY %s DESC OFFSET $%d LIMIT $%d",
		s.selectCols, s.spec.Table, whereClause, s.spec.IDColumn, len(args)+1, len(args)+2,
	)
	args = append(args, skip, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.spec.Table, err)
	}
	defer rows.Close()

	page := &store.Page[T]{
		Items: []T{},
		Total: total,
		Skip:  skip,
		Limit: limit,
	}
	for rows.Next() {
		entity, err := s.spec.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.spec.Table, err)
		}
		page.Items = append(page.Items, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", s.spec.Table, err)
	}

	return page, nil
}

// Update rewrites the entity's data columns within the organization scope.
// The ID and tenant columns are never part of the SET clause.
func (s *TenantStore[T]) Update(ctx context.Context, orgID uuid.UUID, id uuid.UUID, entity T) (T, error) {
	store.MustScope(orgID)

	stored := entity.WithTenant(orgID).WithID(id)

	assignments := make([]string, 0, len(s.spec.Columns))
	args := []any{orgID, id}
	for i, column := range s.spec.Columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+3))
	}
	args = append(args, s.spec.Values(stored)...)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $1 AND %s = $2",
		s.spec.Table, strings.Join(assignments, ", "), s.spec.TenantColumn, s.spec.IDColumn,
	)

	var zero T
	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return zero, mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return zero, store.ErrNotFound
	}

	return stored, nil
}

// Delete removes one entity within the organization scope.
func (s *TenantStore[T]) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	store.MustScope(orgID)

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = $1 AND %s = $2",
		s.spec.Table, s.spec.TenantColumn, s.spec.IDColumn,
	)

	result, err := s.pool.Exec(ctx, query, orgID, id)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// NewDomainStore creates the tenant-scoped store for domains.
func NewDomainStore(pool *pgxpool.Pool) (*TenantStore[models.Domain], error) {
	return NewTenantStore(pool, TableSpec[models.Domain]{
		Table:        "domains",
		IDColumn:     "domain_id",
		TenantColumn: "org_id",
		Columns:      []string{"name", "verified", "created_at", "updated_at"},
		Values: func(d models.Domain) []any {
			return []any{d.Name, d.Verified, d.CreatedAt, d.UpdatedAt}
		},
		Scan: func(row pgx.Row) (models.Domain, error) {
			var d models.Domain
			err := row.Scan(&d.DomainID, &d.OrgID, &d.Name, &d.Verified, &d.CreatedAt, &d.UpdatedAt)
			return d, err
		},
		Filterable: map[string]bool{
			"name":     true,
			"verified": true,
		},
	})
}

var _ store.TenantStore[models.Domain] = (*TenantStore[models.Domain])(nil)

package memory

import (
	"github.com/inopsio/platform/internal/models"
	"github.com/inopsio/platform/internal/store"
)

// NewDomainStore creates the in-memory tenant-scoped store for domains,
// matching the filterable columns of the PostgreSQL table.
func NewDomainStore() *TenantStore[models.Domain] {
	return NewTenantStore(map[string]func(models.Domain) any{
		"name":     func(d models.Domain) any { return d.Name },
		"verified": func(d models.Domain) any { return d.Verified },
	})
}

var _ store.TenantStore[models.Domain] = (*TenantStore[models.Domain])(nil)

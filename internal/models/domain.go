package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain is a tenant-owned resource (a customer-managed DNS domain). It is
// the first entity built on the generic tenant-scoped store; further
// tenant-owned entities follow the same shape.
type Domain struct {
	DomainID  uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"organizationId"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityID implements store.TenantEntity.
func (d Domain) EntityID() uuid.UUID { return d.DomainID }

// TenantID implements store.TenantEntity.
func (d Domain) TenantID() uuid.UUID { return d.OrgID }

// WithID implements store.TenantEntity.
func (d Domain) WithID(id uuid.UUID) Domain {
	d.DomainID = id
	return d
}

// WithTenant implements store.TenantEntity.
func (d Domain) WithTenant(orgID uuid.UUID) Domain {
	d.OrgID = orgID
	return d
}

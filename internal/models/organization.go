package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant, the unit of data isolation.
// Every tenant-owned record carries exactly one OrgID.
type Organization struct {
	OrgID     uuid.UUID // UUIDv7
	Slug      string    // unique, URL-safe
	Name      string
	Plan      string // e.g. "free", "team", "enterprise"
	CreatedAt time.Time
	UpdatedAt time.Time
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of membership roles. Capabilities attached to each
// role live in the auth package's static table.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Membership grants a Principal a Role within an Organization.
// A principal holds at most one membership per organization; role changes
// mutate the existing record rather than creating a new one.
type Membership struct {
	PrincipalID uuid.UUID
	OrgID       uuid.UUID
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

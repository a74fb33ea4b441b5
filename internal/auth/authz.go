package auth

import (
	"slices"

	"github.com/inopsio/platform/internal/apperrors"
	"github.com/inopsio/platform/internal/models"
)

// Capability represents an authorized action
type Capability string

const (
	CapOrgManage     Capability = "org:manage"
	CapMembersInvite Capability = "members:invite"
	CapMembersManage Capability = "members:manage"
	CapDomainsRead   Capability = "domains:read"
	CapDomainsCreate Capability = "domains:create"
	CapDomainsUpdate Capability = "domains:update"
	CapDomainsDelete Capability = "domains:delete"
)

// RoleCapabilities is the single static role -> capability table; every
// authorization decision goes through it. A role absent from the table, or
// a capability absent from a role's set, means denied.
var RoleCapabilities = map[models.Role][]Capability{
	models.RoleOwner: {
		CapOrgManage,
		CapMembersInvite,
		CapMembersManage,
		CapDomainsRead,
		CapDomainsCreate,
		CapDomainsUpdate,
		CapDomainsDelete,
	},
	models.RoleAdmin: {
		CapMembersInvite,
		CapMembersManage,
		CapDomainsRead,
		CapDomainsCreate,
		CapDomainsUpdate,
		CapDomainsDelete,
	},
	models.RoleMember: {
		CapDomainsRead,
		CapDomainsCreate,
		CapDomainsUpdate,
	},
}

// HasCapability checks if a role has a specific capability
func HasCapability(role models.Role, capability Capability) bool {
	capabilities, ok := RoleCapabilities[role]
	if !ok {
		return false
	}
	return slices.Contains(capabilities, capability)
}

// RequireCapability checks authorization and returns an Unauthorized error
// carrying the missing capability if the role lacks it.
func RequireCapability(role models.Role, capability Capability) error {
	if !HasCapability(role, capability) {
		return apperrors.Unauthorized(string(capability))
	}
	return nil
}

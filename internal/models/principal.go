package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal represents an authenticated identity (a user).
// Principals are never hard-deleted; deactivation flips Active to false so
// memberships and audit history stay intact.
type Principal struct {
	PrincipalID uuid.UUID // UUIDv7
	Email       string    // unique across the system
	FullName    string    // optional display name

	// HashedPassword is the bcrypt hash of the login secret. It never
	// leaves the store/auth layers.
	HashedPassword string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

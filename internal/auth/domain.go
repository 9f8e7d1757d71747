package auth

import (
	"fmt"
	"time"

	"github.com/castellan/castellan/internal/platform/httpx"
)

// Role is a coarse-grained authorization level attached to a user.
type Role string

const (
	RoleUser       Role = "ROLE_USER"
	RoleAdmin      Role = "ROLE_ADMIN"
	RoleSuperAdmin Role = "ROLE_SUPER_ADMIN"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, raw)
}

// Status describes the account lifecycle state.
type Status string

const (
	StatusNew     Status = "new"
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// ParseStatus validates a raw status string against the closed set.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusNew, StatusActive, StatusBlocked:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, raw)
}

// User is an account record. Roles is never empty for a persisted user;
// Token holds the serialized flow token while a confirmation or reset is
// pending and is nil otherwise.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Roles        []Role
	Status       Status
	Token        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrimaryRole returns the first role in the sequence, which drives
// admin-context gating.
func (u *User) PrimaryRole() Role {
	if len(u.Roles) == 0 {
		return RoleUser
	}
	return u.Roles[0]
}

// IsAdmin reports whether the primary role grants admin access.
func (u *User) IsAdmin() bool {
	switch u.PrimaryRole() {
	case RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

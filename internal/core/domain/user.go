package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	// RoleUnknown is reported when a user's role association cannot be resolved.
	RoleUnknown = "UNKNOWN"
)

// Roles is the fixed role vocabulary, in seed order.
var Roles = []string{RoleAdmin, RoleUser}

// RoleStatus marks whether a role can be assigned.
type RoleStatus int

const (
	RoleInactive RoleStatus = 0
	RoleActive   RoleStatus = 1
)

// Role is a named permission level referenced by users.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      RoleStatus `json:"status"`
}

// User models a registered account. Role is nil when the association was not
// loaded or points to a missing row.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RoleID       int64     `json:"role_id"`
	Role         *Role     `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser carries the fields needed to create a user. Password is plaintext
// and must be hashed by the store before it is written.
type NewUser struct {
	Username string
	Email    string
	Password string
	RoleID   int64
}

// ResolvedIdentity is the password-free view of a user plus derived role flags.
type ResolvedIdentity struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RoleID    int64     `json:"role_id"`
	RoleName  string    `json:"roleName"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasRole reports whether the identity's role name is one of roles.
func (i *ResolvedIdentity) HasRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.RoleName == r {
			return true
		}
	}
	return false
}

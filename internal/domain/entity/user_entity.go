package entity

import (
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User is the aggregate root for the identity domain.
// Passwords are stored as bcrypt hashes in Password field.
type User struct {
	ID         string
	Email      string
	Password   string
	Name       string
	Phone      string
	AvatarURL  string
	IsVerified bool
	Roles      []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole is the role stored in the session: admin wins over customer.
func (u *User) PrimaryRole() string {
	if u.HasRole(RoleAdmin) {
		return RoleAdmin
	}
	return RoleCustomer
}

// UserFilter drives the admin user listing.
type UserFilter struct {
	Search string
	Role   string
	ListQuery
}

// AuditLog is one row in audit_logs.
type AuditLog struct {
	UserID    string
	Email     string
	Action    string
	IP        string
	UserAgent string
	Metadata  map[string]any
}

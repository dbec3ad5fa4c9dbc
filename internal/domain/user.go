package domain

import "strings"

// Role is a user's permission level.
type Role string

const (
	// RoleAdmin can manage the catalog and every loan.
	RoleAdmin Role = "admin"
	// RoleMember can borrow books and manage their own loans.
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is a registered account.
type User struct {
	Record
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// IsAdmin reports whether the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

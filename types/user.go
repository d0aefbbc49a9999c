package types

import "time"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the unique login address of the user.
	Email string `json:"email" db:"email"`

	// RoleID references the user's single role. It is nil only while
	// an account is being migrated between roles.
	RoleID *int `json:"role_id" db:"role_id"`

	// RoleName is the name of the referenced role, joined on read.
	RoleName string `json:"role" db:"-"`

	// RoleDisplayName is the label of the referenced role, joined on read.
	RoleDisplayName string `json:"role_display_name,omitempty" db:"-"`

	Organization string `json:"organization" db:"organization"`
	Position     string `json:"position" db:"position"`
	Phone        string `json:"phone" db:"phone"`
	Address      string `json:"address" db:"address"`

	// IsActive is false for deactivated accounts, which cannot log in.
	IsActive bool `json:"is_active" db:"is_active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdminTier reports whether the user holds an administrative role.
func (u User) IsAdminTier() bool {
	return IsAdminTierRole(u.RoleName)
}

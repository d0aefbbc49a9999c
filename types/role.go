package types

import "time"

// Built-in role names.
const (
	RoleGovernor       = "governor"
	RoleSuperAdmin     = "super_admin"
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
)

// Role is a named, ranked bundle of permissions assigned to users.
type Role struct {
	// ID is the unique identifier of the role.
	ID int `json:"id" db:"id"`

	// Name is the unique machine name of the role.
	Name string `json:"name" db:"name"`

	// DisplayName is the human readable label.
	DisplayName string `json:"display_name" db:"display_name"`

	// Description explains the purpose of the role.
	Description string `json:"description" db:"description"`

	// Level orders roles by privilege; higher means more privileged.
	Level int `json:"level" db:"level"`

	// IsActive reports whether the role can be assigned.
	IsActive bool `json:"is_active" db:"is_active"`

	// Permissions is the set of permissions held by the role.
	// It is populated by detail queries only.
	Permissions []Permission `json:"permissions,omitempty" db:"-"`

	// UsersCount is the number of users assigned to the role.
	UsersCount int `json:"users_count" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsSystemRole reports whether the role is protected from edits and
// deactivation.
func (r Role) IsSystemRole() bool {
	return r.Name == RoleGovernor || r.Name == RoleSuperAdmin
}

// IsUndeletable reports whether the role is protected from deletion.
func (r Role) IsUndeletable() bool {
	return r.IsSystemRole() || r.Name == RoleAdmin
}

// IsAdminTierRole reports whether name belongs to the administrative tier.
func IsAdminTierRole(name string) bool {
	switch name {
	case RoleGovernor, RoleSuperAdmin, RoleAdmin:
		return true
	}
	return false
}

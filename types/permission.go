package types

import "time"

// Permission is an atomic named capability such as "manage_projects".
type Permission struct {
	// ID is the unique identifier of the permission.
	ID int `json:"id" db:"id"`

	// Name is the unique machine name checked by the authorization layer.
	Name string `json:"name" db:"name"`

	// DisplayName is the human readable label.
	DisplayName string `json:"display_name" db:"display_name"`

	// Description explains what the permission grants.
	Description string `json:"description" db:"description"`

	// Category is a free-text grouping used for display and filtering
	// (e.g., "projects", "updates", "users").
	Category string `json:"category" db:"category"`

	// IsActive reports whether the permission is honored. Inactive
	// permissions grant nothing even when attached to a role.
	IsActive bool `json:"is_active" db:"is_active"`

	// RolesCount is the number of roles holding the permission.
	// It is only populated by list queries.
	RolesCount int `json:"roles_count" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Permission names checked by the API.
const (
	PermViewDashboard  = "view_dashboard"
	PermViewProjects   = "view_projects"
	PermCreateProjects = "create_projects"
	PermEditProjects   = "edit_projects"
	PermDeleteProjects = "delete_projects"
	PermManageProjects = "manage_projects"
	PermViewUpdates    = "view_updates"
	PermCreateUpdates  = "create_updates"
)

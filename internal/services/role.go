package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
)

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	List(ctx context.Context, q types.ListQuery) ([]types.Role, int, error)
	ListActive(ctx context.Context) ([]types.Role, error)
	Get(ctx context.Context, id int) (types.Role, error)
	// Create and Update replace the permission set in the same transaction
	// when permissionIDs is non-nil.
	Create(ctx context.Context, role types.Role, permissionIDs *[]int) (types.Role, error)
	Update(ctx context.Context, role types.Role, permissionIDs *[]int) (types.Role, error)
	SetActive(ctx context.Context, id int, active bool) error
	Delete(ctx context.Context, id int) error
	AssignPermission(ctx context.Context, roleID, permissionID int) error
	RevokePermission(ctx context.Context, roleID, permissionID int) error
	SyncPermissions(ctx context.Context, roleID int, permissionIDs []int) error
}

// RoleInput is the writable shape of a role. A nil Permissions leaves the
// role's permission set untouched; a non-nil one replaces it.
type RoleInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Level       *int   `json:"level"`
	IsActive    *bool  `json:"is_active"`
	Permissions *[]int `json:"permissions"`
}

// RoleService encapsulates role administration.
type RoleService struct {
	roles       RoleRepository
	permissions PermissionRepository
	authz       *Authorizer
}

func NewRoleService(roles RoleRepository, permissions PermissionRepository, authz *Authorizer) *RoleService {
	return &RoleService{roles: roles, permissions: permissions, authz: authz}
}

func (s *RoleService) List(ctx context.Context, q types.ListQuery) ([]types.Role, int, error) {
	return s.roles.List(ctx, q)
}

func (s *RoleService) ListActive(ctx context.Context) ([]types.Role, error) {
	return s.roles.ListActive(ctx)
}

func (s *RoleService) Get(ctx context.Context, id int) (types.Role, error) {
	return s.roles.Get(ctx, id)
}

func (s *RoleService) Create(ctx context.Context, in RoleInput) (types.Role, error) {
	if err := s.validate(ctx, in); err != nil {
		return types.Role{}, err
	}

	role, err := s.roles.Create(ctx, types.Role{
		Name:        strings.TrimSpace(in.Name),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: in.Description,
		Level:       *in.Level,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}, permissionSet(in.Permissions))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Role{}, fieldError("name", "The name has already been taken.")
		}
		return types.Role{}, err
	}
	if in.Permissions != nil {
		s.authz.Purge()
	}
	return s.roles.Get(ctx, role.ID)
}

func (s *RoleService) Update(ctx context.Context, id int, in RoleInput) (types.Role, error) {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	if role.IsSystemRole() {
		return types.Role{}, ruleError(ErrSystemRole, "System roles cannot be modified")
	}
	if err := s.validate(ctx, in); err != nil {
		return types.Role{}, err
	}

	role.Name = strings.TrimSpace(in.Name)
	role.DisplayName = strings.TrimSpace(in.DisplayName)
	role.Description = in.Description
	role.Level = *in.Level
	role.IsActive = in.IsActive == nil || *in.IsActive
	if _, err := s.roles.Update(ctx, role, permissionSet(in.Permissions)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Role{}, fieldError("name", "The name has already been taken.")
		}
		return types.Role{}, err
	}
	s.authz.Purge()
	return s.roles.Get(ctx, id)
}

func (s *RoleService) validate(ctx context.Context, in RoleInput) error {
	v := NewValidationError()
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		v.Add("name", "The name field is required.")
	case len(name) > 255:
		v.Add("name", "The name may not be greater than 255 characters.")
	}
	displayName := strings.TrimSpace(in.DisplayName)
	switch {
	case displayName == "":
		v.Add("display_name", "The display name field is required.")
	case len(displayName) > 255:
		v.Add("display_name", "The display name may not be greater than 255 characters.")
	}
	switch {
	case in.Level == nil:
		v.Add("level", "The level field is required.")
	case *in.Level < 0 || *in.Level > 100:
		v.Add("level", "The level must be between 0 and 100.")
	}
	if in.Permissions != nil {
		if err := s.checkPermissionIDs(ctx, *in.Permissions, "permissions", v); err != nil {
			return err
		}
	}
	return v.OrNil()
}

// checkPermissionIDs records a field error for every id that does not exist.
func (s *RoleService) checkPermissionIDs(ctx context.Context, ids []int, field string, v *ValidationError) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.permissions.ExistingIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for i, id := range ids {
		if _, ok := known[id]; !ok {
			v.Add(fmt.Sprintf("%s.%d", field, i), "The selected permission is invalid.")
		}
	}
	return nil
}

func (s *RoleService) Delete(ctx context.Context, id int) error {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.IsUndeletable() {
		return ruleError(ErrSystemRole, "System roles cannot be deleted")
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			return ruleError(ErrRoleInUse, "Cannot delete role that has assigned users")
		}
		return err
	}
	s.authz.Purge()
	return nil
}

// ToggleStatus flips is_active. Governor and super admin can be re-activated
// but never deactivated.
func (s *RoleService) ToggleStatus(ctx context.Context, id int) (types.Role, error) {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	if role.IsSystemRole() && role.IsActive {
		return types.Role{}, ruleError(ErrSystemRole, "System roles cannot be deactivated")
	}
	if err := s.roles.SetActive(ctx, id, !role.IsActive); err != nil {
		return types.Role{}, err
	}
	role.IsActive = !role.IsActive
	return role, nil
}

func (s *RoleService) AssignPermission(ctx context.Context, roleID, permissionID int) error {
	if err := s.requirePermissionID(ctx, roleID, permissionID); err != nil {
		return err
	}
	if err := s.roles.AssignPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.authz.Purge()
	return nil
}

func (s *RoleService) RevokePermission(ctx context.Context, roleID, permissionID int) error {
	if err := s.requirePermissionID(ctx, roleID, permissionID); err != nil {
		return err
	}
	if err := s.roles.RevokePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.authz.Purge()
	return nil
}

func (s *RoleService) SyncPermissions(ctx context.Context, roleID int, permissionIDs []int) error {
	if _, err := s.roles.Get(ctx, roleID); err != nil {
		return err
	}
	v := NewValidationError()
	if err := s.checkPermissionIDs(ctx, permissionIDs, "permissions", v); err != nil {
		return err
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if err := s.roles.SyncPermissions(ctx, roleID, dedupe(permissionIDs)); err != nil {
		return err
	}
	s.authz.Purge()
	return nil
}

func (s *RoleService) requirePermissionID(ctx context.Context, roleID, permissionID int) error {
	if _, err := s.roles.Get(ctx, roleID); err != nil {
		return err
	}
	if permissionID <= 0 {
		return fieldError("permission_id", "The permission id field is required.")
	}
	v := NewValidationError()
	if err := s.checkPermissionIDs(ctx, []int{permissionID}, "permission_id", v); err != nil {
		return err
	}
	if len(v.Fields) > 0 {
		return fieldError("permission_id", "The selected permission id is invalid.")
	}
	return nil
}

// permissionSet dedupes ids, keeping nil as "leave unchanged".
func permissionSet(ids *[]int) *[]int {
	if ids == nil {
		return nil
	}
	set := dedupe(*ids)
	return &set
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

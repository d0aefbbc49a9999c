package services

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nsmonitor/apiserver/types"
)

// RolePermissionLoader returns the names of the active permissions granted
// to a role.
type RolePermissionLoader interface {
	PermissionNames(ctx context.Context, roleID int) ([]string, error)
}

// Authorizer answers permission and role questions for an explicit user.
// Role permission sets are cached; every mutation of role permissions or
// permission state must call Purge.
type Authorizer struct {
	loader RolePermissionLoader
	cache  *expirable.LRU[int, map[string]struct{}]
}

func NewAuthorizer(loader RolePermissionLoader, size int, ttl time.Duration) *Authorizer {
	if size <= 0 {
		size = 64
	}
	return &Authorizer{
		loader: loader,
		cache:  expirable.NewLRU[int, map[string]struct{}](size, nil, ttl),
	}
}

// Purge drops every cached permission set.
func (a *Authorizer) Purge() {
	a.cache.Purge()
}

func (a *Authorizer) permissions(ctx context.Context, user types.User) (map[string]struct{}, error) {
	if user.RoleID == nil {
		return nil, nil
	}
	roleID := *user.RoleID
	if set, ok := a.cache.Get(roleID); ok {
		return set, nil
	}

	names, err := a.loader.PermissionNames(ctx, roleID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	a.cache.Add(roleID, set)
	return set, nil
}

// HasPermission reports whether the user's role holds the active permission.
// A user without a role holds nothing.
func (a *Authorizer) HasPermission(ctx context.Context, user types.User, name string) (bool, error) {
	set, err := a.permissions(ctx, user)
	if err != nil {
		return false, err
	}
	_, ok := set[name]
	return ok, nil
}

// HasAnyPermission is false for an empty list.
func (a *Authorizer) HasAnyPermission(ctx context.Context, user types.User, names []string) (bool, error) {
	set, err := a.permissions(ctx, user)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if _, ok := set[name]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions is true for an empty list.
func (a *Authorizer) HasAllPermissions(ctx context.Context, user types.User, names []string) (bool, error) {
	set, err := a.permissions(ctx, user)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if _, ok := set[name]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (a *Authorizer) HasRole(user types.User, names ...string) bool {
	if user.RoleName == "" {
		return false
	}
	for _, name := range names {
		if user.RoleName == name {
			return true
		}
	}
	return false
}

func (a *Authorizer) IsAdminTier(user types.User) bool {
	return user.IsAdminTier()
}

package services

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoles struct {
	roles       map[int]types.Role
	grants      map[int][]string
	permissions map[int]string
	inUse       map[int]bool
	inactive    map[string]bool
	syncErr     error
	loads       int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		roles: map[int]types.Role{
			1: {ID: 1, Name: types.RoleGovernor, Level: 100, IsActive: true},
			2: {ID: 2, Name: types.RoleSuperAdmin, Level: 90, IsActive: true},
			3: {ID: 3, Name: types.RoleAdmin, Level: 80, IsActive: true},
			4: {ID: 4, Name: types.RoleProjectManager, Level: 50, IsActive: true},
		},
		grants:      map[int][]string{4: {types.PermViewProjects}},
		permissions: map[int]string{
			11: types.PermViewProjects,
			12: types.PermEditProjects,
			13: types.PermViewDashboard,
			14: "view_reports",
			15: "manage_users",
		},
		inUse:    map[int]bool{},
		inactive: map[string]bool{},
	}
}

func (f *fakeRoles) List(context.Context, types.ListQuery) ([]types.Role, int, error) {
	return nil, 0, nil
}

func (f *fakeRoles) ListActive(context.Context) ([]types.Role, error) { return nil, nil }

func (f *fakeRoles) Get(_ context.Context, id int) (types.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return types.Role{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoles) Create(ctx context.Context, role types.Role, permissionIDs *[]int) (types.Role, error) {
	for _, r := range f.roles {
		if r.Name == role.Name {
			return types.Role{}, store.ErrConflict
		}
	}
	role.ID = len(f.roles) + 1
	if permissionIDs != nil {
		if err := f.SyncPermissions(ctx, role.ID, *permissionIDs); err != nil {
			return types.Role{}, err
		}
	}
	f.roles[role.ID] = role
	return role, nil
}

func (f *fakeRoles) Update(ctx context.Context, role types.Role, permissionIDs *[]int) (types.Role, error) {
	if permissionIDs != nil {
		if err := f.SyncPermissions(ctx, role.ID, *permissionIDs); err != nil {
			return types.Role{}, err
		}
	}
	f.roles[role.ID] = role
	return role, nil
}

func (f *fakeRoles) SetActive(_ context.Context, id int, active bool) error {
	r := f.roles[id]
	r.IsActive = active
	f.roles[id] = r
	return nil
}

func (f *fakeRoles) Delete(_ context.Context, id int) error {
	if f.inUse[id] {
		return store.ErrInUse
	}
	delete(f.roles, id)
	return nil
}

func (f *fakeRoles) AssignPermission(_ context.Context, roleID, permissionID int) error {
	name := f.permissions[permissionID]
	if !slices.Contains(f.grants[roleID], name) {
		f.grants[roleID] = append(f.grants[roleID], name)
	}
	return nil
}

func (f *fakeRoles) RevokePermission(_ context.Context, roleID, permissionID int) error {
	name := f.permissions[permissionID]
	f.grants[roleID] = slices.DeleteFunc(f.grants[roleID], func(n string) bool { return n == name })
	return nil
}

func (f *fakeRoles) SyncPermissions(_ context.Context, roleID int, permissionIDs []int) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	names := make([]string, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		names = append(names, f.permissions[id])
	}
	f.grants[roleID] = names
	return nil
}

func (f *fakeRoles) PermissionNames(_ context.Context, roleID int) ([]string, error) {
	f.loads++
	var names []string
	for _, name := range f.grants[roleID] {
		if !f.inactive[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

// fakePermissionRepo answers ExistingIDs from the permission table of the
// paired fakeRoles.
type fakePermissionRepo struct {
	PermissionRepository
	roles *fakeRoles
}

func (p fakePermissionRepo) ExistingIDs(_ context.Context, ids []int) ([]int, error) {
	var out []int
	for _, id := range ids {
		if _, ok := p.roles.permissions[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (p fakePermissionRepo) Get(_ context.Context, id int) (types.Permission, error) {
	name, ok := p.roles.permissions[id]
	if !ok {
		return types.Permission{}, store.ErrNotFound
	}
	return types.Permission{ID: id, Name: name, IsActive: !p.roles.inactive[name]}, nil
}

func (p fakePermissionRepo) SetActive(_ context.Context, id int, active bool) error {
	p.roles.inactive[p.roles.permissions[id]] = !active
	return nil
}

func newRoleFixture() (*RoleService, *fakeRoles, *Authorizer) {
	roles := newFakeRoles()
	authz := NewAuthorizer(roles, 8, time.Minute)
	return NewRoleService(roles, fakePermissionRepo{roles: roles}, authz), roles, authz
}

func TestSystemRolesAreProtected(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newRoleFixture()
	level := 95

	for _, id := range []int{1, 2} {
		_, err := service.Update(ctx, id, RoleInput{Name: "renamed", DisplayName: "Renamed", Level: &level})
		assertRule(t, err, ErrSystemRole, "System roles cannot be modified")

		_, err = service.ToggleStatus(ctx, id)
		assertRule(t, err, ErrSystemRole, "System roles cannot be deactivated")

		err = service.Delete(ctx, id)
		assertRule(t, err, ErrSystemRole, "System roles cannot be deleted")
	}

	err := service.Delete(ctx, 3)
	assertRule(t, err, ErrSystemRole, "System roles cannot be deleted")

	updated, err := service.Update(ctx, 3, RoleInput{Name: types.RoleAdmin, DisplayName: "Administrator", Level: intPtr(80)})
	require.NoError(t, err)
	assert.Equal(t, "Administrator", updated.DisplayName)
}

func TestInactiveSystemRoleCanBeReactivated(t *testing.T) {
	service, roles, _ := newRoleFixture()
	r := roles.roles[2]
	r.IsActive = false
	roles.roles[2] = r

	toggled, err := service.ToggleStatus(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)
}

func TestRoleDeleteInUse(t *testing.T) {
	service, roles, _ := newRoleFixture()
	roles.inUse[4] = true

	err := service.Delete(context.Background(), 4)
	assertRule(t, err, ErrRoleInUse, "Cannot delete role that has assigned users")
}

func TestRoleValidation(t *testing.T) {
	service, _, _ := newRoleFixture()
	_, err := service.Create(context.Background(), RoleInput{
		Name:        "",
		Level:       intPtr(101),
		Permissions: &[]int{11, 99},
	})

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	for _, field := range []string{"name", "display_name", "level", "permissions.1"} {
		assert.True(t, validation.Has(field), "missing %s in %v", field, validation.Fields)
	}
	assert.False(t, validation.Has("permissions.0"))
}

func TestRolePermissionChangesPurgeAuthorizer(t *testing.T) {
	ctx := context.Background()
	service, roles, authz := newRoleFixture()
	manager := types.User{ID: 5, RoleID: intPtr(4), RoleName: types.RoleProjectManager}

	ok, err := authz.HasPermission(ctx, manager, types.PermEditProjects)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, service.AssignPermission(ctx, 4, 12))
	ok, err = authz.HasPermission(ctx, manager, types.PermEditProjects)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, service.SyncPermissions(ctx, 4, []int{13, 13}))
	ok, err = authz.HasAllPermissions(ctx, manager, []string{types.PermViewProjects})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{types.PermViewDashboard}, roles.grants[4])

	err = service.AssignPermission(ctx, 4, 99)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.True(t, validation.Has("permission_id"))
}

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()
	roles := newFakeRoles()
	authz := NewAuthorizer(roles, 8, time.Minute)
	manager := types.User{ID: 5, RoleID: intPtr(4), RoleName: types.RoleProjectManager}

	t.Run("any and all", func(t *testing.T) {
		ok, _ := authz.HasAnyPermission(ctx, manager, []string{types.PermEditProjects, types.PermViewProjects})
		assert.True(t, ok)
		ok, _ = authz.HasAllPermissions(ctx, manager, []string{types.PermEditProjects, types.PermViewProjects})
		assert.False(t, ok)
	})

	t.Run("empty lists", func(t *testing.T) {
		ok, _ := authz.HasAnyPermission(ctx, manager, nil)
		assert.False(t, ok)
		ok, _ = authz.HasAllPermissions(ctx, manager, nil)
		assert.True(t, ok)
	})

	t.Run("no role holds nothing", func(t *testing.T) {
		ok, err := authz.HasPermission(ctx, types.User{ID: 9}, types.PermViewProjects)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, authz.HasRole(types.User{ID: 9}, types.RoleAdmin))
	})

	t.Run("role sets are cached until purge", func(t *testing.T) {
		before := roles.loads
		_, _ = authz.HasPermission(ctx, manager, types.PermViewProjects)
		_, _ = authz.HasPermission(ctx, manager, types.PermViewProjects)
		assert.Equal(t, before, roles.loads)

		authz.Purge()
		_, _ = authz.HasPermission(ctx, manager, types.PermViewProjects)
		assert.Equal(t, before+1, roles.loads)
	})

	t.Run("roles", func(t *testing.T) {
		assert.True(t, authz.HasRole(manager, types.RoleAdmin, types.RoleProjectManager))
		assert.False(t, authz.IsAdminTier(manager))
		assert.True(t, authz.IsAdminTier(types.User{RoleName: types.RoleGovernor}))
	})
}

func hasPermission(t *testing.T, authz *Authorizer, user types.User, name string) bool {
	t.Helper()
	ok, err := authz.HasPermission(context.Background(), user, name)
	require.NoError(t, err)
	return ok
}

func TestAssignThenRevokeRestoresPermissionSet(t *testing.T) {
	ctx := context.Background()
	service, roles, authz := newRoleFixture()
	manager := types.User{ID: 5, RoleID: intPtr(4)}
	before := slices.Clone(roles.grants[4])

	require.NoError(t, service.AssignPermission(ctx, 4, 12))
	assert.True(t, hasPermission(t, authz, manager, types.PermEditProjects))

	require.NoError(t, service.RevokePermission(ctx, 4, 12))
	assert.False(t, hasPermission(t, authz, manager, types.PermEditProjects))
	assert.Equal(t, before, roles.grants[4])

	require.NoError(t, service.RevokePermission(ctx, 4, 12))
	assert.Equal(t, before, roles.grants[4])
}

func TestSyncPermissionsTwiceIsStable(t *testing.T) {
	ctx := context.Background()
	service, roles, authz := newRoleFixture()
	manager := types.User{ID: 5, RoleID: intPtr(4)}

	require.NoError(t, service.SyncPermissions(ctx, 4, []int{12, 13}))
	first := slices.Clone(roles.grants[4])
	require.NoError(t, service.SyncPermissions(ctx, 4, []int{12, 13}))

	assert.ElementsMatch(t, first, roles.grants[4])
	assert.ElementsMatch(t, []string{types.PermEditProjects, types.PermViewDashboard}, roles.grants[4])
	ok, err := authz.HasAllPermissions(ctx, manager, []string{types.PermEditProjects, types.PermViewDashboard})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, hasPermission(t, authz, manager, types.PermViewProjects))
}

func TestChangingUserRoleChangesPermissions(t *testing.T) {
	ctx := context.Background()
	_, roles, authz := newRoleFixture()
	roles.grants[3] = []string{types.PermViewDashboard}
	users := &fakeUsers{users: map[int]types.User{
		5: {ID: 5, Name: "Pat", Email: "pat@example.gov", RoleID: intPtr(4), RoleName: types.RoleProjectManager, IsActive: true},
	}}
	userService := NewUserService(users, roles)

	assert.True(t, hasPermission(t, authz, users.users[5], types.PermViewProjects))

	moved, err := userService.Update(ctx, 5, UserInput{Name: "Pat", Email: "pat@example.gov", RoleID: intPtr(3)})
	require.NoError(t, err)
	assert.False(t, hasPermission(t, authz, moved, types.PermViewProjects))
	assert.True(t, hasPermission(t, authz, moved, types.PermViewDashboard))
}

func TestDeactivatedPermissionIsNotGranted(t *testing.T) {
	ctx := context.Background()
	roles := newFakeRoles()
	authz := NewAuthorizer(roles, 8, time.Minute)
	permissions := NewPermissionService(fakePermissionRepo{roles: roles}, authz)
	manager := types.User{ID: 5, RoleID: intPtr(4)}

	assert.True(t, hasPermission(t, authz, manager, types.PermViewProjects))

	toggled, err := permissions.ToggleStatus(ctx, 11)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	assert.False(t, hasPermission(t, authz, manager, types.PermViewProjects))

	_, err = permissions.ToggleStatus(ctx, 11)
	require.NoError(t, err)
	assert.True(t, hasPermission(t, authz, manager, types.PermViewProjects))
}

func TestAuditorRole(t *testing.T) {
	ctx := context.Background()
	service, _, authz := newRoleFixture()

	auditor, err := service.Create(ctx, RoleInput{
		Name:        "auditor",
		DisplayName: "Auditor",
		Level:       intPtr(30),
		Permissions: &[]int{14},
	})
	require.NoError(t, err)
	user := types.User{ID: 7, RoleID: intPtr(auditor.ID), RoleName: "auditor"}

	assert.True(t, hasPermission(t, authz, user, "view_reports"))
	assert.False(t, hasPermission(t, authz, user, "manage_users"))
	ok, err := authz.HasAnyPermission(ctx, user, []string{"manage_users", "view_reports"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = authz.HasAllPermissions(ctx, user, []string{"manage_users", "view_reports"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, authz.HasRole(user, "auditor"))
	assert.False(t, authz.IsAdminTier(user))
}

func TestRoleWriteFailsWithPermissionSync(t *testing.T) {
	ctx := context.Background()
	service, roles, _ := newRoleFixture()
	roles.syncErr = errors.New("tx aborted")

	_, err := service.Create(ctx, RoleInput{Name: "auditor", DisplayName: "Auditor", Level: intPtr(30), Permissions: &[]int{14}})
	require.Error(t, err)
	for _, r := range roles.roles {
		assert.NotEqual(t, "auditor", r.Name)
	}

	_, err = service.Update(ctx, 4, RoleInput{Name: "field_manager", DisplayName: "Field Manager", Level: intPtr(50), Permissions: &[]int{12}})
	require.Error(t, err)
	assert.Equal(t, types.RoleProjectManager, roles.roles[4].Name)
	assert.Equal(t, []string{types.PermViewProjects}, roles.grants[4])
}

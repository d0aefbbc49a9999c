package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/nsmonitor/apiserver/types"
)

// RoleRepository handles persistence for roles and their permission sets.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `
	r.id, r.name, r.display_name, r.description, r.level, r.is_active, r.created_at, r.updated_at,
	(SELECT COUNT(1) FROM users u WHERE u.role_id = r.id)`

var roleSorts = map[string]string{
	"name":         "r.name",
	"display_name": "r.display_name",
	"level":        "r.level",
	"created_at":   "r.created_at",
	"updated_at":   "r.updated_at",
}

func scanRole(row rowScanner) (types.Role, error) {
	var role types.Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.Level,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
		&role.UsersCount,
	)
	return role, err
}

func (r *RoleRepository) List(ctx context.Context, q types.ListQuery) ([]types.Role, int, error) {
	offset, limit := normalizePage(q.Offset, q.Limit)

	var conds conditions
	if q.Search != "" {
		pattern := likePattern(q.Search)
		conds.add("(r.name ILIKE ? OR r.display_name ILIKE ? OR r.description ILIKE ?)", pattern, pattern, pattern)
	}
	switch q.Status {
	case "active":
		conds.add("r.is_active = ?", true)
	case "inactive":
		conds.add("r.is_active = ?", false)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM roles r`+conds.where(), conds.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + roleColumns + ` FROM roles r` + conds.where() +
		orderBy(q.SortBy, q.SortOrder, roleSorts, "r.level DESC") +
		` OFFSET ` + conds.placeholder(1) + ` LIMIT ` + conds.placeholder(2)
	rows, err := r.db.QueryContext(ctx, query, append(conds.args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	roles := make([]types.Role, 0, limit)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachPermissions(ctx, roles); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// ListActive returns active roles ordered by level, highest first.
func (r *RoleRepository) ListActive(ctx context.Context) ([]types.Role, error) {
	query := `SELECT` + roleColumns + ` FROM roles r WHERE r.is_active = TRUE ORDER BY r.level DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []types.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Get(ctx context.Context, id int) (types.Role, error) {
	query := `SELECT` + roleColumns + ` FROM roles r WHERE r.id = $1`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}

	roles := []types.Role{role}
	if err := r.attachPermissions(ctx, roles); err != nil {
		return types.Role{}, err
	}
	return roles[0], nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	query := `SELECT` + roleColumns + ` FROM roles r WHERE r.name = $1`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) attachPermissions(ctx context.Context, roles []types.Role) error {
	if len(roles) == 0 {
		return nil
	}
	ids := make([]int, len(roles))
	index := make(map[int]int, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
		index[role.ID] = i
		roles[i].Permissions = []types.Permission{}
	}

	const query = `
		SELECT rp.role_id, p.id, p.name, p.display_name, p.description, p.category, p.is_active, p.created_at, p.updated_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.category, p.display_name`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var roleID int
		var p types.Permission
		if err := rows.Scan(
			&roleID,
			&p.ID,
			&p.Name,
			&p.DisplayName,
			&p.Description,
			&p.Category,
			&p.IsActive,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return err
		}
		i := index[roleID]
		roles[i].Permissions = append(roles[i].Permissions, p)
	}
	return rows.Err()
}

// PermissionNames returns the names of the active permissions held by a
// role.
func (r *RoleRepository) PermissionNames(ctx context.Context, roleID int) ([]string, error) {
	const query = `
		SELECT p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND p.is_active = TRUE`
	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Create inserts role. A non-nil permissionIDs becomes its permission set in
// the same transaction.
func (r *RoleRepository) Create(ctx context.Context, role types.Role, permissionIDs *[]int) (types.Role, error) {
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Role{}, err
	}
	defer rollback(tx)

	const query = `
		INSERT INTO roles (name, display_name, description, level, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		role.Name,
		role.DisplayName,
		role.Description,
		role.Level,
		role.IsActive,
		role.CreatedAt,
		role.UpdatedAt,
	).Scan(&role.ID); err != nil {
		return types.Role{}, translate(err)
	}

	if permissionIDs != nil {
		if err := replacePermissions(ctx, tx, role.ID, *permissionIDs); err != nil {
			return types.Role{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return types.Role{}, err
	}
	return role, nil
}

// Update writes role's columns and, when permissionIDs is non-nil, replaces
// its permission set. Both happen or neither does.
func (r *RoleRepository) Update(ctx context.Context, role types.Role, permissionIDs *[]int) (types.Role, error) {
	role.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Role{}, err
	}
	defer rollback(tx)

	const query = `
		UPDATE roles
		SET name = $1,
			display_name = $2,
			description = $3,
			level = $4,
			is_active = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := tx.ExecContext(
		ctx,
		query,
		role.Name,
		role.DisplayName,
		role.Description,
		role.Level,
		role.IsActive,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return types.Role{}, translate(err)
	}
	if err := checkAffected(result); err != nil {
		return types.Role{}, err
	}

	if permissionIDs != nil {
		if err := replacePermissions(ctx, tx, role.ID, *permissionIDs); err != nil {
			return types.Role{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) SetActive(ctx context.Context, id int, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roles SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a role unless users still hold it, in which case ErrInUse
// is returned. Role permissions go with it through the foreign key.
func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var locked int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var users int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role_id = $1`, id).Scan(&users); err != nil {
		return err
	}
	if users > 0 {
		return ErrInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return translate(err)
	}
	return tx.Commit()
}

// AssignPermission grants a permission to a role. Granting one already held
// is a no-op.
func (r *RoleRepository) AssignPermission(ctx context.Context, roleID, permissionID int) error {
	const query = `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, roleID, permissionID, time.Now()); err != nil {
		return translate(err)
	}
	return nil
}

// RevokePermission removes a permission from a role. Revoking one not held
// is a no-op.
func (r *RoleRepository) RevokePermission(ctx context.Context, roleID, permissionID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	return err
}

// SyncPermissions makes the role's permission set exactly permissionIDs.
func (r *RoleRepository) SyncPermissions(ctx context.Context, roleID int, permissionIDs []int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if err := replacePermissions(ctx, tx, roleID, permissionIDs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE roles SET updated_at = $1 WHERE id = $2`, time.Now(), roleID); err != nil {
		return err
	}
	return tx.Commit()
}

func replacePermissions(ctx context.Context, tx *sql.Tx, roleID int, permissionIDs []int) error {
	ids := pq.Array(permissionIDs)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND NOT (permission_id = ANY($2))`,
		roleID, ids); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}

	const insert = `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		SELECT $1, unnest($2::int[]), $3
		ON CONFLICT (role_id, permission_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, roleID, ids, time.Now()); err != nil {
		return translate(err)
	}
	return nil
}

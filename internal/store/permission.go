package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/nsmonitor/apiserver/types"
)

// PermissionRepository handles persistence for permissions.
type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `
	p.id, p.name, p.display_name, p.description, p.category, p.is_active, p.created_at, p.updated_at,
	(SELECT COUNT(1) FROM role_permissions rp WHERE rp.permission_id = p.id)`

var permissionSorts = map[string]string{
	"name":         "p.name",
	"display_name": "p.display_name",
	"category":     "p.category",
	"created_at":   "p.created_at",
	"updated_at":   "p.updated_at",
}

func scanPermission(row rowScanner) (types.Permission, error) {
	var p types.Permission
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.DisplayName,
		&p.Description,
		&p.Category,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.RolesCount,
	)
	return p, err
}

func (r *PermissionRepository) List(ctx context.Context, q types.ListQuery) ([]types.Permission, int, error) {
	offset, limit := normalizePage(q.Offset, q.Limit)

	var conds conditions
	if q.Search != "" {
		pattern := likePattern(q.Search)
		conds.add("(p.name ILIKE ? OR p.display_name ILIKE ? OR p.description ILIKE ? OR p.category ILIKE ?)",
			pattern, pattern, pattern, pattern)
	}
	if q.Category != "" {
		conds.add("p.category = ?", q.Category)
	}
	switch q.Status {
	case "active":
		conds.add("p.is_active = ?", true)
	case "inactive":
		conds.add("p.is_active = ?", false)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM permissions p`+conds.where(), conds.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + permissionColumns + ` FROM permissions p` + conds.where() +
		orderBy(q.SortBy, q.SortOrder, permissionSorts, "p.category ASC, p.display_name ASC") +
		` OFFSET ` + conds.placeholder(1) + ` LIMIT ` + conds.placeholder(2)
	rows, err := r.db.QueryContext(ctx, query, append(conds.args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	permissions := make([]types.Permission, 0, limit)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, 0, err
		}
		permissions = append(permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return permissions, total, nil
}

// ListActive returns every active permission ordered for grouping by
// category.
func (r *PermissionRepository) ListActive(ctx context.Context) ([]types.Permission, error) {
	query := `SELECT` + permissionColumns + `
		FROM permissions p
		WHERE p.is_active = TRUE
		ORDER BY p.category, p.display_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []types.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (r *PermissionRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM permissions ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *PermissionRepository) Get(ctx context.Context, id int) (types.Permission, error) {
	query := `SELECT` + permissionColumns + ` FROM permissions p WHERE p.id = $1`
	p, err := scanPermission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Permission{}, ErrNotFound
		}
		return types.Permission{}, err
	}
	return p, nil
}

// ExistingIDs returns the subset of ids that exist.
func (r *PermissionRepository) ExistingIDs(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

func (r *PermissionRepository) Create(ctx context.Context, p types.Permission) (types.Permission, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	const query = `
		INSERT INTO permissions (name, display_name, description, category, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		p.Name,
		p.DisplayName,
		p.Description,
		p.Category,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID); err != nil {
		return types.Permission{}, translate(err)
	}
	return p, nil
}

func (r *PermissionRepository) Update(ctx context.Context, p types.Permission) (types.Permission, error) {
	p.UpdatedAt = time.Now()

	const query = `
		UPDATE permissions
		SET name = $1,
			display_name = $2,
			description = $3,
			category = $4,
			is_active = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		p.Name,
		p.DisplayName,
		p.Description,
		p.Category,
		p.IsActive,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return types.Permission{}, translate(err)
	}
	if err := checkAffected(result); err != nil {
		return types.Permission{}, err
	}
	return p, nil
}

func (r *PermissionRepository) SetActive(ctx context.Context, id int, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE permissions SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a permission unless a role still holds it, in which case
// ErrInUse is returned. The check and the delete share one transaction.
func (r *PermissionRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var locked int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM permissions WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var assigned int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM role_permissions WHERE permission_id = $1`, id).Scan(&assigned); err != nil {
		return err
	}
	if assigned > 0 {
		return ErrInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id); err != nil {
		return translate(err)
	}
	return tx.Commit()
}

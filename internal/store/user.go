package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	u.id, u.name, u.email, u.role_id, COALESCE(r.name, ''), COALESCE(r.display_name, ''),
	u.organization, u.position, u.phone, u.address, u.is_active, u.password_hash, u.created_at, u.updated_at`

const userFrom = ` FROM users u LEFT JOIN roles r ON r.id = u.role_id`

var userSorts = map[string]string{
	"name":       "u.name",
	"email":      "u.email",
	"created_at": "u.created_at",
	"updated_at": "u.updated_at",
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.RoleID,
		&user.RoleName,
		&user.RoleDisplayName,
		&user.Organization,
		&user.Position,
		&user.Phone,
		&user.Address,
		&user.IsActive,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepository) List(ctx context.Context, q types.ListQuery) ([]types.User, int, error) {
	offset, limit := normalizePage(q.Offset, q.Limit)

	var conds conditions
	if q.Search != "" {
		pattern := likePattern(q.Search)
		conds.add("(u.name ILIKE ? OR u.email ILIKE ? OR u.organization ILIKE ?)", pattern, pattern, pattern)
	}
	if q.Role != "" {
		conds.add("r.name = ?", q.Role)
	}
	switch q.Status {
	case "active":
		conds.add("u.is_active = ?", true)
	case "inactive":
		conds.add("u.is_active = ?", false)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1)`+userFrom+conds.where(), conds.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + userColumns + userFrom + conds.where() +
		orderBy(q.SortBy, q.SortOrder, userSorts, "u.created_at DESC") +
		` OFFSET ` + conds.placeholder(1) + ` LIMIT ` + conds.placeholder(2)
	rows, err := r.db.QueryContext(ctx, query, append(conds.args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListActiveByRole returns active users holding the named role, by name.
func (r *UserRepository) ListActiveByRole(ctx context.Context, roleName string) ([]types.User, error) {
	query := `SELECT` + userColumns + userFrom + ` WHERE r.name = $1 AND u.is_active = TRUE ORDER BY u.name`
	rows, err := r.db.QueryContext(ctx, query, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT`+userColumns+userFrom+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT`+userColumns+userFrom+` WHERE LOWER(u.email) = LOWER($1)`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// CountByRoleName counts users holding the named role.
func (r *UserRepository) CountByRoleName(ctx context.Context, roleName string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.name = $1`,
		roleName).Scan(&count)
	return count, err
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (name, email, password_hash, role_id, organization, position, phone, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.RoleID,
		user.Organization,
		user.Position,
		user.Phone,
		user.Address,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			password_hash = $3,
			role_id = $4,
			organization = $5,
			position = $6,
			phone = $7,
			address = $8,
			is_active = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.RoleID,
		user.Organization,
		user.Position,
		user.Phone,
		user.Address,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translate(err)
	}
	if err := checkAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	return checkAffected(result)
}

// DeleteRetainingRole deletes a user unless that would leave no user holding
// roleName, in which case ErrLastMember is returned. The role row is locked
// so concurrent deletes cannot both pass the check.
func (r *UserRepository) DeleteRetainingRole(ctx context.Context, id int, roleName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var roleID int
	err = tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1 FOR UPDATE`, roleName).Scan(&roleID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var userRoleID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT role_id FROM users WHERE id = $1`, id).Scan(&userRoleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if roleID != 0 && userRoleID.Valid && int(userRoleID.Int64) == roleID {
		var holders int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role_id = $1`, roleID).Scan(&holders); err != nil {
			return err
		}
		if holders <= 1 {
			return ErrLastMember
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return translate(err)
	}
	return tx.Commit()
}

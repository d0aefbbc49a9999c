package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// ProjectUpdateRepository handles persistence for project updates. Writes
// that carry a progress percentage also move the owning project's progress
// inside the same transaction.
type ProjectUpdateRepository struct {
	db *sql.DB
}

func NewProjectUpdateRepository(db *sql.DB) *ProjectUpdateRepository {
	return &ProjectUpdateRepository{db: db}
}

const updateColumns = `
	pu.id, pu.project_id, pu.created_by, COALESCE(u.name, ''), pu.update_type, pu.title, pu.description,
	pu.status, pu.progress_percentage, pu.details, pu.submitted_at, pu.approved_at, pu.approved_by,
	(SELECT COUNT(1) FROM project_attachments a WHERE a.project_update_id = pu.id),
	pu.created_at, pu.updated_at`

const updateFrom = `
	FROM project_updates pu
	LEFT JOIN users u ON u.id = pu.created_by`

var updateSorts = map[string]string{
	"created_at":   "pu.created_at",
	"updated_at":   "pu.updated_at",
	"title":        "pu.title",
	"status":       "pu.status",
	"submitted_at": "pu.submitted_at",
}

func scanUpdate(row rowScanner) (types.ProjectUpdate, error) {
	var u types.ProjectUpdate
	var detailsJSON []byte
	if err := row.Scan(
		&u.ID,
		&u.ProjectID,
		&u.CreatedBy,
		&u.CreatorName,
		&u.UpdateType,
		&u.Title,
		&u.Description,
		&u.Status,
		&u.ProgressPercentage,
		&detailsJSON,
		&u.SubmittedAt,
		&u.ApprovedAt,
		&u.ApprovedBy,
		&u.AttachmentsCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return types.ProjectUpdate{}, err
	}
	_ = json.Unmarshal(detailsJSON, &u.Details)
	return u, nil
}

func (r *ProjectUpdateRepository) ListByProject(ctx context.Context, projectID int, q types.ListQuery) ([]types.ProjectUpdate, int, error) {
	offset, limit := normalizePage(q.Offset, q.Limit)

	var conds conditions
	conds.add("pu.project_id = ?", projectID)
	if q.Status != "" {
		conds.add("pu.status = ?", q.Status)
	}
	if q.Category != "" {
		conds.add("pu.update_type = ?", q.Category)
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		conds.add("(pu.title ILIKE ? OR pu.description ILIKE ?)", pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM project_updates pu`+conds.where(), conds.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + updateColumns + updateFrom + conds.where() +
		orderBy(q.SortBy, q.SortOrder, updateSorts, "pu.created_at DESC") +
		` OFFSET ` + conds.placeholder(1) + ` LIMIT ` + conds.placeholder(2)
	rows, err := r.db.QueryContext(ctx, query, append(conds.args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	updates := make([]types.ProjectUpdate, 0, limit)
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, 0, err
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return updates, total, nil
}

// Get returns an update scoped to its project.
func (r *ProjectUpdateRepository) Get(ctx context.Context, projectID, id int) (types.ProjectUpdate, error) {
	query := `SELECT` + updateColumns + updateFrom + ` WHERE pu.project_id = $1 AND pu.id = $2`
	u, err := scanUpdate(r.db.QueryRowContext(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ProjectUpdate{}, ErrNotFound
		}
		return types.ProjectUpdate{}, err
	}
	return u, nil
}

// Create inserts the update and, when it carries a progress percentage,
// overwrites the project's progress. Both writes commit or neither does.
func (r *ProjectUpdateRepository) Create(ctx context.Context, u types.ProjectUpdate) (types.ProjectUpdate, error) {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	detailsJSON, err := json.Marshal(u.Details)
	if err != nil {
		return types.ProjectUpdate{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ProjectUpdate{}, err
	}
	defer rollback(tx)

	const query = `
		INSERT INTO project_updates (
			project_id, created_by, update_type, title, description, status, progress_percentage,
			details, submitted_at, approved_at, approved_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		u.ProjectID,
		u.CreatedBy,
		u.UpdateType,
		u.Title,
		u.Description,
		u.Status,
		u.ProgressPercentage,
		detailsJSON,
		u.SubmittedAt,
		u.ApprovedAt,
		u.ApprovedBy,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(&u.ID); err != nil {
		return types.ProjectUpdate{}, translate(err)
	}

	if err := applyProgress(ctx, tx, u.ProjectID, u.ProgressPercentage, now); err != nil {
		return types.ProjectUpdate{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.ProjectUpdate{}, err
	}
	return u, nil
}

// Update rewrites the editable fields of an update and applies its progress
// percentage to the project in the same transaction. Status and approval
// columns are only changed through Transition.
func (r *ProjectUpdateRepository) Update(ctx context.Context, u types.ProjectUpdate) (types.ProjectUpdate, error) {
	now := time.Now()
	u.UpdatedAt = now

	detailsJSON, err := json.Marshal(u.Details)
	if err != nil {
		return types.ProjectUpdate{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ProjectUpdate{}, err
	}
	defer rollback(tx)

	const query = `
		UPDATE project_updates
		SET update_type = $1,
			title = $2,
			description = $3,
			progress_percentage = $4,
			details = $5,
			updated_at = $6
		WHERE id = $7 AND project_id = $8`
	result, err := tx.ExecContext(
		ctx,
		query,
		u.UpdateType,
		u.Title,
		u.Description,
		u.ProgressPercentage,
		detailsJSON,
		u.UpdatedAt,
		u.ID,
		u.ProjectID,
	)
	if err != nil {
		return types.ProjectUpdate{}, err
	}
	if err := checkAffected(result); err != nil {
		return types.ProjectUpdate{}, err
	}

	if err := applyProgress(ctx, tx, u.ProjectID, u.ProgressPercentage, now); err != nil {
		return types.ProjectUpdate{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.ProjectUpdate{}, err
	}
	return u, nil
}

func applyProgress(ctx context.Context, tx *sql.Tx, projectID int, progress *float64, now time.Time) error {
	if progress == nil {
		return nil
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE projects SET progress_percentage = $1, updated_at = $2 WHERE id = $3`,
		*progress, now, projectID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Transition moves an update from one status to another only if it is still
// in the expected status. Submitting stamps submitted_at; approving stamps
// approved_at and approved_by.
func (r *ProjectUpdateRepository) Transition(ctx context.Context, projectID, id int, from, to types.UpdateStatus, actorID int, at time.Time) error {
	const query = `
		UPDATE project_updates
		SET status = $1,
			submitted_at = CASE WHEN $1 = 'pending' THEN $2 ELSE submitted_at END,
			approved_at = CASE WHEN $1 = 'approved' THEN $2 ELSE approved_at END,
			approved_by = CASE WHEN $1 = 'approved' THEN $3 ELSE approved_by END,
			updated_at = $2
		WHERE id = $4 AND project_id = $5 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, to, at, actorID, id, projectID, from)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM project_updates WHERE id = $1 AND project_id = $2)`,
		id, projectID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusChanged
}

func (r *ProjectUpdateRepository) Delete(ctx context.Context, projectID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM project_updates WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

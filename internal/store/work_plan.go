package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// WorkPlanRepository handles persistence for work plan activities.
type WorkPlanRepository struct {
	db *sql.DB
}

func NewWorkPlanRepository(db *sql.DB) *WorkPlanRepository {
	return &WorkPlanRepository{db: db}
}

const activityColumns = `
	id, project_id, activity_number, activity_name, description, planned_start_date, planned_end_date,
	actual_start_date, actual_end_date, status, percentage_complete, responsible_person, priority,
	variance_comments, is_tracked, is_completed, created_at, updated_at`

func scanActivity(row rowScanner) (types.WorkPlanActivity, error) {
	var a types.WorkPlanActivity
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.ActivityNumber,
		&a.ActivityName,
		&a.Description,
		&a.PlannedStartDate,
		&a.PlannedEndDate,
		&a.ActualStartDate,
		&a.ActualEndDate,
		&a.Status,
		&a.PercentageComplete,
		&a.ResponsiblePerson,
		&a.Priority,
		&a.VarianceComments,
		&a.IsTracked,
		&a.IsCompleted,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (r *WorkPlanRepository) ListByProject(ctx context.Context, projectID int) ([]types.WorkPlanActivity, error) {
	query := `SELECT` + activityColumns + ` FROM work_plan_activities WHERE project_id = $1 ORDER BY activity_number, id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []types.WorkPlanActivity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (r *WorkPlanRepository) Get(ctx context.Context, projectID, id int) (types.WorkPlanActivity, error) {
	query := `SELECT` + activityColumns + ` FROM work_plan_activities WHERE project_id = $1 AND id = $2`
	a, err := scanActivity(r.db.QueryRowContext(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.WorkPlanActivity{}, ErrNotFound
		}
		return types.WorkPlanActivity{}, err
	}
	return a, nil
}

// CreateMany inserts a batch of activities in one transaction.
func (r *WorkPlanRepository) CreateMany(ctx context.Context, activities []types.WorkPlanActivity) ([]types.WorkPlanActivity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	const query = `
		INSERT INTO work_plan_activities (
			project_id, activity_number, activity_name, description, planned_start_date, planned_end_date,
			actual_start_date, actual_end_date, status, percentage_complete, responsible_person, priority,
			variance_comments, is_tracked, is_completed, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now()
	created := make([]types.WorkPlanActivity, 0, len(activities))
	for _, a := range activities {
		a.CreatedAt = now
		a.UpdatedAt = now
		if err := stmt.QueryRowContext(
			ctx,
			a.ProjectID,
			a.ActivityNumber,
			a.ActivityName,
			a.Description,
			a.PlannedStartDate,
			a.PlannedEndDate,
			a.ActualStartDate,
			a.ActualEndDate,
			a.Status,
			a.PercentageComplete,
			a.ResponsiblePerson,
			a.Priority,
			a.VarianceComments,
			a.IsTracked,
			a.IsCompleted,
			a.CreatedAt,
			a.UpdatedAt,
		).Scan(&a.ID); err != nil {
			return nil, translate(err)
		}
		created = append(created, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *WorkPlanRepository) Update(ctx context.Context, a types.WorkPlanActivity) (types.WorkPlanActivity, error) {
	a.UpdatedAt = time.Now()

	const query = `
		UPDATE work_plan_activities
		SET activity_number = $1,
			activity_name = $2,
			description = $3,
			planned_start_date = $4,
			planned_end_date = $5,
			actual_start_date = $6,
			actual_end_date = $7,
			status = $8,
			percentage_complete = $9,
			responsible_person = $10,
			priority = $11,
			variance_comments = $12,
			is_tracked = $13,
			is_completed = $14,
			updated_at = $15
		WHERE id = $16 AND project_id = $17`
	result, err := r.db.ExecContext(
		ctx,
		query,
		a.ActivityNumber,
		a.ActivityName,
		a.Description,
		a.PlannedStartDate,
		a.PlannedEndDate,
		a.ActualStartDate,
		a.ActualEndDate,
		a.Status,
		a.PercentageComplete,
		a.ResponsiblePerson,
		a.Priority,
		a.VarianceComments,
		a.IsTracked,
		a.IsCompleted,
		a.UpdatedAt,
		a.ID,
		a.ProjectID,
	)
	if err != nil {
		return types.WorkPlanActivity{}, err
	}
	if err := checkAffected(result); err != nil {
		return types.WorkPlanActivity{}, err
	}
	return a, nil
}

func (r *WorkPlanRepository) Delete(ctx context.Context, projectID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM work_plan_activities WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

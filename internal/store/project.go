package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `
	p.id, p.name, p.id_code, p.project_manager_id, COALESCE(m.name, ''),
	p.implementing_organization, p.project_location, p.sector, p.start_date, p.end_date,
	p.overall_goal, p.description, p.total_budget, p.budget_allocated_current_period,
	p.cumulative_expenditure, p.status, p.progress_percentage,
	p.lga_id, COALESCE(l.name, ''), p.ward_id, COALESCE(w.name, ''),
	p.latitude, p.longitude, p.address, p.location_description,
	p.monitoring_period_start, p.monitoring_period_end, p.monitor_name, p.monitor_title,
	p.data_collection_methods, p.work_plan_presentation, p.created_at, p.updated_at`

const projectFrom = `
	FROM projects p
	LEFT JOIN users m ON m.id = p.project_manager_id
	LEFT JOIN lgas l ON l.id = p.lga_id
	LEFT JOIN wards w ON w.id = p.ward_id`

var projectSorts = map[string]string{
	"created_at":          "p.created_at",
	"updated_at":          "p.updated_at",
	"name":                "p.name",
	"id_code":             "p.id_code",
	"status":              "p.status",
	"progress_percentage": "p.progress_percentage",
	"total_budget":        "p.total_budget",
	"start_date":          "p.start_date",
	"end_date":            "p.end_date",
}

func scanProject(row rowScanner) (types.Project, error) {
	var p types.Project
	var methodsJSON []byte
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.IDCode,
		&p.ProjectManagerID,
		&p.ProjectManagerName,
		&p.ImplementingOrganization,
		&p.ProjectLocation,
		&p.Sector,
		&p.StartDate,
		&p.EndDate,
		&p.OverallGoal,
		&p.Description,
		&p.TotalBudget,
		&p.BudgetAllocatedCurrentPeriod,
		&p.CumulativeExpenditure,
		&p.Status,
		&p.ProgressPercentage,
		&p.LgaID,
		&p.LgaName,
		&p.WardID,
		&p.WardName,
		&p.Latitude,
		&p.Longitude,
		&p.Address,
		&p.LocationDescription,
		&p.MonitoringPeriodStart,
		&p.MonitoringPeriodEnd,
		&p.MonitorName,
		&p.MonitorTitle,
		&methodsJSON,
		&p.WorkPlanPresentation,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return types.Project{}, err
	}
	_ = json.Unmarshal(methodsJSON, &p.DataCollectionMethods)
	if p.DataCollectionMethods == nil {
		p.DataCollectionMethods = []string{}
	}
	return p, nil
}

func projectConditions(q types.ProjectQuery) conditions {
	var conds conditions
	if q.Search != "" {
		pattern := likePattern(q.Search)
		conds.add("(p.name ILIKE ? OR p.id_code ILIKE ?)", pattern, pattern)
	}
	if q.Status != "" {
		conds.add("p.status = ?", q.Status)
	}
	if q.LgaID > 0 {
		conds.add("p.lga_id = ?", q.LgaID)
	}
	if q.WardID > 0 {
		conds.add("p.ward_id = ?", q.WardID)
	}
	return conds
}

func (r *ProjectRepository) List(ctx context.Context, q types.ProjectQuery) ([]types.Project, int, error) {
	offset, limit := normalizePage(q.Offset, q.Limit)
	conds := projectConditions(q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects p`+conds.where(), conds.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + projectColumns + projectFrom + conds.where() +
		orderBy(q.SortBy, q.SortOrder, projectSorts, "p.created_at DESC") +
		` OFFSET ` + conds.placeholder(1) + ` LIMIT ` + conds.placeholder(2)
	rows, err := r.db.QueryContext(ctx, query, append(conds.args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0, limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// Totals returns portfolio-wide counts used as list metadata.
func (r *ProjectRepository) Totals(ctx context.Context, today time.Time) (types.ProjectTotals, error) {
	const query = `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE status = 'in_progress'),
			COUNT(1) FILTER (WHERE status = 'completed'),
			COUNT(1) FILTER (WHERE end_date < $1 AND status <> 'completed')
		FROM projects`
	var totals types.ProjectTotals
	err := r.db.QueryRowContext(ctx, query, types.NewDate(today)).Scan(
		&totals.Total,
		&totals.InProgress,
		&totals.Completed,
		&totals.Overdue,
	)
	return totals, err
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT`+projectColumns+projectFrom+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p types.Project) (types.Project, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	methodsJSON, err := marshalStrings(p.DataCollectionMethods)
	if err != nil {
		return types.Project{}, err
	}

	const query = `
		INSERT INTO projects (
			name, id_code, project_manager_id, implementing_organization, project_location, sector,
			start_date, end_date, overall_goal, description, total_budget, budget_allocated_current_period,
			cumulative_expenditure, status, progress_percentage, lga_id, ward_id, latitude, longitude,
			address, location_description, monitoring_period_start, monitoring_period_end, monitor_name,
			monitor_title, data_collection_methods, work_plan_presentation, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		p.Name,
		p.IDCode,
		p.ProjectManagerID,
		p.ImplementingOrganization,
		p.ProjectLocation,
		p.Sector,
		p.StartDate,
		p.EndDate,
		p.OverallGoal,
		p.Description,
		p.TotalBudget,
		p.BudgetAllocatedCurrentPeriod,
		p.CumulativeExpenditure,
		p.Status,
		p.ProgressPercentage,
		p.LgaID,
		p.WardID,
		p.Latitude,
		p.Longitude,
		p.Address,
		p.LocationDescription,
		p.MonitoringPeriodStart,
		p.MonitoringPeriodEnd,
		p.MonitorName,
		p.MonitorTitle,
		methodsJSON,
		p.WorkPlanPresentation,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID); err != nil {
		return types.Project{}, translate(err)
	}
	return p, nil
}

func (r *ProjectRepository) Update(ctx context.Context, p types.Project) (types.Project, error) {
	p.UpdatedAt = time.Now()

	methodsJSON, err := marshalStrings(p.DataCollectionMethods)
	if err != nil {
		return types.Project{}, err
	}

	const query = `
		UPDATE projects
		SET name = $1,
			id_code = $2,
			project_manager_id = $3,
			implementing_organization = $4,
			project_location = $5,
			sector = $6,
			start_date = $7,
			end_date = $8,
			overall_goal = $9,
			description = $10,
			total_budget = $11,
			budget_allocated_current_period = $12,
			cumulative_expenditure = $13,
			status = $14,
			progress_percentage = $15,
			lga_id = $16,
			ward_id = $17,
			latitude = $18,
			longitude = $19,
			address = $20,
			location_description = $21,
			monitoring_period_start = $22,
			monitoring_period_end = $23,
			monitor_name = $24,
			monitor_title = $25,
			data_collection_methods = $26,
			work_plan_presentation = $27,
			updated_at = $28
		WHERE id = $29`
	result, err := r.db.ExecContext(
		ctx,
		query,
		p.Name,
		p.IDCode,
		p.ProjectManagerID,
		p.ImplementingOrganization,
		p.ProjectLocation,
		p.Sector,
		p.StartDate,
		p.EndDate,
		p.OverallGoal,
		p.Description,
		p.TotalBudget,
		p.BudgetAllocatedCurrentPeriod,
		p.CumulativeExpenditure,
		p.Status,
		p.ProgressPercentage,
		p.LgaID,
		p.WardID,
		p.Latitude,
		p.Longitude,
		p.Address,
		p.LocationDescription,
		p.MonitoringPeriodStart,
		p.MonitoringPeriodEnd,
		p.MonitorName,
		p.MonitorTitle,
		methodsJSON,
		p.WorkPlanPresentation,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return types.Project{}, translate(err)
	}
	if err := checkAffected(result); err != nil {
		return types.Project{}, err
	}
	return p, nil
}

// Delete removes a project. Updates, attachments, activities and indicators
// are removed by the foreign keys; stored files are the caller's concern.
func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

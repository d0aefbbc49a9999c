package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// DashboardRepository runs the aggregate queries behind the dashboard.
type DashboardRepository struct {
	db *sql.DB
}

func NewDashboardRepository(db *sql.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) Overview(ctx context.Context, today time.Time) (types.DashboardOverview, error) {
	const query = `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE status = 'in_progress'),
			COUNT(1) FILTER (WHERE status = 'completed'),
			COUNT(1) FILTER (WHERE end_date < $1 AND status <> 'completed'),
			COALESCE(SUM(total_budget), 0),
			COALESCE(SUM(cumulative_expenditure), 0),
			COALESCE(AVG(progress_percentage), 0)
		FROM projects`
	var o types.DashboardOverview
	err := r.db.QueryRowContext(ctx, query, types.NewDate(today)).Scan(
		&o.TotalProjects,
		&o.ActiveProjects,
		&o.CompletedProjects,
		&o.OverdueProjects,
		&o.TotalBudget,
		&o.TotalExpenditure,
		&o.AverageProgress,
	)
	return o, err
}

// LgaStats returns the LGAs with the most projects.
func (r *DashboardRepository) LgaStats(ctx context.Context, limit int) ([]types.LgaStat, error) {
	const query = `
		SELECT l.id, l.name, l.zone, COUNT(p.id), COALESCE(SUM(p.total_budget), 0), COALESCE(AVG(p.progress_percentage), 0)
		FROM lgas l
		LEFT JOIN projects p ON p.lga_id = l.id
		GROUP BY l.id, l.name, l.zone
		ORDER BY COUNT(p.id) DESC, l.name
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []types.LgaStat{}
	for rows.Next() {
		var s types.LgaStat
		if err := rows.Scan(&s.ID, &s.Name, &s.Zone, &s.ProjectsCount, &s.TotalBudget, &s.AverageProgress); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *DashboardRepository) ZoneStats(ctx context.Context) ([]types.ZoneStat, error) {
	const query = `
		SELECT l.zone, COUNT(p.id), COALESCE(SUM(p.total_budget), 0), COALESCE(AVG(p.progress_percentage), 0)
		FROM lgas l
		LEFT JOIN projects p ON p.lga_id = l.id
		GROUP BY l.zone
		ORDER BY l.zone`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []types.ZoneStat{}
	for rows.Next() {
		var s types.ZoneStat
		if err := rows.Scan(&s.Name, &s.ProjectsCount, &s.TotalBudget, &s.AverageProgress); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// StatusCounts returns project counts keyed by status.
func (r *DashboardRepository) StatusCounts(ctx context.Context) (map[types.ProjectStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM projects GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[types.ProjectStatus]int{}
	for rows.Next() {
		var status types.ProjectStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *DashboardRepository) SectorStats(ctx context.Context) ([]types.SectorStat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sector, COUNT(1) FROM projects GROUP BY sector ORDER BY COUNT(1) DESC, sector`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []types.SectorStat{}
	for rows.Next() {
		var s types.SectorStat
		if err := rows.Scan(&s.Sector, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// RecentActivity returns the most recently updated projects.
func (r *DashboardRepository) RecentActivity(ctx context.Context, limit int) ([]types.RecentActivity, error) {
	const query = `
		SELECT p.id, p.name, p.id_code, p.status, p.progress_percentage, COALESCE(l.name, ''), COALESCE(m.name, ''), p.updated_at
		FROM projects p
		LEFT JOIN lgas l ON l.id = p.lga_id
		LEFT JOIN users m ON m.id = p.project_manager_id
		ORDER BY p.updated_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := []types.RecentActivity{}
	for rows.Next() {
		var a types.RecentActivity
		if err := rows.Scan(&a.ID, &a.Name, &a.IDCode, &a.Status, &a.ProgressPercentage, &a.LgaName, &a.ProjectManager, &a.UpdatedAt); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

// ScheduleCounts returns how many projects are on time (not past their end
// date, or completed) and how many are behind.
func (r *DashboardRepository) ScheduleCounts(ctx context.Context, today time.Time) (onTime, behind int, err error) {
	const query = `
		SELECT
			COUNT(1) FILTER (WHERE end_date >= $1 OR status = 'completed'),
			COUNT(1) FILTER (WHERE end_date < $1 AND status <> 'completed')
		FROM projects`
	err = r.db.QueryRowContext(ctx, query, types.NewDate(today)).Scan(&onTime, &behind)
	return onTime, behind, err
}

// AlertCounts returns the low-progress and high-budget-utilization counts.
func (r *DashboardRepository) AlertCounts(ctx context.Context) (lowProgress, highBudget int, err error) {
	const query = `
		SELECT
			COUNT(1) FILTER (WHERE progress_percentage < 25 AND status = 'in_progress'),
			COUNT(1) FILTER (WHERE total_budget > 0 AND cumulative_expenditure / total_budget * 100 > 90 AND status <> 'completed')
		FROM projects`
	err = r.db.QueryRowContext(ctx, query).Scan(&lowProgress, &highBudget)
	return lowProgress, highBudget, err
}

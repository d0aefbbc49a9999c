package types

import "time"

// DashboardStats is the aggregate payload served to the dashboard.
type DashboardStats struct {
	Overview           DashboardOverview  `json:"overview"`
	LgaStats           []LgaStat          `json:"lga_stats"`
	ZoneStats          []ZoneStat         `json:"zone_stats"`
	StatusStats        []StatusStat       `json:"status_stats"`
	SectorStats        []SectorStat       `json:"sector_stats"`
	RecentActivity     []RecentActivity   `json:"recent_activity"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	Alerts             DashboardAlerts    `json:"alerts"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

type DashboardOverview struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	CompletedProjects int     `json:"completed_projects"`
	OverdueProjects   int     `json:"overdue_projects"`
	TotalBudget       float64 `json:"total_budget"`
	TotalExpenditure  float64 `json:"total_expenditure"`
	BudgetUtilization float64 `json:"budget_utilization"`
	AverageProgress   float64 `json:"average_progress"`
}

type LgaStat struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Zone            string  `json:"zone"`
	ProjectsCount   int     `json:"projects_count"`
	TotalBudget     float64 `json:"total_budget"`
	AverageProgress float64 `json:"average_progress"`
}

type ZoneStat struct {
	Name            string  `json:"name"`
	ProjectsCount   int     `json:"projects_count"`
	TotalBudget     float64 `json:"total_budget"`
	AverageProgress float64 `json:"average_progress"`
}

type StatusStat struct {
	Status ProjectStatus `json:"status"`
	Count  int           `json:"count"`
	Label  string        `json:"label"`
	Color  string        `json:"color"`
}

type SectorStat struct {
	Sector string `json:"sector"`
	Count  int    `json:"count"`
}

type RecentActivity struct {
	ID                 int           `json:"id"`
	Name               string        `json:"name"`
	IDCode             string        `json:"id_code"`
	Status             ProjectStatus `json:"status"`
	ProgressPercentage float64       `json:"progress_percentage"`
	LgaName            string        `json:"lga_name"`
	ProjectManager     string        `json:"project_manager"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type PerformanceMetrics struct {
	OnTimeProjects int     `json:"on_time_projects"`
	BehindSchedule int     `json:"behind_schedule"`
	BudgetVariance float64 `json:"budget_variance"`
	CompletionRate float64 `json:"completion_rate"`
}

type DashboardAlerts struct {
	OverdueProjects       int `json:"overdue_projects"`
	LowProgressProjects   int `json:"low_progress_projects"`
	HighBudgetUtilization int `json:"high_budget_utilization"`
}

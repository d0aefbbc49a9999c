package types

import (
	"math"
	"time"
)

// ProjectStatus is the lifecycle state of a monitored project.
type ProjectStatus string

const (
	ProjectNotStarted ProjectStatus = "not_started"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectOnHold     ProjectStatus = "on_hold"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectNotStarted, ProjectInProgress, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// Label returns the human readable status.
func (s ProjectStatus) Label() string {
	switch s {
	case ProjectNotStarted:
		return "Not Started"
	case ProjectInProgress:
		return "In Progress"
	case ProjectOnHold:
		return "On Hold"
	case ProjectCompleted:
		return "Completed"
	case ProjectCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Color returns the status color used by the dashboard.
func (s ProjectStatus) Color() string {
	switch s {
	case ProjectInProgress:
		return "blue"
	case ProjectOnHold:
		return "yellow"
	case ProjectCompleted:
		return "green"
	case ProjectCancelled:
		return "red"
	}
	return "gray"
}

// Project is a monitored infrastructure or development project.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	// Name is the project title.
	Name string `json:"name" db:"name"`

	// IDCode is the unique external reference code of the project.
	IDCode string `json:"id_code" db:"id_code"`

	// ProjectManagerID references the user responsible for the project.
	// The manager may approve updates and manage attachments.
	ProjectManagerID int `json:"project_manager_id" db:"project_manager_id"`

	// ProjectManagerName is joined on read.
	ProjectManagerName string `json:"project_manager_name,omitempty" db:"-"`

	ImplementingOrganization     string        `json:"implementing_organization" db:"implementing_organization"`
	ProjectLocation              string        `json:"project_location" db:"project_location"`
	Sector                       string        `json:"sector" db:"sector"`
	StartDate                    Date          `json:"start_date" db:"start_date"`
	EndDate                      Date          `json:"end_date" db:"end_date"`
	OverallGoal                  string        `json:"overall_goal" db:"overall_goal"`
	Description                  string        `json:"description" db:"description"`
	TotalBudget                  float64       `json:"total_budget" db:"total_budget"`
	BudgetAllocatedCurrentPeriod float64       `json:"budget_allocated_current_period" db:"budget_allocated_current_period"`
	CumulativeExpenditure        float64       `json:"cumulative_expenditure" db:"cumulative_expenditure"`
	Status                       ProjectStatus `json:"status" db:"status"`

	// ProgressPercentage is overwritten by every update that carries a
	// progress value.
	ProgressPercentage float64 `json:"progress_percentage" db:"progress_percentage"`

	LgaID               *int     `json:"lga_id" db:"lga_id"`
	LgaName             string   `json:"lga_name,omitempty" db:"-"`
	WardID              *int     `json:"ward_id" db:"ward_id"`
	WardName            string   `json:"ward_name,omitempty" db:"-"`
	Latitude            *float64 `json:"latitude" db:"latitude"`
	Longitude           *float64 `json:"longitude" db:"longitude"`
	Address             string   `json:"address" db:"address"`
	LocationDescription string   `json:"location_description" db:"location_description"`

	MonitoringPeriodStart Date     `json:"monitoring_period_start" db:"monitoring_period_start"`
	MonitoringPeriodEnd   Date     `json:"monitoring_period_end" db:"monitoring_period_end"`
	MonitorName           string   `json:"monitor_name" db:"monitor_name"`
	MonitorTitle          string   `json:"monitor_title" db:"monitor_title"`
	DataCollectionMethods []string `json:"data_collection_methods" db:"data_collection_methods"`
	WorkPlanPresentation  bool     `json:"work_plan_presentation" db:"work_plan_presentation"`

	// Derived values, filled by WithDerived.
	BudgetUtilization float64 `json:"budget_utilization" db:"-"`
	StatusColor       string  `json:"status_color" db:"-"`
	IsOverdue         bool    `json:"is_overdue" db:"-"`
	RemainingDays     int     `json:"remaining_days" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WithDerived returns a copy of p with the computed presentation fields set
// relative to now.
func (p Project) WithDerived(now time.Time) Project {
	if p.TotalBudget > 0 {
		p.BudgetUtilization = round(p.CumulativeExpenditure/p.TotalBudget*100, 2)
	} else {
		p.BudgetUtilization = 0
	}
	p.StatusColor = p.Status.Color()
	p.IsOverdue = !p.EndDate.IsZero() && p.EndDate.Before(now) && p.Status != ProjectCompleted
	switch {
	case p.Status == ProjectCompleted, p.EndDate.IsZero():
		p.RemainingDays = 0
	default:
		p.RemainingDays = int(math.Floor(p.EndDate.Sub(now).Hours() / 24))
	}
	return p
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

package types

import "time"

// ActivityStatus is the tracking state of a work plan activity.
type ActivityStatus string

const (
	ActivityNotStarted ActivityStatus = "not_started"
	ActivityInProgress ActivityStatus = "in_progress"
	ActivityOnTrack    ActivityStatus = "on_track"
	ActivityDelayed    ActivityStatus = "delayed"
	ActivityCompleted  ActivityStatus = "completed"
	ActivityOnHold     ActivityStatus = "on_hold"
	ActivityCancelled  ActivityStatus = "cancelled"
)

func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityNotStarted, ActivityInProgress, ActivityOnTrack, ActivityDelayed,
		ActivityCompleted, ActivityOnHold, ActivityCancelled:
		return true
	}
	return false
}

// WorkPlanActivity is a scheduled activity in a project's work plan.
type WorkPlanActivity struct {
	ID                 int            `json:"id" db:"id"`
	ProjectID          int            `json:"project_id" db:"project_id"`
	ActivityNumber     string         `json:"activity_number" db:"activity_number"`
	ActivityName       string         `json:"activity_name" db:"activity_name"`
	Description        string         `json:"description" db:"description"`
	PlannedStartDate   Date           `json:"planned_start_date" db:"planned_start_date"`
	PlannedEndDate     Date           `json:"planned_end_date" db:"planned_end_date"`
	ActualStartDate    Date           `json:"actual_start_date" db:"actual_start_date"`
	ActualEndDate      Date           `json:"actual_end_date" db:"actual_end_date"`
	Status             ActivityStatus `json:"status" db:"status"`
	PercentageComplete float64        `json:"percentage_complete" db:"percentage_complete"`
	ResponsiblePerson  string         `json:"responsible_person" db:"responsible_person"`
	Priority           string         `json:"priority" db:"priority"`
	VarianceComments   string         `json:"variance_comments" db:"variance_comments"`
	IsTracked          bool           `json:"is_tracked" db:"is_tracked"`
	IsCompleted        bool           `json:"is_completed" db:"is_completed"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

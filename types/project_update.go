package types

import (
	"errors"
	"time"
)

// UpdateStatus is the approval state of a project update.
type UpdateStatus string

const (
	UpdateDraft    UpdateStatus = "draft"
	UpdatePending  UpdateStatus = "pending"
	UpdateApproved UpdateStatus = "approved"
	UpdateRejected UpdateStatus = "rejected"
)

// UpdateTransition names a workflow action.
type UpdateTransition string

const (
	TransitionSubmit  UpdateTransition = "submit"
	TransitionApprove UpdateTransition = "approve"
	TransitionReject  UpdateTransition = "reject"
)

// ErrInvalidTransition is returned when an action is not allowed from the
// current status.
var ErrInvalidTransition = errors.New("invalid update status transition")

// transitions maps each action to the single status it may start from and
// the status it produces.
var transitions = map[UpdateTransition]struct {
	from UpdateStatus
	to   UpdateStatus
}{
	TransitionSubmit:  {from: UpdateDraft, to: UpdatePending},
	TransitionApprove: {from: UpdatePending, to: UpdateApproved},
	TransitionReject:  {from: UpdatePending, to: UpdateRejected},
}

// Next returns the status reached by applying t to s.
func (s UpdateStatus) Next(t UpdateTransition) (UpdateStatus, error) {
	rule, ok := transitions[t]
	if !ok || rule.from != s {
		return s, ErrInvalidTransition
	}
	return rule.to, nil
}

// RequiredStatus returns the status an update must be in for t to apply.
func (t UpdateTransition) RequiredStatus() UpdateStatus {
	return transitions[t].from
}

// UpdateType classifies a project update and selects its typed details.
type UpdateType string

const (
	UpdateTypeProgress           UpdateType = "progress"
	UpdateTypeFinancial          UpdateType = "financial"
	UpdateTypeQuality            UpdateType = "quality"
	UpdateTypeSiteVisit          UpdateType = "site_visit"
	UpdateTypeMilestone          UpdateType = "milestone"
	UpdateTypeWorkPlanActivities UpdateType = "work_plan_activities"
)

// Valid reports whether t is a known update type.
func (t UpdateType) Valid() bool {
	switch t {
	case UpdateTypeProgress, UpdateTypeFinancial, UpdateTypeQuality, UpdateTypeSiteVisit,
		UpdateTypeMilestone, UpdateTypeWorkPlanActivities:
		return true
	}
	return false
}

// ProjectUpdate is a point-in-time status report submitted against a
// project and subject to the approval workflow.
type ProjectUpdate struct {
	// ID is the unique identifier of the update.
	ID int `json:"id" db:"id"`

	// ProjectID identifies the owning project.
	ProjectID int `json:"project_id" db:"project_id"`

	// CreatedBy identifies the author of the update.
	CreatedBy int `json:"created_by" db:"created_by"`

	// CreatorName is joined on read.
	CreatorName string `json:"creator_name,omitempty" db:"-"`

	UpdateType  UpdateType `json:"update_type" db:"update_type"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`

	// Status is the workflow state. It only moves through
	// draft -> pending -> approved|rejected.
	Status UpdateStatus `json:"status" db:"status"`

	// ProgressPercentage, when set, is copied onto the owning project in
	// the same transaction that stores the update.
	ProgressPercentage *float64 `json:"progress_percentage" db:"progress_percentage"`

	// Details holds the narrative and type-specific sections.
	Details UpdateDetails `json:"details" db:"details"`

	SubmittedAt *time.Time `json:"submitted_at" db:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at" db:"approved_at"`
	ApprovedBy  *int       `json:"approved_by" db:"approved_by"`

	// AttachmentsCount is populated by list queries.
	AttachmentsCount int `json:"attachments_count" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UpdateDetails replaces free-form attribute bags with a common narrative
// plus at most one typed section matching the update type.
type UpdateDetails struct {
	Narrative Narrative         `json:"narrative"`
	Financial *FinancialDetails `json:"financial,omitempty"`
	Quality   *QualityDetails   `json:"quality,omitempty"`
	SiteVisit *SiteVisitDetails `json:"site_visit,omitempty"`
}

// Narrative is the list-valued reporting shared by every update type.
type Narrative struct {
	ActivitiesCompleted []string `json:"activities_completed,omitempty"`
	ChallengesFaced     []string `json:"challenges_faced,omitempty"`
	NextSteps           []string `json:"next_steps,omitempty"`
	DeliverablesStatus  []string `json:"deliverables_status,omitempty"`
	StakeholderFeedback []string `json:"stakeholder_feedback,omitempty"`
	RiskAssessment      []string `json:"risk_assessment,omitempty"`
	MitigationMeasures  []string `json:"mitigation_measures,omitempty"`
	SafetyObservations  []string `json:"safety_observations,omitempty"`
	Recommendations     []string `json:"recommendations,omitempty"`
}

type FinancialDetails struct {
	BudgetSpentPeriod     float64 `json:"budget_spent_period"`
	CumulativeBudgetSpent float64 `json:"cumulative_budget_spent"`
	FinancialComments     string  `json:"financial_comments,omitempty"`
}

type QualityDetails struct {
	QualityAssessment   string   `json:"quality_assessment"`
	QualityObservations []string `json:"quality_observations,omitempty"`
}

type SiteVisitDetails struct {
	LocationVisited   string `json:"location_visited"`
	VisitDate         Date   `json:"visit_date"`
	WeatherConditions string `json:"weather_conditions,omitempty"`
	SiteConditions    string `json:"site_conditions,omitempty"`
}

// MismatchedSections returns the names of typed sections that do not belong
// to updateType.
func (d UpdateDetails) MismatchedSections(updateType UpdateType) []string {
	var out []string
	if d.Financial != nil && updateType != UpdateTypeFinancial {
		out = append(out, "financial")
	}
	if d.Quality != nil && updateType != UpdateTypeQuality {
		out = append(out, "quality")
	}
	if d.SiteVisit != nil && updateType != UpdateTypeSiteVisit {
		out = append(out, "site_visit")
	}
	return out
}

package services

import (
	"context"
	"strconv"

	"github.com/nsmonitor/apiserver/types"
)

// WorkPlanRepository defines persistence operations for work plan activities.
type WorkPlanRepository interface {
	ListByProject(ctx context.Context, projectID int) ([]types.WorkPlanActivity, error)
	Get(ctx context.Context, projectID, id int) (types.WorkPlanActivity, error)
	CreateMany(ctx context.Context, activities []types.WorkPlanActivity) ([]types.WorkPlanActivity, error)
	Update(ctx context.Context, a types.WorkPlanActivity) (types.WorkPlanActivity, error)
	Delete(ctx context.Context, projectID, id int) error
}

// ActivityInput is the client form of a work plan activity. Unset flags
// default to tracked and not completed.
type ActivityInput struct {
	ActivityNumber     string               `json:"activity_number"`
	ActivityName       string               `json:"activity_name"`
	PlannedStartDate   types.Date           `json:"planned_start_date"`
	PlannedEndDate     types.Date           `json:"planned_end_date"`
	ActualStartDate    types.Date           `json:"actual_start_date"`
	ActualEndDate      types.Date           `json:"actual_end_date"`
	Status             types.ActivityStatus `json:"status"`
	PercentageComplete *float64             `json:"percentage_complete"`
	VarianceComments   string               `json:"variance_comments"`
	ResponsiblePerson  string               `json:"responsible_person"`
	IsTracked          *bool                `json:"is_tracked"`
	IsCompleted        *bool                `json:"is_completed"`
}

func (in ActivityInput) activity(projectID int) types.WorkPlanActivity {
	a := types.WorkPlanActivity{
		ProjectID:         projectID,
		ActivityNumber:    in.ActivityNumber,
		ActivityName:      in.ActivityName,
		Description:       in.ActivityName,
		PlannedStartDate:  in.PlannedStartDate,
		PlannedEndDate:    in.PlannedEndDate,
		ActualStartDate:   in.ActualStartDate,
		ActualEndDate:     in.ActualEndDate,
		Status:            in.Status,
		VarianceComments:  in.VarianceComments,
		ResponsiblePerson: in.ResponsiblePerson,
		Priority:          "medium",
		IsTracked:         true,
	}
	if a.ResponsiblePerson == "" {
		a.ResponsiblePerson = "TBD"
	}
	if in.PercentageComplete != nil {
		a.PercentageComplete = *in.PercentageComplete
	}
	if in.IsTracked != nil {
		a.IsTracked = *in.IsTracked
	}
	if in.IsCompleted != nil {
		a.IsCompleted = *in.IsCompleted
	}
	return a
}

type WorkPlanService struct {
	repo     WorkPlanRepository
	projects ProjectGetter
}

func NewWorkPlanService(repo WorkPlanRepository, projects ProjectGetter) *WorkPlanService {
	return &WorkPlanService{repo: repo, projects: projects}
}

func (s *WorkPlanService) List(ctx context.Context, projectID int) ([]types.WorkPlanActivity, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

// CreateMany validates every activity before storing any of them.
func (s *WorkPlanService) CreateMany(ctx context.Context, projectID int, inputs []ActivityInput) ([]types.WorkPlanActivity, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}

	v := NewValidationError()
	if len(inputs) == 0 {
		v.Add("activities", "The activities field is required.")
	}
	activities := make([]types.WorkPlanActivity, 0, len(inputs))
	for i, in := range inputs {
		validateActivity(v, "activities."+strconv.Itoa(i)+".", in)
		activities = append(activities, in.activity(projectID))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return s.repo.CreateMany(ctx, activities)
}

func (s *WorkPlanService) Update(ctx context.Context, projectID, id int, in ActivityInput) (types.WorkPlanActivity, error) {
	current, err := s.repo.Get(ctx, projectID, id)
	if err != nil {
		return types.WorkPlanActivity{}, err
	}

	v := NewValidationError()
	validateActivity(v, "", in)
	if err := v.OrNil(); err != nil {
		return types.WorkPlanActivity{}, err
	}

	next := in.activity(projectID)
	next.ID = current.ID
	next.Priority = current.Priority
	if in.ResponsiblePerson == "" {
		next.ResponsiblePerson = current.ResponsiblePerson
	}
	return s.repo.Update(ctx, next)
}

func (s *WorkPlanService) Delete(ctx context.Context, projectID, id int) error {
	return s.repo.Delete(ctx, projectID, id)
}

func validateActivity(v *ValidationError, prefix string, in ActivityInput) {
	maxLength(v, prefix+"activity_number", in.ActivityNumber, 50)
	requireString(v, prefix+"activity_name", in.ActivityName, 500)
	if in.PlannedStartDate.IsZero() {
		v.Add(prefix+"planned_start_date", "The planned start date field is required.")
	}
	if in.PlannedEndDate.IsZero() {
		v.Add(prefix+"planned_end_date", "The planned end date field is required.")
	} else if !in.PlannedStartDate.IsZero() && in.PlannedEndDate.Before(in.PlannedStartDate.Time) {
		v.Add(prefix+"planned_end_date", "The planned end date must be a date after or equal to planned start date.")
	}
	if in.Status == "" {
		v.Add(prefix+"status", "The status field is required.")
	} else if !in.Status.Valid() {
		v.Add(prefix+"status", "The selected status is invalid.")
	}
	if p := in.PercentageComplete; p == nil {
		v.Add(prefix+"percentage_complete", "The percentage complete field is required.")
	} else if *p < 0 || *p > 100 {
		v.Add(prefix+"percentage_complete", "The percentage complete must be between 0 and 100.")
	}
	maxLength(v, prefix+"variance_comments", in.VarianceComments, 1000)
	maxLength(v, prefix+"responsible_person", in.ResponsiblePerson, 255)
}

package services

import (
	"context"
	"slices"
	"strings"

	"github.com/nsmonitor/apiserver/types"
)

// OutputIndicatorRepository defines persistence operations for indicators.
type OutputIndicatorRepository interface {
	ListByProject(ctx context.Context, projectID int) ([]types.OutputIndicator, error)
	Get(ctx context.Context, projectID, id int) (types.OutputIndicator, error)
	Create(ctx context.Context, o types.OutputIndicator) (types.OutputIndicator, error)
	Update(ctx context.Context, o types.OutputIndicator) (types.OutputIndicator, error)
	Delete(ctx context.Context, projectID, id int) error
}

type IndicatorService struct {
	repo     OutputIndicatorRepository
	projects ProjectGetter
}

func NewIndicatorService(repo OutputIndicatorRepository, projects ProjectGetter) *IndicatorService {
	return &IndicatorService{repo: repo, projects: projects}
}

func (s *IndicatorService) List(ctx context.Context, projectID int) ([]types.OutputIndicator, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	indicators, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range indicators {
		indicators[i] = indicators[i].WithAchievement()
	}
	return indicators, nil
}

func (s *IndicatorService) Create(ctx context.Context, projectID int, o types.OutputIndicator) (types.OutputIndicator, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return types.OutputIndicator{}, err
	}
	o.ProjectID = projectID
	normalizeIndicator(&o)
	if err := validateIndicator(o); err != nil {
		return types.OutputIndicator{}, err
	}
	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return types.OutputIndicator{}, err
	}
	return created.WithAchievement(), nil
}

func (s *IndicatorService) Update(ctx context.Context, projectID, id int, o types.OutputIndicator) (types.OutputIndicator, error) {
	if _, err := s.repo.Get(ctx, projectID, id); err != nil {
		return types.OutputIndicator{}, err
	}
	o.ID = id
	o.ProjectID = projectID
	normalizeIndicator(&o)
	if err := validateIndicator(o); err != nil {
		return types.OutputIndicator{}, err
	}
	updated, err := s.repo.Update(ctx, o)
	if err != nil {
		return types.OutputIndicator{}, err
	}
	return updated.WithAchievement(), nil
}

func (s *IndicatorService) Delete(ctx context.Context, projectID, id int) error {
	return s.repo.Delete(ctx, projectID, id)
}

func normalizeIndicator(o *types.OutputIndicator) {
	o.IndicatorName = strings.TrimSpace(o.IndicatorName)
	o.UnitOfMeasurement = strings.TrimSpace(o.UnitOfMeasurement)
	if o.Frequency == "" {
		o.Frequency = "monthly"
	}
	if o.Status == "" {
		o.Status = "on_track"
	}
}

func validateIndicator(o types.OutputIndicator) error {
	v := NewValidationError()
	requireString(v, "indicator_name", o.IndicatorName, 255)
	requireString(v, "unit_of_measurement", o.UnitOfMeasurement, 100)
	if o.TargetValue < 0 {
		v.Add("target_value", "The target value must be at least 0.")
	}
	if o.BaselineValue < 0 {
		v.Add("baseline_value", "The baseline value must be at least 0.")
	}
	if o.CurrentValue < 0 {
		v.Add("current_value", "The current value must be at least 0.")
	}
	if !slices.Contains(types.IndicatorFrequencies, o.Frequency) {
		v.Add("frequency", "The selected frequency is invalid.")
	}
	if !slices.Contains(types.IndicatorStatuses, o.Status) {
		v.Add("status", "The selected status is invalid.")
	}
	maxLength(v, "data_source", o.DataSource, 255)
	maxLength(v, "collection_method", o.CollectionMethod, 255)
	maxLength(v, "responsible_person", o.ResponsiblePerson, 255)
	return v.OrNil()
}

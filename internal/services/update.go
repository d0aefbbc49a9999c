package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/sirupsen/logrus"
)

// ProjectUpdateRepository defines persistence operations for project updates.
type ProjectUpdateRepository interface {
	ListByProject(ctx context.Context, projectID int, q types.ListQuery) ([]types.ProjectUpdate, int, error)
	Get(ctx context.Context, projectID, id int) (types.ProjectUpdate, error)
	Create(ctx context.Context, u types.ProjectUpdate) (types.ProjectUpdate, error)
	Update(ctx context.Context, u types.ProjectUpdate) (types.ProjectUpdate, error)
	Transition(ctx context.Context, projectID, id int, from, to types.UpdateStatus, actorID int, at time.Time) error
	Delete(ctx context.Context, projectID, id int) error
}

// ProjectGetter resolves a project by id.
type ProjectGetter interface {
	Get(ctx context.Context, id int) (types.Project, error)
}

type UpdateInput struct {
	UpdateType         types.UpdateType    `json:"update_type"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	ProgressPercentage *float64            `json:"progress_percentage"`
	Details            types.UpdateDetails `json:"details"`
}

var transitionMessages = map[types.UpdateTransition]string{
	types.TransitionSubmit:  "Only draft updates can be submitted",
	types.TransitionApprove: "Only pending updates can be approved",
	types.TransitionReject:  "Only pending updates can be rejected",
}

var transitionEvents = map[types.UpdateTransition]string{
	types.TransitionSubmit:  EventUpdateSubmitted,
	types.TransitionApprove: EventUpdateApproved,
	types.TransitionReject:  EventUpdateRejected,
}

// UpdateService runs the project update workflow.
type UpdateService struct {
	repo     ProjectUpdateRepository
	projects ProjectGetter
	files    AttachmentFiles
	objects  ObjectStore
	events   *Events
	logger   *logrus.Logger
	now      func() time.Time
}

func NewUpdateService(
	repo ProjectUpdateRepository,
	projects ProjectGetter,
	files AttachmentFiles,
	objects ObjectStore,
	events *Events,
	logger *logrus.Logger,
) *UpdateService {
	return &UpdateService{
		repo:     repo,
		projects: projects,
		files:    files,
		objects:  objects,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *UpdateService) List(ctx context.Context, projectID int, q types.ListQuery) ([]types.ProjectUpdate, int, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByProject(ctx, projectID, q)
}

func (s *UpdateService) Get(ctx context.Context, projectID, id int) (types.ProjectUpdate, error) {
	return s.repo.Get(ctx, projectID, id)
}

// Create stores a new draft. A progress percentage is copied onto the
// project atomically with the insert.
func (s *UpdateService) Create(ctx context.Context, actor types.User, projectID int, in UpdateInput) (types.ProjectUpdate, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return types.ProjectUpdate{}, err
	}
	if err := validateUpdate(in); err != nil {
		return types.ProjectUpdate{}, err
	}

	created, err := s.repo.Create(ctx, types.ProjectUpdate{
		ProjectID:          projectID,
		CreatedBy:          actor.ID,
		UpdateType:         in.UpdateType,
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		Status:             types.UpdateDraft,
		ProgressPercentage: in.ProgressPercentage,
		Details:            in.Details,
	})
	if err != nil {
		return types.ProjectUpdate{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"update_id":  created.ID,
		"project_id": projectID,
		"user_id":    actor.ID,
	}).Info("project update created")
	s.events.Emit(ctx, ChannelProjectUpdates, EventUpdateCreated, actor.ID, projectID, created)

	return s.repo.Get(ctx, projectID, created.ID)
}

func (s *UpdateService) Update(ctx context.Context, actor types.User, projectID, id int, in UpdateInput) (types.ProjectUpdate, error) {
	project, update, err := s.load(ctx, projectID, id)
	if err != nil {
		return types.ProjectUpdate{}, err
	}
	if !CanModifyUpdate(actor, update, project) {
		return types.ProjectUpdate{}, ruleError(ErrForbidden, "You do not have permission to modify this update")
	}
	if err := validateUpdate(in); err != nil {
		return types.ProjectUpdate{}, err
	}

	update.UpdateType = in.UpdateType
	update.Title = strings.TrimSpace(in.Title)
	update.Description = in.Description
	update.ProgressPercentage = in.ProgressPercentage
	update.Details = in.Details
	if _, err := s.repo.Update(ctx, update); err != nil {
		return types.ProjectUpdate{}, err
	}
	return s.repo.Get(ctx, projectID, id)
}

// Delete removes the update and its attachment records, then removes the
// stored files best-effort.
func (s *UpdateService) Delete(ctx context.Context, actor types.User, projectID, id int) error {
	project, update, err := s.load(ctx, projectID, id)
	if err != nil {
		return err
	}
	if !CanModifyUpdate(actor, update, project) {
		return ruleError(ErrForbidden, "You do not have permission to delete this update")
	}

	paths, err := s.files.FilePathsByUpdate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, projectID, id); err != nil {
		return err
	}
	removeObjects(ctx, s.objects, s.logger, paths)
	return nil
}

func (s *UpdateService) Submit(ctx context.Context, actor types.User, projectID, id int) (types.ProjectUpdate, error) {
	return s.transition(ctx, actor, projectID, id, types.TransitionSubmit)
}

func (s *UpdateService) Approve(ctx context.Context, actor types.User, projectID, id int) (types.ProjectUpdate, error) {
	return s.transition(ctx, actor, projectID, id, types.TransitionApprove)
}

func (s *UpdateService) Reject(ctx context.Context, actor types.User, projectID, id int) (types.ProjectUpdate, error) {
	return s.transition(ctx, actor, projectID, id, types.TransitionReject)
}

func (s *UpdateService) transition(ctx context.Context, actor types.User, projectID, id int, t types.UpdateTransition) (types.ProjectUpdate, error) {
	project, update, err := s.load(ctx, projectID, id)
	if err != nil {
		return types.ProjectUpdate{}, err
	}

	if t == types.TransitionSubmit {
		if !CanModifyUpdate(actor, update, project) {
			return types.ProjectUpdate{}, ruleError(ErrForbidden, "You do not have permission to submit this update")
		}
	} else if !CanReviewUpdate(actor, project) {
		return types.ProjectUpdate{}, ruleError(ErrForbidden, "You do not have permission to review this update")
	}

	next, err := update.Status.Next(t)
	if err != nil {
		return types.ProjectUpdate{}, ruleError(ErrInvalidTransition, transitionMessages[t])
	}
	if err := s.repo.Transition(ctx, projectID, id, update.Status, next, actor.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrStatusChanged) {
			return types.ProjectUpdate{}, ruleError(ErrInvalidTransition, transitionMessages[t])
		}
		return types.ProjectUpdate{}, err
	}

	updated, err := s.repo.Get(ctx, projectID, id)
	if err != nil {
		return types.ProjectUpdate{}, err
	}
	s.events.Emit(ctx, ChannelProjectUpdates, transitionEvents[t], actor.ID, projectID, updated)
	return updated, nil
}

func (s *UpdateService) load(ctx context.Context, projectID, id int) (types.Project, types.ProjectUpdate, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return types.Project{}, types.ProjectUpdate{}, err
	}
	update, err := s.repo.Get(ctx, projectID, id)
	if err != nil {
		return types.Project{}, types.ProjectUpdate{}, err
	}
	return project, update, nil
}

func validateUpdate(in UpdateInput) error {
	v := NewValidationError()
	if in.UpdateType == "" {
		v.Add("update_type", "The update type field is required.")
	} else if !in.UpdateType.Valid() {
		v.Add("update_type", "The selected update type is invalid.")
	}
	requireString(v, "title", in.Title, 255)
	requireString(v, "description", in.Description, 0)
	if p := in.ProgressPercentage; p != nil && (*p < 0 || *p > 100) {
		v.Add("progress_percentage", "The progress percentage must be between 0 and 100.")
	}

	if in.UpdateType.Valid() {
		for _, section := range in.Details.MismatchedSections(in.UpdateType) {
			v.Add("details."+section, "The "+section+" section does not apply to "+string(in.UpdateType)+" updates.")
		}
	}
	if f := in.Details.Financial; f != nil {
		if f.BudgetSpentPeriod < 0 {
			v.Add("details.financial.budget_spent_period", "The budget spent period must be at least 0.")
		}
		if f.CumulativeBudgetSpent < 0 {
			v.Add("details.financial.cumulative_budget_spent", "The cumulative budget spent must be at least 0.")
		}
	}
	if sv := in.Details.SiteVisit; sv != nil {
		maxLength(v, "details.site_visit.location_visited", sv.LocationVisited, 255)
		maxLength(v, "details.site_visit.weather_conditions", sv.WeatherConditions, 255)
	}
	return v.OrNil()
}

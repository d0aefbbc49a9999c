package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/sirupsen/logrus"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	List(ctx context.Context, q types.ProjectQuery) ([]types.Project, int, error)
	Totals(ctx context.Context, today time.Time) (types.ProjectTotals, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Create(ctx context.Context, p types.Project) (types.Project, error)
	Update(ctx context.Context, p types.Project) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// LocationChecker verifies LGA and ward references.
type LocationChecker interface {
	LgaExists(ctx context.Context, id int) (bool, error)
	WardExists(ctx context.Context, id int) (bool, error)
	WardBelongsTo(ctx context.Context, wardID, lgaID int) (bool, error)
}

// UserGetter resolves a user by id.
type UserGetter interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// AttachmentFiles lists the storage keys of attachments for cleanup.
type AttachmentFiles interface {
	FilePathsByProject(ctx context.Context, projectID int) ([]string, error)
	FilePathsByUpdate(ctx context.Context, updateID int) ([]string, error)
}

// ObjectStore is satisfied by *storage.Storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Sectors is the fixed list offered for new projects.
var Sectors = []string{
	"Agriculture",
	"Education",
	"Health",
	"Infrastructure",
	"Water & Sanitation",
	"Energy",
	"Environment",
	"Social Protection",
	"Governance",
	"Economic Development",
	"Technology",
	"Other",
}

// ProjectService encapsulates the project registry.
type ProjectService struct {
	repo      ProjectRepository
	users     UserGetter
	locations LocationChecker
	files     AttachmentFiles
	objects   ObjectStore
	logger    *logrus.Logger
	now       func() time.Time
}

func NewProjectService(
	repo ProjectRepository,
	users UserGetter,
	locations LocationChecker,
	files AttachmentFiles,
	objects ObjectStore,
	logger *logrus.Logger,
) *ProjectService {
	return &ProjectService{
		repo:      repo,
		users:     users,
		locations: locations,
		files:     files,
		objects:   objects,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns one page of projects plus portfolio-wide totals.
func (s *ProjectService) List(ctx context.Context, q types.ProjectQuery) ([]types.Project, int, types.ProjectTotals, error) {
	projects, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, types.ProjectTotals{}, err
	}
	now := s.now()
	totals, err := s.repo.Totals(ctx, now)
	if err != nil {
		return nil, 0, types.ProjectTotals{}, err
	}
	for i := range projects {
		projects[i] = projects[i].WithDerived(now)
	}
	return projects, total, totals, nil
}

func (s *ProjectService) Get(ctx context.Context, id int) (types.Project, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	return p.WithDerived(s.now()), nil
}

func (s *ProjectService) Create(ctx context.Context, p types.Project) (types.Project, error) {
	if p.Status == "" {
		p.Status = types.ProjectNotStarted
	}
	if err := s.validate(ctx, p); err != nil {
		return types.Project{}, err
	}
	normalizeProject(&p)

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Project{}, fieldError("id_code", "The id code has already been taken.")
		}
		return types.Project{}, err
	}
	return s.Get(ctx, created.ID)
}

func (s *ProjectService) Update(ctx context.Context, id int, p types.Project) (types.Project, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	if p.Status == "" {
		p.Status = current.Status
	}
	if err := s.validate(ctx, p); err != nil {
		return types.Project{}, err
	}
	normalizeProject(&p)

	p.ID = id
	if _, err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Project{}, fieldError("id_code", "The id code has already been taken.")
		}
		return types.Project{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes the project and its dependants, then removes stored
// attachment files. File removal failures are logged only.
func (s *ProjectService) Delete(ctx context.Context, id int) error {
	paths, err := s.files.FilePathsByProject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	removeObjects(ctx, s.objects, s.logger, paths)
	return nil
}

func normalizeProject(p *types.Project) {
	p.Name = strings.TrimSpace(p.Name)
	p.IDCode = strings.TrimSpace(p.IDCode)
	if p.DataCollectionMethods == nil {
		p.DataCollectionMethods = []string{}
	}
}

func (s *ProjectService) validate(ctx context.Context, p types.Project) error {
	v := NewValidationError()
	requireString(v, "name", p.Name, 255)
	requireString(v, "id_code", p.IDCode, 50)
	requireString(v, "implementing_organization", p.ImplementingOrganization, 255)
	requireString(v, "project_location", p.ProjectLocation, 0)
	requireString(v, "sector", p.Sector, 100)
	requireString(v, "overall_goal", p.OverallGoal, 0)
	requireString(v, "description", p.Description, 0)
	maxLength(v, "address", p.Address, 500)
	maxLength(v, "location_description", p.LocationDescription, 1000)
	maxLength(v, "monitor_name", p.MonitorName, 255)
	maxLength(v, "monitor_title", p.MonitorTitle, 255)

	if p.StartDate.IsZero() {
		v.Add("start_date", "The start date field is required.")
	}
	if p.EndDate.IsZero() {
		v.Add("end_date", "The end date field is required.")
	} else if !p.StartDate.IsZero() && !p.EndDate.After(p.StartDate.Time) {
		v.Add("end_date", "The end date must be a date after start date.")
	}
	if !p.MonitoringPeriodStart.IsZero() && !p.MonitoringPeriodEnd.IsZero() &&
		!p.MonitoringPeriodEnd.After(p.MonitoringPeriodStart.Time) {
		v.Add("monitoring_period_end", "The monitoring period end must be a date after monitoring period start.")
	}

	if p.TotalBudget < 0 {
		v.Add("total_budget", "The total budget must be at least 0.")
	}
	if p.BudgetAllocatedCurrentPeriod < 0 {
		v.Add("budget_allocated_current_period", "The budget allocated current period must be at least 0.")
	}
	if p.CumulativeExpenditure < 0 {
		v.Add("cumulative_expenditure", "The cumulative expenditure must be at least 0.")
	}
	if !p.Status.Valid() {
		v.Add("status", "The selected status is invalid.")
	}
	if p.ProgressPercentage < 0 || p.ProgressPercentage > 100 {
		v.Add("progress_percentage", "The progress percentage must be between 0 and 100.")
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		v.Add("latitude", "The latitude must be between -90 and 90.")
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		v.Add("longitude", "The longitude must be between -180 and 180.")
	}

	if p.ProjectManagerID <= 0 {
		v.Add("project_manager_id", "The project manager id field is required.")
	} else if _, err := s.users.GetByID(ctx, p.ProjectManagerID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		v.Add("project_manager_id", "The selected project manager id is invalid.")
	}
	if p.LgaID != nil {
		ok, err := s.locations.LgaExists(ctx, *p.LgaID)
		if err != nil {
			return err
		}
		if !ok {
			v.Add("lga_id", "The selected lga id is invalid.")
		}
	}
	if p.WardID != nil {
		ok, err := s.locations.WardExists(ctx, *p.WardID)
		if err != nil {
			return err
		}
		if !ok {
			v.Add("ward_id", "The selected ward id is invalid.")
		}
	}
	if p.LgaID != nil && p.WardID != nil && !v.Has("lga_id") && !v.Has("ward_id") {
		ok, err := s.locations.WardBelongsTo(ctx, *p.WardID, *p.LgaID)
		if err != nil {
			return err
		}
		if !ok {
			v.Add("ward_id", "The selected ward does not belong to the selected lga.")
		}
	}
	return v.OrNil()
}

func requireString(v *ValidationError, field, value string, max int) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "The "+strings.ReplaceAll(field, "_", " ")+" field is required.")
		return
	}
	maxLength(v, field, value, max)
}

func maxLength(v *ValidationError, field, value string, max int) {
	if max > 0 && len(value) > max {
		v.Add(field, "The "+strings.ReplaceAll(field, "_", " ")+" may not be greater than "+strconv.Itoa(max)+" characters.")
	}
}

// removeObjects deletes stored files, logging failures.
func removeObjects(ctx context.Context, objects ObjectStore, logger *logrus.Logger, keys []string) {
	if objects == nil {
		return
	}
	for _, key := range keys {
		if err := objects.Delete(ctx, key); err != nil {
			logger.WithError(err).WithField("key", key).Warn("remove stored file")
		}
	}
}

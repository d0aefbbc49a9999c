package services

import (
	"context"
	"testing"
	"time"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProjectRepo struct {
	projects map[int]types.Project
	totals   types.ProjectTotals
	nextID   int
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: map[int]types.Project{}}
}

func (f *fakeProjectRepo) List(_ context.Context, _ types.ProjectQuery) ([]types.Project, int, error) {
	out := make([]types.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeProjectRepo) Totals(_ context.Context, _ time.Time) (types.ProjectTotals, error) {
	return f.totals, nil
}

func (f *fakeProjectRepo) Get(_ context.Context, id int) (types.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjectRepo) Create(_ context.Context, p types.Project) (types.Project, error) {
	for _, other := range f.projects {
		if other.IDCode == p.IDCode {
			return types.Project{}, store.ErrConflict
		}
	}
	f.nextID++
	p.ID = f.nextID
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeProjectRepo) Update(_ context.Context, p types.Project) (types.Project, error) {
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeProjectRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

// fakeLocations maps ward ids to their LGA.
type fakeLocations struct {
	lgas  map[int]bool
	wards map[int]int
}

func (f fakeLocations) LgaExists(_ context.Context, id int) (bool, error) { return f.lgas[id], nil }

func (f fakeLocations) WardExists(_ context.Context, id int) (bool, error) {
	_, ok := f.wards[id]
	return ok, nil
}

func (f fakeLocations) WardBelongsTo(_ context.Context, wardID, lgaID int) (bool, error) {
	lga, ok := f.wards[wardID]
	return ok && lga == lgaID, nil
}

func mustDate(t *testing.T, value string) types.Date {
	t.Helper()
	d, err := types.ParseDate(value)
	require.NoError(t, err)
	return d
}

func newProjectFixture(t *testing.T) (*ProjectService, *fakeProjectRepo, *fakeAttachments, *fakeObjects) {
	t.Helper()
	repo := newFakeProjectRepo()
	users := &fakeUsers{users: map[int]types.User{managerID: {ID: managerID, Name: "Manager", IsActive: true}}}
	locations := fakeLocations{lgas: map[int]bool{1: true, 2: true}, wards: map[int]int{7: 1}}
	attachments := newFakeAttachments()
	objects := newFakeObjects()
	service := NewProjectService(repo, users, locations, attachments, objects, nullLogger())
	service.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return service, repo, attachments, objects
}

func validProject(t *testing.T) types.Project {
	return types.Project{
		Name:                     "Rural Road Rehabilitation",
		IDCode:                   "RRR-001",
		ProjectManagerID:         managerID,
		ImplementingOrganization: "Ministry of Works",
		ProjectLocation:          "Northern district",
		Sector:                   "Infrastructure",
		StartDate:                mustDate(t, "2026-01-01"),
		EndDate:                  mustDate(t, "2026-12-31"),
		OverallGoal:              "Improve access to markets",
		Description:              "Rehabilitate 40km of feeder roads",
		TotalBudget:              1000000,
		CumulativeExpenditure:    250000,
	}
}

func TestProjectCreate(t *testing.T) {
	service, _, _, _ := newProjectFixture(t)

	created, err := service.Create(context.Background(), validProject(t))
	require.NoError(t, err)
	assert.Equal(t, types.ProjectNotStarted, created.Status)
	assert.Equal(t, 25.0, created.BudgetUtilization)
	assert.Equal(t, "gray", created.StatusColor)
	assert.NotNil(t, created.DataCollectionMethods)

	_, err = service.Create(context.Background(), validProject(t))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("id_code"))
}

func TestProjectValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *types.Project)
		field  string
	}{
		{"missing name", func(p *types.Project) { p.Name = "  " }, "name"},
		{"end equals start", func(p *types.Project) { p.EndDate = p.StartDate }, "end_date"},
		{"end before start", func(p *types.Project) { p.EndDate = mustDate(t, "2025-06-01") }, "end_date"},
		{"latitude out of range", func(p *types.Project) { p.Latitude = floatPtr(91) }, "latitude"},
		{"longitude out of range", func(p *types.Project) { p.Longitude = floatPtr(-180.5) }, "longitude"},
		{"progress over 100", func(p *types.Project) { p.ProgressPercentage = 101 }, "progress_percentage"},
		{"negative budget", func(p *types.Project) { p.TotalBudget = -1 }, "total_budget"},
		{"unknown status", func(p *types.Project) { p.Status = "paused" }, "status"},
		{"unknown manager", func(p *types.Project) { p.ProjectManagerID = 999 }, "project_manager_id"},
		{"missing manager", func(p *types.Project) { p.ProjectManagerID = 0 }, "project_manager_id"},
		{"unknown lga", func(p *types.Project) { p.LgaID = intPtr(3) }, "lga_id"},
		{"unknown ward", func(p *types.Project) { p.WardID = intPtr(8) }, "ward_id"},
		{"ward outside lga", func(p *types.Project) {
			p.LgaID = intPtr(2)
			p.WardID = intPtr(7)
		}, "ward_id"},
		{"monitoring period reversed", func(p *types.Project) {
			p.MonitoringPeriodStart = mustDate(t, "2026-05-01")
			p.MonitoringPeriodEnd = mustDate(t, "2026-04-01")
		}, "monitoring_period_end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _, _ := newProjectFixture(t)
			p := validProject(t)
			tt.mutate(&p)

			_, err := service.Create(context.Background(), p)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), "fields: %v", verr.Fields)
		})
	}

	t.Run("known locations and coordinates", func(t *testing.T) {
		service, _, _, _ := newProjectFixture(t)
		p := validProject(t)
		p.LgaID = intPtr(1)
		p.WardID = intPtr(7)
		p.Latitude = floatPtr(-90)
		p.Longitude = floatPtr(180)

		_, err := service.Create(context.Background(), p)
		assert.NoError(t, err)
	})
}

func TestProjectUpdateKeepsStatus(t *testing.T) {
	service, repo, _, _ := newProjectFixture(t)
	p := validProject(t)
	p.Status = types.ProjectInProgress
	created, err := service.Create(context.Background(), p)
	require.NoError(t, err)

	changed := validProject(t)
	changed.Name = "Rural Road Rehabilitation Phase II"
	updated, err := service.Update(context.Background(), created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, types.ProjectInProgress, updated.Status)
	assert.Equal(t, "Rural Road Rehabilitation Phase II", repo.projects[created.ID].Name)

	_, err = service.Update(context.Background(), 404, changed)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjectListTotals(t *testing.T) {
	service, repo, _, _ := newProjectFixture(t)
	repo.totals = types.ProjectTotals{Total: 2, InProgress: 1, Overdue: 1}
	repo.projects[1] = types.Project{ID: 1, Status: types.ProjectInProgress, EndDate: mustDate(t, "2026-02-01")}

	projects, total, totals, err := service.List(context.Background(), types.ProjectQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 2, totals.Total)
	require.Len(t, projects, 1)
	assert.True(t, projects[0].IsOverdue)
	assert.Equal(t, "blue", projects[0].StatusColor)
}

func TestProjectDeleteRemovesFiles(t *testing.T) {
	service, repo, attachments, objects := newProjectFixture(t)
	repo.projects[1] = types.Project{ID: 1}
	attachments.attachments[1] = types.ProjectAttachment{ID: 1, ProjectID: 1, FilePath: "project-attachments/1/a.pdf"}
	objects.objects["project-attachments/1/a.pdf"] = []byte("pdf")

	require.NoError(t, service.Delete(context.Background(), 1))
	assert.Empty(t, repo.projects)
	assert.False(t, objects.has("project-attachments/1/a.pdf"))

	assert.ErrorIs(t, service.Delete(context.Background(), 1), store.ErrNotFound)
}

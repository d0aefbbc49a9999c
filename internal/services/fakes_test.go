package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func nullLogger() *logrus.Logger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

type fakeProjects map[int]types.Project

func (f fakeProjects) Get(_ context.Context, id int) (types.Project, error) {
	p, ok := f[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return p, nil
}

// fakeUpdates keeps updates in memory. Transition is a compare-and-set on
// the status, like the SQL store.
type fakeUpdates struct {
	mu      sync.Mutex
	nextID  int
	updates map[int]types.ProjectUpdate
	deleted []int
}

func newFakeUpdates(updates ...types.ProjectUpdate) *fakeUpdates {
	f := &fakeUpdates{updates: map[int]types.ProjectUpdate{}, nextID: 100}
	for _, u := range updates {
		f.updates[u.ID] = u
	}
	return f
}

func (f *fakeUpdates) ListByProject(_ context.Context, projectID int, _ types.ListQuery) ([]types.ProjectUpdate, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ProjectUpdate
	for _, u := range f.updates {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (f *fakeUpdates) Get(_ context.Context, projectID, id int) (types.ProjectUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.updates[id]
	if !ok || u.ProjectID != projectID {
		return types.ProjectUpdate{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUpdates) Create(_ context.Context, u types.ProjectUpdate) (types.ProjectUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.updates[u.ID] = u
	return u, nil
}

func (f *fakeUpdates) Update(_ context.Context, u types.ProjectUpdate) (types.ProjectUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[u.ID] = u
	return u, nil
}

func (f *fakeUpdates) Transition(_ context.Context, projectID, id int, from, to types.UpdateStatus, actorID int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.updates[id]
	if !ok || u.ProjectID != projectID {
		return store.ErrNotFound
	}
	if u.Status != from {
		return store.ErrStatusChanged
	}
	u.Status = to
	switch to {
	case types.UpdatePending:
		u.SubmittedAt = &at
	case types.UpdateApproved, types.UpdateRejected:
		u.ApprovedAt = &at
		u.ApprovedBy = &actorID
	}
	f.updates[id] = u
	return nil
}

func (f *fakeUpdates) Delete(_ context.Context, projectID, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.updates[id]; !ok || u.ProjectID != projectID {
		return store.ErrNotFound
	}
	delete(f.updates, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAttachments struct {
	mu          sync.Mutex
	nextID      int
	attachments map[int]types.ProjectAttachment
	createErr   error
}

func newFakeAttachments(attachments ...types.ProjectAttachment) *fakeAttachments {
	f := &fakeAttachments{attachments: map[int]types.ProjectAttachment{}, nextID: 500}
	for _, a := range attachments {
		f.attachments[a.ID] = a
	}
	return f
}

func (f *fakeAttachments) ListByProject(_ context.Context, projectID int, attachmentType string) ([]types.ProjectAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ProjectAttachment
	for _, a := range f.attachments {
		if a.ProjectID == projectID && (attachmentType == "" || string(a.Type) == attachmentType) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttachments) ListByUpdate(_ context.Context, updateID int) ([]types.ProjectAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ProjectAttachment
	for _, a := range f.attachments {
		if a.ProjectUpdateID != nil && *a.ProjectUpdateID == updateID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttachments) Get(_ context.Context, id int) (types.ProjectAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attachments[id]
	if !ok {
		return types.ProjectAttachment{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAttachments) Create(_ context.Context, a types.ProjectAttachment) (types.ProjectAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.ProjectAttachment{}, f.createErr
	}
	f.nextID++
	a.ID = f.nextID
	f.attachments[a.ID] = a
	return a, nil
}

func (f *fakeAttachments) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.attachments, id)
	return nil
}

func (f *fakeAttachments) FilePathsByProject(_ context.Context, projectID int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.attachments {
		if a.ProjectID == projectID {
			out = append(out, a.FilePath)
		}
	}
	return out, nil
}

func (f *fakeAttachments) FilePathsByUpdate(_ context.Context, updateID int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.attachments {
		if a.ProjectUpdateID != nil && *a.ProjectUpdateID == updateID {
			out = append(out, a.FilePath)
		}
	}
	return out, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// staticPermissions grants the listed permission names to every user.
type staticPermissions map[string]bool

func (p staticPermissions) HasAnyPermission(_ context.Context, _ types.User, names []string) (bool, error) {
	for _, name := range names {
		if p[name] {
			return true, nil
		}
	}
	return false, nil
}

type publishedEvent struct {
	channel string
	attrs   map[string]string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{channel: channel, attrs: attrs})
	return "msg", nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.attrs["type"])
	}
	return out
}

type countingObserver struct {
	counts map[string]int
}

func (o *countingObserver) ObserveUpload(kind, outcome string) {
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[kind+"/"+outcome]++
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func userWithRole(id int, role string) types.User {
	return types.User{ID: id, Name: "user", RoleID: intPtr(1), RoleName: role, IsActive: true}
}

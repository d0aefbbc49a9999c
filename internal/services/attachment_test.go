package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nsmonitor/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attachmentFixture struct {
	service     *AttachmentService
	attachments *fakeAttachments
	objects     *fakeObjects
	observer    *countingObserver
	events      *recordingPublisher
}

func newAttachmentFixture(permissions staticPermissions, attachments ...types.ProjectAttachment) attachmentFixture {
	f := attachmentFixture{
		attachments: newFakeAttachments(attachments...),
		objects:     newFakeObjects(),
		observer:    &countingObserver{},
		events:      &recordingPublisher{},
	}
	projects := fakeProjects{projectID: {ID: projectID, ProjectManagerID: managerID}}
	updates := newFakeUpdates(draftUpdate(1))
	f.service = NewAttachmentService(
		f.attachments, projects, updates, f.objects, permissions,
		NewEvents(f.events, nullLogger()), f.observer, nullLogger(), "https://files.example.org/",
	)
	names := 0
	f.service.newName = func() string {
		names++
		return "obj" + strings.Repeat("x", names)
	}
	return f
}

func upload(name string, size int64, content string) Upload {
	return Upload{
		Filename: name,
		Size:     size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestUploadStoresEachFileIndependently(t *testing.T) {
	f := newAttachmentFixture(nil)
	uploader := userWithRole(authorID, types.RoleProjectManager)

	result, err := f.service.Upload(context.Background(), uploader, projectID, UploadInput{
		ProjectUpdateID: intPtr(1),
		Descriptions:    []string{"front view", "", "notes"},
		Files: []Upload{
			upload("site.JPG", 1024, "jpeg"),
			upload("script.exe", 10, "mz"),
			upload("notes.txt", 5, "hello"),
			upload("huge.png", maxImageSize+1, ""),
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Uploaded, 2)
	photo := result.Uploaded[0]
	assert.Equal(t, types.AttachmentPhoto, photo.Type)
	assert.Equal(t, "site.JPG", photo.OriginalFilename)
	assert.Equal(t, "objx.jpg", photo.Filename)
	assert.Equal(t, "projects/1/photos/objx.jpg", photo.FilePath)
	assert.Equal(t, "image/jpeg", photo.MimeType)
	assert.Equal(t, "front view", photo.Description)
	assert.Equal(t, "general", photo.Category)
	assert.True(t, photo.IsPublic)
	assert.Equal(t, "https://files.example.org/projects/1/photos/objx.jpg", photo.URL)
	require.NotNil(t, photo.ProjectUpdateID)
	assert.Equal(t, 1, *photo.ProjectUpdateID)

	doc := result.Uploaded[1]
	assert.Equal(t, types.AttachmentDocument, doc.Type)
	assert.Equal(t, "notes", doc.Description)
	assert.True(t, f.objects.has(doc.FilePath))

	require.Len(t, result.Failed, 2)
	assert.Equal(t, UploadFailure{File: "script.exe", Error: "File type 'exe' is not allowed."}, result.Failed[0])
	assert.Equal(t, "huge.png", result.Failed[1].File)
	assert.Equal(t, "Image file size exceeds maximum allowed size of 10MB.", result.Failed[1].Error)

	assert.Equal(t, 1, f.observer.counts["photo/stored"])
	assert.Equal(t, 1, f.observer.counts["document/stored"])
	assert.Equal(t, 1, f.observer.counts["other/rejected"])
	assert.Equal(t, 1, f.observer.counts["photo/rejected"])
	assert.Equal(t, []string{EventAttachmentUploaded, EventAttachmentUploaded}, f.events.eventTypes())
}

func TestUploadRequestValidation(t *testing.T) {
	many := make([]Upload, MaxFilesPerUpload+1)
	for i := range many {
		many[i] = upload("a.pdf", 1, "x")
	}

	tests := []struct {
		name  string
		in    UploadInput
		field string
	}{
		{"no files", UploadInput{}, "files"},
		{"too many files", UploadInput{Files: many}, "files"},
		{"long description", UploadInput{
			Files:        []Upload{upload("a.pdf", 1, "x")},
			Descriptions: []string{strings.Repeat("d", maxDescriptionLength+1)},
		}, "descriptions.0"},
		{"unknown category", UploadInput{Files: []Upload{upload("a.pdf", 1, "x")}, Category: "memes"}, "category"},
		{"update of another project", UploadInput{Files: []Upload{upload("a.pdf", 1, "x")}, ProjectUpdateID: intPtr(42)}, "project_update_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttachmentFixture(nil)
			_, err := f.service.Upload(context.Background(), userWithRole(authorID, types.RoleAdmin), projectID, tt.in)

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.True(t, validation.Has(tt.field), "fields: %v", validation.Fields)
			assert.Empty(t, f.objects.objects)
		})
	}
}

func TestUploadRemovesObjectWhenRecordFails(t *testing.T) {
	f := newAttachmentFixture(nil)
	f.attachments.createErr = errors.New(`pq: insert or update on table "project_attachments" violates foreign key constraint "fk_uploader"`)

	result, err := f.service.Upload(context.Background(), userWithRole(authorID, types.RoleAdmin), projectID, UploadInput{
		Files: []Upload{upload("plan.pdf", 3, "pdf")},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Uploaded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, UploadFailure{File: "plan.pdf", Error: "Failed to store file."}, result.Failed[0])
	assert.Empty(t, f.objects.objects)
	assert.Equal(t, 1, f.observer.counts["document/failed"])
}

func TestUploadFailureHidesBackendErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f attachmentFixture)
		file  Upload
	}{
		{"storage", func(f attachmentFixture) {
			f.objects.putErr = errors.New("minio: Access Denied on bucket monitor-private")
		}, upload("a.txt", 1, "x")},
		{"record", func(f attachmentFixture) {
			f.attachments.createErr = errors.New(`pq: relation "project_attachments" does not exist`)
		}, upload("a.txt", 1, "x")},
		{"unreadable upload", func(attachmentFixture) {}, Upload{
			Filename: "a.txt",
			Size:     1,
			Open:     func() (io.ReadCloser, error) { return nil, errors.New("open /tmp/multipart-123: no such file") },
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttachmentFixture(nil)
			tt.setup(f)

			result, err := f.service.Upload(context.Background(), userWithRole(authorID, types.RoleAdmin), projectID, UploadInput{
				Files: []Upload{tt.file},
			})
			require.NoError(t, err)
			require.Len(t, result.Failed, 1)
			assert.Equal(t, "Failed to store file.", result.Failed[0].Error)
			for _, leak := range []string{"pq:", "minio", "/tmp", "project_attachments"} {
				assert.NotContains(t, result.Failed[0].Error, leak)
			}
		})
	}
}

func TestAttachmentOpenPrivateRequiresPermission(t *testing.T) {
	private := types.ProjectAttachment{
		ID: 7, ProjectID: projectID, ProjectUpdateID: intPtr(1),
		FilePath: "projects/1/documents/p.pdf", OriginalFilename: "p.pdf",
	}

	t.Run("denied", func(t *testing.T) {
		f := newAttachmentFixture(staticPermissions{types.PermViewProjects: true}, private)
		_, _, err := f.service.Open(context.Background(), userWithRole(otherID, types.RoleProjectManager), 7)
		assertRule(t, err, ErrForbidden, "Insufficient permissions. Required permission: view_updates")
	})

	t.Run("allowed", func(t *testing.T) {
		f := newAttachmentFixture(staticPermissions{types.PermViewUpdates: true}, private)
		f.objects.objects[private.FilePath] = []byte("pdf-bytes")

		a, body, err := f.service.Open(context.Background(), userWithRole(otherID, types.RoleProjectManager), 7)
		require.NoError(t, err)
		defer body.Close()
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "pdf-bytes", string(data))
		assert.Equal(t, "/attachments/7/download", a.URL)
	})
}

func TestAttachmentDelete(t *testing.T) {
	stored := types.ProjectAttachment{ID: 7, ProjectID: projectID, UploadedBy: authorID, FilePath: "projects/1/photos/a.png"}

	f := newAttachmentFixture(nil, stored)
	f.objects.objects[stored.FilePath] = []byte("png")

	err := f.service.Delete(context.Background(), userWithRole(otherID, types.RoleProjectManager), 7)
	assertRule(t, err, ErrForbidden, "You do not have permission to delete this attachment")

	require.NoError(t, f.service.Delete(context.Background(), userWithRole(managerID, types.RoleProjectManager), 7))
	assert.False(t, f.objects.has(stored.FilePath))
	_, err = f.attachments.Get(context.Background(), 7)
	assert.True(t, isNotFound(err))
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "projects/12/videos/abc.mp4", StorageKey(12, types.AttachmentVideo, "abc.mp4"))
}

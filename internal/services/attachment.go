package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nsmonitor/apiserver/types"
	"github.com/sirupsen/logrus"
)

const (
	MaxFilesPerUpload    = 10
	maxDescriptionLength = 500
	failedToStoreMessage = "Failed to store file."

	maxImageSize    = 10 << 20
	maxDocumentSize = 50 << 20
	maxVideoSize    = 100 << 20
)

type fileRule struct {
	kind    types.AttachmentType
	maxSize int64
	label   string
}

var fileRules = map[string]fileRule{}

func init() {
	register := func(rule fileRule, exts ...string) {
		for _, ext := range exts {
			fileRules[ext] = rule
		}
	}
	register(fileRule{types.AttachmentPhoto, maxImageSize, "Image"}, "jpg", "jpeg", "png", "gif", "webp")
	register(fileRule{types.AttachmentDocument, maxDocumentSize, "Document"}, "pdf", "doc", "docx", "xls", "xlsx", "txt", "csv")
	register(fileRule{types.AttachmentVideo, maxVideoSize, "Video"}, "mp4", "avi", "mov", "wmv", "flv")
}

var attachmentCategories = map[string]bool{
	"general":        true,
	"project_update": true,
	"document":       true,
}

// AttachmentRepository defines persistence operations for attachments.
type AttachmentRepository interface {
	ListByProject(ctx context.Context, projectID int, attachmentType string) ([]types.ProjectAttachment, error)
	ListByUpdate(ctx context.Context, updateID int) ([]types.ProjectAttachment, error)
	Get(ctx context.Context, id int) (types.ProjectAttachment, error)
	Create(ctx context.Context, a types.ProjectAttachment) (types.ProjectAttachment, error)
	Delete(ctx context.Context, id int) error
}

// UpdateGetter resolves an update scoped to its project.
type UpdateGetter interface {
	Get(ctx context.Context, projectID, id int) (types.ProjectUpdate, error)
}

// PermissionChecker is satisfied by *Authorizer.
type PermissionChecker interface {
	HasAnyPermission(ctx context.Context, user types.User, names []string) (bool, error)
}

// UploadObserver records upload outcomes. It is satisfied by
// *metrics.Metrics.
type UploadObserver interface {
	ObserveUpload(kind, outcome string)
}

// Upload is one file of a multi-file request.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type UploadInput struct {
	ProjectUpdateID *int
	Category        string
	IsPublic        *bool
	Descriptions    []string
	Files           []Upload
}

type UploadFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// UploadResult reports each file independently.
type UploadResult struct {
	Uploaded []types.ProjectAttachment `json:"uploaded"`
	Failed   []UploadFailure           `json:"failed"`
}

// AttachmentService stores project files and their records.
type AttachmentService struct {
	repo          AttachmentRepository
	projects      ProjectGetter
	updates       UpdateGetter
	objects       ObjectStore
	permissions   PermissionChecker
	events        *Events
	observer      UploadObserver
	logger        *logrus.Logger
	publicBaseURL string
	newName       func() string
}

func NewAttachmentService(
	repo AttachmentRepository,
	projects ProjectGetter,
	updates UpdateGetter,
	objects ObjectStore,
	permissions PermissionChecker,
	events *Events,
	observer UploadObserver,
	logger *logrus.Logger,
	publicBaseURL string,
) *AttachmentService {
	return &AttachmentService{
		repo:          repo,
		projects:      projects,
		updates:       updates,
		objects:       objects,
		permissions:   permissions,
		events:        events,
		observer:      observer,
		logger:        logger,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		newName:       uuid.NewString,
	}
}

func (s *AttachmentService) List(ctx context.Context, projectID int, attachmentType string) ([]types.ProjectAttachment, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListByProject(ctx, projectID, attachmentType)
	if err != nil {
		return nil, err
	}
	return s.withURLs(attachments), nil
}

func (s *AttachmentService) ListByUpdate(ctx context.Context, updateID int) ([]types.ProjectAttachment, error) {
	attachments, err := s.repo.ListByUpdate(ctx, updateID)
	if err != nil {
		return nil, err
	}
	return s.withURLs(attachments), nil
}

// Upload validates the request as a whole, then stores each file on its
// own. A failing file is reported and does not stop the others.
func (s *AttachmentService) Upload(ctx context.Context, actor types.User, projectID int, in UploadInput) (UploadResult, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return UploadResult{}, err
	}
	if err := s.validateUpload(ctx, projectID, in); err != nil {
		return UploadResult{}, err
	}

	category := in.Category
	if category == "" {
		category = "general"
	}
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	result := UploadResult{
		Uploaded: []types.ProjectAttachment{},
		Failed:   []UploadFailure{},
	}
	for i, file := range in.Files {
		description := ""
		if i < len(in.Descriptions) {
			description = in.Descriptions[i]
		}
		attachment, err := s.store(ctx, actor, projectID, file, types.ProjectAttachment{
			ProjectID:       projectID,
			ProjectUpdateID: in.ProjectUpdateID,
			UploadedBy:      actor.ID,
			Description:     description,
			Category:        category,
			IsPublic:        isPublic,
		})
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"project_id": projectID,
				"file":       file.Filename,
			}).Warn("attachment upload failed")
			result.Failed = append(result.Failed, UploadFailure{File: file.Filename, Error: failureMessage(err)})
			continue
		}
		result.Uploaded = append(result.Uploaded, attachment)
		s.events.Emit(ctx, ChannelProjectAttachments, EventAttachmentUploaded, actor.ID, projectID, attachment)
	}
	return result, nil
}

// uploadRejection is a per-file validation failure shown to the client as is.
type uploadRejection string

func (e uploadRejection) Error() string { return string(e) }

// failureMessage hides storage and database errors behind a generic message.
func failureMessage(err error) string {
	var rejection uploadRejection
	if errors.As(err, &rejection) {
		return rejection.Error()
	}
	return failedToStoreMessage
}

func (s *AttachmentService) validateUpload(ctx context.Context, projectID int, in UploadInput) error {
	v := NewValidationError()
	switch {
	case len(in.Files) == 0:
		v.Add("files", "The files field is required.")
	case len(in.Files) > MaxFilesPerUpload:
		v.Add("files", "The files may not have more than "+strconv.Itoa(MaxFilesPerUpload)+" items.")
	}
	for i, description := range in.Descriptions {
		maxLength(v, "descriptions."+strconv.Itoa(i), description, maxDescriptionLength)
	}
	if in.Category != "" && !attachmentCategories[in.Category] {
		v.Add("category", "The selected category is invalid.")
	}
	if in.ProjectUpdateID != nil {
		if _, err := s.updates.Get(ctx, projectID, *in.ProjectUpdateID); err != nil {
			if !isNotFound(err) {
				return err
			}
			v.Add("project_update_id", "The selected project update id is invalid.")
		}
	}
	return v.OrNil()
}

func (s *AttachmentService) store(ctx context.Context, actor types.User, projectID int, file Upload, a types.ProjectAttachment) (types.ProjectAttachment, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(file.Filename), "."))
	rule, ok := fileRules[ext]
	if !ok {
		s.observe(types.AttachmentOther, "rejected")
		return types.ProjectAttachment{}, uploadRejection(fmt.Sprintf("File type '%s' is not allowed.", ext))
	}
	if file.Size > rule.maxSize {
		s.observe(rule.kind, "rejected")
		return types.ProjectAttachment{}, uploadRejection(fmt.Sprintf("%s file size exceeds maximum allowed size of %dMB.", rule.label, rule.maxSize>>20))
	}

	a.Type = rule.kind
	a.Filename = s.newName() + "." + ext
	a.OriginalFilename = file.Filename
	a.FilePath = StorageKey(projectID, rule.kind, a.Filename)
	a.FileSize = file.Size
	a.MimeType = file.ContentType
	if a.MimeType == "" || a.MimeType == "application/octet-stream" {
		if guessed := mime.TypeByExtension("." + ext); guessed != "" {
			a.MimeType = guessed
		}
	}
	if a.MimeType == "" {
		a.MimeType = "application/octet-stream"
	}

	body, err := file.Open()
	if err != nil {
		s.observe(rule.kind, "failed")
		return types.ProjectAttachment{}, fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()

	if err := s.objects.Put(ctx, a.FilePath, body, a.FileSize, a.MimeType); err != nil {
		s.observe(rule.kind, "failed")
		return types.ProjectAttachment{}, fmt.Errorf("store file: %w", err)
	}

	created, err := s.repo.Create(ctx, a)
	if err != nil {
		removeObjects(ctx, s.objects, s.logger, []string{a.FilePath})
		s.observe(rule.kind, "failed")
		return types.ProjectAttachment{}, fmt.Errorf("save attachment: %w", err)
	}
	created.UploaderName = actor.Name
	s.observe(rule.kind, "stored")
	return s.withURL(created), nil
}

func (s *AttachmentService) observe(kind types.AttachmentType, outcome string) {
	if s.observer != nil {
		s.observer.ObserveUpload(string(kind), outcome)
	}
}

// Delete removes the stored object best-effort, then the record.
func (s *AttachmentService) Delete(ctx context.Context, actor types.User, id int) error {
	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	project, err := s.projects.Get(ctx, attachment.ProjectID)
	if err != nil {
		return err
	}
	if !CanDeleteAttachment(actor, attachment, project) {
		return ruleError(ErrForbidden, "You do not have permission to delete this attachment")
	}

	removeObjects(ctx, s.objects, s.logger, []string{attachment.FilePath})
	return s.repo.Delete(ctx, id)
}

// Open returns the attachment and a reader for its content. Private files
// require a view permission matching what they are attached to.
func (s *AttachmentService) Open(ctx context.Context, actor types.User, id int) (types.ProjectAttachment, io.ReadCloser, error) {
	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.ProjectAttachment{}, nil, err
	}
	if !attachment.IsPublic {
		required := types.PermViewProjects
		if attachment.ProjectUpdateID != nil {
			required = types.PermViewUpdates
		}
		ok, err := s.permissions.HasAnyPermission(ctx, actor, []string{required})
		if err != nil {
			return types.ProjectAttachment{}, nil, err
		}
		if !ok {
			return types.ProjectAttachment{}, nil, ruleError(ErrForbidden, "Insufficient permissions. Required permission: "+required)
		}
	}

	body, err := s.objects.Get(ctx, attachment.FilePath)
	if err != nil {
		return types.ProjectAttachment{}, nil, fmt.Errorf("open stored file: %w", err)
	}
	return s.withURL(attachment), body, nil
}

func (s *AttachmentService) withURLs(attachments []types.ProjectAttachment) []types.ProjectAttachment {
	for i := range attachments {
		attachments[i] = s.withURL(attachments[i])
	}
	return attachments
}

func (s *AttachmentService) withURL(a types.ProjectAttachment) types.ProjectAttachment {
	if a.IsPublic && s.publicBaseURL != "" {
		a.URL = s.publicBaseURL + "/" + a.FilePath
	} else {
		a.URL = "/attachments/" + strconv.Itoa(a.ID) + "/download"
	}
	return a
}

// StorageKey is the object key of an attachment.
func StorageKey(projectID int, kind types.AttachmentType, filename string) string {
	return "projects/" + strconv.Itoa(projectID) + "/" + string(kind) + "s/" + filename
}

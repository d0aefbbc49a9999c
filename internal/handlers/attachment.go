package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/types"
)

// maxMultipartMemory is the in-memory part of a parsed upload; the rest
// spills to temporary files.
const maxMultipartMemory = 32 << 20

type AttachmentHandler struct {
	attachments *services.AttachmentService
	ErrorReporter
}

func NewAttachmentHandler(attachments *services.AttachmentService, reporter ErrorReporter) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, ErrorReporter: reporter}
}

// ProjectAttachmentRouter registers routes below /projects/{projectID}/attachments.
func ProjectAttachmentRouter(r chi.Router, handler *AttachmentHandler, guard *Guard) {
	r.With(guard.RequirePermission(types.PermViewProjects)).Get("/", handler.List)
	r.With(guard.RequireAnyPermission(types.PermCreateUpdates, types.PermEditProjects)).Post("/", handler.Upload)
}

// AttachmentRouter registers routes below /attachments.
func AttachmentRouter(r chi.Router, handler *AttachmentHandler) {
	r.Get("/{attachmentID}/download", handler.Download)
	r.Delete("/{attachmentID}", handler.Delete)
}

func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attachments, err := h.attachments.List(r.Context(), projectID, strings.TrimSpace(r.URL.Query().Get("type")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", attachments)
}

func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in, fields := uploadInput(r.MultipartForm)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	result, err := h.attachments.Upload(r.Context(), actor, projectID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, fmt.Sprintf("%d file(s) uploaded successfully", len(result.Uploaded)), result)
}

// uploadInput reads files, descriptions and the optional scalar fields.
// Both "files" and "files[]" naming conventions are accepted.
func uploadInput(form *multipart.Form) (services.UploadInput, map[string][]string) {
	fields := map[string][]string{}
	in := services.UploadInput{
		Category:     formValue(form, "category"),
		Descriptions: formValues(form, "descriptions"),
	}

	if raw := formValue(form, "project_update_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			fields["project_update_id"] = []string{"The project update id must be an integer."}
		} else {
			in.ProjectUpdateID = &id
		}
	}
	if raw := formValue(form, "is_public"); raw != "" {
		public, err := strconv.ParseBool(raw)
		if err != nil {
			fields["is_public"] = []string{"The is public field must be true or false."}
		} else {
			in.IsPublic = &public
		}
	}

	headers := append(append([]*multipart.FileHeader{}, form.File["files"]...), form.File["files[]"]...)
	for _, fh := range headers {
		in.Files = append(in.Files, services.Upload{
			Filename:    fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return in, fields
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func formValues(form *multipart.Form, key string) []string {
	if v := form.Value[key]; len(v) > 0 {
		return v
	}
	return form.Value[key+"[]"]
}

func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, err := parseID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attachment, body, err := h.attachments.Open(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.OriginalFilename))
	if attachment.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WithError(err).WithField("attachment_id", id).Warn("download interrupted")
	}
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, err := parseID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.attachments.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Attachment deleted successfully")
}

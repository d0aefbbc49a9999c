package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/types"
)

// UpdateHandler serves the project update workflow.
type UpdateHandler struct {
	updates     *services.UpdateService
	attachments *services.AttachmentService
	ErrorReporter
}

func NewUpdateHandler(updates *services.UpdateService, attachments *services.AttachmentService, reporter ErrorReporter) *UpdateHandler {
	return &UpdateHandler{updates: updates, attachments: attachments, ErrorReporter: reporter}
}

// UpdateRouter registers routes below /projects/{projectID}/updates.
// Edit, delete and the workflow actions are authorized per update by the
// service.
func UpdateRouter(r chi.Router, handler *UpdateHandler, guard *Guard) {
	r.With(guard.RequirePermission(types.PermViewUpdates)).Get("/", handler.List)
	r.With(guard.RequirePermission(types.PermCreateUpdates)).Post("/", handler.Create)
	r.Route("/{updateID}", func(r chi.Router) {
		r.With(guard.RequirePermission(types.PermViewUpdates)).Get("/", handler.Get)
		r.Put("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Post("/submit", handler.Submit)
		r.Post("/approve", handler.Approve)
		r.Post("/reject", handler.Reject)
	})
}

// UpdateDetail is an update with its attachments.
type UpdateDetail struct {
	types.ProjectUpdate
	Attachments []types.ProjectAttachment `json:"attachments"`
}

func (h *UpdateHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, page, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if updateType := r.URL.Query().Get("update_type"); updateType != "" {
		q.Category = updateType
	}

	updates, total, err := h.updates.List(r.Context(), projectID, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: updates, Meta: newPageMeta(page, q.Limit, total)})
}

func (h *UpdateHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, updateID, ok := h.ids(w, r)
	if !ok {
		return
	}
	update, err := h.updates.Get(r.Context(), projectID, updateID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, "", update)
}

func (h *UpdateHandler) Create(w http.ResponseWriter, r *http.Request) {
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
	var in services.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	update, err := h.updates.Create(r.Context(), actor, projectID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusCreated, "Project update created successfully", update)
}

func (h *UpdateHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	projectID, updateID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var in services.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	update, err := h.updates.Update(r.Context(), actor, projectID, updateID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, "Project update updated successfully", update)
}

func (h *UpdateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	projectID, updateID, ok := h.ids(w, r)
	if !ok {
		return
	}
	if err := h.updates.Delete(r.Context(), actor, projectID, updateID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Project update deleted successfully")
}

func (h *UpdateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.updates.Submit, "Project update submitted for approval")
}

func (h *UpdateHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.updates.Approve, "Project update approved successfully")
}

func (h *UpdateHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.updates.Reject, "Project update rejected")
}

type transitionFunc func(ctx context.Context, actor types.User, projectID, id int) (types.ProjectUpdate, error)

func (h *UpdateHandler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc, message string) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	projectID, updateID, ok := h.ids(w, r)
	if !ok {
		return
	}
	update, err := apply(r.Context(), actor, projectID, updateID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, message, update)
}

func (h *UpdateHandler) writeDetail(w http.ResponseWriter, r *http.Request, status int, message string, update types.ProjectUpdate) {
	attachments, err := h.attachments.ListByUpdate(r.Context(), update.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, status, message, UpdateDetail{ProjectUpdate: update, Attachments: attachments})
}

func (h *UpdateHandler) ids(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	updateID, err := parseID(r, "updateID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return projectID, updateID, true
}

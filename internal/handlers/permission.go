package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
)

type PermissionHandler struct {
	permissions *services.PermissionService
	ErrorReporter
}

func NewPermissionHandler(permissions *services.PermissionService, reporter ErrorReporter) *PermissionHandler {
	return &PermissionHandler{permissions: permissions, ErrorReporter: reporter}
}

// PermissionRouter registers permission routes on the given router.
func PermissionRouter(r chi.Router, handler *PermissionHandler) {
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/categories", handler.Categories)
	r.Get("/grouped", handler.Grouped)
	r.Route("/{permissionID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Put("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Patch("/toggle-status", handler.ToggleStatus)
		r.Post("/toggle-status", handler.ToggleStatus)
	})
}

func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	q, page, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	permissions, total, err := h.permissions.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: permissions, Meta: newPageMeta(page, q.Limit, total)})
}

func (h *PermissionHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.permissions.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", categories)
}

func (h *PermissionHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	groups, err := h.permissions.Grouped(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", groups)
}

func (h *PermissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	permission, err := h.permissions.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", permission)
}

func (h *PermissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.PermissionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	permission, err := h.permissions.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Permission created successfully", permission)
}

func (h *PermissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in services.PermissionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	permission, err := h.permissions.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Permission updated successfully", permission)
}

func (h *PermissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.permissions.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Permission deleted successfully")
}

func (h *PermissionHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	permission, err := h.permissions.ToggleStatus(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Permission status updated successfully", permission)
}

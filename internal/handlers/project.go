package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/types"
)

// ProjectHandler provides the project registry endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
	ErrorReporter
}

func NewProjectHandler(projects *services.ProjectService, reporter ErrorReporter) *ProjectHandler {
	return &ProjectHandler{projects: projects, ErrorReporter: reporter}
}

// ProjectRouter registers project routes on the given router. Requests
// must already be authenticated.
func ProjectRouter(r chi.Router, handler *ProjectHandler, guard *Guard) {
	r.With(guard.RequirePermission(types.PermViewProjects)).Get("/", handler.List)
	r.With(guard.RequirePermission(types.PermCreateProjects)).Post("/", handler.Create)
	r.With(guard.RequirePermission(types.PermViewProjects)).Get("/{projectID}", handler.Get)
	r.With(guard.RequirePermission(types.PermEditProjects)).Put("/{projectID}", handler.Update)
	r.With(guard.RequireAllPermissions(types.PermManageProjects, types.PermDeleteProjects)).Delete("/{projectID}", handler.Delete)
}

// ProjectListMeta adds registry-wide totals to the page metadata.
type ProjectListMeta struct {
	PageMeta
	Stats types.ProjectTotals `json:"stats"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	q, page, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lgaID, err := queryInt(r, "lga_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wardID, err := queryInt(r, "ward_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	projects, total, totals, err := h.projects.List(r.Context(), types.ProjectQuery{
		ListQuery: q,
		LgaID:     lgaID,
		WardID:    wardID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Data: projects,
		Meta: ProjectListMeta{PageMeta: newPageMeta(page, q.Limit, total), Stats: totals},
	})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	project, err := h.projects.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", project)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in types.Project
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.ID = 0
	in.Name = strings.TrimSpace(in.Name)
	project, err := h.projects.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Project created successfully", project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in types.Project
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	project, err := h.projects.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Project updated successfully", project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.projects.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Project deleted successfully")
}

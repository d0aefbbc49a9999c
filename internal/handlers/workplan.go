package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/types"
)

type WorkPlanHandler struct {
	activities *services.WorkPlanService
	ErrorReporter
}

func NewWorkPlanHandler(activities *services.WorkPlanService, reporter ErrorReporter) *WorkPlanHandler {
	return &WorkPlanHandler{activities: activities, ErrorReporter: reporter}
}

// WorkPlanRouter registers routes below /projects/{projectID}/work-plan-activities.
func WorkPlanRouter(r chi.Router, handler *WorkPlanHandler, guard *Guard) {
	r.With(guard.RequirePermission(types.PermViewProjects)).Get("/", handler.List)
	r.Group(func(r chi.Router) {
		r.Use(guard.RequirePermission(types.PermEditProjects))
		r.Post("/", handler.Create)
		r.Put("/{activityID}", handler.Update)
		r.Delete("/{activityID}", handler.Delete)
	})
}

type createActivitiesRequest struct {
	Activities []services.ActivityInput `json:"activities"`
}

func (h *WorkPlanHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	activities, err := h.activities.List(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", activities)
}

func (h *WorkPlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req createActivitiesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	activities, err := h.activities.CreateMany(r.Context(), projectID, req.Activities)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Work plan activities created successfully", activities)
}

func (h *WorkPlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseID(r, "activityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in services.ActivityInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	activity, err := h.activities.Update(r.Context(), projectID, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Work plan activity updated successfully", activity)
}

func (h *WorkPlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseID(r, "activityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.activities.Delete(r.Context(), projectID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Work plan activity deleted successfully")
}

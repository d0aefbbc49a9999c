package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/types"
)

type IndicatorHandler struct {
	indicators *services.IndicatorService
	ErrorReporter
}

func NewIndicatorHandler(indicators *services.IndicatorService, reporter ErrorReporter) *IndicatorHandler {
	return &IndicatorHandler{indicators: indicators, ErrorReporter: reporter}
}

// IndicatorRouter registers routes below /projects/{projectID}/output-indicators.
func IndicatorRouter(r chi.Router, handler *IndicatorHandler, guard *Guard) {
	r.With(guard.RequirePermission(types.PermViewProjects)).Get("/", handler.List)
	r.Group(func(r chi.Router) {
		r.Use(guard.RequirePermission(types.PermEditProjects))
		r.Post("/", handler.Create)
		r.Put("/{indicatorID}", handler.Update)
		r.Delete("/{indicatorID}", handler.Delete)
	})
}

func (h *IndicatorHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	indicators, err := h.indicators.List(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", indicators)
}

func (h *IndicatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in types.OutputIndicator
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	indicator, err := h.indicators.Create(r.Context(), projectID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Output indicator created successfully", indicator)
}

func (h *IndicatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseID(r, "indicatorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in types.OutputIndicator
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	indicator, err := h.indicators.Update(r.Context(), projectID, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Output indicator updated successfully", indicator)
}

func (h *IndicatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := parseID(r, "indicatorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.indicators.Delete(r.Context(), projectID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, "Output indicator deleted successfully")
}

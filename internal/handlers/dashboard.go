package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/types"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
	ErrorReporter
}

func NewDashboardHandler(dashboard *services.DashboardService, reporter ErrorReporter) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, ErrorReporter: reporter}
}

func DashboardRouter(r chi.Router, handler *DashboardHandler, guard *Guard) {
	r.With(guard.RequirePermission(types.PermViewDashboard)).Get("/stats", handler.Stats)
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

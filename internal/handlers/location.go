package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
)

// LocationHandler serves LGA and ward reference data.
type LocationHandler struct {
	locations *services.LocationService
	ErrorReporter
}

func NewLocationHandler(locations *services.LocationService, reporter ErrorReporter) *LocationHandler {
	return &LocationHandler{locations: locations, ErrorReporter: reporter}
}

func LocationRouter(r chi.Router, handler *LocationHandler) {
	r.Get("/lgas", handler.ListLgas)
	r.Get("/lgas/{lgaID}", handler.GetLga)
	r.Get("/lgas/{lgaID}/wards", handler.LgaWards)
	r.Get("/wards", handler.ListWards)
	r.Get("/wards/{wardID}", handler.GetWard)
}

func (h *LocationHandler) ListLgas(w http.ResponseWriter, r *http.Request) {
	lgas, err := h.locations.ListLgas(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", lgas)
}

func (h *LocationHandler) GetLga(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "lgaID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lga, err := h.locations.GetLga(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", lga)
}

func (h *LocationHandler) LgaWards(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "lgaID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wards, err := h.locations.WardsOf(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", wards)
}

func (h *LocationHandler) ListWards(w http.ResponseWriter, r *http.Request) {
	lgaID, err := queryInt(r, "lga_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wards, err := h.locations.Wards(r.Context(), lgaID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", wards)
}

func (h *LocationHandler) GetWard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "wardID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ward, err := h.locations.GetWard(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", ward)
}

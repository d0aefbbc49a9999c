package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nsmonitor/apiserver/internal/services"
)

// FormDataHandler serves option lists for the project form.
type FormDataHandler struct {
	users *services.UserService
	ErrorReporter
}

func NewFormDataHandler(users *services.UserService, reporter ErrorReporter) *FormDataHandler {
	return &FormDataHandler{users: users, ErrorReporter: reporter}
}

func FormDataRouter(r chi.Router, handler *FormDataHandler) {
	r.Get("/sectors", handler.Sectors)
	r.Get("/project-managers", handler.ProjectManagers)
}

func (h *FormDataHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", services.Sectors)
}

// managerOption is the select-box shape of a project manager.
type managerOption struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *FormDataHandler) ProjectManagers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ProjectManagers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	options := make([]managerOption, 0, len(users))
	for _, u := range users {
		options = append(options, managerOption{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	writeData(w, http.StatusOK, "", options)
}
